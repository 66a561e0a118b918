package uds

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go/v4"
)

// ReadVIN requests the vehicle identification number, PID 0x02 of service 0x09.
func (c *Client) ReadVIN(ctx context.Context, arbitrationID uint32) (string, error) {
	resp, err := c.Query(ctx, arbitrationID, RequestVehicleInformation, []byte{PIDVehicleIdentification})
	if err != nil {
		return "", err
	}
	if len(resp) == 0 || resp[0] != PIDVehicleIdentification {
		return "", ErrInvalidResponsePID
	}
	data := resp[1:]
	// message count and padding records
	for len(data) > 0 && (data[0] == 0x00 || data[0] == 0x01) {
		data = data[1:]
	}
	return lossyString(data), nil
}

// lossyString decodes b as UTF-8, every invalid byte becomes U+FFFD.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var out bytes.Buffer
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		out.WriteRune(r)
		b = b[size:]
	}
	return out.String()
}

// ReadTroubleCodes returns the stored DTCs in the order the ECU reported them.
// The leading count byte is not checked against the number of records and an
// odd trailing byte is dropped.
func (c *Client) ReadTroubleCodes(ctx context.Context, arbitrationID uint32) ([]DTC, error) {
	resp, err := c.Query(ctx, arbitrationID, ShowStoredDiagnosticTroubleCodes, nil)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, ErrEmptyResponse
	}
	records := resp[1:]
	dtcs := make([]DTC, 0, len(records)/2)
	for i := 0; i+1 < len(records); i += 2 {
		dtcs = append(dtcs, DecodeDTC([2]byte{records[i], records[i+1]}))
	}
	return dtcs, nil
}

func (c *Client) SetDiagnosticSession(ctx context.Context, arbitrationID uint32, session byte) error {
	resp, err := c.Query(ctx, arbitrationID, DiagnosticSessionControl, []byte{session})
	if err != nil {
		return err
	}
	if len(resp) == 0 {
		return ErrEmptyResponse
	}
	if resp[0] != session {
		return fmt.Errorf("%w: requested 0x%02X got 0x%02X", ErrInvalidSessionType, session, resp[0])
	}
	return nil
}

func (c *Client) RequestSecuritySeed(ctx context.Context, arbitrationID uint32) ([]byte, error) {
	resp, err := c.Query(ctx, arbitrationID, SecurityAccess, []byte{SecurityAccessRequestSeed})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != SecurityAccessRequestSeed {
		return nil, ErrInvalidAccessType
	}
	return resp[1:], nil
}

// SendSecurityKey submits key, a rejected key surfaces as a *NegativeResponseError.
func (c *Client) SendSecurityKey(ctx context.Context, arbitrationID uint32, key []byte) error {
	params := make([]byte, 0, 1+len(key))
	params = append(params, SecurityAccessSendKey)
	params = append(params, key...)
	resp, err := c.Query(ctx, arbitrationID, SecurityAccess, params)
	if err != nil {
		return err
	}
	if len(resp) == 0 {
		return ErrEmptyResponse
	}
	return nil
}

// KeyFunc computes the security access key for seed.
type KeyFunc func(seed []byte) ([]byte, error)

// Unlock performs the seed/key handshake. A seed of only zero bytes means the
// ECU is already unlocked and no key is sent.
func (c *Client) Unlock(ctx context.Context, arbitrationID uint32, fn KeyFunc) error {
	seed, err := c.RequestSecuritySeed(ctx, arbitrationID)
	if err != nil {
		return fmt.Errorf("request seed: %w", err)
	}
	if isZero(seed) {
		return nil
	}
	key, err := fn(seed)
	if err != nil {
		return fmt.Errorf("calculate key: %w", err)
	}
	if err := c.SendSecurityKey(ctx, arbitrationID, key); err != nil {
		return fmt.Errorf("send key: %w", err)
	}
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// ReadMemoryAddress reads length bytes at address, both sent big endian.
func (c *Client) ReadMemoryAddress(ctx context.Context, arbitrationID uint32, address uint32, length uint16) ([]byte, error) {
	params := make([]byte, 0, 6)
	params = binary.BigEndian.AppendUint32(params, address)
	params = binary.BigEndian.AppendUint16(params, length)
	return c.Query(ctx, arbitrationID, ReadMemoryByAddress, params)
}

func (c *Client) ReadDataByIdentifier(ctx context.Context, arbitrationID uint32, did uint16) ([]byte, error) {
	resp, err := c.Query(ctx, arbitrationID, ReadDataByIdentifierSID, binary.BigEndian.AppendUint16(nil, did))
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 || binary.BigEndian.Uint16(resp) != did {
		return nil, fmt.Errorf("%w: requested 0x%04X", ErrInvalidDataIdentifier, did)
	}
	return resp[2:], nil
}

// TesterPresent keeps a non default session alive.
func (c *Client) TesterPresent(ctx context.Context, arbitrationID uint32) error {
	_, err := c.Query(ctx, arbitrationID, TesterPresentSID, []byte{TesterPresentRequired})
	return err
}

const DefaultMemoryBlockSize = 0x80

// ProgressFunc is called after every block with the number of bytes read so far.
type ProgressFunc func(read, total int)

// ReadMemory dumps size bytes starting at address in blocks of blockSize bytes.
// Failed blocks are retried, negative responses are not.
func (c *Client) ReadMemory(ctx context.Context, arbitrationID uint32, address uint32, size int, blockSize uint16, cb ProgressFunc) ([]byte, error) {
	if blockSize == 0 {
		blockSize = DefaultMemoryBlockSize
	}
	out := make([]byte, 0, size)
	for len(out) < size {
		want := uint16(min(size-len(out), int(blockSize)))
		addr := address + uint32(len(out))
		block, err := retry.DoWithData(
			func() ([]byte, error) {
				data, err := c.ReadMemoryAddress(ctx, arbitrationID, addr, want)
				if err != nil {
					return nil, err
				}
				if len(data) < int(want) {
					return nil, fmt.Errorf("short read at 0x%X: got %d of %d bytes", addr, len(data), want)
				}
				return data[:want], nil
			},
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(10*time.Millisecond),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool {
				var nre *NegativeResponseError
				return !errors.As(err, &nre) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("read memory 0x%X: %w", addr, err)
		}
		out = append(out, block...)
		if cb != nil {
			cb(len(out), size)
		}
	}
	return out, nil
}
