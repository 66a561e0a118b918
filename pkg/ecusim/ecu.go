// Package ecusim simulates a UDS capable ECU, usable directly as a godiag.IsoTp
// or served over any transport.
package ecusim

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/roffe/godiag"
	"github.com/roffe/godiag/pkg/uds"
)

const receiveTimeout = time.Second

var _ godiag.IsoTp = (*ECU)(nil)

type region struct {
	address uint32
	data    []byte
}

type ECU struct {
	profile *Profile
	seed    []byte
	mask    []byte
	dtcs    []uds.DTC
	memory  []region

	mu          sync.Mutex
	session     byte
	seedSent    bool
	unlocked    bool
	lastRequest []byte
	pendingLeft int

	responses chan []byte
}

func New(p *Profile) (*ECU, error) {
	if p == nil {
		p = DefaultProfile()
	}
	e := &ECU{
		profile:   p,
		session:   uds.DefaultSession,
		responses: make(chan []byte, 16),
	}
	var err error
	if e.seed, err = hex.DecodeString(p.Seed); err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if e.mask, err = hex.DecodeString(p.KeyMask); err != nil {
		return nil, fmt.Errorf("invalid key mask: %w", err)
	}
	for _, s := range p.DTCs {
		d, err := uds.ParseDTC(s)
		if err != nil {
			return nil, err
		}
		e.dtcs = append(e.dtcs, d)
	}
	for _, r := range p.Memory {
		data, err := r.bytes()
		if err != nil {
			return nil, err
		}
		e.memory = append(e.memory, region{address: r.Address, data: data})
	}
	return e, nil
}

func (e *ECU) Profile() *Profile {
	return e.profile
}

// XORKey is the key algorithm of the simulator, seed XOR mask with the mask repeated.
func XORKey(mask []byte) uds.KeyFunc {
	return func(seed []byte) ([]byte, error) {
		if len(mask) == 0 {
			return nil, errors.New("empty key mask")
		}
		key := make([]byte, len(seed))
		for i, b := range seed {
			key[i] = b ^ mask[i%len(mask)]
		}
		return key, nil
	}
}

func negative(sid, nrc byte) []byte {
	return []byte{uds.NegativeResponse, sid, nrc}
}

func positive(sid byte, data ...byte) []byte {
	return append([]byte{sid + uds.PositiveResponseOffset}, data...)
}

// Handle answers a single UDS request, nil means no answer is sent.
func (e *ECU) Handle(req []byte) []byte {
	if len(req) == 0 {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	sid, params := req[0], req[1:]

	if e.profile.Pending > 0 {
		if !bytes.Equal(req, e.lastRequest) {
			e.lastRequest = slices.Clone(req)
			e.pendingLeft = e.profile.Pending
		}
		if e.pendingLeft > 0 {
			e.pendingLeft--
			return negative(sid, uds.NRCResponsePending)
		}
		e.lastRequest = nil
	}

	resp := e.handle(sid, params)
	if len(resp) > godiag.MaxMessageSize {
		return negative(sid, uds.NRCResponseTooLong)
	}
	return resp
}

func (e *ECU) handle(sid byte, params []byte) []byte {
	switch sid {
	case uds.RequestVehicleInformation:
		if len(params) != 1 {
			return negative(sid, uds.NRCIncorrectMessageLength)
		}
		if params[0] != uds.PIDVehicleIdentification {
			return negative(sid, uds.NRCRequestOutOfRange)
		}
		return positive(sid, append([]byte{uds.PIDVehicleIdentification, 0x01}, e.profile.VIN...)...)

	case uds.ShowStoredDiagnosticTroubleCodes:
		out := positive(sid, byte(len(e.dtcs)))
		for _, d := range e.dtcs {
			out = append(out, d[0], d[1])
		}
		return out

	case uds.DiagnosticSessionControl:
		if len(params) != 1 {
			return negative(sid, uds.NRCIncorrectMessageLength)
		}
		if !slices.Contains(e.profile.Sessions, int(params[0])) {
			return negative(sid, uds.NRCSubFunctionNotSupported)
		}
		if params[0] != e.session {
			e.unlocked = false
			e.seedSent = false
		}
		e.session = params[0]
		// P2 50ms, P2* 5000ms
		return positive(sid, params[0], 0x00, 0x32, 0x01, 0xF4)

	case uds.SecurityAccess:
		return e.securityAccess(sid, params)

	case uds.ReadMemoryByAddress:
		return e.readMemory(sid, params)

	case uds.ReadDataByIdentifierSID:
		if len(params) != 2 {
			return negative(sid, uds.NRCIncorrectMessageLength)
		}
		did := binary.BigEndian.Uint16(params)
		data, ok := e.profile.DIDs[did]
		if !ok {
			return negative(sid, uds.NRCRequestOutOfRange)
		}
		return positive(sid, append(slices.Clone(params), data...)...)

	case uds.TesterPresentSID:
		if len(params) != 1 {
			return negative(sid, uds.NRCIncorrectMessageLength)
		}
		// suppress positive response bit
		if params[0]&0x80 != 0 {
			return nil
		}
		return positive(sid, params[0])
	}
	return negative(sid, uds.NRCServiceNotSupported)
}

func (e *ECU) securityAccess(sid byte, params []byte) []byte {
	if len(params) == 0 {
		return negative(sid, uds.NRCIncorrectMessageLength)
	}
	switch params[0] {
	case uds.SecurityAccessRequestSeed:
		if e.unlocked {
			return positive(sid, append([]byte{uds.SecurityAccessRequestSeed}, make([]byte, len(e.seed))...)...)
		}
		e.seedSent = true
		return positive(sid, append([]byte{uds.SecurityAccessRequestSeed}, e.seed...)...)
	case uds.SecurityAccessSendKey:
		if !e.seedSent {
			return negative(sid, uds.NRCRequestSequenceError)
		}
		e.seedSent = false
		want, err := XORKey(e.mask)(e.seed)
		if err != nil || !bytes.Equal(params[1:], want) {
			return negative(sid, uds.NRCInvalidKey)
		}
		e.unlocked = true
		return positive(sid, uds.SecurityAccessSendKey)
	}
	return negative(sid, uds.NRCSubFunctionNotSupported)
}

func (e *ECU) readMemory(sid byte, params []byte) []byte {
	if len(params) != 6 {
		return negative(sid, uds.NRCIncorrectMessageLength)
	}
	if e.profile.MemoryNeedsUnlock && !e.unlocked {
		return negative(sid, uds.NRCSecurityAccessDenied)
	}
	address := binary.BigEndian.Uint32(params)
	length := uint32(binary.BigEndian.Uint16(params[4:]))
	if length == 0 {
		return negative(sid, uds.NRCRequestOutOfRange)
	}
	for _, r := range e.memory {
		if address < r.address {
			continue
		}
		start := uint64(address - r.address)
		end := start + uint64(length)
		if end <= uint64(len(r.data)) {
			return positive(sid, r.data[start:end]...)
		}
	}
	return negative(sid, uds.NRCRequestOutOfRange)
}

// Send handles a request addressed to the ECU, the answer is queued for Receive.
func (e *ECU) Send(ctx context.Context, id uint32, data []byte) error {
	if len(data) > godiag.MaxMessageSize {
		return godiag.ErrMessageTooLong
	}
	if id != e.profile.RequestID {
		return nil
	}
	resp := e.Handle(data)
	if resp == nil {
		return nil
	}
	select {
	case e.responses <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *ECU) Receive(ctx context.Context, id uint32) ([]byte, error) {
	t := time.NewTimer(receiveTimeout)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case resp := <-e.responses:
			if id != godiag.ResponseID(e.profile.RequestID) {
				continue
			}
			return resp, nil
		case <-t.C:
			return nil, &godiag.TimeoutError{Timeout: receiveTimeout, Frames: []uint32{id}, Type: "ecusim receive"}
		}
	}
}

// Serve answers requests arriving on t until ctx is done.
func (e *ECU) Serve(ctx context.Context, t godiag.IsoTp) error {
	id := e.profile.RequestID
	for {
		req, err := t.Receive(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var te *godiag.TimeoutError
			if errors.As(err, &te) {
				continue
			}
			if errors.Is(err, godiag.ErrResponseChannelClosed) || errors.Is(err, godiag.ErrClientClosed) {
				return err
			}
			log.Printf("ecusim: %v", err)
			continue
		}
		resp := e.Handle(req)
		if resp == nil {
			continue
		}
		if err := t.Send(ctx, godiag.ResponseID(id), resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("ecusim: send response: %v", err)
		}
	}
}
