// Package isotp implements ISO 15765-2 segmentation on top of a godiag CAN client.
package isotp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roffe/godiag"
)

var (
	ErrSequence          = errors.New("consecutive frame out of sequence")
	ErrOverflow          = errors.New("receiver reported buffer overflow")
	ErrWaitLimit         = errors.New("too many flow control wait frames")
	ErrInvalidFlowStatus = errors.New("invalid flow status")
)

const defaultTimeout = time.Second

var _ godiag.IsoTp = (*Transport)(nil)

// Transport moves whole messages over CAN frames. Flow control for a
// transfer travels on the partner identifier: a tester sending on 0x7E0
// expects flow control on 0x7E8 and answers a transfer on 0x7E8 with flow
// control on 0x7E0. WithServerAddressing inverts this for the ECU side.
type Transport struct {
	c *godiag.Client

	timeout   time.Duration
	blockSize byte
	stmin     byte
	padding   byte
	padFrames bool
	maxWait   int
	server    bool

	mu   sync.Mutex
	subs map[uint32]*godiag.Subscriber
}

type Option func(*Transport)

// WithTimeout sets how long to wait for a flow control or consecutive frame
// and for the first frame of a message in Receive.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.timeout = d
	}
}

// WithBlockSize sets the number of consecutive frames the peer may send
// before waiting for the next flow control, 0 means no limit.
func WithBlockSize(bs byte) Option {
	return func(t *Transport) {
		t.blockSize = bs
	}
}

// WithSTmin sets the separation time requested from the peer, see DecodeSTmin.
func WithSTmin(stmin byte) Option {
	return func(t *Transport) {
		t.stmin = stmin
	}
}

func WithPadding(b byte) Option {
	return func(t *Transport) {
		t.padding = b
		t.padFrames = true
	}
}

func WithoutPadding() Option {
	return func(t *Transport) {
		t.padFrames = false
	}
}

// WithMaxWait sets how many flow control WAIT frames are accepted in a row.
func WithMaxWait(n int) Option {
	return func(t *Transport) {
		t.maxWait = n
	}
}

// WithServerAddressing makes the transport act as the ECU.
func WithServerAddressing() Option {
	return func(t *Transport) {
		t.server = true
	}
}

func New(c *godiag.Client, opts ...Option) *Transport {
	t := &Transport{
		c:         c,
		timeout:   defaultTimeout,
		padFrames: true,
		maxWait:   10,
		subs:      make(map[uint32]*godiag.Subscriber),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Listen starts buffering frames for ids before the first Receive.
func (t *Transport) Listen(ids ...uint32) {
	for _, id := range ids {
		t.sub(id)
	}
}

func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, s := range t.subs {
		s.Close()
		delete(t.subs, id)
	}
}

func (t *Transport) sub(id uint32) *godiag.Subscriber {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.subs[id]
	if !ok {
		s = t.c.Subscribe(id)
		t.subs[id] = s
	}
	return s
}

func (t *Transport) flowControlRecvID(txID uint32) uint32 {
	if t.server {
		return godiag.RequestID(txID)
	}
	return godiag.ResponseID(txID)
}

func (t *Transport) flowControlSendID(rxID uint32) uint32 {
	if t.server {
		return godiag.ResponseID(rxID)
	}
	return godiag.RequestID(rxID)
}

func (t *Transport) write(ctx context.Context, id uint32, data []byte) error {
	if t.padFrames {
		data = pad(data, t.padding)
	}
	return t.c.Send(ctx, godiag.NewFrame(id, data, godiag.Outgoing))
}

func (t *Transport) Send(ctx context.Context, id uint32, data []byte) error {
	if len(data) > godiag.MaxMessageSize {
		return godiag.ErrMessageTooLong
	}
	// subscribe before anything goes out so neither flow control nor the
	// answer can slip past us
	fc := t.sub(t.flowControlRecvID(id))

	if len(data) <= singleFrameMaxData {
		return t.write(ctx, id, encodeSingleFrame(data))
	}

	if err := t.write(ctx, id, encodeFirstFrame(len(data), data)); err != nil {
		return err
	}
	rest := data[firstFrameData:]
	var seq byte = 1
	for len(rest) > 0 {
		bs, stmin, err := t.waitFlowControl(ctx, fc)
		if err != nil {
			return err
		}
		for sent := 0; len(rest) > 0 && (bs == 0 || sent < int(bs)); sent++ {
			if sent > 0 && stmin > 0 {
				if err := sleep(ctx, stmin); err != nil {
					return err
				}
			}
			n := min(consecutiveDataSize, len(rest))
			if err := t.write(ctx, id, encodeConsecutiveFrame(seq, rest[:n])); err != nil {
				return err
			}
			rest = rest[n:]
			seq = (seq + 1) & 0x0F
		}
	}
	return nil
}

func (t *Transport) waitFlowControl(ctx context.Context, s *godiag.Subscriber) (byte, time.Duration, error) {
	waits := 0
	deadline := time.Now().Add(t.timeout)
	for {
		frame, err := waitUntil(ctx, s, deadline, "flow control")
		if err != nil {
			return 0, 0, err
		}
		d := frame.Data
		if len(d) < 3 || d[0]&0xF0 != pciFlowControl {
			continue
		}
		switch FlowStatus(d[0] & 0x0F) {
		case FlowContinueToSend:
			return d[1], DecodeSTmin(d[2]), nil
		case FlowWait:
			waits++
			if waits > t.maxWait {
				return 0, 0, ErrWaitLimit
			}
			deadline = time.Now().Add(t.timeout)
		case FlowOverflow:
			return 0, 0, ErrOverflow
		default:
			return 0, 0, fmt.Errorf("%w: 0x%X", ErrInvalidFlowStatus, d[0]&0x0F)
		}
	}
}

func (t *Transport) Receive(ctx context.Context, id uint32) ([]byte, error) {
	s := t.sub(id)
	deadline := time.Now().Add(t.timeout)
	for {
		frame, err := waitUntil(ctx, s, deadline, "isotp receive")
		if err != nil {
			return nil, err
		}
		d := frame.Data
		if len(d) == 0 {
			continue
		}
		switch d[0] & 0xF0 {
		case pciSingleFrame:
			n := int(d[0] & 0x0F)
			if n == 0 || n > len(d)-1 {
				continue
			}
			out := make([]byte, n)
			copy(out, d[1:1+n])
			return out, nil
		case pciFirstFrame:
			if len(d) < 2 {
				continue
			}
			size := int(d[0]&0x0F)<<8 | int(d[1])
			if size <= singleFrameMaxData {
				continue
			}
			return t.reassemble(ctx, id, s, size, d[2:])
		default:
			// consecutive or flow control frames of a transfer we never saw start
			continue
		}
	}
}

func (t *Transport) reassemble(ctx context.Context, id uint32, s *godiag.Subscriber, size int, first []byte) ([]byte, error) {
	buf := make([]byte, 0, size)
	buf = append(buf, first[:min(len(first), size)]...)
	fcID := t.flowControlSendID(id)
	var seq byte = 1
	for len(buf) < size {
		if err := t.write(ctx, fcID, encodeFlowControl(FlowContinueToSend, t.blockSize, t.stmin)); err != nil {
			return nil, err
		}
		for received := 0; len(buf) < size && (t.blockSize == 0 || received < int(t.blockSize)); {
			frame, err := s.Wait(ctx, t.timeout)
			if err != nil {
				return nil, err
			}
			d := frame.Data
			if len(d) == 0 || d[0]&0xF0 != pciConsecutiveFrame {
				continue
			}
			if d[0]&0x0F != seq {
				return nil, fmt.Errorf("%w: expected %X got %X", ErrSequence, seq, d[0]&0x0F)
			}
			n := min(consecutiveDataSize, size-len(buf), len(d)-1)
			buf = append(buf, d[1:1+n]...)
			seq = (seq + 1) & 0x0F
			received++
		}
	}
	return buf, nil
}

func waitUntil(ctx context.Context, s *godiag.Subscriber, deadline time.Time, what string) (*godiag.CANFrame, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, &godiag.TimeoutError{Type: what, Frames: nil}
	}
	frame, err := s.Wait(ctx, remaining)
	if err != nil {
		var te *godiag.TimeoutError
		if errors.As(err, &te) {
			te.Type = what
		}
		return nil, err
	}
	return frame, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
