package godiag

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

const subscriberBuffer = 256

// Subscriber receives every incoming frame matching one of its identifiers,
// or every frame at all when created without identifiers.
type Subscriber struct {
	c            *Client
	identifiers  map[uint32]struct{}
	responseChan chan *CANFrame
	closeOnce    sync.Once
}

func (s *Subscriber) Close() {
	s.closeOnce.Do(func() {
		s.c.h.unregister(s)
	})
}

func (s *Subscriber) Chan() <-chan *CANFrame {
	return s.responseChan
}

func (s *Subscriber) ids() []uint32 {
	out := make([]uint32, 0, len(s.identifiers))
	for id := range s.identifiers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Wait returns the next frame, a *TimeoutError when none arrived within timeout
// or the ctx error.
func (s *Subscriber) Wait(ctx context.Context, timeout time.Duration) (*CANFrame, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait: %w", ctx.Err())
	case frame, ok := <-s.responseChan:
		if !ok {
			return nil, ErrResponseChannelClosed
		}
		return frame, nil
	case <-t.C:
		return nil, &TimeoutError{
			Timeout: timeout,
			Frames:  s.ids(),
			Type:    "wait",
		}
	}
}

// Drain discards frames already queued.
func (s *Subscriber) Drain() {
	for {
		select {
		case _, ok := <-s.responseChan:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
