// Package uds implements a Unified Diagnostic Services (ISO 14229) tester on
// top of any godiag.IsoTp transport.
package uds

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/roffe/godiag"
)

// Client is not safe for concurrent use, the transport is a single conversation.
type Client struct {
	t godiag.IsoTp

	maxPending   uint
	pendingDelay time.Duration
	onPending    func(n uint, sid byte)
}

type Option func(*Client)

// WithMaxPending limits how many response pending answers are accepted for
// one request before Query gives up with ErrResponsePending. 0, the default,
// waits for as long as the ECU keeps answering pending.
func WithMaxPending(n uint) Option {
	return func(c *Client) {
		c.maxPending = n
	}
}

// WithPendingDelay sets the pause before a request is repeated after a pending answer.
func WithPendingDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pendingDelay = d
	}
}

// WithOnPending registers fn to be called for every pending answer, n counts from 1.
func WithOnPending(fn func(n uint, sid byte)) Option {
	return func(c *Client) {
		c.onPending = fn
	}
}

func New(t godiag.IsoTp, opts ...Option) *Client {
	c := &Client{t: t}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Transport() godiag.IsoTp {
	return c.t
}

// Query sends [sid, params...] to arbitrationID and returns the positive
// response payload without the response SID.
//
// A negative response with code 0x78 repeats the request until a final answer
// arrives, ctx is done or the WithMaxPending bound is reached. Transport
// errors are returned as is and never retried.
func (c *Client) Query(ctx context.Context, arbitrationID uint32, sid byte, params []byte) ([]byte, error) {
	request := make([]byte, 0, 1+len(params))
	request = append(request, sid)
	request = append(request, params...)

	var attempts uint
	if c.maxPending > 0 {
		attempts = c.maxPending + 1
	}

	var (
		pending uint
		final   error
	)
	resp, err := retry.DoWithData(
		func() ([]byte, error) {
			if err := ctx.Err(); err != nil {
				final = err
				return nil, retry.Unrecoverable(err)
			}
			resp, err := godiag.Query(ctx, c.t, arbitrationID, request)
			if err == nil {
				resp, err = checkResponse(sid, resp)
			}
			if errors.Is(err, ErrResponsePending) {
				pending++
				if c.onPending != nil {
					c.onPending(pending, sid)
				}
				return nil, err
			}
			if err != nil {
				final = err
				return nil, retry.Unrecoverable(err)
			}
			return resp, nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(c.pendingDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrResponsePending)
		}),
	)
	if final != nil {
		return nil, final
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func checkResponse(sid byte, resp []byte) ([]byte, error) {
	if len(resp) == 0 {
		return nil, ErrEmptyResponse
	}
	switch resp[0] {
	case NegativeResponse:
		// [0x7F][requested SID][NRC]
		if len(resp) > 2 && resp[2] == NRCResponsePending {
			return nil, ErrResponsePending
		}
		nre := &NegativeResponseError{Service: sid}
		if len(resp) > 2 {
			nre.Code = resp[2]
			nre.HasCode = true
		}
		return nil, nre
	case sid + PositiveResponseOffset:
		return resp[1:], nil
	default:
		return nil, &InvalidResponseSIDError{SID: resp[0]}
	}
}
