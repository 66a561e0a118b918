package godiag

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const sendTimeout = time.Second

// Client owns an opened adapter and distributes the frames it reads to subscribers.
type Client struct {
	adapter Adapter
	h       *handler

	cancel    context.CancelFunc
	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// New opens adapter and starts reading from it until ctx is done or Close is called.
func New(ctx context.Context, adapter Adapter) (*Client, error) {
	if adapter == nil {
		return nil, ErrNilAdapter
	}
	if err := adapter.Open(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Client{
		adapter: adapter,
		h:       newHandler(adapter),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	errg, gctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		c.h.run(gctx)
		return nil
	})
	errg.Go(func() error {
		return c.watch(gctx)
	})
	go func() {
		c.err = errg.Wait()
		close(c.done)
	}()
	return c, nil
}

// watch returns the first unrecoverable adapter error, which stops the client.
func (c *Client) watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-c.adapter.Err():
			if !ok {
				return nil
			}
			if err == nil {
				continue
			}
			if !IsRecoverable(err) {
				return err
			}
			log.Println(err)
		case evt := <-c.adapter.Event():
			log.Println(evt.String())
		}
	}
}

func (c *Client) Adapter() Adapter {
	return c.adapter
}

// Done is closed once the client stopped reading from the adapter.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the client, nil while it is running.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
		err = c.adapter.Close()
	})
	return err
}

// Send queues frame for transmission.
func (c *Client) Send(ctx context.Context, frame *CANFrame) error {
	t := time.NewTimer(sendTimeout)
	defer t.Stop()
	select {
	case c.adapter.Send() <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		if c.err != nil {
			return c.err
		}
		return ErrClientClosed
	case <-t.C:
		return ErrSendTimeout
	}
}

// SendFrame is a shortcut for sending a standard frame, data is copied.
func (c *Client) SendFrame(ctx context.Context, identifier uint32, data []byte, t CANFrameType) error {
	b := make([]byte, len(data))
	copy(b, data)
	return c.Send(ctx, NewFrame(identifier, b, t))
}

// Subscribe returns a subscriber for identifiers, or for all frames when none are given.
// The subscriber must be closed when no longer used.
func (c *Client) Subscribe(identifiers ...uint32) *Subscriber {
	sub := &Subscriber{
		c:            c,
		identifiers:  make(map[uint32]struct{}, len(identifiers)),
		responseChan: make(chan *CANFrame, subscriberBuffer),
	}
	for _, id := range identifiers {
		sub.identifiers[id] = struct{}{}
	}
	c.h.register(sub)
	return sub
}
