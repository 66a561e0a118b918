package uds

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

type exchange struct {
	resp []byte
	err  error
}

// scriptedTransport answers every Receive with the next scripted exchange.
type scriptedTransport struct {
	script     []exchange
	sent       [][]byte
	sentIDs    []uint32
	receiveIDs []uint32
	sendErr    error
}

var errScriptDone = errors.New("script exhausted")

func (s *scriptedTransport) Send(_ context.Context, id uint32, data []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	b := make([]byte, len(data))
	copy(b, data)
	s.sent = append(s.sent, b)
	s.sentIDs = append(s.sentIDs, id)
	return nil
}

func (s *scriptedTransport) Receive(_ context.Context, id uint32) ([]byte, error) {
	s.receiveIDs = append(s.receiveIDs, id)
	if len(s.script) == 0 {
		return nil, errScriptDone
	}
	e := s.script[0]
	s.script = s.script[1:]
	return e.resp, e.err
}

func script(responses ...[]byte) *scriptedTransport {
	s := &scriptedTransport{}
	for _, r := range responses {
		s.script = append(s.script, exchange{resp: r})
	}
	return s
}

func TestQueryPositiveResponse(t *testing.T) {
	tp := script([]byte{0x62, 0xF1, 0x90, 0xAA, 0xBB})
	c := New(tp)
	got, err := c.Query(context.Background(), 0x7E0, 0x22, []byte{0xF1, 0x90})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xF1, 0x90, 0xAA, 0xBB}) {
		t.Errorf("got % X", got)
	}
	if !bytes.Equal(tp.sent[0], []byte{0x22, 0xF1, 0x90}) {
		t.Errorf("request % X", tp.sent[0])
	}
	if tp.sentIDs[0] != 0x7E0 || tp.receiveIDs[0] != 0x7E8 {
		t.Errorf("addressing: sent on 0x%X received on 0x%X", tp.sentIDs[0], tp.receiveIDs[0])
	}
}

func TestQueryResponsePending(t *testing.T) {
	tp := script(
		[]byte{0x7F, 0x22, 0x78},
		[]byte{0x62, 0xAA},
	)
	var calls []uint
	c := New(tp, WithOnPending(func(n uint, sid byte) {
		if sid != 0x22 {
			t.Errorf("pending for sid 0x%02X", sid)
		}
		calls = append(calls, n)
	}))
	got, err := c.Query(context.Background(), 0x7E0, 0x22, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0xAA}) {
		t.Errorf("got % X", got)
	}
	if len(tp.sent) != 2 || !bytes.Equal(tp.sent[0], tp.sent[1]) {
		t.Errorf("expected the request to be sent twice, sent %v", tp.sent)
	}
	if len(calls) != 1 || calls[0] != 1 {
		t.Errorf("pending callbacks %v", calls)
	}
}

func TestQueryPendingUnboundedByDefault(t *testing.T) {
	var responses [][]byte
	for i := 0; i < 50; i++ {
		responses = append(responses, []byte{0x7F, 0x03, 0x78})
	}
	responses = append(responses, []byte{0x43, 0x00})
	tp := script(responses...)
	got, err := New(tp).Query(context.Background(), 0x7E0, 0x03, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x00}) {
		t.Errorf("got % X", got)
	}
	if len(tp.sent) != 51 {
		t.Errorf("sent %d requests", len(tp.sent))
	}
}

func TestQueryMaxPending(t *testing.T) {
	tp := script(
		[]byte{0x7F, 0x10, 0x78},
		[]byte{0x7F, 0x10, 0x78},
		[]byte{0x7F, 0x10, 0x78},
		[]byte{0x50, 0x03},
	)
	var pending uint
	c := New(tp, WithMaxPending(2), WithOnPending(func(n uint, _ byte) { pending = n }))
	_, err := c.Query(context.Background(), 0x7E0, 0x10, []byte{0x03})
	if !errors.Is(err, ErrResponsePending) {
		t.Fatalf("expected ErrResponsePending, got %v", err)
	}
	if len(tp.sent) != 3 {
		t.Errorf("sent %d requests, want 3", len(tp.sent))
	}
	if pending != 3 {
		t.Errorf("saw %d pending answers, want 3", pending)
	}
}

func TestQueryPendingCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tp := script(
		[]byte{0x7F, 0x23, 0x78},
		[]byte{0x63, 0x01},
	)
	c := New(tp, WithOnPending(func(uint, byte) { cancel() }))
	if _, err := c.Query(ctx, 0x7E0, 0x23, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(tp.sent) != 1 {
		t.Errorf("sent %d requests after cancel", len(tp.sent))
	}
}

func TestQueryErrors(t *testing.T) {
	errTransport := errors.New("bus off")
	tests := []struct {
		name  string
		tp    *scriptedTransport
		check func(t *testing.T, err error)
	}{
		{
			name: "negative response",
			tp:   script([]byte{0x7F, 0x22, 0x11}),
			check: func(t *testing.T, err error) {
				var nre *NegativeResponseError
				if !errors.As(err, &nre) {
					t.Fatalf("expected *NegativeResponseError, got %v", err)
				}
				if !nre.HasCode || nre.Code != 0x11 || nre.Service != 0x22 {
					t.Errorf("unexpected %+v", nre)
				}
				if !IsNegativeResponse(err, NRCServiceNotSupported) {
					t.Error("IsNegativeResponse false")
				}
			},
		},
		{
			name: "negative response without code",
			tp:   script([]byte{0x7F, 0x22}),
			check: func(t *testing.T, err error) {
				var nre *NegativeResponseError
				if !errors.As(err, &nre) || nre.HasCode {
					t.Fatalf("expected code-less negative response, got %v", err)
				}
			},
		},
		{
			name: "wrong sid",
			tp:   script([]byte{0x50, 0x01}),
			check: func(t *testing.T, err error) {
				var ise *InvalidResponseSIDError
				if !errors.As(err, &ise) || ise.SID != 0x50 {
					t.Fatalf("expected InvalidResponseSIDError 0x50, got %v", err)
				}
			},
		},
		{
			name: "empty",
			tp:   script([]byte{}),
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Fatalf("expected ErrEmptyResponse, got %v", err)
				}
			},
		},
		{
			name: "receive error",
			tp:   &scriptedTransport{script: []exchange{{err: errTransport}, {resp: []byte{0x62}}}},
			check: func(t *testing.T, err error) {
				if err != errTransport {
					t.Fatalf("expected transport error unchanged, got %v", err)
				}
			},
		},
		{
			name: "send error",
			tp:   &scriptedTransport{sendErr: errTransport},
			check: func(t *testing.T, err error) {
				if err != errTransport {
					t.Fatalf("expected transport error unchanged, got %v", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.tp).Query(context.Background(), 0x7E0, 0x22, []byte{0xF1, 0x90})
			if got != nil {
				t.Errorf("expected no payload, got % X", got)
			}
			tt.check(t, err)
			if len(tt.tp.receiveIDs) > 1 {
				t.Errorf("request was retried %d times", len(tt.tp.receiveIDs)-1)
			}
		})
	}
}

func TestNegativeResponseErrorString(t *testing.T) {
	err := &NegativeResponseError{Service: SecurityAccess, Code: NRCInvalidKey, HasCode: true}
	if got, want := err.Error(), "SecurityAccess - Invalid key (0x35)"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
