package uds

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestReadVIN(t *testing.T) {
	tests := []struct {
		name    string
		resp    []byte
		want    string
		wantErr error
	}{
		{"padding skipped", []byte{0x49, 0x02, 0x00, 0x01, 0x31, 0x32, 0x33}, "123", nil},
		{"count record", []byte{0x49, 0x02, 0x01, 'Y', 'S', '3', 'F'}, "YS3F", nil},
		{"no padding", []byte{0x49, 0x02, 'W', 'V', 'W'}, "WVW", nil},
		{"only padding", []byte{0x49, 0x02, 0x00, 0x01, 0x00}, "", nil},
		{"nothing after pid", []byte{0x49, 0x02}, "", nil},
		{"invalid utf8 replaced", []byte{0x49, 0x02, 0x01, 'A', 0xFF, 'B'}, "A�B", nil},
		{"wrong pid", []byte{0x49, 0x04, 0x31}, "", ErrInvalidResponsePID},
		{"empty payload", []byte{0x49}, "", ErrInvalidResponsePID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := script(tt.resp)
			got, err := New(tp).ReadVIN(context.Background(), 0x7E0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if !bytes.Equal(tp.sent[0], []byte{0x09, 0x02}) {
				t.Errorf("request % X", tp.sent[0])
			}
		})
	}
}

func TestReadTroubleCodes(t *testing.T) {
	tests := []struct {
		name    string
		resp    []byte
		want    []string
		wantErr error
	}{
		{"two codes", []byte{0x43, 0x02, 0x01, 0x23, 0x45, 0x67}, []string{"P0123", "C0567"}, nil},
		{"none", []byte{0x43, 0x00}, []string{}, nil},
		// the count byte is not validated against the records that follow,
		// a trailing odd byte is dropped
		{"count mismatch tolerated", []byte{0x43, 0x05, 0x01, 0x23, 0xE1}, []string{"P0123"}, nil},
		{"count smaller than records", []byte{0x43, 0x01, 0x01, 0x23, 0xE1, 0x03}, []string{"P0123", "U2103"}, nil},
		{"empty", []byte{0x43}, nil, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := script(tt.resp)
			dtcs, err := New(tp).ReadTroubleCodes(context.Background(), 0x7E0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			got := make([]string, 0, len(dtcs))
			for _, d := range dtcs {
				got = append(got, d.String())
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if !bytes.Equal(tp.sent[0], []byte{0x03}) {
				t.Errorf("request % X", tp.sent[0])
			}
		})
	}
}

func TestSetDiagnosticSession(t *testing.T) {
	tests := []struct {
		name    string
		resp    []byte
		wantErr error
	}{
		{"accepted", []byte{0x50, 0x03, 0x00, 0x32, 0x01, 0xF4}, nil},
		{"other session", []byte{0x50, 0x01}, ErrInvalidSessionType},
		{"empty", []byte{0x50}, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := script(tt.resp)
			err := New(tp).SetDiagnosticSession(context.Background(), 0x7E0, ExtendedSession)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(tp.sent[0], []byte{0x10, 0x03}) {
				t.Errorf("request % X", tp.sent[0])
			}
		})
	}
}

func TestRequestSecuritySeed(t *testing.T) {
	tests := []struct {
		name    string
		resp    []byte
		want    []byte
		wantErr error
	}{
		{"seed", []byte{0x67, 0x01, 0xDE, 0xAD, 0xBE, 0xEF}, []byte{0xDE, 0xAD, 0xBE, 0xEF}, nil},
		{"wrong access type", []byte{0x67, 0x02, 0x12}, nil, ErrInvalidAccessType},
		{"empty", []byte{0x67}, nil, ErrInvalidAccessType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp := script(tt.resp)
			got, err := New(tp).RequestSecuritySeed(context.Background(), 0x7E0)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got % X, want % X", got, tt.want)
			}
			if !bytes.Equal(tp.sent[0], []byte{0x27, 0x01}) {
				t.Errorf("request % X", tp.sent[0])
			}
		})
	}
}

func TestSendSecurityKey(t *testing.T) {
	tp := script([]byte{0x67, 0x02})
	if err := New(tp).SendSecurityKey(context.Background(), 0x7E0, []byte{0x12, 0x34}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tp.sent[0], []byte{0x27, 0x02, 0x12, 0x34}) {
		t.Errorf("request % X", tp.sent[0])
	}

	if err := New(script([]byte{0x67})).SendSecurityKey(context.Background(), 0x7E0, nil); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}

	err := New(script([]byte{0x7F, 0x27, 0x35})).SendSecurityKey(context.Background(), 0x7E0, []byte{0x00})
	if !IsNegativeResponse(err, NRCInvalidKey) {
		t.Errorf("expected invalid key, got %v", err)
	}
}

func TestUnlock(t *testing.T) {
	xor := func(seed []byte) ([]byte, error) {
		out := make([]byte, len(seed))
		for i, b := range seed {
			out[i] = b ^ 0x5A
		}
		return out, nil
	}

	tp := script([]byte{0x67, 0x01, 0x11, 0x22}, []byte{0x67, 0x02})
	if err := New(tp).Unlock(context.Background(), 0x7E0, xor); err != nil {
		t.Fatal(err)
	}
	if len(tp.sent) != 2 || !bytes.Equal(tp.sent[1], []byte{0x27, 0x02, 0x11 ^ 0x5A, 0x22 ^ 0x5A}) {
		t.Errorf("requests %v", tp.sent)
	}

	tp = script([]byte{0x67, 0x01, 0x00, 0x00})
	if err := New(tp).Unlock(context.Background(), 0x7E0, xor); err != nil {
		t.Fatal(err)
	}
	if len(tp.sent) != 1 {
		t.Errorf("key sent to an unlocked ECU")
	}

	errKey := errors.New("no algorithm")
	tp = script([]byte{0x67, 0x01, 0x01})
	err := New(tp).Unlock(context.Background(), 0x7E0, func([]byte) ([]byte, error) { return nil, errKey })
	if !errors.Is(err, errKey) {
		t.Errorf("expected key func error, got %v", err)
	}
}

func TestReadMemoryAddressBigEndian(t *testing.T) {
	tp := script([]byte{0x63, 0xAA, 0xBB})
	got, err := New(tp).ReadMemoryAddress(context.Background(), 0x7E0, 0x12345678, 0x0102)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tp.sent[0], []byte{0x23, 0x12, 0x34, 0x56, 0x78, 0x01, 0x02}) {
		t.Errorf("request % X", tp.sent[0])
	}
	if !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Errorf("got % X", got)
	}
}

func TestReadDataByIdentifier(t *testing.T) {
	tp := script([]byte{0x62, 0xF1, 0x90, 'A', 'B'})
	got, err := New(tp).ReadDataByIdentifier(context.Background(), 0x7E0, 0xF190)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte("AB")) {
		t.Errorf("got % X", got)
	}
	if !bytes.Equal(tp.sent[0], []byte{0x22, 0xF1, 0x90}) {
		t.Errorf("request % X", tp.sent[0])
	}

	_, err = New(script([]byte{0x62, 0xF1, 0x91, 'A'})).ReadDataByIdentifier(context.Background(), 0x7E0, 0xF190)
	if !errors.Is(err, ErrInvalidDataIdentifier) {
		t.Errorf("expected ErrInvalidDataIdentifier, got %v", err)
	}
}

func TestTesterPresent(t *testing.T) {
	tp := script([]byte{0x7E, 0x00})
	if err := New(tp).TesterPresent(context.Background(), 0x7E0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tp.sent[0], []byte{0x3E, 0x00}) {
		t.Errorf("request % X", tp.sent[0])
	}
}

func TestReadMemory(t *testing.T) {
	errGlitch := errors.New("glitch")
	tp := &scriptedTransport{script: []exchange{
		{resp: []byte{0x63, 1, 2, 3, 4}},
		{err: errGlitch},
		{resp: []byte{0x63, 5, 6}},
		{resp: []byte{0x63, 5, 6, 7, 8}},
		{resp: []byte{0x63, 9, 10}},
	}}
	var progress []int
	got, err := New(tp).ReadMemory(context.Background(), 0x7E0, 0x1000, 10, 4, func(read, total int) {
		if total != 10 {
			t.Errorf("total %d", total)
		}
		progress = append(progress, read)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}) {
		t.Errorf("got % X", got)
	}
	if !reflect.DeepEqual(progress, []int{4, 8, 10}) {
		t.Errorf("progress %v", progress)
	}
	want := [][]byte{
		{0x23, 0x00, 0x00, 0x10, 0x00, 0x00, 0x04},
		{0x23, 0x00, 0x00, 0x10, 0x04, 0x00, 0x04},
		{0x23, 0x00, 0x00, 0x10, 0x04, 0x00, 0x04},
		{0x23, 0x00, 0x00, 0x10, 0x04, 0x00, 0x04},
		{0x23, 0x00, 0x00, 0x10, 0x08, 0x00, 0x02},
	}
	if !reflect.DeepEqual(tp.sent, want) {
		t.Errorf("requests %X", tp.sent)
	}
}

func TestReadMemoryNegativeResponseNotRetried(t *testing.T) {
	tp := script([]byte{0x7F, 0x23, 0x31}, []byte{0x63, 1, 2})
	_, err := New(tp).ReadMemory(context.Background(), 0x7E0, 0, 2, 0, nil)
	if !IsNegativeResponse(err, NRCRequestOutOfRange) {
		t.Fatalf("expected request out of range, got %v", err)
	}
	if len(tp.sent) != 1 {
		t.Errorf("negative response retried, %d requests", len(tp.sent))
	}
}
