package uds

import "testing"

func TestDTCString(t *testing.T) {
	tests := []struct {
		in   [2]byte
		want string
	}{
		{[2]byte{0x00, 0x00}, "P0000"},
		{[2]byte{0x01, 0x23}, "P0123"},
		{[2]byte{0x04, 0x20}, "P0420"},
		{[2]byte{0x45, 0x67}, "C0567"},
		{[2]byte{0x91, 0x00}, "B1100"},
		{[2]byte{0xE1, 0x03}, "U2103"},
		{[2]byte{0xFF, 0xFF}, "U3FFF"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DecodeDTC(tt.in).String(); got != tt.want {
				t.Errorf("DecodeDTC(% X) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDTCAllValues(t *testing.T) {
	for v := 0; v <= 0xFFFF; v++ {
		b := [2]byte{byte(v >> 8), byte(v)}
		s := DecodeDTC(b).String()
		if len(s) != 5 {
			t.Fatalf("% X rendered as %q", b, s)
		}
		if s != DecodeDTC(b).String() {
			t.Fatalf("% X not deterministic", b)
		}
		if s[0] != "PCBU"[b[0]>>6] || s[1] != '0'+(b[0]>>4)&0x03 {
			t.Fatalf("% X rendered as %q", b, s)
		}
		back, err := ParseDTC(s)
		if err != nil {
			t.Fatalf("ParseDTC(%q): %v", s, err)
		}
		if [2]byte(back) != b {
			t.Fatalf("ParseDTC(%q) = % X, want % X", s, back, b)
		}
	}
}

func TestParseDTCInvalid(t *testing.T) {
	for _, s := range []string{"", "P012", "P01234", "X0123", "P4123", "P0G23"} {
		if _, err := ParseDTC(s); err == nil {
			t.Errorf("ParseDTC(%q) expected error", s)
		}
	}
}

func TestParseDTCLowercase(t *testing.T) {
	d, err := ParseDTC("u2103")
	if err != nil {
		t.Fatal(err)
	}
	if d != (DTC{0xE1, 0x03}) {
		t.Errorf("got % X", d)
	}
}
