package uds

import (
	"fmt"
	"strconv"
	"strings"
)

// How a DTC is laid out on the wire
//
//	byte 0                    byte 1
//	7 6   5 4   3 2 1 0       7 6 5 4   3 2 1 0
//	sys   digit third         fourth    fifth
//
// sys: 00=P powertrain, 01=C chassis, 10=B body, 11=U network
//
// E1 03 -> 11 10 0001 0000 0011 -> U2103
type DTC [2]byte

const (
	dtcSystems = "PCBU"
	hexDigits  = "0123456789ABCDEF"
)

func DecodeDTC(b [2]byte) DTC {
	return DTC(b)
}

func (d DTC) String() string {
	return string([]byte{
		dtcSystems[d[0]>>6],
		'0' + (d[0]>>4)&0x03,
		hexDigits[d[0]&0x0F],
		hexDigits[d[1]>>4],
		hexDigits[d[1]&0x0F],
	})
}

// ParseDTC is the inverse of DTC.String.
func ParseDTC(s string) (DTC, error) {
	if len(s) != 5 {
		return DTC{}, fmt.Errorf("invalid DTC %q: must be 5 characters", s)
	}
	sys := strings.IndexByte(dtcSystems, s[0]&^0x20)
	if sys < 0 {
		return DTC{}, fmt.Errorf("invalid DTC %q: unknown system %q", s, s[0])
	}
	if s[1] < '0' || s[1] > '3' {
		return DTC{}, fmt.Errorf("invalid DTC %q: second character must be 0-3", s)
	}
	v, err := strconv.ParseUint(s[2:], 16, 12)
	if err != nil {
		return DTC{}, fmt.Errorf("invalid DTC %q: %w", s, err)
	}
	return DTC{
		byte(sys)<<6 | (s[1]-'0')<<4 | byte(v>>8),
		byte(v),
	}, nil
}
