package uds

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyResponse         = errors.New("empty response")
	ErrInvalidResponsePID    = errors.New("invalid response PID")
	ErrInvalidSessionType    = errors.New("invalid session type in response")
	ErrInvalidAccessType     = errors.New("invalid security access type in response")
	ErrInvalidDataIdentifier = errors.New("invalid data identifier in response")
	ErrResponsePending       = errors.New("ECU kept answering response pending")
)

// NegativeResponseError is a 0x7F answer from the ECU.
type NegativeResponseError struct {
	Service byte
	Code    byte
	// HasCode is false when the ECU sent a truncated negative response
	HasCode bool
}

func (e *NegativeResponseError) Error() string {
	if !e.HasCode {
		return fmt.Sprintf("%s - negative response without code", TranslateServiceCode(e.Service))
	}
	return fmt.Sprintf("%s - %s (0x%02X)", TranslateServiceCode(e.Service), TranslateErrorCode(e.Code), e.Code)
}

// InvalidResponseSIDError is returned when a response SID is neither the
// positive answer to the request nor a negative response.
type InvalidResponseSIDError struct {
	SID byte
}

func (e *InvalidResponseSIDError) Error() string {
	return fmt.Sprintf("invalid response SID 0x%02X", e.SID)
}

// IsNegativeResponse reports whether err carries the negative response code nrc.
func IsNegativeResponse(err error, nrc byte) bool {
	var nre *NegativeResponseError
	return errors.As(err, &nre) && nre.HasCode && nre.Code == nrc
}
