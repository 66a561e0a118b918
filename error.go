package godiag

import (
	"errors"
	"fmt"
	"time"
)

type unrecoverableError struct {
	error
}

func (e unrecoverableError) Error() string {
	if e.error == nil {
		return "unrecoverable error"
	}
	return e.error.Error()
}

func (e unrecoverableError) Unwrap() error {
	return e.error
}

// Unrecoverable marks err as fatal for the adapter, communication cannot continue.
func Unrecoverable(err error) error {
	return unrecoverableError{err}
}

// IsRecoverable reports whether err was not marked with Unrecoverable.
func IsRecoverable(err error) bool {
	var ue unrecoverableError
	return !errors.As(err, &ue)
}

var (
	ErrNilAdapter            = errors.New("adapter is nil")
	ErrDroppedFrame          = errors.New("adapter incoming channel full")
	ErrSendTimeout           = errors.New("timeout sending frame")
	ErrResponseChannelClosed = errors.New("response channel closed")
	ErrClientClosed          = errors.New("client is closed")
	ErrMessageTooLong        = fmt.Errorf("message exceeds %d bytes", MaxMessageSize)
)

// TimeoutError is returned when no frame arrived on any of Frames within Timeout.
type TimeoutError struct {
	Timeout time.Duration
	Frames  []uint32
	Type    string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timeout (%dms) for frame 0x%03X", e.Type, e.Timeout.Milliseconds(), e.Frames)
}
