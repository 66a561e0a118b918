package godiag

import "context"

const (
	// MaxMessageSize is the largest payload a 12 bit ISO-TP first frame can announce.
	MaxMessageSize = 4095

	// ResponseOffset is the distance between a physical request identifier
	// and the identifier the ECU answers on, 0x7E0 -> 0x7E8.
	ResponseOffset = 8
)

// IsoTp is an ISO 15765-2 transport able to move whole diagnostic messages.
//
// Send transmits data addressed by id, data must not be longer than MaxMessageSize.
// Receive blocks until a complete message for id arrives, the transport timeout
// elapses or ctx is done. Implementations drop frames for other identifiers and
// frames belonging to transfers that never completed.
//
// An IsoTp is single conversation, callers must serialize access.
type IsoTp interface {
	Send(ctx context.Context, id uint32, data []byte) error
	Receive(ctx context.Context, id uint32) ([]byte, error)
}

// ResponseID returns the identifier responses to a request on id arrive on.
func ResponseID(id uint32) uint32 {
	return id + ResponseOffset
}

// RequestID is the inverse of ResponseID.
func RequestID(id uint32) uint32 {
	return id - ResponseOffset
}

// Query sends data on id and waits for the answer on ResponseID(id).
func Query(ctx context.Context, t IsoTp, id uint32, data []byte) ([]byte, error) {
	if err := t.Send(ctx, id, data); err != nil {
		return nil, err
	}
	return t.Receive(ctx, ResponseID(id))
}
