package godiag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

type CANFrameType struct {
	Type      int
	Responses int
}

var (
	Incoming = CANFrameType{Type: 0}
	Outgoing = CANFrameType{Type: 1}
	// Used by adapters that need to know a reply is expected before they release the bus
	ResponseRequired = CANFrameType{Type: 2, Responses: 1}
)

// CANFrame is a single classic CAN frame, at most 8 data bytes.
type CANFrame struct {
	Identifier uint32
	Extended   bool
	Data       []byte
	FrameType  CANFrameType
}

func NewFrame(identifier uint32, data []byte, frameType CANFrameType) *CANFrame {
	return &CANFrame{
		Identifier: identifier,
		Data:       data,
		FrameType:  frameType,
	}
}

func NewExtendedFrame(identifier uint32, data []byte, frameType CANFrameType) *CANFrame {
	f := NewFrame(identifier, data, frameType)
	f.Extended = true
	return f
}

func (f *CANFrame) Length() int {
	return len(f.Data)
}

// Copy returns a frame that shares no memory with f.
func (f *CANFrame) Copy() *CANFrame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return &CANFrame{
		Identifier: f.Identifier,
		Extended:   f.Extended,
		Data:       data,
		FrameType:  f.FrameType,
	}
}

var (
	blue  = color.New(color.FgHiBlue).SprintfFunc()
	red   = color.New(color.FgRed).SprintfFunc()
	green = color.New(color.FgGreen).SprintfFunc()
)

func (f *CANFrame) direction() string {
	switch f.FrameType.Type {
	case 0:
		return "<i>"
	case 1:
		return "<o>"
	case 2:
		return "<r>"
	}
	return "<?>"
}

// pciName names the ISO-TP protocol control information carried in the first byte.
func (f *CANFrame) pciName() string {
	if len(f.Data) == 0 {
		return "--"
	}
	switch f.Data[0] >> 4 {
	case 0:
		return "SF"
	case 1:
		return "FF"
	case 2:
		return "CF"
	case 3:
		return "FC"
	}
	return "??"
}

func (f *CANFrame) hexView() string {
	var hexView strings.Builder
	for i, b := range f.Data {
		if i > 0 {
			hexView.WriteByte(' ')
		}
		fmt.Fprintf(&hexView, "%02X", b)
	}
	return hexView.String()
}

func (f *CANFrame) String() string {
	return fmt.Sprintf("%s || 0x%03X || %d || %s || %-23s || %s",
		f.direction(),
		f.Identifier,
		len(f.Data),
		f.pciName(),
		f.hexView(),
		onlyPrintable(f.Data),
	)
}

func (f *CANFrame) ColorString() string {
	return fmt.Sprintf("%s || %s || %d || %s || %s || %s",
		f.direction(),
		green("0x%03X", f.Identifier),
		len(f.Data),
		blue(f.pciName()),
		red("%-23s", f.hexView()),
		onlyPrintable(f.Data),
	)
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 126 {
			out.WriteByte('.')
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
