package godiag

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/albenik/bcd"
	"go.bug.st/serial"
)

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "SLCan",
		Description:        "Canable / LAWICEL compatible SLCan adapter",
		RequiresSerialPort: true,
		Capabilities: AdapterCapabilities{
			HSCAN: true,
		},
		New: NewSLCan,
	}); err != nil {
		panic(err)
	}
}

type SLCan struct {
	*BaseAdapter
	port   serial.Port
	closed atomic.Bool
}

func NewSLCan(cfg *AdapterConfig) (Adapter, error) {
	return &SLCan{
		BaseAdapter: NewBaseAdapter("SLCan", cfg),
	}, nil
}

var slcanRates = map[float64]string{
	10:      "S0",
	20:      "S1",
	50:      "S2",
	100:     "S3",
	125:     "S4",
	250:     "S5",
	500:     "S6",
	750:     "S7",
	1000:    "S8",
	615.384: "S9",
}

func (sl *SLCan) Open(ctx context.Context) error {
	rate, ok := slcanRates[sl.cfg.CANRate]
	if !ok {
		return fmt.Errorf("unsupported CAN rate: %g kbit/s", sl.cfg.CANRate)
	}
	mode := &serial.Mode{
		BaudRate: sl.cfg.PortBaudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(sl.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open com port %q : %w", sl.cfg.Port, err)
	}
	if err := p.SetReadTimeout(3 * time.Millisecond); err != nil {
		p.Close()
		return err
	}
	sl.port = p

	p.ResetOutputBuffer()
	p.ResetInputBuffer()

	go sl.recvManager(ctx)

	for _, cmd := range []string{"C", "V", rate, "O"} {
		if _, err := p.Write([]byte(cmd + "\r")); err != nil {
			p.Close()
			return fmt.Errorf("failed to write %q: %w", cmd, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	go sl.sendManager(ctx)
	return nil
}

func (sl *SLCan) Close() error {
	sl.BaseAdapter.Close()
	if sl.closed.Swap(true) || sl.port == nil {
		return nil
	}
	time.Sleep(10 * time.Millisecond)
	sl.port.Write([]byte("C\r"))
	time.Sleep(10 * time.Millisecond)
	return sl.port.Close()
}

func (sl *SLCan) recvManager(ctx context.Context) {
	buf := make([]byte, 0, 64)
	readBuf := make([]byte, 32)
	for ctx.Err() == nil {
		n, err := sl.port.Read(readBuf)
		if err != nil {
			if !sl.closed.Load() {
				sl.Fatal(fmt.Errorf("failed to read com port: %w", err))
			}
			return
		}
		if n == 0 {
			continue
		}
		buf = sl.parse(ctx, buf, readBuf[:n])
	}
}

func (sl *SLCan) sendManager(ctx context.Context) {
	out := make([]byte, 0, 32)
	for {
		select {
		case <-ctx.Done():
			return
		case <-sl.closeChan:
			return
		case frame := <-sl.sendChan:
			out = encodeSLCanFrame(out[:0], frame)
			if _, err := sl.port.Write(out); err != nil {
				sl.Error(fmt.Errorf("failed to write to com port: %w", err))
				continue
			}
			if sl.cfg.Debug {
				sl.cfg.OnMessage(">> " + string(out[:len(out)-1]))
			}
		}
	}
}

// encodeSLCanFrame appends the ASCII form of frame, t<iii><l><dd..>\r or T<iiiiiiii><l><dd..>\r.
func encodeSLCanFrame(buf []byte, frame *CANFrame) []byte {
	if frame.Extended {
		buf = append(buf, 'T')
		buf = append(buf, fmt.Sprintf("%08X", frame.Identifier&0x1FFFFFFF)...)
	} else {
		buf = append(buf, 't')
		buf = append(buf, fmt.Sprintf("%03X", frame.Identifier&0x7FF)...)
	}
	dlc := min(frame.Length(), 8)
	buf = append(buf, byte('0'+dlc))
	for _, b := range frame.Data[:dlc] {
		buf = append(buf, fmt.Sprintf("%02X", b)...)
	}
	return append(buf, '\r')
}

// parse processes the read data and returns any remaining partial line.
func (sl *SLCan) parse(ctx context.Context, buf, readBuf []byte) []byte {
	for _, b := range readBuf {
		switch b {
		case 0x07:
			sl.Warn("adapter rejected last command")
			buf = buf[:0]
			continue
		case '\r':
		default:
			buf = append(buf, b)
			continue
		}
		if len(buf) == 0 {
			continue
		}
		switch buf[0] {
		case 't', 'T':
			if sl.cfg.Debug {
				sl.cfg.OnMessage("<< " + string(buf))
			}
			f, err := decodeSLCanFrame(buf)
			if err != nil {
				sl.Error(fmt.Errorf("%w: %q", err, buf))
				break
			}
			select {
			case sl.recvChan <- f:
			case <-ctx.Done():
				return buf[:0]
			default:
				sl.Error(ErrDroppedFrame)
			}
		case 'F':
			if err := decodeSLCanStatus(buf); err != nil {
				sl.Warn("CAN status: " + err.Error())
			}
		case 'V':
			if hw, sw, err := decodeSLCanVersion(buf); err == nil {
				sl.Info(fmt.Sprintf("SLCan hardware v%d.%d software v%d.%d", hw/10, hw%10, sw/10, sw%10))
			}
		case 'z', 'Z':
			// transmit acknowledge
		default:
			sl.Warn("unknown>> " + string(buf))
		}
		buf = buf[:0]
	}
	return buf
}

func decodeSLCanFrame(line []byte) (*CANFrame, error) {
	idLen := 3
	if line[0] == 'T' {
		idLen = 8
	}
	if len(line) < 2+idLen {
		return nil, errors.New("short frame")
	}
	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return nil, fmt.Errorf("failed to decode identifier: %w", err)
	}
	dlc := int(line[1+idLen] - '0')
	if dlc < 0 || dlc > 8 {
		return nil, fmt.Errorf("invalid data length: %d", dlc)
	}
	body := line[2+idLen:]
	if len(body) < dlc*2 {
		return nil, fmt.Errorf("frame body too short for dlc %d", dlc)
	}
	data, err := hex.DecodeString(string(body[:dlc*2]))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame body: %w", err)
	}
	if line[0] == 'T' {
		return NewExtendedFrame(uint32(id), data, Incoming), nil
	}
	return NewFrame(uint32(id), data, Incoming), nil
}

// decodeSLCanVersion decodes a Vhhss reply, both fields are BCD.
func decodeSLCanVersion(line []byte) (uint8, uint8, error) {
	if len(line) != 5 {
		return 0, 0, errors.New("invalid version reply")
	}
	raw, err := hex.DecodeString(string(line[1:]))
	if err != nil {
		return 0, 0, err
	}
	return bcd.ToUint8(raw[0]), bcd.ToUint8(raw[1]), nil
}

var slcanStatusBits = []string{
	"CAN receive FIFO queue full",
	"CAN transmit FIFO queue full",
	"error warning (EI)",
	"data overrun (DOI)",
	"",
	"error passive (EPI)",
	"arbitration lost (ALI)",
	"bus error (BEI)",
}

// decodeSLCanStatus decodes the SJA1000 style status flags of an Fxx reply.
func decodeSLCanStatus(line []byte) error {
	if len(line) != 3 {
		return errors.New("invalid status reply")
	}
	raw, err := hex.DecodeString(string(line[1:]))
	if err != nil {
		return err
	}
	for bit, msg := range slcanStatusBits {
		if msg != "" && raw[0]&(1<<bit) != 0 {
			return errors.New(msg)
		}
	}
	return nil
}
