//go:build socketcan

package godiag

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"strings"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/candevice"
	"go.einride.tech/can/pkg/socketcan"
)

func init() {
	for _, dev := range FindSocketCANDevices() {
		if err := RegisterAdapter(&AdapterInfo{
			Name:               "SocketCAN " + dev,
			Description:        "Linux SocketCAN interface",
			RequiresSerialPort: false,
			Capabilities: AdapterCapabilities{
				HSCAN: true,
				SWCAN: true,
			},
			New: NewSocketCANFromDevName(dev),
		}); err != nil {
			panic(err)
		}
	}
}

type SocketCAN struct {
	*BaseAdapter
	d    *candevice.Device
	conn net.Conn
	tx   *socketcan.Transmitter
	rx   *socketcan.Receiver
}

func NewSocketCANFromDevName(dev string) func(cfg *AdapterConfig) (Adapter, error) {
	return func(cfg *AdapterConfig) (Adapter, error) {
		cfg.Port = dev
		return NewSocketCAN(cfg)
	}
}

func NewSocketCAN(cfg *AdapterConfig) (Adapter, error) {
	return &SocketCAN{
		BaseAdapter: NewBaseAdapter("SocketCAN", cfg),
	}, nil
}

func (a *SocketCAN) Open(ctx context.Context) error {
	d, err := candevice.New(a.cfg.Port)
	if err != nil {
		return err
	}
	if err := d.SetBitrate(uint32(a.cfg.CANRate * 1000)); err != nil {
		return fmt.Errorf("set bitrate: %w", err)
	}
	if err := d.SetUp(); err != nil {
		return fmt.Errorf("set up %s: %w", a.cfg.Port, err)
	}
	a.d = d

	conn, err := socketcan.DialContext(ctx, "can", a.cfg.Port)
	if err != nil {
		d.SetDown()
		return err
	}
	a.conn = conn
	a.tx = socketcan.NewTransmitter(conn)
	a.rx = socketcan.NewReceiver(conn)

	go a.recvManager(ctx)
	go a.sendManager(ctx)
	return nil
}

func (a *SocketCAN) Close() error {
	a.BaseAdapter.Close()
	if a.conn != nil {
		a.conn.Close()
	}
	if a.d != nil {
		return a.d.SetDown()
	}
	return nil
}

func (a *SocketCAN) accepts(id uint32) bool {
	if len(a.cfg.CANFilter) == 0 {
		return true
	}
	for _, f := range a.cfg.CANFilter {
		if f == id {
			return true
		}
	}
	return false
}

func (a *SocketCAN) recvManager(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	for a.rx.Receive() {
		if a.rx.HasErrorFrame() {
			a.Warn("error frame received")
			continue
		}
		f := a.rx.Frame()
		if !a.accepts(f.ID) {
			continue
		}
		data := make([]byte, f.Length)
		copy(data, f.Data[:f.Length])
		frame := NewFrame(f.ID, data, Incoming)
		frame.Extended = f.IsExtended
		select {
		case a.recvChan <- frame:
		case <-ctx.Done():
			return
		default:
			a.Error(ErrDroppedFrame)
		}
	}
	select {
	case <-a.closeChan:
	default:
		if err := a.rx.Err(); err != nil {
			a.Fatal(fmt.Errorf("socketcan receive: %w", err))
		}
	}
}

func (a *SocketCAN) sendManager(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.closeChan:
			return
		case f := <-a.sendChan:
			frame := can.Frame{
				ID:         f.Identifier,
				Length:     uint8(f.Length()),
				IsExtended: f.Extended || a.cfg.UseExtendedID,
			}
			copy(frame.Data[:], f.Data)
			if err := a.tx.TransmitFrame(ctx, frame); err != nil {
				a.Error(fmt.Errorf("send error: %w", err))
			}
		}
	}
}

// FindSocketCANDevices returns the names of network interfaces that look like CAN devices.
func FindSocketCANDevices() (dev []string) {
	iFaces, _ := net.Interfaces()
	for _, i := range iFaces {
		if strings.Contains(i.Name, "can") {
			dev = append(dev, i.Name)
		}
	}
	return
}
