package godiag

import (
	"context"
	"sync"
)

func init() {
	if err := RegisterAdapter(&AdapterInfo{
		Name:               "Virtual",
		Description:        "In-memory CAN bus",
		RequiresSerialPort: false,
		Capabilities: AdapterCapabilities{
			HSCAN: true,
		},
		New: func(cfg *AdapterConfig) (Adapter, error) {
			return DefaultVirtualBus.NewAdapter(cfg), nil
		},
	}); err != nil {
		panic(err)
	}
}

// DefaultVirtualBus is the bus adapters created by name "Virtual" attach to.
var DefaultVirtualBus = NewVirtualBus()

// VirtualBus connects Virtual adapters in memory. A frame sent by one adapter
// is received by every other opened adapter on the bus, never by the sender.
type VirtualBus struct {
	mu    sync.RWMutex
	nodes map[*Virtual]struct{}
}

func NewVirtualBus() *VirtualBus {
	return &VirtualBus{
		nodes: make(map[*Virtual]struct{}),
	}
}

func (b *VirtualBus) NewAdapter(cfg *AdapterConfig) *Virtual {
	return &Virtual{
		BaseAdapter: NewBaseAdapter("Virtual", cfg),
		bus:         b,
	}
}

func (b *VirtualBus) attach(v *Virtual) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[v] = struct{}{}
}

func (b *VirtualBus) detach(v *Virtual) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.nodes, v)
}

func (b *VirtualBus) broadcast(from *Virtual, frame *CANFrame) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for node := range b.nodes {
		if node == from {
			continue
		}
		node.deliver(frame)
	}
}

type Virtual struct {
	*BaseAdapter
	bus *VirtualBus
}

func (v *Virtual) Open(ctx context.Context) error {
	v.bus.attach(v)
	go v.sendManager(ctx)
	return nil
}

func (v *Virtual) Close() error {
	v.bus.detach(v)
	v.BaseAdapter.Close()
	return nil
}

func (v *Virtual) deliver(frame *CANFrame) {
	if len(v.cfg.CANFilter) > 0 && !v.accepts(frame.Identifier) {
		return
	}
	in := frame.Copy()
	in.FrameType = Incoming
	select {
	case v.recvChan <- in:
	default:
		v.Error(ErrDroppedFrame)
	}
}

func (v *Virtual) accepts(id uint32) bool {
	for _, f := range v.cfg.CANFilter {
		if f == id {
			return true
		}
	}
	return false
}

func (v *Virtual) sendManager(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.closeChan:
			return
		case frame := <-v.sendChan:
			if v.cfg.Debug {
				v.cfg.OnMessage(frame.String())
			}
			v.bus.broadcast(v, frame)
		}
	}
}
