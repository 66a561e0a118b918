package godiag

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.bug.st/serial/enumerator"
)

type Adapter interface {
	Name() string
	Open(context.Context) error
	Close() error
	Send() chan<- *CANFrame
	Recv() <-chan *CANFrame
	Err() <-chan error
	Event() <-chan Event
}

type AdapterInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	Capabilities       AdapterCapabilities
	New                func(*AdapterConfig) (Adapter, error)
}

func (a *AdapterInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", a.Name, a.Description, a.RequiresSerialPort)
}

type AdapterCapabilities struct {
	HSCAN bool
	SWCAN bool
	KLine bool
}

func (a *AdapterCapabilities) String() string {
	return fmt.Sprintf("HSCAN: %v, SWCAN: %v, KLine: %v", a.HSCAN, a.SWCAN, a.KLine)
}

type AdapterConfig struct {
	Debug         bool
	Port          string
	PortBaudrate  int
	CANRate       float64 // kbit/s
	CANFilter     []uint32
	UseExtendedID bool
	OnMessage     func(string)
}

var (
	adapterMu  sync.RWMutex
	adapterMap = make(map[string]*AdapterInfo)
)

func defaultOnMessage(msg string) {
	_, file, no, ok := runtime.Caller(2)
	if ok {
		log.Printf("%s#%d %v", filepath.Base(file), no, msg)
		return
	}
	log.Println(msg)
}

// NewAdapter creates a registered adapter, names are matched case insensitive.
func NewAdapter(adapterName string, cfg *AdapterConfig) (Adapter, error) {
	if cfg == nil {
		cfg = &AdapterConfig{}
	}
	if cfg.OnMessage == nil {
		cfg.OnMessage = defaultOnMessage
	}
	adapterMu.RLock()
	defer adapterMu.RUnlock()
	for name, adapter := range adapterMap {
		if strings.EqualFold(name, adapterName) {
			return adapter.New(cfg)
		}
	}
	return nil, fmt.Errorf("unknown adapter %q", adapterName)
}

func RegisterAdapter(adapter *AdapterInfo) error {
	adapterMu.Lock()
	defer adapterMu.Unlock()
	if _, found := adapterMap[adapter.Name]; !found {
		adapterMap[adapter.Name] = adapter
		return nil
	}
	return fmt.Errorf("adapter %s already registered", adapter.Name)
}

func ListAdapterNames() []string {
	adapterMu.RLock()
	defer adapterMu.RUnlock()
	var out []string
	for name := range adapterMap {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListAdapters() []AdapterInfo {
	var out []AdapterInfo
	adapterMu.RLock()
	defer adapterMu.RUnlock()
	for _, name := range sortedKeys() {
		out = append(out, *adapterMap[name])
	}
	return out
}

func sortedKeys() []string {
	keys := make([]string, 0, len(adapterMap))
	for name := range adapterMap {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// ListPorts returns the serial ports present on the system, USB ports are
// annotated with their VID:PID.
func ListPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, port := range ports {
		if port.IsUSB {
			out = append(out, fmt.Sprintf("%s (%s:%s %s)", port.Name, port.VID, port.PID, port.SerialNumber))
			continue
		}
		out = append(out, port.Name)
	}
	return out, nil
}
