package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/roffe/godiag"
	"github.com/roffe/godiag/pkg/ecusim"
	"github.com/roffe/godiag/pkg/isotp"
	"github.com/roffe/godiag/pkg/uds"
	"github.com/spf13/cobra"
)

const defaultTimeout = time.Second

// session is an opened adapter with a UDS client on top, and the simulator
// when running on the Virtual adapter.
type session struct {
	id  uint32
	c   *godiag.Client
	tp  *isotp.Transport
	uds *uds.Client

	sim     *godiag.Client
	simStop context.CancelFunc
	simDone chan struct{}
}

func (s *session) Close() {
	s.tp.Close()
	s.stopSimulator()
	s.c.Close()
}

func adapterInfo(name string) (*godiag.AdapterInfo, error) {
	for _, a := range godiag.ListAdapters() {
		if strings.EqualFold(a.Name, name) {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("unknown adapter %q, available: %s", name, strings.Join(godiag.ListAdapterNames(), ", "))
}

func printPorts() {
	ports, err := godiag.ListPorts()
	if err != nil {
		log.Println(err)
		return
	}
	fmt.Println("Available ports:")
	for _, p := range ports {
		fmt.Println("  " + p)
	}
}

func adapterConfig(cmd *cobra.Command, filters ...uint32) (string, *godiag.AdapterConfig, error) {
	f := cmd.Flags()
	adapterName, _ := f.GetString(flagAdapter)
	port, _ := f.GetString(flagPort)
	baudrate, _ := f.GetInt(flagBaudrate)
	canrate, _ := f.GetFloat64(flagCANRate)
	debug, _ := f.GetBool(flagDebug)

	info, err := adapterInfo(adapterName)
	if err != nil {
		return "", nil, err
	}
	if info.RequiresSerialPort && port == "*" {
		printPorts()
		return "", nil, errors.New("no port selected")
	}
	return info.Name, &godiag.AdapterConfig{
		Debug:        debug,
		Port:         port,
		PortBaudrate: baudrate,
		CANRate:      canrate,
		CANFilter:    filters,
		OnMessage: func(msg string) {
			log.Println(msg)
		},
	}, nil
}

func openSession(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	f := cmd.Flags()
	id, _ := f.GetUint32(flagID)
	timeout, _ := f.GetDuration(flagTimeout)
	maxPending, _ := f.GetUint(flagMaxPending)
	debug, _ := f.GetBool(flagDebug)

	name, cfg, err := adapterConfig(cmd, godiag.ResponseID(id))
	if err != nil {
		return nil, err
	}

	s := &session{id: id}
	if strings.EqualFold(name, "Virtual") {
		if err := s.startSimulator(cmd); err != nil {
			return nil, err
		}
	}

	dev, err := godiag.NewAdapter(name, cfg)
	if err != nil {
		s.stopSimulator()
		return nil, err
	}
	s.c, err = godiag.New(ctx, dev)
	if err != nil {
		s.stopSimulator()
		return nil, err
	}
	s.tp = isotp.New(s.c, isotp.WithTimeout(timeout))

	opts := []uds.Option{uds.WithMaxPending(maxPending)}
	if debug {
		opts = append(opts, uds.WithOnPending(func(n uint, sid byte) {
			log.Printf("%s: response pending (%d)", uds.TranslateServiceCode(sid), n)
		}))
	}
	s.uds = uds.New(s.tp, opts...)
	return s, nil
}

func (s *session) startSimulator(cmd *cobra.Command) error {
	ctx := cmd.Context()
	profile := ecusim.DefaultProfile()
	if path, _ := cmd.Flags().GetString(flagProfile); path != "" {
		p, err := ecusim.LoadProfile(path)
		if err != nil {
			return err
		}
		profile = p
	}
	ecu, err := ecusim.New(profile)
	if err != nil {
		return err
	}
	_, cfg, err := adapterConfig(cmd, profile.RequestID)
	if err != nil {
		return err
	}
	dev, err := godiag.NewAdapter("Virtual", cfg)
	if err != nil {
		return err
	}
	s.sim, err = godiag.New(ctx, dev)
	if err != nil {
		return err
	}
	tp := isotp.New(s.sim, isotp.WithServerAddressing(), isotp.WithTimeout(100*time.Millisecond))
	tp.Listen(profile.RequestID)

	simCtx, cancel := context.WithCancel(ctx)
	s.simStop = cancel
	s.simDone = make(chan struct{})
	go func() {
		defer close(s.simDone)
		defer tp.Close()
		if err := ecu.Serve(simCtx, tp); err != nil {
			log.Printf("simulator stopped: %v", err)
		}
	}()
	return nil
}

func (s *session) stopSimulator() {
	if s.simStop == nil {
		return
	}
	s.simStop()
	<-s.simDone
	s.sim.Close()
	s.simStop = nil
}
