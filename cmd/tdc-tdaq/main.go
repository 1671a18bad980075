// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-tdaq starts a TDAQ server reading out the TDC of a Kria
// board. Readout frames are published on the /tdc output.
//
// The readout configuration is read from the YAML file named by the
// TDC_CONFIG environment variable, if set.
package main // import "github.com/go-lpc/tdc/cmd/tdc-tdaq"

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/tdc/daq"
	"github.com/go-lpc/tdc/hits"
)

func main() {
	cmd := flags.New()

	dev := newNode(cmd.Args[0], os.Getenv("TDC_CONFIG"))

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/tdc", dev.tdc)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type readout interface {
	Next() (*hits.Frame, error)
	Stop() error
	Close() error
}

type node struct {
	name  string
	fname string // readout configuration file

	newReadout func(cfg daq.Config) (readout, error)

	mu   sync.Mutex
	cfg  daq.Config
	rdo  readout
	n    int
	data chan []byte
}

func newNode(name, fname string) *node {
	return &node{
		name:  name,
		fname: fname,
		cfg:   daq.DefaultConfig(),
		newReadout: func(cfg daq.Config) (readout, error) {
			return daq.New(cfg)
		},
	}
}

func (dev *node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	cfg := daq.DefaultConfig()
	if dev.fname != "" {
		var err error
		cfg, err = daq.LoadConfig(dev.fname)
		if err != nil {
			ctx.Msg.Errorf("could not load readout configuration: %+v", err)
			return err
		}
	}
	// frames go through the /tdc output.
	cfg.Sink = ""

	dev.mu.Lock()
	dev.cfg = cfg
	dev.mu.Unlock()
	return nil
}

func (dev *node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return dev.reset(ctx)
}

func (dev *node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return dev.reset(ctx)
}

func (dev *node) reset(ctx tdaq.Context) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.rdo != nil {
		err := dev.rdo.Close()
		dev.rdo = nil
		if err != nil {
			ctx.Msg.Errorf("could not close readout: %+v", err)
			return err
		}
	}

	rdo, err := dev.newReadout(dev.cfg)
	if err != nil {
		ctx.Msg.Errorf("could not create readout: %+v", err)
		return fmt.Errorf("could not create readout: %w", err)
	}
	dev.rdo = rdo
	dev.data = make(chan []byte, 1024)
	dev.n = 0
	return nil
}

func (dev *node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	dev.mu.Lock()
	rdo := dev.rdo
	dev.n = 0
	dev.mu.Unlock()

	if rdo == nil {
		// readout released at the end of the previous run.
		return dev.reset(ctx)
	}
	return nil
}

func (dev *node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	n := dev.n
	dev.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	return nil
}

func (dev *node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.rdo == nil {
		return nil
	}
	err := dev.rdo.Close()
	dev.rdo = nil
	return err
}

func (dev *node) tdc(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *node) run(ctx tdaq.Context) error {
	dev.mu.Lock()
	rdo := dev.rdo
	data := dev.data
	dev.mu.Unlock()

	if rdo == nil {
		return fmt.Errorf("readout not initialized")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Ctx.Done():
			// unblock the pending trigger wait.
			_ = rdo.Stop()
		case <-done:
		}
	}()

	defer func() {
		dev.mu.Lock()
		defer dev.mu.Unlock()
		if dev.rdo == rdo {
			_ = rdo.Close()
			dev.rdo = nil
		}
	}()

	buf := new(bytes.Buffer)
	enc := hits.NewEncoder(buf)
	for {
		frame, err := rdo.Next()
		if err != nil {
			if ctx.Ctx.Err() != nil {
				return nil
			}
			ctx.Msg.Errorf("could not read out trigger: %+v", err)
			return err
		}

		buf.Reset()
		err = enc.Encode(frame)
		if err != nil {
			return fmt.Errorf("could not encode frame: %w", err)
		}
		raw := append([]byte(nil), buf.Bytes()...)

		select {
		case data <- raw:
			dev.mu.Lock()
			dev.n++
			dev.mu.Unlock()
		default:
			ctx.Msg.Warnf("output queue full: dropping trigger %d", frame.Trigger)
		}
	}
}
