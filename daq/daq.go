// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq reads out the TDC block RAMs on each trigger interrupt and
// forwards the hit words to a data sink.
//
// The firmware fills two block RAMs in turn. On each trigger the daemon:
//
//   - unmasks and waits for the trigger interrupt,
//   - raises the busy flag so the firmware holds off,
//   - reads the selector GPIO to find the block RAM to read out,
//   - reads (and optionally clears) the hit words,
//   - lowers the busy flag,
//   - sends the frame to the sink and waits for its acknowledgement.
package daq // import "github.com/go-lpc/tdc/daq"

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/go-lpc/tdc/hits"
	"github.com/go-lpc/tdc/uio"
	"golang.org/x/sync/errgroup"
)

// IRQ is an interrupt line.
type IRQ interface {
	Unmask() error
	Wait() (uint32, error)
	Close() error
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger of the daemon.
func WithLogger(msg *log.Logger) Option {
	return func(d *Daemon) {
		d.msg = msg
	}
}

// WithUIO sets how the UIO devices of the daemon are located.
func WithUIO(opts ...uio.Option) Option {
	return func(d *Daemon) {
		d.uopts = append(d.uopts, opts...)
	}
}

// WithIRQ sets the interrupt line of the daemon, in lieu of the UIO
// device named in the configuration.
func WithIRQ(irq IRQ) Option {
	return func(d *Daemon) {
		d.irq = irq
	}
}

// WithAlerter sets the alerter notified when the daemon stops on error.
func WithAlerter(a Alerter) Option {
	return func(d *Daemon) {
		d.alert = a
	}
}

// Daemon is the TDC readout daemon.
type Daemon struct {
	cfg Config
	msg *log.Logger

	uopts []uio.Option
	irq   IRQ
	busy  *uio.Window
	sel   *uio.Window
	sink  net.Conn
	enc   *hits.Encoder
	alert Alerter

	open func(id string, size int64) (*uio.Window, error)
}

// New creates a readout daemon from the provided configuration.
// The interrupt and GPIO devices are opened, and the sink dialed, by New.
func New(cfg Config, opts ...Option) (d *Daemon, err error) {
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	d = &Daemon{
		cfg: cfg,
		msg: log.New(os.Stdout, "daq: ", 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.open = func(id string, size int64) (*uio.Window, error) {
		return uio.OpenWindow(id, size, d.uopts...)
	}

	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	if d.irq == nil {
		var irq *uio.Device
		irq, err = uio.Open(cfg.IRQ, d.uopts...)
		if err != nil {
			return nil, fmt.Errorf("daq: could not open trigger interrupt: %w", err)
		}
		d.irq = irq
	}

	d.busy, err = d.open(cfg.Busy, cfg.GPIOSize)
	if err != nil {
		return nil, fmt.Errorf("daq: could not open busy GPIO: %w", err)
	}

	d.sel, err = d.open(cfg.Select, cfg.GPIOSize)
	if err != nil {
		return nil, fmt.Errorf("daq: could not open block RAM selector GPIO: %w", err)
	}

	if cfg.Sink != "" {
		d.sink, err = net.Dial("tcp", cfg.Sink)
		if err != nil {
			return nil, fmt.Errorf("daq: could not dial data sink %q: %w", cfg.Sink, err)
		}
		d.enc = hits.NewEncoder(d.sink)
	}

	return d, nil
}

// Close releases the devices and the connection to the sink.
func (d *Daemon) Close() error {
	var errs []error
	if d.sink != nil {
		errs = append(errs, d.sink.Close())
		d.sink = nil
	}
	for _, w := range []*uio.Window{d.sel, d.busy} {
		if w == nil {
			continue
		}
		errs = append(errs, w.Close())
	}
	if d.irq != nil {
		errs = append(errs, d.irq.Close())
	}

	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("daq: could not close daemon: %w", err)
		}
	}
	return nil
}

// Run reads out triggers until ctx is canceled or an error occurs.
// The alerter, if any, is notified of the error that stopped the daemon.
func (d *Daemon) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	grp.Go(func() error {
		select {
		case <-ctx.Done():
			return d.Stop()
		case <-done:
			return nil
		}
	})

	grp.Go(func() error {
		defer close(done)
		for {
			err := d.Cycle()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	})

	err := grp.Wait()
	if err != nil {
		d.msg.Printf("readout stopped: %+v", err)
		if d.alert != nil {
			aerr := d.alert.Alert("readout stopped", err.Error())
			if aerr != nil {
				d.msg.Printf("could not send alert: %+v", aerr)
			}
		}
	}
	return err
}

// Cycle waits for the next trigger, reads it out and sends it to the sink.
func (d *Daemon) Cycle() error {
	frame, err := d.Next()
	if err != nil {
		return err
	}
	d.msg.Printf("trigger %d: bram=%d words=%d", frame.Trigger, frame.BRAM, len(frame.Words))

	return d.send(frame)
}

// Next waits for the next trigger and reads it out.
func (d *Daemon) Next() (*hits.Frame, error) {
	err := d.irq.Unmask()
	if err != nil {
		return nil, fmt.Errorf("daq: could not unmask trigger interrupt: %w", err)
	}

	trig, err := d.irq.Wait()
	if err != nil {
		return nil, fmt.Errorf("daq: could not wait for trigger: %w", err)
	}

	return d.Readout(trig)
}

// Stop unblocks a pending Next. The daemon cannot wait for triggers
// afterwards.
func (d *Daemon) Stop() error {
	return d.irq.Close()
}

// Readout reads the block RAM the firmware selected for trigger trig.
// The busy flag is raised during the readout, and lowered on return.
func (d *Daemon) Readout(trig uint32) (frame *hits.Frame, err error) {
	err = d.busy.WriteUint32(0, 1)
	if err != nil {
		return nil, fmt.Errorf("daq: could not raise busy flag: %w", err)
	}
	defer func() {
		e := d.busy.WriteUint32(0, 0)
		if e != nil && err == nil {
			err = fmt.Errorf("daq: could not lower busy flag: %w", e)
		}
	}()

	sel, err := d.sel.ReadUint32(0)
	if err != nil {
		return nil, fmt.Errorf("daq: could not read block RAM selector: %w", err)
	}

	bank := 2
	if sel == 1 {
		bank = 1
	}
	id := d.cfg.BRAMs[bank-1]

	bram, err := d.open(id, d.cfg.BRAMSize)
	if err != nil {
		return nil, fmt.Errorf("daq: could not open block RAM %d (uio%s): %w", bank, id, err)
	}
	defer bram.Close()

	frame = &hits.Frame{
		Trigger: trig,
		BRAM:    uint32(bank),
		Words:   make([]uint64, 0, d.cfg.Words),
	}

	scan := bram.Scan(d.cfg.Words)
	for scan.Next() {
		frame.Words = append(frame.Words, scan.Word().Uint64())
		if d.cfg.Clear {
			err = bram.WriteUint64(scan.Offset(), 0)
			if err != nil {
				return nil, fmt.Errorf("daq: could not clear block RAM %d: %w", bank, err)
			}
		}
	}
	err = scan.Err()
	if err != nil {
		return nil, fmt.Errorf("daq: could not read block RAM %d: %w", bank, err)
	}

	err = bram.Close()
	if err != nil {
		return nil, fmt.Errorf("daq: could not release block RAM %d: %w", bank, err)
	}

	return frame, nil
}

func (d *Daemon) send(frame *hits.Frame) error {
	if d.sink == nil {
		return nil
	}

	err := d.enc.Encode(frame)
	if err != nil {
		return fmt.Errorf("daq: could not send frame to %v: %w", d.sink.RemoteAddr(), err)
	}

	err = hits.ReadACK(d.sink)
	if err != nil {
		return fmt.Errorf("daq: could not receive ACK from %v: %w", d.sink.RemoteAddr(), err)
	}
	return nil
}

var (
	_ IRQ       = (*uio.Device)(nil)
	_ io.Closer = (*Daemon)(nil)
)
