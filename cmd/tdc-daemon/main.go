// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-daemon reads out the TDC block RAMs on each trigger and
// sends the hit words to a data sink (see tdc-srv).
//
// Usage: tdc-daemon [OPTIONS]
//
// Example:
//
//	$> tdc-daemon -cfg /etc/tdc.yaml -addr daq.lpc:8000
package main // import "github.com/go-lpc/tdc/cmd/tdc-daemon"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-lpc/tdc"
	"github.com/go-lpc/tdc/daq"
)

func main() {
	log.SetPrefix("tdc-daemon: ")
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := xmain(ctx, os.Stdout, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(ctx context.Context, stdout io.Writer, args []string, opts ...daq.Option) error {
	var (
		fset  = flag.NewFlagSet("tdc-daemon", flag.ContinueOnError)
		fname = fset.String("cfg", "", "path to the YAML readout configuration file")
		addr  = fset.String("addr", "", "[ip]:port of the data sink (overrides configuration)")
		words = fset.Int("words", 0, "number of words read per trigger (overrides configuration)")
		clear = fset.Bool("clear", false, "zero the words after reading them")
		alert = fset.Bool("alert", false, "send a mail alert when the readout stops on error")
		vers  = fset.Bool("version", false, "print version and exit")
	)

	err := fset.Parse(args)
	if err != nil {
		return fmt.Errorf("could not parse input arguments: %w", err)
	}

	if *vers {
		fmt.Fprintf(stdout, "tdc-daemon %s\n", version())
		return nil
	}

	cfg, err := config(*fname, *addr, *words, *clear)
	if err != nil {
		return err
	}

	if *alert {
		opts = append(opts, daq.WithAlerter(daq.MailAlerterFromEnv()))
	}

	dev, err := daq.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("could not create readout daemon: %w", err)
	}
	defer dev.Close()

	log.Printf("tdc-daemon %s", version())
	log.Printf("running readout (irq=uio%s, brams=uio%s|uio%s, words=%d, sink=%q)...",
		cfg.IRQ, cfg.BRAMs[0], cfg.BRAMs[1], cfg.Words, cfg.Sink,
	)
	err = dev.Run(ctx)
	if err != nil {
		return fmt.Errorf("could not run readout: %w", err)
	}
	log.Printf("running readout... [done]")

	err = dev.Close()
	if err != nil {
		return fmt.Errorf("could not close readout daemon: %w", err)
	}
	return nil
}

func config(fname, addr string, words int, clear bool) (daq.Config, error) {
	cfg := daq.DefaultConfig()
	if fname != "" {
		var err error
		cfg, err = daq.LoadConfig(fname)
		if err != nil {
			return cfg, fmt.Errorf("could not load configuration: %w", err)
		}
	}

	if addr != "" {
		cfg.Sink = addr
	}
	if words > 0 {
		cfg.Words = words
	}
	if clear {
		cfg.Clear = true
	}

	err := cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func version() string {
	v, sum := tdc.Version()
	switch {
	case v == "":
		return "(devel)"
	case sum != "":
		return v + " " + sum
	default:
		return v
	}
}
