// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-boot (re)starts the TDC data sink and readout daemon.
//
// Usage: tdc-boot [OPTIONS]
//
// Example:
//
//	$> tdc-boot -pmon -cfg /etc/tdc.yaml -o /data/tdc.raw
package main // import "github.com/go-lpc/tdc/cmd/tdc-boot"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		doMon  = flag.Bool("pmon", false, "enable pmon monitoring")
		doFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")
		addr   = flag.String("addr", "localhost:8000", "[ip]:port of the data sink")
		oname  = flag.String("o", "tdc.raw", "path to the output data file of the sink")
		cfg    = flag.String("cfg", "/etc/tdc.yaml", "path to the readout daemon configuration file")
	)

	flag.Parse()

	log.SetPrefix("tdc-boot: ")
	log.SetFlags(0)

	cmds := []*exec.Cmd{
		exec.Command("tdc-srv", "-addr", *addr, "-o", *oname),
		exec.Command("tdc-daemon", "-cfg", *cfg, "-addr", *addr, "-alert"),
	}
	killall(cmds)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	err := run(*doMon, *doFreq, cmds, os.Getenv("TDC_LOGDIR"), stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// killall kills leftover instances of the commands.
func killall(cmds []*exec.Cmd) {
	for _, cmd := range cmds {
		name := filepath.Base(cmd.Path)
		kill := exec.Command("killall", name)
		kill.Stderr = os.Stderr
		kill.Stdout = os.Stdout
		err := kill.Run()
		if err != nil {
			log.Printf("could not kill %q: %+v", name, err)
		}
	}
}

func run(doMon bool, freq time.Duration, cmds []*exec.Cmd, dir string, stop chan os.Signal) error {
	if dir == "" {
		dir = "/var/log/tdc"
	}

	var (
		grp  errgroup.Group
		kill = make(chan int)
		done = make(chan int)
	)

	for i := range cmds {
		cmd := cmds[i]
		grp.Go(func() error {
			return start(cmd, dir, kill, doMon, freq)
		})
		if i == 0 && len(cmds) > 1 {
			// let the sink listen before its clients dial it.
			time.Sleep(500 * time.Millisecond)
		}
	}

	go func() {
		select {
		case <-stop:
			close(kill)
		case <-done:
		}
	}()

	err := grp.Wait()
	close(done)
	if err != nil {
		return fmt.Errorf("could not boot TDC: %w", err)
	}
	return nil
}

func start(cmd *exec.Cmd, dir string, kill chan int, doMon bool, freq time.Duration) error {
	name := filepath.Base(cmd.Path)
	out, err := os.Create(filepath.Join(dir, name+".log"))
	if err != nil {
		return fmt.Errorf("could not create output log file for %q: %w", name, err)
	}
	defer out.Close()

	cmd.Stdout = out
	cmd.Stderr = out

	log.Printf("starting %q...", name)
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", name, err)
	}

	if doMon {
		p, err := pmon.Monitor(cmd.Process.Pid)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, cmd.Process.Pid, err)
		}
		f, err := os.Create(filepath.Join(dir, name+"-pmon.log"))
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("could not create pmon log file for command %q: %w", name, err)
		}
		defer f.Close()
		p.W = f
		p.Freq = freq

		go func() {
			log.Printf("run pmon %q...", name)
			err := p.Run()
			if err != nil {
				log.Printf("could not start monitoring %q: %+v", name, err)
			}
		}()

		defer func() {
			err := p.Kill()
			if err != nil {
				log.Printf("could not stop monitoring %q: %+v", name, err)
			}
		}()
	}

	errch := make(chan error, 1)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-kill:
		err = cmd.Process.Kill()
		if err != nil {
			return fmt.Errorf("could not kill %q: %w", name, err)
		}
		<-errch
	case err = <-errch:
		if err != nil {
			return fmt.Errorf("could not run %q: %w", name, err)
		}
	}
	log.Printf("%q stopped", name)

	return nil
}
