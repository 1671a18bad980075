// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command uio-dump dumps the content of a UIO memory region, such as a
// TDC block RAM.
//
// Usage: uio-dump [OPTIONS]
//
// Example:
//
//	$> uio-dump -dev 1 -n 4
//	Addr 0: 0x0000000000000000
//	Addr 1: 0x0000000000000000
//	Addr 2: 0x0000000000000000
//	Addr 3: 0x0000000000000000
//	It took 35.6µs to read 4 BRAM addresses
package main // import "github.com/go-lpc/tdc/cmd/uio-dump"

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/tdc/hits"
	"github.com/go-lpc/tdc/uio"
)

func main() {
	log.SetPrefix("uio-dump: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(stdout io.Writer, args []string) {
	var (
		fset   = flag.NewFlagSet("uio-dump", flag.ExitOnError)
		dev    = fset.String("dev", "1", "UIO id of the memory region to dump")
		size   = fset.Int64("size", 8192, "size of the memory region, in bytes (0: size declared in sysfs)")
		n      = fset.Int("n", 0, "number of words to dump (0: whole region)")
		clear  = fset.Bool("clear", false, "zero each word after reading it")
		decode = fset.Bool("hits", false, "decode words as TDC hits")
		devdir = fset.String("devdir", "/dev", "directory holding the UIO device files")
		sysdir = fset.String("sysfs", "/sys/class/uio", "directory holding the UIO sysfs entries")
	)

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	dump := dumper{
		w:      stdout,
		n:      *n,
		clear:  *clear,
		decode: *decode,
	}

	err = run(dump, *dev, *size, uio.WithDevDir(*devdir), uio.WithSysfsDir(*sysdir))
	if err != nil {
		log.Fatalf("could not dump uio%s: %+v", *dev, err)
	}
}

func run(dump dumper, id string, size int64, opts ...uio.Option) error {
	dev, err := uio.Open(id, opts...)
	if err != nil {
		return err
	}
	defer dev.Close()

	var win *uio.Window
	switch size {
	case 0:
		win, err = dev.Region(0)
	default:
		win, err = dev.Map(size)
	}
	if err != nil {
		return fmt.Errorf("could not map memory region: %w", err)
	}
	defer win.Close()

	err = dump.process(win)
	if err != nil {
		return err
	}

	err = win.Close()
	if err != nil {
		return fmt.Errorf("could not release memory region: %w", err)
	}

	return nil
}

type dumper struct {
	w      io.Writer
	n      int
	clear  bool
	decode bool
}

func (dump dumper) process(win *uio.Window) error {
	o := bufio.NewWriter(dump.w)
	defer o.Flush()

	n := dump.n
	if n <= 0 {
		n = win.Words()
	}

	start := time.Now()
	scan := win.Scan(n)
	for scan.Next() {
		switch {
		case dump.decode:
			hit := hits.Decode(scan.Word().Uint64())
			fmt.Fprintf(o, "Addr %d: %s %v\n", scan.Index(), scan.Text(), hit)
		default:
			fmt.Fprintf(o, "Addr %d: %s\n", scan.Index(), scan.Text())
		}

		if dump.clear {
			err := win.WriteUint64(scan.Offset(), 0)
			if err != nil {
				return fmt.Errorf("could not clear word %d: %w", scan.Index(), err)
			}
		}
	}
	if err := scan.Err(); err != nil {
		return fmt.Errorf("could not read word: %w", err)
	}
	fmt.Fprintf(o, "It took %v to read %d BRAM addresses\n", time.Since(start), n)

	return o.Flush()
}
