// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tdc-dump decodes and displays TDC readout files.
//
// Usage: tdc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tdc-dump ./tdc.raw
//	=== trigger 1 (BRAM 1) ===
//	Words:          3
//	  000 0x0000000000000845 channel=05 coarse=        1 fine=01
//	  001 0x0000000000001082 channel=02 coarse=        2 fine=02
//	[...]
package main // import "github.com/go-lpc/tdc/cmd/tdc-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tdc/hits"
	"github.com/go-lpc/tdc/uio"
)

func main() {
	log.SetPrefix("tdc-dump: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(stdout io.Writer, args []string) {
	var (
		fset  = flag.NewFlagSet("tdc-dump", flag.ExitOnError)
		empty = fset.Bool("empty", false, "display empty (zero) words")
	)

	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), `tdc-dump decodes and displays TDC readout files.

Usage: tdc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> tdc-dump ./tdc.raw
 === trigger 1 (BRAM 1) ===
 Words:          3
   000 0x0000000000000845 channel=05 coarse=        1 fine=01
   001 0x0000000000001082 channel=02 coarse=        2 fine=02
 [...]

Options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input TDC file")
	}

	for _, fname := range fset.Args() {
		err := process(stdout, fname, *empty)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, empty bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	dec := hits.NewDecoder(bufio.NewReader(f))
loop:
	for {
		var frame hits.Frame
		err := dec.Decode(&frame)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode frame: %w", err)
		}
		fmt.Fprintf(wbuf, "=== trigger %d (BRAM %d) ===\n", frame.Trigger, frame.BRAM)
		fmt.Fprintf(wbuf, "Words: % 10d\n", len(frame.Words))

		for i, v := range frame.Words {
			if v == 0 && !empty {
				continue
			}
			fmt.Fprintf(wbuf, "  %03d %v %v\n", i, uio.WordFrom(v), hits.Decode(v))
		}
	}

	return wbuf.Flush()
}
