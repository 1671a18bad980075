// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tdc-hist fills the fine time code density histograms of the TDC
// channels from readout files, and writes them in the YODA format.
//
// Usage: tdc-hist [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tdc-hist -o tdc.yoda ./tdc.raw
package main // import "github.com/go-lpc/tdc/cmd/tdc-hist"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tdc/hits"
	"go-hep.org/x/hep/hbook"
)

func main() {
	log.SetPrefix("tdc-hist: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(stdout io.Writer, args []string) {
	var (
		fset  = flag.NewFlagSet("tdc-hist", flag.ExitOnError)
		oname = fset.String("o", "", "path to the output YODA file (default: stdout)")
		empty = fset.Bool("empty", false, "fill empty (zero) words")
	)

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input TDC file")
	}

	hs := newHists(*empty)
	for _, fname := range fset.Args() {
		err := hs.fill(fname)
		if err != nil {
			log.Fatalf("could not fill histograms from %q: %+v", fname, err)
		}
	}
	log.Printf("triggers: %d, hits: %d", hs.ntrigs, int64(hs.occ.Entries()))

	w := stdout
	if *oname != "" {
		f, err := os.Create(*oname)
		if err != nil {
			log.Fatalf("could not create output file: %+v", err)
		}
		defer f.Close()
		w = f
	}

	err = hs.write(w)
	if err != nil {
		log.Fatalf("could not write histograms: %+v", err)
	}

	if f, ok := w.(*os.File); ok && *oname != "" {
		err = f.Close()
		if err != nil {
			log.Fatalf("could not close output file: %+v", err)
		}
	}
}

type hists struct {
	empty  bool
	ntrigs int

	occ  *hbook.H1D                   // channel occupancy
	fine [hits.NumChannels]*hbook.H1D // fine time code density, per channel
}

func newHists(empty bool) *hists {
	hs := &hists{
		empty: empty,
		occ:   hbook.NewH1D(hits.NumChannels, 0, hits.NumChannels),
	}
	hs.occ.Annotation()["name"] = "channels"
	hs.occ.Annotation()["title"] = "TDC channel occupancy"
	for i := range hs.fine {
		h := hbook.NewH1D(hits.NumFine, 0, hits.NumFine)
		h.Annotation()["name"] = fmt.Sprintf("fine-ch%02d", i)
		h.Annotation()["title"] = fmt.Sprintf("TDC fine time (channel %d)", i)
		hs.fine[i] = h
	}
	return hs
}

func (hs *hists) fill(fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	dec := hits.NewDecoder(bufio.NewReader(f))
	for {
		var frame hits.Frame
		err := dec.Decode(&frame)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not decode frame: %w", err)
		}
		hs.ntrigs++

		for _, w := range frame.Words {
			if w == 0 && !hs.empty {
				continue
			}
			hit := hits.Decode(w)
			hs.occ.Fill(float64(hit.Channel)+0.5, 1)
			hs.fine[hit.Channel].Fill(float64(hit.Fine)+0.5, 1)
		}
	}
}

func (hs *hists) write(w io.Writer) error {
	o := bufio.NewWriter(w)

	raw, err := hs.occ.MarshalYODA()
	if err != nil {
		return fmt.Errorf("could not marshal occupancy histogram: %w", err)
	}
	_, err = o.Write(raw)
	if err != nil {
		return fmt.Errorf("could not write occupancy histogram: %w", err)
	}

	for i, h := range hs.fine {
		if h.Entries() == 0 {
			continue
		}
		raw, err := h.MarshalYODA()
		if err != nil {
			return fmt.Errorf("could not marshal fine time histogram of channel %d: %w", i, err)
		}
		_, err = o.Write(raw)
		if err != nil {
			return fmt.Errorf("could not write fine time histogram of channel %d: %w", i, err)
		}
	}

	return o.Flush()
}
