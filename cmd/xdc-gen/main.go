// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command xdc-gen generates the Vivado constraints binding the TDC
// discriminator inputs to the package pins of the FPGA.
//
// Usage: xdc-gen [OPTIONS]
//
// Example:
//
//	$> xdc-gen -i ./pins.csv -o tdc.xdc
//	$> xdc-gen -db tdc -board kria-00
package main // import "github.com/go-lpc/tdc/cmd/xdc-gen"

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tdc/hits"
	"github.com/go-lpc/tdc/pindb"
	"github.com/go-lpc/tdc/xdc"
)

func main() {
	log.SetPrefix("xdc-gen: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(stdout io.Writer, args []string) {
	var (
		fset  = flag.NewFlagSet("xdc-gen", flag.ExitOnError)
		fname = fset.String("i", "", "path to the CSV pin mapping table")
		db    = fset.String("db", "", "name of the pin mapping database")
		board = fset.String("board", "", "name of the board in the pin mapping database")
		iostd = fset.String("iostd", "", "I/O standard (default: board's or "+xdc.DefaultIOStandard+")")
		oname = fset.String("o", "", "path to the output XDC file (default: stdout)")
	)

	fset.Usage = func() {
		fmt.Fprintf(fset.Output(), `xdc-gen generates TDC pin constraints.

Usage: xdc-gen [OPTIONS]

Example:

 $> xdc-gen -i ./pins.csv -o tdc.xdc
 $> xdc-gen -db tdc -board kria-00

Options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse input arguments: %+v", err)
	}

	var (
		rows []xdc.Row
		std  = *iostd
	)
	switch {
	case *fname != "" && *db != "":
		fset.Usage()
		log.Fatalf("-i and -db are mutually exclusive")
	case *fname != "":
		rows, err = xdc.ReadFile(*fname)
		if std == "" {
			std = xdc.DefaultIOStandard
		}
	case *db != "":
		if *board == "" {
			fset.Usage()
			log.Fatalf("missing board name")
		}
		rows, std, err = fromDB(*db, *board, std)
	default:
		fset.Usage()
		log.Fatalf("missing pin mapping table")
	}
	if err != nil {
		log.Fatalf("could not load pin mapping table: %+v", err)
	}

	err = generate(stdout, *oname, rows, std)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// generate writes the constraints to oname, or to stdout if oname is empty.
// Nothing is written if a row is invalid.
func generate(stdout io.Writer, oname string, rows []xdc.Row, std string) error {
	o := new(bytes.Buffer)
	err := process(o, rows, std)
	if err != nil {
		return fmt.Errorf("could not generate constraints: %w", err)
	}

	if oname == "" {
		_, err = stdout.Write(o.Bytes())
		if err != nil {
			return fmt.Errorf("could not write constraints: %w", err)
		}
		return nil
	}

	err = os.WriteFile(oname, o.Bytes(), 0644)
	if err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}
	return nil
}

func fromDB(dbname, board, std string) ([]xdc.Row, string, error) {
	db, err := pindb.Open(dbname)
	if err != nil {
		return nil, "", fmt.Errorf("could not open pin mapping db: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	rows, err := db.PinMap(ctx, board)
	if err != nil {
		return nil, "", fmt.Errorf("could not retrieve pin map: %w", err)
	}

	if std == "" {
		std, err = db.IOStandard(ctx, board)
		if err != nil {
			return nil, "", fmt.Errorf("could not retrieve I/O standard: %w", err)
		}
	}

	return rows, std, nil
}

func process(w io.Writer, rows []xdc.Row, std string) error {
	if len(rows) > hits.NumChannels {
		log.Printf("pin mapping table has %d rows (TDC has %d channels)", len(rows), hits.NumChannels)
	}
	return xdc.Write(w, rows, std)
}
