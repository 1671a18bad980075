// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xdc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Columns of the pin mapping table.
const (
	ColSignal = "FPGA Signal Name"
	ColPin    = "Package Pin"
)

// ReadCSV reads a pin mapping table from r.
//
// The first record is the header and must name the ColSignal and ColPin
// columns. Other columns are ignored, as is any numbering they hold:
// rows keep the order of the table.
func ReadCSV(r io.Reader) ([]Row, error) {
	dec := csv.NewReader(r)
	dec.FieldsPerRecord = -1
	dec.TrimLeadingSpace = true

	hdr, err := dec.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("xdc: empty pin mapping table")
		}
		return nil, fmt.Errorf("xdc: could not read header: %w", err)
	}

	var (
		isig = -1
		ipin = -1
	)
	for i, name := range hdr {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColSignal:
			isig = i
		case ColPin:
			ipin = i
		}
	}
	switch {
	case isig < 0:
		return nil, fmt.Errorf("xdc: could not find column %q in header %q", ColSignal, hdr)
	case ipin < 0:
		return nil, fmt.Errorf("xdc: could not find column %q in header %q", ColPin, hdr)
	}

	field := func(rec []string, i int) string {
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for {
		rec, err := dec.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("xdc: could not read row %d: %w", len(rows), err)
		}
		rows = append(rows, Row{
			Name: field(rec, isig),
			Pin:  field(rec, ipin),
		})
	}

	return rows, nil
}

// ReadFile reads a pin mapping table from the named CSV file.
func ReadFile(fname string) ([]Row, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("xdc: could not open pin mapping table: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("xdc: could not read %q: %w", fname, err)
	}
	return rows, nil
}
