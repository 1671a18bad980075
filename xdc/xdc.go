// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdc generates Vivado constraints binding the TDC discriminator
// inputs to FPGA package pins.
//
// The 64 discriminator inputs are routed to the HDIO banks of the Kria
// carrier as follows:
//
//	tdc_hit[ 0:15] -> HDA[0:15]
//	tdc_hit[16:39] -> HDB[0:23]
//	tdc_hit[40:63] -> HDC[0:23]
package xdc // import "github.com/go-lpc/tdc/xdc"

import (
	"fmt"
	"io"
	"strings"
	"text/template"
)

const (
	// Port is the name of the top-level HDL port receiving the hits.
	Port = "tdc_hit"

	// DefaultIOStandard is the I/O standard of the HDIO banks.
	DefaultIOStandard = "LVCMOS33"
)

// Row binds a signal to a package pin.
// The discriminator channel of a row is its position in the table.
type Row struct {
	Name string // FPGA signal name, for annotation only
	Pin  string // package pin
}

// MissingFieldError is returned when a row lacks a signal name or a pin.
type MissingFieldError struct {
	Row   int    // 0-based position of the row
	Field string // name of the missing column
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("xdc: row %d: missing %q", e.Row, e.Field)
}

// Block holds the constraints of a single channel.
type Block struct {
	Channel    int
	Name       string
	Pin        string
	IOStandard string
}

var blockTmpl = template.Must(template.New("block").Parse(
	`# {{.Name}}
set_property PACKAGE_PIN {{.Pin}} [get_ports {{"{"}}` + Port + `[{{.Channel}}]{{"}"}}]
set_property IOSTANDARD {{.IOStandard}} [get_ports {{"{"}}` + Port + `[{{.Channel}}]{{"}"}}]
`))

func (blk Block) String() string {
	o := new(strings.Builder)
	err := blockTmpl.Execute(o, blk)
	if err != nil {
		panic(fmt.Errorf("xdc: could not render block for channel %d: %w", blk.Channel, err))
	}
	return o.String()
}

// Emitter lazily turns rows into constraint blocks.
//
//	emit := xdc.NewEmitter(rows, xdc.DefaultIOStandard)
//	for emit.Next() {
//		fmt.Print(emit.Block())
//	}
//	if err := emit.Err(); err != nil { ... }
type Emitter struct {
	rows []Row
	std  string

	i   int
	blk Block
	err error
}

// NewEmitter returns an emitter applying the I/O standard std to every row.
func NewEmitter(rows []Row, std string) *Emitter {
	return &Emitter{rows: rows, std: std}
}

// Next prepares the next block. It returns false at the end of the
// table or on the first malformed row.
func (emit *Emitter) Next() bool {
	if emit.err != nil || emit.i >= len(emit.rows) {
		return false
	}

	row := emit.rows[emit.i]
	switch {
	case strings.TrimSpace(row.Name) == "":
		emit.err = &MissingFieldError{Row: emit.i, Field: ColSignal}
		return false
	case strings.TrimSpace(row.Pin) == "":
		emit.err = &MissingFieldError{Row: emit.i, Field: ColPin}
		return false
	}

	emit.blk = Block{
		Channel:    emit.i,
		Name:       row.Name,
		Pin:        row.Pin,
		IOStandard: emit.std,
	}
	emit.i++
	return true
}

// Block returns the current block.
func (emit *Emitter) Block() Block { return emit.blk }

// Err returns the error that stopped the emitter, if any.
func (emit *Emitter) Err() error { return emit.err }

// Write writes the constraints of all rows to w.
// Each block is surrounded by empty lines, as in the files the
// firmware was built with.
func Write(w io.Writer, rows []Row, std string) error {
	emit := NewEmitter(rows, std)
	for emit.Next() {
		_, err := fmt.Fprintf(w, "\n%s\n", emit.Block())
		if err != nil {
			return fmt.Errorf("xdc: could not write channel %d: %w", emit.Block().Channel, err)
		}
	}
	return emit.Err()
}
