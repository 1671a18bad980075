// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xdc

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"
)

func TestEmitter(t *testing.T) {
	rows := []Row{
		{Name: "SIG_A", Pin: "A1"},
		{Name: "SIG_B", Pin: "B2"},
	}

	want := []string{
		`# SIG_A
set_property PACKAGE_PIN A1 [get_ports {tdc_hit[0]}]
set_property IOSTANDARD LVCMOS33 [get_ports {tdc_hit[0]}]
`,
		`# SIG_B
set_property PACKAGE_PIN B2 [get_ports {tdc_hit[1]}]
set_property IOSTANDARD LVCMOS33 [get_ports {tdc_hit[1]}]
`,
	}

	var got []string
	emit := NewEmitter(rows, "LVCMOS33")
	for emit.Next() {
		blk := emit.Block()
		if got, want := blk.Channel, len(got); got != want {
			t.Fatalf("invalid channel: got=%d, want=%d", got, want)
		}
		got = append(got, blk.String())
	}
	if err := emit.Err(); err != nil {
		t.Fatalf("could not emit constraints: %+v", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid blocks:\ngot= %q\nwant=%q", got, want)
	}
}

func TestBlockLayout(t *testing.T) {
	for _, std := range []string{"LVCMOS33", "LVCMOS18"} {
		t.Run(std, func(t *testing.T) {
			rows := make([]Row, 64)
			for i := range rows {
				rows[i] = Row{Name: fmt.Sprintf("HD%02d", i), Pin: fmt.Sprintf("P%d", i)}
			}
			emit := NewEmitter(rows, std)
			for emit.Next() {
				blk := emit.Block()
				lines := strings.Split(strings.TrimSuffix(blk.String(), "\n"), "\n")
				if got, want := len(lines), 3; got != want {
					t.Fatalf("invalid number of lines: got=%d, want=%d", got, want)
				}
				port := fmt.Sprintf("[get_ports {tdc_hit[%d]}]", blk.Channel)
				for i, want := range []string{
					"# " + rows[blk.Channel].Name,
					"set_property PACKAGE_PIN " + rows[blk.Channel].Pin + " " + port,
					"set_property IOSTANDARD " + std + " " + port,
				} {
					if got := lines[i]; got != want {
						t.Fatalf("invalid line %d:\ngot= %q\nwant=%q", i, got, want)
					}
				}
			}
			if err := emit.Err(); err != nil {
				t.Fatalf("could not emit constraints: %+v", err)
			}
		})
	}
}

func TestEmitterMissingField(t *testing.T) {
	for _, tc := range []struct {
		name  string
		rows  []Row
		row   int
		field string
		n     int
	}{
		{
			name:  "missing-signal",
			rows:  []Row{{"S0", "A1"}, {"", "A2"}, {"S2", "A3"}},
			row:   1,
			field: ColSignal,
			n:     1,
		},
		{
			name:  "missing-pin",
			rows:  []Row{{"S0", "A1"}, {"S1", "A2"}, {"S2", " "}},
			row:   2,
			field: ColPin,
			n:     2,
		},
		{
			name:  "missing-first",
			rows:  []Row{{"", ""}},
			row:   0,
			field: ColSignal,
			n:     0,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			emit := NewEmitter(tc.rows, DefaultIOStandard)
			n := 0
			for emit.Next() {
				n++
			}
			if n != tc.n {
				t.Fatalf("invalid number of blocks: got=%d, want=%d", n, tc.n)
			}

			var merr *MissingFieldError
			if !errors.As(emit.Err(), &merr) {
				t.Fatalf("invalid error: %+v", emit.Err())
			}
			if got, want := *merr, (MissingFieldError{Row: tc.row, Field: tc.field}); got != want {
				t.Fatalf("invalid error: got=%+v, want=%+v", got, want)
			}

			// emitter stays stopped.
			if emit.Next() {
				t.Fatalf("emitter should not resume after an error")
			}
		})
	}
}

func TestReadCSV(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
		want []Row
		err  error
	}{
		{
			name: "ordinal-binding",
			data: `Discriminator Input,FPGA Signal Name,Package Pin
7,SIG_A,A1
3,SIG_B,B2
`,
			want: []Row{{"SIG_A", "A1"}, {"SIG_B", "B2"}},
		},
		{
			name: "reordered-columns",
			data: "Package Pin,FPGA Signal Name\nA1,SIG_A\n\nB2,SIG_B\n",
			want: []Row{{"SIG_A", "A1"}, {"SIG_B", "B2"}},
		},
		{
			name: "byte-order-mark",
			data: "\ufeffFPGA Signal Name,Package Pin\nSIG_A,A1\n",
			want: []Row{{"SIG_A", "A1"}},
		},
		{
			name: "short-row",
			data: "FPGA Signal Name,Package Pin\nSIG_A\n",
			want: []Row{{"SIG_A", ""}},
		},
		{
			name: "header-only",
			data: "FPGA Signal Name,Package Pin\n",
		},
		{
			name: "empty",
			data: "",
			err:  fmt.Errorf("xdc: empty pin mapping table"),
		},
		{
			name: "missing-pin-column",
			data: "FPGA Signal Name,Pin\nSIG_A,A1\n",
			err:  fmt.Errorf(`xdc: could not find column "Package Pin" in header ["FPGA Signal Name" "Pin"]`),
		},
		{
			name: "missing-signal-column",
			data: "Signal,Package Pin\nSIG_A,A1\n",
			err:  fmt.Errorf(`xdc: could not find column "FPGA Signal Name" in header ["Signal" "Package Pin"]`),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := ReadCSV(strings.NewReader(tc.data))
			switch {
			case err != nil && tc.err != nil:
				if got, want := err.Error(), tc.err.Error(); got != want {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
				}
				return
			case err != nil && tc.err == nil:
				t.Fatalf("could not read table: %+v", err)
			case err == nil && tc.err != nil:
				t.Fatalf("expected an error: %v", tc.err)
			}
			if !reflect.DeepEqual(rows, tc.want) {
				t.Fatalf("invalid rows:\ngot= %q\nwant=%q", rows, tc.want)
			}
		})
	}
}

func TestWrite(t *testing.T) {
	rows, err := ReadFile("testdata/pins.csv")
	if err != nil {
		t.Fatalf("could not read pin table: %+v", err)
	}

	o := new(strings.Builder)
	err = Write(o, rows, DefaultIOStandard)
	if err != nil {
		t.Fatalf("could not write constraints: %+v", err)
	}

	want, err := os.ReadFile("testdata/pins.xdc")
	if err != nil {
		t.Fatalf("could not read reference file: %+v", err)
	}

	if got, want := o.String(), string(want); got != want {
		t.Fatalf("invalid constraints:\ngot:\n%s\nwant:\n%s\n", got, want)
	}

	err = Write(new(strings.Builder), []Row{{"S0", "A1"}, {"S1", ""}}, DefaultIOStandard)
	var merr *MissingFieldError
	if !errors.As(err, &merr) {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := merr.Error(), `xdc: row 1: missing "Package Pin"`; got != want {
		t.Fatalf("invalid error message: got=%q, want=%q", got, want)
	}
}
