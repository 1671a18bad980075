// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
)

// mem is an in-memory stand-in for a mapped region.
type mem struct {
	buf    []byte
	closed int
}

func newMem(size int) *mem { return &mem{buf: make([]byte, size)} }

func (m *mem) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *mem) WriteAt(p []byte, off int64) (int, error) {
	n := copy(m.buf[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

func (m *mem) Close() error {
	m.closed++
	return nil
}

func TestWordHex(t *testing.T) {
	for _, tc := range []struct {
		word Word
		want string
	}{
		{
			word: Word{},
			want: "0x0000000000000000",
		},
		{
			word: Word{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			want: "0x0807060504030201",
		},
		{
			word: WordFrom(0xcafe),
			want: "0x000000000000cafe",
		},
		{
			word: WordFrom(0xdeadbeef00c0ffee),
			want: "0xdeadbeef00c0ffee",
		},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got, want := tc.word.Hex(), tc.want; got != want {
				t.Fatalf("invalid display: got=%q, want=%q", got, want)
			}
			if got, want := tc.word.String(), tc.want; got != want {
				t.Fatalf("invalid stringer: got=%q, want=%q", got, want)
			}
			if got, want := fmt.Sprintf("0x%016x", tc.word.Uint64()), tc.want; got != want {
				t.Fatalf("invalid value: got=%q, want=%q", got, want)
			}
		})
	}
}

func TestScanZeroes(t *testing.T) {
	win := NewWindow("bram", newMem(64), 64)
	defer win.Close()

	for i := 0; i < win.Words(); i++ {
		err := win.WriteWord(int64(i)*WordSize, Word{})
		if err != nil {
			t.Fatalf("could not clear word %d: %+v", i, err)
		}
	}

	sc := win.Scan(8)
	n := 0
	for sc.Next() {
		if got, want := sc.Index(), n; got != want {
			t.Fatalf("invalid index: got=%d, want=%d", got, want)
		}
		if got, want := sc.Offset(), int64(8*n); got != want {
			t.Fatalf("invalid offset: got=%d, want=%d", got, want)
		}
		if got, want := sc.Text(), "0x0000000000000000"; got != want {
			t.Fatalf("invalid word %d: got=%q, want=%q", n, got, want)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("could not scan window: %+v", err)
	}
	if n != 8 {
		t.Fatalf("invalid number of words: got=%d, want=8", n)
	}
}

func TestScanPastEnd(t *testing.T) {
	win := NewWindow("bram", newMem(64), 64)
	defer win.Close()

	sc := win.Scan(9)
	n := 0
	for sc.Next() {
		n++
	}
	if n != 8 {
		t.Fatalf("invalid number of words: got=%d, want=8", n)
	}

	var oor *OutOfRangeError
	if !errors.As(sc.Err(), &oor) {
		t.Fatalf("invalid error: %+v", sc.Err())
	}
	if got, want := oor.Offset, int64(64); got != want {
		t.Fatalf("invalid offset: got=%d, want=%d", got, want)
	}

	sc = win.Scan(0)
	if sc.Next() {
		t.Fatalf("empty scan should not yield words")
	}
	if sc.Err() == nil {
		t.Fatalf("expected an error for an empty scan")
	}
}

func TestWindowRoundTrip(t *testing.T) {
	m := newMem(64)
	win := NewWindow("bram", m, 64)
	defer win.Close()

	want := Word{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	for _, off := range []int64{0, 8, 32, 56} {
		t.Run(fmt.Sprintf("off=%d", off), func(t *testing.T) {
			err := win.WriteWord(off, want)
			if err != nil {
				t.Fatalf("could not write word: %+v", err)
			}
			got, err := win.ReadWord(off)
			if err != nil {
				t.Fatalf("could not read word: %+v", err)
			}
			if got != want {
				t.Fatalf("invalid round-trip: got=%v, want=%v", got[:], want[:])
			}
			if got, want := m.buf[off:off+8], want[:]; string(got) != string(want) {
				t.Fatalf("write is not verbatim: got=%v, want=%v", got, want)
			}

			// idempotence
			err = win.WriteWord(off, want)
			if err != nil {
				t.Fatalf("could not write word twice: %+v", err)
			}
			again, err := win.ReadWord(off)
			if err != nil {
				t.Fatalf("could not read word: %+v", err)
			}
			if again != got {
				t.Fatalf("write is not idempotent: got=%v, want=%v", again[:], got[:])
			}
		})
	}

	err := win.WriteUint64(16, 0x0102030405060708)
	if err != nil {
		t.Fatalf("could not write value: %+v", err)
	}
	w, err := win.ReadWord(16)
	if err != nil {
		t.Fatalf("could not read value: %+v", err)
	}
	if got, want := w.Uint64(), uint64(0x0102030405060708); got != want {
		t.Fatalf("invalid value: got=0x%x, want=0x%x", got, want)
	}
	if got, want := w.Hex(), "0x0102030405060708"; got != want {
		t.Fatalf("invalid display: got=%q, want=%q", got, want)
	}
}

func TestWindowRegisters(t *testing.T) {
	m := newMem(16)
	win := NewWindow("gpio", m, 16)
	defer win.Close()

	err := win.WriteUint32(4, 0x1)
	if err != nil {
		t.Fatalf("could not write register: %+v", err)
	}
	v, err := win.ReadUint32(4)
	if err != nil {
		t.Fatalf("could not read register: %+v", err)
	}
	if v != 1 {
		t.Fatalf("invalid register value: got=0x%x, want=0x1", v)
	}
	if got, want := m.buf[4:8], []byte{1, 0, 0, 0}; string(got) != string(want) {
		t.Fatalf("invalid register layout: got=%v, want=%v", got, want)
	}

	_, err = win.ReadUint32(2)
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := err.Error(), `uio: offset 0x2 not aligned on 4 bytes (window="gpio")`; got != want {
		t.Fatalf("invalid error message:\ngot= %s\nwant=%s", got, want)
	}
}

func TestWindowBoundaries(t *testing.T) {
	const size = 64
	win := NewWindow("bram", newMem(size), size)
	defer win.Close()

	for _, tc := range []struct {
		off int64
		ok  bool
	}{
		{off: 0, ok: true},
		{off: size - 8, ok: true},
		{off: size, ok: false},
		{off: size + 8, ok: false},
		{off: -8, ok: false},
		{off: 3, ok: false},
		{off: math.MaxInt64 - 7, ok: false},
	} {
		t.Run(fmt.Sprintf("off=%d", tc.off), func(t *testing.T) {
			errW := win.WriteWord(tc.off, WordFrom(42))
			_, errR := win.ReadWord(tc.off)
			for _, err := range []error{errW, errR} {
				switch {
				case tc.ok && err != nil:
					t.Fatalf("unexpected error: %+v", err)
				case !tc.ok:
					var oor *OutOfRangeError
					if !errors.As(err, &oor) {
						t.Fatalf("invalid error: %+v", err)
					}
				}
			}
		})
	}

	_, err := win.ReadWord(size)
	if got, want := err.Error(), `uio: offset 0x40 out of range [0, 0x40) for 8-byte access (window="bram")`; got != want {
		t.Fatalf("invalid error message:\ngot= %s\nwant=%s", got, want)
	}
}

func TestWindowClose(t *testing.T) {
	m := newMem(64)
	win := NewWindow("bram", m, 64)

	err := win.Close()
	if err != nil {
		t.Fatalf("could not close window: %+v", err)
	}
	err = win.Close()
	if err != nil {
		t.Fatalf("could not close window twice: %+v", err)
	}
	if got, want := m.closed, 1; got != want {
		t.Fatalf("invalid number of releases: got=%d, want=%d", got, want)
	}

	var nop *NotOpenError

	_, err = win.ReadWord(0)
	if !errors.As(err, &nop) {
		t.Fatalf("invalid read error: %+v", err)
	}

	err = win.WriteWord(0, Word{})
	if !errors.As(err, &nop) {
		t.Fatalf("invalid write error: %+v", err)
	}

	sc := win.Scan(1)
	if sc.Next() {
		t.Fatalf("scan of a closed window should not yield words")
	}
	if !errors.As(sc.Err(), &nop) {
		t.Fatalf("invalid scan error: %+v", sc.Err())
	}

	var nilw *Window
	_, err = nilw.ReadWord(0)
	if !errors.As(err, &nop) {
		t.Fatalf("invalid nil-window error: %+v", err)
	}
}
