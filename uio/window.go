// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uio

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
)

// WordSize is the width in bytes of a BRAM data word.
const WordSize = 8

// ReadWriterAt is the byte-addressed access a window is built upon.
type ReadWriterAt interface {
	io.ReaderAt
	io.WriterAt
}

// Word is a raw 64-bit word, in memory order.
type Word [WordSize]byte

// WordFrom returns the memory representation of v.
func WordFrom(v uint64) Word {
	var w Word
	binary.LittleEndian.PutUint64(w[:], v)
	return w
}

// Uint64 returns the value of the word, least significant byte first
// in memory.
func (w Word) Uint64() uint64 {
	return binary.LittleEndian.Uint64(w[:])
}

// Hex returns the display form of the word: its value re-encoded most
// significant byte first, so hex dumps read like the number the
// hardware wrote. This is a display convention; it says nothing about
// the byte order of the registers on the bus.
func (w Word) Hex() string {
	var be [WordSize]byte
	binary.BigEndian.PutUint64(be[:], w.Uint64())
	return "0x" + hex.EncodeToString(be[:])
}

func (w Word) String() string { return w.Hex() }

// Window is a fixed-size memory region, typically a mapped UIO region
// backed by an AXI BRAM controller or an AXI GPIO block.
//
// A Window has a single owner. Every access takes an explicit byte offset.
type Window struct {
	name string
	size int64
	rw   ReadWriterAt
	rel  []io.Closer // released in reverse order by Close
}

// NewWindow returns a window of size bytes accessed through rw.
// If rw implements io.Closer, it is closed with the window.
func NewWindow(name string, rw ReadWriterAt, size int64) *Window {
	win := &Window{
		name: name,
		size: size,
		rw:   rw,
	}
	if c, ok := rw.(io.Closer); ok {
		win.rel = append(win.rel, c)
	}
	return win
}

// Name returns the name of the window.
func (win *Window) Name() string { return win.name }

// Size returns the size in bytes of the window.
func (win *Window) Size() int64 { return win.size }

// Words returns the number of data words held by the window.
func (win *Window) Words() int { return int(win.size / WordSize) }

func (win *Window) check(off, width int64) error {
	if win == nil {
		return &NotOpenError{Name: "<nil>"}
	}
	if win.rw == nil {
		return &NotOpenError{Name: win.name}
	}
	if off < 0 || off%width != 0 || off > win.size-width {
		return &OutOfRangeError{
			Window: win.name,
			Offset: off,
			Width:  width,
			Size:   win.size,
		}
	}
	return nil
}

// ReadWord reads the 64-bit word located at the byte offset off.
func (win *Window) ReadWord(off int64) (Word, error) {
	var w Word
	err := win.check(off, WordSize)
	if err != nil {
		return w, err
	}
	_, err = win.rw.ReadAt(w[:], off)
	if err != nil {
		return w, fmt.Errorf("uio: could not read word at 0x%x from %q: %w", off, win.name, err)
	}
	return w, nil
}

// WriteWord writes w verbatim at the byte offset off.
func (win *Window) WriteWord(off int64, w Word) error {
	err := win.check(off, WordSize)
	if err != nil {
		return err
	}
	_, err = win.rw.WriteAt(w[:], off)
	if err != nil {
		return fmt.Errorf("uio: could not write word at 0x%x to %q: %w", off, win.name, err)
	}
	return nil
}

// WriteUint64 writes the value v at the byte offset off.
func (win *Window) WriteUint64(off int64, v uint64) error {
	return win.WriteWord(off, WordFrom(v))
}

// ReadUint32 reads the 32-bit register located at the byte offset off.
func (win *Window) ReadUint32(off int64) (uint32, error) {
	var buf [4]byte
	err := win.check(off, 4)
	if err != nil {
		return 0, err
	}
	_, err = win.rw.ReadAt(buf[:], off)
	if err != nil {
		return 0, fmt.Errorf("uio: could not read register at 0x%x from %q: %w", off, win.name, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteUint32 writes v to the 32-bit register located at the byte offset off.
func (win *Window) WriteUint32(off int64, v uint32) error {
	var buf [4]byte
	err := win.check(off, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err = win.rw.WriteAt(buf[:], off)
	if err != nil {
		return fmt.Errorf("uio: could not write register at 0x%x to %q: %w", off, win.name, err)
	}
	return nil
}

// Scan returns a scanner over the first n words of the window.
func (win *Window) Scan(n int) *Scanner {
	sc := &Scanner{win: win, n: n}
	if n <= 0 {
		sc.err = fmt.Errorf("uio: invalid word count %d", n)
	}
	return sc
}

// Close releases the window. Closing a closed window is a no-op.
func (win *Window) Close() error {
	if win == nil || win.rw == nil {
		return nil
	}
	win.rw = nil

	var err error
	for i := len(win.rel) - 1; i >= 0; i-- {
		e := win.rel[i].Close()
		if e != nil && err == nil {
			err = fmt.Errorf("uio: could not close %q: %w", win.name, e)
		}
	}
	win.rel = nil
	return err
}

// Scanner iterates over consecutive words of a window.
//
//	sc := win.Scan(n)
//	for sc.Next() {
//		fmt.Printf("Addr %d: %s\n", sc.Index(), sc.Text())
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	win  *Window
	n    int
	i    int
	word Word
	err  error
}

// Next reads the next word. It returns false when n words have been
// read or an error occurred.
func (sc *Scanner) Next() bool {
	if sc.err != nil || sc.i >= sc.n {
		return false
	}
	sc.word, sc.err = sc.win.ReadWord(int64(sc.i) * WordSize)
	if sc.err != nil {
		return false
	}
	sc.i++
	return true
}

// Index returns the address index of the current word.
func (sc *Scanner) Index() int { return sc.i - 1 }

// Offset returns the byte offset of the current word.
func (sc *Scanner) Offset() int64 { return int64(sc.Index()) * WordSize }

// Word returns the current word.
func (sc *Scanner) Word() Word { return sc.word }

// Text returns the display form of the current word.
func (sc *Scanner) Text() string { return sc.word.Hex() }

// Err returns the first error encountered while scanning.
func (sc *Scanner) Err() error { return sc.err }
