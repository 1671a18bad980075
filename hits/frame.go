// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hits

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	hdrSize = 8 // "HDR\x00" + u32 body size
	ackSize = 4 // "ACK\x00"

	frameHdrSize = 8 // trigger + bram
	wordSize     = 8

	// MaxWords is the largest number of words a frame may carry.
	MaxWords = 1 << 20
)

const (
	magicHdr = "HDR\x00"
	magicACK = "ACK\x00"
)

// Frame is the content of a block RAM read out after a trigger.
type Frame struct {
	Trigger uint32   // interrupt count of the trigger
	BRAM    uint32   // id of the block RAM the words were read from
	Words   []uint64 // raw hit words
}

// Hits returns the decoded hits of the frame.
func (f *Frame) Hits() []Hit {
	o := make([]Hit, len(f.Words))
	for i, w := range f.Words {
		o[i] = Decode(w)
	}
	return o
}

// Encoder writes frames to an output stream.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder returns a new encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes f as a single message.
func (enc *Encoder) Encode(f *Frame) error {
	size := frameHdrSize + wordSize*len(f.Words)
	if n := hdrSize + size; cap(enc.buf) < n {
		enc.buf = make([]byte, n)
	}
	buf := enc.buf[:hdrSize+size]

	copy(buf[:4], magicHdr)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	binary.LittleEndian.PutUint32(buf[8:12], f.Trigger)
	binary.LittleEndian.PutUint32(buf[12:16], f.BRAM)
	for i, w := range f.Words {
		binary.LittleEndian.PutUint64(buf[16+wordSize*i:], w)
	}

	_, err := enc.w.Write(buf)
	if err != nil {
		return fmt.Errorf("hits: could not write frame (trigger=%d): %w", f.Trigger, err)
	}
	return nil
}

// Decoder reads frames from an input stream.
type Decoder struct {
	r   io.Reader
	hdr [hdrSize]byte
	buf []byte
}

// NewDecoder returns a new decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads the next frame into f.
// Decode returns io.EOF when the stream ends between two frames, and
// io.ErrUnexpectedEOF when it ends in the middle of one.
func (dec *Decoder) Decode(f *Frame) error {
	_, err := io.ReadFull(dec.r, dec.hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("hits: could not read frame header: %w", err)
	}

	if string(dec.hdr[:4]) != magicHdr {
		return fmt.Errorf("hits: invalid frame header %q", dec.hdr[:4])
	}

	size := int(binary.LittleEndian.Uint32(dec.hdr[4:]))
	if size < frameHdrSize || (size-frameHdrSize)%wordSize != 0 {
		return fmt.Errorf("hits: invalid frame size %d", size)
	}
	n := (size - frameHdrSize) / wordSize
	if n > MaxWords {
		return fmt.Errorf("hits: frame too large (words=%d, max=%d)", n, MaxWords)
	}

	if cap(dec.buf) < size {
		dec.buf = make([]byte, size)
	}
	buf := dec.buf[:size]
	_, err = io.ReadFull(dec.r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("hits: could not read frame body: %w", err)
	}

	f.Trigger = binary.LittleEndian.Uint32(buf[0:4])
	f.BRAM = binary.LittleEndian.Uint32(buf[4:8])
	if cap(f.Words) < n {
		f.Words = make([]uint64, n)
	}
	f.Words = f.Words[:n]
	for i := range f.Words {
		f.Words[i] = binary.LittleEndian.Uint64(buf[frameHdrSize+wordSize*i:])
	}

	return nil
}

// WriteACK acknowledges the reception of a frame.
func WriteACK(w io.Writer) error {
	_, err := io.WriteString(w, magicACK)
	if err != nil {
		return fmt.Errorf("hits: could not send ACK: %w", err)
	}
	return nil
}

// ReadACK waits for the acknowledgement of a frame.
func ReadACK(r io.Reader) error {
	var buf [ackSize]byte
	_, err := io.ReadFull(r, buf[:])
	if err != nil {
		return fmt.Errorf("hits: could not read ACK: %w", err)
	}
	if string(buf[:]) != magicACK {
		return fmt.Errorf("hits: invalid ACK %q", buf[:])
	}
	return nil
}
