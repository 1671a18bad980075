// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hits

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"testing"
)

func TestHit(t *testing.T) {
	for _, tc := range []struct {
		word uint64
		want Hit
		str  string
	}{
		{
			word: 0,
			want: Hit{},
			str:  "channel=00 coarse=        0 fine=00",
		},
		{
			word: 63,
			want: Hit{Channel: 63},
			str:  "channel=63 coarse=        0 fine=00",
		},
		{
			word: 31 << 6,
			want: Hit{Fine: 31},
			str:  "channel=00 coarse=        0 fine=31",
		},
		{
			word: 1<<11 | 3<<6 | 5,
			want: Hit{Channel: 5, Fine: 3, Coarse: 1},
			str:  "channel=05 coarse=        1 fine=03",
		},
		{
			word: (1<<28 - 1) << 11,
			want: Hit{Coarse: 1<<28 - 1},
			str:  "channel=00 coarse=268435455 fine=00",
		},
	} {
		t.Run(fmt.Sprintf("0x%x", tc.word), func(t *testing.T) {
			got := Decode(tc.word)
			if got != tc.want {
				t.Fatalf("invalid hit: got=%+v, want=%+v", got, tc.want)
			}
			if got, want := got.Encode(), tc.word; got != want {
				t.Fatalf("invalid word: got=0x%x, want=0x%x", got, want)
			}
			if got, want := got.String(), tc.str; got != want {
				t.Fatalf("invalid string:\ngot= %q\nwant=%q", got, want)
			}
		})
	}
}

func TestHitUnusedBits(t *testing.T) {
	// bits above the coarse time are ignored.
	w := uint64(0xff)<<39 | 1<<11 | 2<<6 | 3
	h := Decode(w)
	if got, want := h, (Hit{Channel: 3, Fine: 2, Coarse: 1}); got != want {
		t.Fatalf("invalid hit: got=%+v, want=%+v", got, want)
	}
	if got, want := h.Encode(), w&(1<<39-1); got != want {
		t.Fatalf("invalid word: got=0x%x, want=0x%x", got, want)
	}
	if got, want := h.Time(), uint64(1*NumFine+2); got != want {
		t.Fatalf("invalid time: got=%d, want=%d", got, want)
	}
}

func TestCodec(t *testing.T) {
	frames := []Frame{
		{Trigger: 1, BRAM: 1, Words: []uint64{1<<11 | 5, 2<<11 | 1<<6 | 63}},
		{Trigger: 2, BRAM: 2},
		{Trigger: 3, BRAM: 1, Words: []uint64{0xffffffffffffffff, 0, 42}},
	}

	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	for i := range frames {
		err := enc.Encode(&frames[i])
		if err != nil {
			t.Fatalf("could not encode frame %d: %+v", i, err)
		}
	}

	if got, want := buf.Len(), 3*16+8*5; got != want {
		t.Fatalf("invalid stream size: got=%d, want=%d", got, want)
	}
	if got, want := buf.Bytes()[:8], []byte("HDR\x00\x18\x00\x00\x00"); !bytes.Equal(got, want) {
		t.Fatalf("invalid message header: got=%q, want=%q", got, want)
	}

	dec := NewDecoder(buf)
	for i := range frames {
		var f Frame
		err := dec.Decode(&f)
		if err != nil {
			t.Fatalf("could not decode frame %d: %+v", i, err)
		}
		if !reflect.DeepEqual(f, frames[i]) {
			t.Fatalf("invalid frame %d:\ngot= %+v\nwant=%+v", i, f, frames[i])
		}
	}

	var f Frame
	err := dec.Decode(&f)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %+v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	full := new(bytes.Buffer)
	err := NewEncoder(full).Encode(&Frame{Trigger: 1, BRAM: 2, Words: []uint64{1, 2}})
	if err != nil {
		t.Fatalf("could not encode frame: %+v", err)
	}
	raw := full.Bytes()

	for _, tc := range []struct {
		name string
		raw  []byte
		is   error
		err  string
	}{
		{
			name: "short-header",
			raw:  raw[:5],
			is:   io.ErrUnexpectedEOF,
		},
		{
			name: "short-body",
			raw:  raw[:len(raw)-1],
			is:   io.ErrUnexpectedEOF,
		},
		{
			name: "bad-magic",
			raw:  append([]byte("HDX\x00"), raw[4:]...),
			err:  `hits: invalid frame header "HDX\x00"`,
		},
		{
			name: "bad-size",
			raw:  []byte("HDR\x00\x0c\x00\x00\x00"),
			err:  "hits: invalid frame size 12",
		},
		{
			name: "too-small",
			raw:  []byte("HDR\x00\x04\x00\x00\x00"),
			err:  "hits: invalid frame size 4",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var f Frame
			err := NewDecoder(bytes.NewReader(tc.raw)).Decode(&f)
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.is != nil && !errors.Is(err, tc.is) {
				t.Fatalf("invalid error: got=%+v, want=%v", err, tc.is)
			}
			if tc.err != "" && err.Error() != tc.err {
				t.Fatalf("invalid error:\ngot= %v\nwant=%v", err, tc.err)
			}
		})
	}
}

func TestFrameHits(t *testing.T) {
	f := Frame{Words: []uint64{1<<11 | 2<<6 | 3, 4}}
	want := []Hit{
		{Channel: 3, Fine: 2, Coarse: 1},
		{Channel: 4},
	}
	if got := f.Hits(); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid hits: got=%+v, want=%+v", got, want)
	}
}

func TestACK(t *testing.T) {
	p1, p2 := net.Pipe()
	defer p1.Close()

	go func() {
		defer p2.Close()
		_ = WriteACK(p2)
		_, _ = p2.Write([]byte("ACQ\x00"))
	}()

	err := ReadACK(p1)
	if err != nil {
		t.Fatalf("could not read ACK: %+v", err)
	}

	err = ReadACK(p1)
	if got, want := fmt.Sprint(err), `hits: invalid ACK "ACQ\x00"`; got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}

	err = ReadACK(p1)
	if got, want := fmt.Sprint(err), "hits: could not read ACK: EOF"; got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}
}
