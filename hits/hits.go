// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hits describes the TDC hit words read out of the block RAMs,
// and the format of the readout frames sent to the data sink.
//
// A hit word packs, from the least significant bit:
//
//	bits  0- 5: channel (tdc_hit index)
//	bits  6-10: fine time
//	bits 11-38: coarse time
package hits // import "github.com/go-lpc/tdc/hits"

import "fmt"

const (
	// NumChannels is the number of discriminator inputs of the TDC.
	NumChannels = 64

	// NumFine is the number of fine time bins of a coarse clock period.
	NumFine = 32

	chanBits   = 6
	fineBits   = 5
	coarseBits = 28

	fineShift   = chanBits
	coarseShift = chanBits + fineBits

	chanMask   = 1<<chanBits - 1
	fineMask   = 1<<fineBits - 1
	coarseMask = 1<<coarseBits - 1
)

// Hit is a decoded TDC hit.
type Hit struct {
	Channel uint8
	Fine    uint8
	Coarse  uint32
}

// Decode decodes a hit word.
func Decode(w uint64) Hit {
	return Hit{
		Channel: uint8(w & chanMask),
		Fine:    uint8((w >> fineShift) & fineMask),
		Coarse:  uint32((w >> coarseShift) & coarseMask),
	}
}

// Encode packs the hit into a word.
// Fields are truncated to their width.
func (h Hit) Encode() uint64 {
	return uint64(h.Channel)&chanMask |
		(uint64(h.Fine)&fineMask)<<fineShift |
		(uint64(h.Coarse)&coarseMask)<<coarseShift
}

// Time returns the hit time in units of fine bins.
func (h Hit) Time() uint64 {
	return uint64(h.Coarse)*NumFine + uint64(h.Fine)
}

func (h Hit) String() string {
	return fmt.Sprintf("channel=%02d coarse=%9d fine=%02d", h.Channel, h.Coarse, h.Fine)
}
