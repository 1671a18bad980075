// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uio

import "fmt"

// OutOfRangeError is returned when an access falls outside of a window
// or is not aligned on the access width.
type OutOfRangeError struct {
	Window string
	Offset int64
	Width  int64 // access width in bytes
	Size   int64 // window size in bytes
}

func (e *OutOfRangeError) Error() string {
	if e.Offset >= 0 && e.Offset%e.Width != 0 {
		return fmt.Sprintf(
			"uio: offset 0x%x not aligned on %d bytes (window=%q)",
			e.Offset, e.Width, e.Window,
		)
	}
	return fmt.Sprintf(
		"uio: offset 0x%x out of range [0, 0x%x) for %d-byte access (window=%q)",
		e.Offset, e.Size, e.Width, e.Window,
	)
}

// NotOpenError is returned when operating on a closed window or device.
type NotOpenError struct {
	Name string
}

func (e *NotOpenError) Error() string {
	return fmt.Sprintf("uio: %q is not open", e.Name)
}

// DeviceOpenError is returned when a UIO device could not be opened,
// inspected or mapped.
type DeviceOpenError struct {
	Path string
	Err  error
}

func (e *DeviceOpenError) Error() string {
	return fmt.Sprintf("uio: could not open %q: %v", e.Path, e.Err)
}

func (e *DeviceOpenError) Unwrap() error { return e.Err }
