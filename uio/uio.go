// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uio gives access to the memory regions and interrupts that the
// Linux user-space I/O framework exposes through /dev/uioN.
package uio // import "github.com/go-lpc/tdc/uio"

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-lpc/tdc/internal/mmap"
	"golang.org/x/sys/unix"
)

type config struct {
	devdir string // directory holding the uioN device files
	sysdir string // directory holding the uioN sysfs entries
}

func newConfig() config {
	return config{
		devdir: "/dev",
		sysdir: "/sys/class/uio",
	}
}

// Option configures how UIO devices are located.
type Option func(*config)

// WithDevDir sets the directory holding the uioN device files.
func WithDevDir(dir string) Option {
	return func(cfg *config) {
		cfg.devdir = dir
	}
}

// WithSysfsDir sets the directory holding the uioN sysfs entries.
func WithSysfsDir(dir string) Option {
	return func(cfg *config) {
		cfg.sysdir = dir
	}
}

// Device is an open UIO device.
type Device struct {
	id   string
	path string // device file
	sys  string // sysfs entry

	mu sync.Mutex
	f  *os.File
}

// Open opens the UIO device identified by id (e.g. "1" for /dev/uio1).
func Open(id string, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	name := "uio" + id
	dev := &Device{
		id:   id,
		path: filepath.Join(cfg.devdir, name),
		sys:  filepath.Join(cfg.sysdir, name),
	}

	f, err := os.OpenFile(dev.path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, &DeviceOpenError{Path: dev.path, Err: err}
	}
	dev.f = f

	return dev, nil
}

// OpenWindow opens the UIO device id and maps size bytes of its first
// region. The returned window owns the device.
func OpenWindow(id string, size int64, opts ...Option) (*Window, error) {
	dev, err := Open(id, opts...)
	if err != nil {
		return nil, err
	}

	win, err := dev.Map(size)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	win.rel = append([]io.Closer{dev}, win.rel...)
	return win, nil
}

// ID returns the UIO index of the device.
func (dev *Device) ID() string { return dev.id }

// Path returns the path to the device file.
func (dev *Device) Path() string { return dev.path }

// Name returns the name the kernel driver gave to the device.
func (dev *Device) Name() (string, error) {
	raw, err := os.ReadFile(filepath.Join(dev.sys, "name"))
	if err != nil {
		return "", fmt.Errorf("uio: could not read name of %q: %w", dev.path, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// NumRegions returns the number of memory regions declared in sysfs.
func (dev *Device) NumRegions() int {
	maps, _ := filepath.Glob(filepath.Join(dev.sys, "maps", "map*"))
	return len(maps)
}

// RegionSize returns the size in bytes of the i-th memory region.
func (dev *Device) RegionSize(i int) (int64, error) {
	return dev.sysValue(i, "size")
}

// RegionAddr returns the physical address of the i-th memory region.
func (dev *Device) RegionAddr(i int) (int64, error) {
	return dev.sysValue(i, "addr")
}

func (dev *Device) sysValue(i int, key string) (int64, error) {
	fname := filepath.Join(dev.sys, "maps", "map"+strconv.Itoa(i), key)
	raw, err := os.ReadFile(fname)
	if err != nil {
		return 0, fmt.Errorf("uio: could not read region %d %s of %q: %w", i, key, dev.path, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("uio: could not parse region %d %s of %q: %w", i, key, dev.path, err)
	}
	return int64(v), nil
}

// Region maps the i-th memory region of the device, with the size
// declared in sysfs.
func (dev *Device) Region(i int) (*Window, error) {
	size, err := dev.RegionSize(i)
	if err != nil {
		return nil, &DeviceOpenError{Path: dev.path, Err: err}
	}
	return dev.mapRegion(i, size)
}

// Map maps size bytes of the first memory region of the device.
func (dev *Device) Map(size int64) (*Window, error) {
	return dev.mapRegion(0, size)
}

func (dev *Device) mapRegion(i int, size int64) (*Window, error) {
	f := dev.file()
	if f == nil {
		return nil, &NotOpenError{Name: dev.path}
	}

	// UIO selects the region to map through the mmap offset.
	off := int64(i) * int64(unix.Getpagesize())
	h, err := mmap.Map(f, off, int(size))
	if err != nil {
		return nil, &DeviceOpenError{Path: dev.path, Err: err}
	}

	name := fmt.Sprintf("uio%s/map%d", dev.id, i)
	return NewWindow(name, h, size), nil
}

// Unmask re-enables the interrupt of the device.
func (dev *Device) Unmask() error {
	f := dev.file()
	if f == nil {
		return &NotOpenError{Name: dev.path}
	}

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 1)
	_, err := f.Write(buf[:])
	if err != nil {
		return fmt.Errorf("uio: could not unmask interrupt of %q: %w", dev.path, err)
	}
	return nil
}

// Wait blocks until the device raises an interrupt and returns the
// total number of interrupts seen by the kernel driver.
// Closing the device unblocks Wait.
func (dev *Device) Wait() (uint32, error) {
	f := dev.file()
	if f == nil {
		return 0, &NotOpenError{Name: dev.path}
	}

	var buf [4]byte
	_, err := io.ReadFull(f, buf[:])
	if err != nil {
		return 0, fmt.Errorf("uio: could not wait for interrupt of %q: %w", dev.path, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (dev *Device) file() *os.File {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.f
}

// Close closes the device file. Regions mapped from the device stay
// valid until their window is closed.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.f == nil {
		return nil
	}
	err := dev.f.Close()
	dev.f = nil
	if err != nil {
		return fmt.Errorf("uio: could not close %q: %w", dev.path, err)
	}
	return nil
}

var (
	_ io.Closer = (*Device)(nil)
	_ io.Closer = (*Window)(nil)
)
