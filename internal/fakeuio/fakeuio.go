// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakeuio builds fake UIO device trees on a regular filesystem,
// with one plain file per /dev/uioN and the matching sysfs entries.
package fakeuio // import "github.com/go-lpc/tdc/internal/fakeuio"

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Tree is a fake UIO device tree rooted at a directory.
type Tree struct {
	DevDir string // holds the uioN device files
	SysDir string // holds the uioN sysfs entries
}

// New creates an empty tree under dir.
func New(dir string) (*Tree, error) {
	tree := &Tree{
		DevDir: filepath.Join(dir, "dev"),
		SysDir: filepath.Join(dir, "sys", "class", "uio"),
	}
	for _, dir := range []string{tree.DevDir, tree.SysDir} {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("fakeuio: could not create %q: %w", dir, err)
		}
	}
	return tree, nil
}

// Add declares the device uio<id> with the given name and region sizes.
// Region i lives at offset i*pagesize of the device file.
func (tree *Tree) Add(id, name string, sizes ...int64) error {
	dev := "uio" + id
	sys := filepath.Join(tree.SysDir, dev)

	err := os.MkdirAll(sys, 0755)
	if err != nil {
		return fmt.Errorf("fakeuio: could not create sysfs entry for %q: %w", dev, err)
	}
	err = os.WriteFile(filepath.Join(sys, "name"), []byte(name+"\n"), 0644)
	if err != nil {
		return fmt.Errorf("fakeuio: could not write name of %q: %w", dev, err)
	}

	var (
		page = int64(unix.Getpagesize())
		size = int64(0)
	)
	for i, sz := range sizes {
		dir := filepath.Join(sys, "maps", fmt.Sprintf("map%d", i))
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return fmt.Errorf("fakeuio: could not create region %d of %q: %w", i, dev, err)
		}
		err = os.WriteFile(filepath.Join(dir, "size"), []byte(fmt.Sprintf("0x%08x\n", sz)), 0644)
		if err != nil {
			return fmt.Errorf("fakeuio: could not write size of region %d of %q: %w", i, dev, err)
		}
		addr := 0xa0000000 + int64(i)*page
		err = os.WriteFile(filepath.Join(dir, "addr"), []byte(fmt.Sprintf("0x%08x\n", addr)), 0644)
		if err != nil {
			return fmt.Errorf("fakeuio: could not write addr of region %d of %q: %w", i, dev, err)
		}
		size = int64(i)*page + sz
	}

	f, err := os.Create(filepath.Join(tree.DevDir, dev))
	if err != nil {
		return fmt.Errorf("fakeuio: could not create device file %q: %w", dev, err)
	}
	defer f.Close()

	err = f.Truncate(size)
	if err != nil {
		return fmt.Errorf("fakeuio: could not resize device file %q: %w", dev, err)
	}

	return f.Close()
}

// Path returns the path to the device file of uio<id>.
func (tree *Tree) Path(id string) string {
	return filepath.Join(tree.DevDir, "uio"+id)
}

// WriteAt writes p at offset off of the device file of uio<id>.
func (tree *Tree) WriteAt(id string, p []byte, off int64) error {
	f, err := os.OpenFile(tree.Path(id), os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("fakeuio: could not open uio%s: %w", id, err)
	}
	defer f.Close()

	_, err = f.WriteAt(p, off)
	if err != nil {
		return fmt.Errorf("fakeuio: could not write to uio%s: %w", id, err)
	}
	return f.Close()
}

// ReadAt reads n bytes at offset off of the device file of uio<id>.
func (tree *Tree) ReadAt(id string, n int, off int64) ([]byte, error) {
	f, err := os.Open(tree.Path(id))
	if err != nil {
		return nil, fmt.Errorf("fakeuio: could not open uio%s: %w", id, err)
	}
	defer f.Close()

	p := make([]byte, n)
	_, err = f.ReadAt(p, off)
	if err != nil {
		return nil, fmt.Errorf("fakeuio: could not read from uio%s: %w", id, err)
	}
	return p, nil
}
