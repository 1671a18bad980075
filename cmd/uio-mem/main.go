// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command uio-mem is an interactive shell to peek and poke the words of
// a UIO memory region.
//
// Usage: uio-mem [OPTIONS]
//
// Example:
//
//	$> uio-mem -dev 3 -size 65536
//	uio3> r32 0
//	0x0000: 0x00000000
//	uio3> w32 0 1
//	uio3> dump 2
//	Addr 0: 0x0000000000000001
//	Addr 1: 0x0000000000000000
//	uio3> quit
package main // import "github.com/go-lpc/tdc/cmd/uio-mem"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-lpc/tdc/uio"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("uio-mem: ")
	log.SetFlags(0)

	var (
		dev    = flag.String("dev", "3", "UIO id of the memory region")
		size   = flag.Int64("size", 0, "size of the memory region, in bytes (0: size declared in sysfs)")
		devdir = flag.String("devdir", "/dev", "directory holding the UIO device files")
		sysdir = flag.String("sysfs", "/sys/class/uio", "directory holding the UIO sysfs entries")
	)

	flag.Parse()

	win, err := open(*dev, *size, uio.WithDevDir(*devdir), uio.WithSysfsDir(*sysdir))
	if err != nil {
		log.Fatalf("could not open uio%s: %+v", *dev, err)
	}
	defer win.Close()

	err = run(win, "uio"+*dev+"> ")
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func open(id string, size int64, opts ...uio.Option) (*uio.Window, error) {
	if size > 0 {
		return uio.OpenWindow(id, size, opts...)
	}

	dev, err := uio.Open(id, opts...)
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	return dev.Region(0)
}

func run(win *uio.Window, prompt string) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	hname := filepath.Join(os.TempDir(), ".uio-mem.history")
	if f, err := os.Open(hname); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(hname)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	sh := shell{w: os.Stdout, win: win}
	for {
		line, err := term.Prompt(prompt)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return nil
		}
	}
}

var cmds = []string{"r", "w", "r32", "w32", "dump", "help", "quit"}

func complete(line string) []string {
	var out []string
	for _, cmd := range cmds {
		if strings.HasPrefix(cmd, line) {
			out = append(out, cmd)
		}
	}
	return out
}

// shell executes memory commands against a window.
type shell struct {
	w   io.Writer
	win *uio.Window
}

const usage = `commands:
  r    <off>          read the 64-bit word at byte offset off
  w    <off> <value>  write the 64-bit word value at byte offset off
  r32  <off>          read the 32-bit register at byte offset off
  w32  <off> <value>  write the 32-bit register value at byte offset off
  dump <n>            print the first n words
  help                print this help
  quit                leave the shell
`

func (sh shell) exec(line string) (quit bool, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}

	cmd, args := args[0], args[1:]
	switch cmd {
	case "quit", "exit", "q":
		return true, nil

	case "help", "h", "?":
		fmt.Fprint(sh.w, usage)
		return false, nil

	case "r":
		off, err := parseArgs(cmd, args, 1)
		if err != nil {
			return false, err
		}
		w, err := sh.win.ReadWord(int64(off[0]))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.w, "0x%04x: %s\n", off[0], w)

	case "w":
		vs, err := parseArgs(cmd, args, 2)
		if err != nil {
			return false, err
		}
		err = sh.win.WriteUint64(int64(vs[0]), vs[1])
		if err != nil {
			return false, err
		}

	case "r32":
		off, err := parseArgs(cmd, args, 1)
		if err != nil {
			return false, err
		}
		v, err := sh.win.ReadUint32(int64(off[0]))
		if err != nil {
			return false, err
		}
		fmt.Fprintf(sh.w, "0x%04x: 0x%08x\n", off[0], v)

	case "w32":
		vs, err := parseArgs(cmd, args, 2)
		if err != nil {
			return false, err
		}
		if vs[1] > 0xffffffff {
			return false, fmt.Errorf("w32: value 0x%x overflows a 32-bit register", vs[1])
		}
		err = sh.win.WriteUint32(int64(vs[0]), uint32(vs[1]))
		if err != nil {
			return false, err
		}

	case "dump":
		n, err := parseArgs(cmd, args, 1)
		if err != nil {
			return false, err
		}
		scan := sh.win.Scan(int(n[0]))
		for scan.Next() {
			fmt.Fprintf(sh.w, "Addr %d: %s\n", scan.Index(), scan.Text())
		}
		if err := scan.Err(); err != nil {
			return false, err
		}

	default:
		return false, fmt.Errorf("unknown command %q (try 'help')", cmd)
	}

	return false, nil
}

func parseArgs(cmd string, args []string, n int) ([]uint64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s: invalid number of arguments (got=%d, want=%d)", cmd, len(args), n)
	}
	vs := make([]uint64, n)
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: could not parse argument %q: %w", cmd, arg, err)
		}
		vs[i] = v
	}
	return vs, nil
}
