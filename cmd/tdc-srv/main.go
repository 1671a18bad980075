// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-srv receives the readout frames sent by tdc-daemon and
// stores them into a file.
package main // import "github.com/go-lpc/tdc/cmd/tdc-srv"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/go-lpc/tdc/hits"
)

func main() {
	log.SetPrefix("tdc-srv: ")
	log.SetFlags(0)

	var (
		addr  = flag.String("addr", ":8000", "[ip]:[port] to listen on")
		oname = flag.String("o", "tdc.raw", "path to the output file")
	)

	flag.Parse()

	run(*addr, *oname)
}

func run(addr, oname string) {
	f, err := os.OpenFile(oname, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("could not open output file %q: %+v", oname, err)
	}
	defer f.Close()

	l, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("could not listen on %q: %+v", addr, err)
	}
	defer l.Close()

	log.Printf("listening on %q...", l.Addr())
	srv := newServer(f)
	err = srv.serve(l)
	if err != nil {
		log.Fatalf("could not serve: %+v", err)
	}
}

type server struct {
	msg *log.Logger

	mu  sync.Mutex
	w   *bufio.Writer
	enc *hits.Encoder
	n   int // number of frames stored
}

func newServer(w io.Writer) *server {
	bw := bufio.NewWriter(w)
	return &server{
		msg: log.Default(),
		w:   bw,
		enc: hits.NewEncoder(bw),
	}
}

func (srv *server) serve(l net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("could not accept connection: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			srv.handle(conn)
		}()
	}
}

func (srv *server) handle(conn net.Conn) {
	defer conn.Close()

	srv.msg.Printf("serving %q...", conn.RemoteAddr().String())
	defer srv.msg.Printf("serving %q... [done]", conn.RemoteAddr().String())

	dec := hits.NewDecoder(conn)
	for {
		var f hits.Frame
		err := dec.Decode(&f)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				srv.msg.Printf("could not decode frame: %+v", err)
			}
			return
		}

		err = srv.store(&f)
		if err != nil {
			srv.msg.Printf("could not store frame (trigger=%d): %+v", f.Trigger, err)
			return
		}

		err = hits.WriteACK(conn)
		if err != nil {
			srv.msg.Printf("could not send ACK: %+v", err)
			return
		}
	}
}

func (srv *server) store(f *hits.Frame) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	err := srv.enc.Encode(f)
	if err != nil {
		return err
	}
	srv.n++

	return srv.w.Flush()
}
