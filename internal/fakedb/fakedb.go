// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb holds types to fake an in-memory DB.
//
// Queries run through the "fakedb" driver return the rows registered
// with Run, and are recorded so tests can inspect the SQL that was sent.
package fakedb // import "github.com/go-lpc/tdc/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"sync"
)

// Query is a statement executed against the fake DB.
type Query struct {
	SQL  string
	Args []driver.Value
}

var state struct {
	mu      sync.Mutex
	rows    Rows
	err     error
	queries []Query
}

// Run executes f with the fake DB answering every query with rows.
// Run returns the error of f and the queries f executed.
func Run(ctx context.Context, rows Rows, f func(ctx context.Context) error) ([]Query, error) {
	return run(ctx, rows, nil, f)
}

// Fail executes f with the fake DB failing every query with qerr.
func Fail(ctx context.Context, qerr error, f func(ctx context.Context) error) ([]Query, error) {
	return run(ctx, Rows{}, qerr, f)
}

func run(ctx context.Context, rows Rows, qerr error, f func(ctx context.Context) error) ([]Query, error) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.rows = rows
	state.err = qerr
	state.queries = nil

	err := f(ctx)
	return state.queries, err
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

// Open returns a new connection to the database.
func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

// Prepare returns a prepared statement, bound to this connection.
func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{query: query}, nil
}

// Close marks this connection as no longer in use.
func (c *Conn) Close() error {
	return nil
}

// Begin starts and returns a new transaction.
func (c *Conn) Begin() (driver.Tx, error) {
	return nil, fmt.Errorf("fakedb: transactions not supported")
}

type Stmt struct {
	query string
}

// Close closes the statement.
func (stmt *Stmt) Close() error {
	return nil
}

// NumInput returns -1: the sql package does not sanity check the
// number of arguments.
func (stmt *Stmt) NumInput() int {
	return -1
}

// Exec executes a query that doesn't return rows.
func (stmt *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return nil, fmt.Errorf("fakedb: exec not supported")
}

// Query executes a query that may return rows, such as a SELECT.
func (stmt *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	state.queries = append(state.queries, Query{
		SQL:  stmt.query,
		Args: append([]driver.Value(nil), args...),
	})
	if state.err != nil {
		return nil, state.err
	}
	rows := state.rows
	return &rows, nil
}

type Rows struct {
	Names  []string
	Values [][]driver.Value
}

// Columns returns the names of the columns.
func (rows *Rows) Columns() []string {
	return rows.Names
}

// Close closes the rows iterator.
func (rows *Rows) Close() error {
	return nil
}

// Next populates the next row of data into dest.
// Next returns io.EOF when there are no more rows.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*Stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
