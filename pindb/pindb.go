// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pindb retrieves the pin mapping tables of the TDC carrier
// boards from the lab database.
//
// The database holds two tables:
//
//	boards(name, iostd)
//	pins(board, position, signal_name, package_pin)
//
// where pins.position is the 0-based discriminator channel of the row.
package pindb // import "github.com/go-lpc/tdc/pindb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-lpc/tdc/xdc"
	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"

	timeout = 5 * time.Second
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve pin mappings from the
// lab database.
type DB struct {
	db   *sql.DB
	name string // name of the database
}

// Open opens a connection to the database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("pindb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("pindb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

// Name returns the name of the database.
func (db *DB) Name() string { return db.name }

// Close closes the connection to the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// Boards returns the names of all the boards described in the database.
func (db *DB) Boards(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.db.QueryContext(ctx, "SELECT name FROM boards ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("pindb: could not query boards: %w", err)
	}
	defer rows.Close()

	var boards []string
	for rows.Next() {
		var name string
		err = rows.Scan(&name)
		if err != nil {
			return nil, fmt.Errorf("pindb: could not scan board name: %w", err)
		}
		boards = append(boards, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pindb: could not scan db for boards: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pindb: context error while retrieving boards: %w", err)
	}

	return boards, nil
}

// PinMap returns the pin mapping table of the named board, ordered by
// discriminator channel.
//
// NULL cells are returned as empty fields, so that generating constraints
// from an incomplete table fails with an xdc.MissingFieldError.
func (db *DB) PinMap(ctx context.Context, board string) ([]xdc.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT signal_name, package_pin FROM pins
WHERE board=?
ORDER BY position
`,
		board,
	)
	if err != nil {
		return nil, fmt.Errorf("pindb: could not query pin map of board %q: %w", board, err)
	}
	defer rows.Close()

	var tbl []xdc.Row
	for rows.Next() {
		var (
			name sql.NullString
			pin  sql.NullString
		)
		err = rows.Scan(&name, &pin)
		if err != nil {
			return nil, fmt.Errorf(
				"pindb: could not scan row %d of pin map of board %q: %w",
				len(tbl), board, err,
			)
		}
		tbl = append(tbl, xdc.Row{Name: name.String, Pin: pin.String})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pindb: could not scan db for pin map of board %q: %w", board, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pindb: context error while retrieving pin map of board %q: %w", board, err)
	}

	if len(tbl) == 0 {
		return nil, fmt.Errorf("pindb: no pin map for board %q", board)
	}

	return tbl, nil
}

// IOStandard returns the I/O standard of the named board.
// An unset I/O standard yields xdc.DefaultIOStandard.
func (db *DB) IOStandard(ctx context.Context, board string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var std sql.NullString
	err := db.db.QueryRowContext(
		ctx,
		"SELECT iostd FROM boards WHERE name=?",
		board,
	).Scan(&std)
	switch {
	case err == sql.ErrNoRows:
		return "", fmt.Errorf("pindb: no board %q", board)
	case err != nil:
		return "", fmt.Errorf("pindb: could not query I/O standard of board %q: %w", board, err)
	}

	if !std.Valid || std.String == "" {
		return xdc.DefaultIOStandard, nil
	}
	return std.String, nil
}
