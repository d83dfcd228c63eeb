// Package db opens the embedded stores polite talks to.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
)

const pingTimeout = 5 * time.Second

// Pool modes.
const (
	// ModeWrite is a single-connection pool. An in-memory store lives exactly
	// as long as that connection, so connections never expire.
	ModeWrite = "write"
	// ModeRead is a pool of maxOpen connections for concurrent readers of a
	// file-backed store.
	ModeRead = "read"
)

// OpenSQLite opens a *sql.DB pool for the given SQLite path or ":memory:".
//
// mode controls pool sizing:
//   - "write": MaxOpenConns=1, MaxIdleConns=1, includes _txlock=immediate
//   - "read":  MaxOpenConns=maxOpen (use 0 for default of 4), no _txlock
//
// File-backed stores use the WAL journal; every store gets busy_timeout=5000ms
// and foreign_keys=on.
func OpenSQLite(ctx context.Context, path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != ModeRead && mode != ModeWrite {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}
	memory := IsMemoryPath(path)
	if memory && mode == ModeRead {
		return nil, fmt.Errorf("read pool needs a file-backed store, got %q", path)
	}

	db, err := sql.Open(DriverSQLite, buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}
	configurePool(db, mode, maxOpen, memory)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}
	return db, nil
}

func configurePool(db *sql.DB, mode string, maxOpen int, memory bool) {
	switch mode {
	case ModeWrite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	case ModeRead:
		if maxOpen <= 0 {
			maxOpen = 4
		}
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	if !memory {
		db.SetConnMaxLifetime(time.Hour)
	}
}

func ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return db.PingContext(ctx)
}

// buildDSN constructs a SQLite DSN, appending to any parameters already on
// the path.
func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_foreign_keys", "on")
	if !IsMemoryPath(path) {
		params.Set("_journal_mode", defaultJournalMode)
		params.Set("_synchronous", defaultSynchronous)
	}
	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + params.Encode()
}
