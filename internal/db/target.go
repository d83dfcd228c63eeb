package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"
)

// MemoryPath is the sentinel path of an ephemeral in-memory store.
const MemoryPath = ":memory:"

const (
	schemeSQLite = "sqlite://"
	schemeDuckDB = "duckdb://"
)

// Target identifies a store: a driver plus a path.
type Target struct {
	Driver string
	Path   string
}

// ParseTarget parses "sqlite://path", "duckdb://path" or a bare path (SQLite).
// An empty path selects an in-memory store.
func ParseTarget(s string) (Target, error) {
	var t Target
	switch {
	case strings.HasPrefix(s, schemeSQLite):
		t = Target{Driver: DriverSQLite, Path: strings.TrimPrefix(s, schemeSQLite)}
	case strings.HasPrefix(s, schemeDuckDB):
		t = Target{Driver: DriverDuckDB, Path: strings.TrimPrefix(s, schemeDuckDB)}
	case strings.Contains(s, "://"):
		scheme, _, _ := strings.Cut(s, "://")
		return Target{}, fmt.Errorf("unsupported scheme %q", scheme)
	default:
		t = Target{Driver: DriverSQLite, Path: s}
	}
	if t.Path == "" {
		t.Path = MemoryPath
	}
	return t, nil
}

// InMemory reports whether the target is an ephemeral store.
func (t Target) InMemory() bool { return IsMemoryPath(t.Path) }

// String renders the target as a descriptor ParseTarget accepts.
func (t Target) String() string {
	if t.Driver == DriverDuckDB {
		return schemeDuckDB + t.Path
	}
	return schemeSQLite + t.Path
}

// IsMemoryPath reports whether path names an in-memory store.
func IsMemoryPath(path string) bool {
	return path == "" || path == MemoryPath ||
		strings.HasPrefix(path, "file::memory:") ||
		strings.Contains(path, "mode=memory")
}

// Open opens a pool for t. See OpenSQLite for mode and maxOpen; DuckDB
// targets always get a single-connection pool.
func Open(ctx context.Context, t Target, mode string, maxOpen int) (*sql.DB, error) {
	switch t.Driver {
	case DriverSQLite:
		return OpenSQLite(ctx, t.Path, mode, maxOpen)
	case DriverDuckDB:
		return OpenDuckDB(ctx, t.Path)
	default:
		return nil, fmt.Errorf("unsupported driver %q", t.Driver)
	}
}
