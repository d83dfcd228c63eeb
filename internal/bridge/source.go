// Package bridge moves query results from a relational source into Arrow
// records, optionally splitting a query into integer range partitions that
// are read concurrently.
package bridge

import (
	"context"
	"database/sql"
	"fmt"

	"polite/internal/db"
	"polite/internal/transport"
)

// SourceConn is a parsed connection descriptor together with the type system
// used to read from it.
type SourceConn struct {
	Target db.Target
	Types  transport.TypeSystem
}

// ParseSourceConn parses a descriptor such as "sqlite:///tmp/x.db",
// "duckdb://lake.duckdb" or a bare SQLite path.
func ParseSourceConn(descriptor string) (SourceConn, error) {
	t, err := db.ParseTarget(descriptor)
	if err != nil {
		return SourceConn{}, fmt.Errorf("parse source %q: %w", descriptor, err)
	}
	return NewSourceConn(t)
}

// NewSourceConn pairs t with its driver's type system.
func NewSourceConn(t db.Target) (SourceConn, error) {
	ts, err := transport.ForDriver(t.Driver)
	if err != nil {
		return SourceConn{}, err
	}
	return SourceConn{Target: t, Types: ts}, nil
}

// String renders the descriptor.
func (c SourceConn) String() string { return c.Target.String() }

// Source is a pool the dispatcher reads partitions from.
type Source struct {
	db    *sql.DB
	conn  SourceConn
	nconn int
	owned bool
}

// NewSource wraps a pool owned by the caller. nconn bounds how many
// partitions are read at once.
func NewSource(pool *sql.DB, conn SourceConn, nconn int) *Source {
	if nconn <= 0 {
		nconn = 1
	}
	return &Source{db: pool, conn: conn, nconn: nconn}
}

// OpenSource opens a pool for conn. File-backed SQLite stores get a read pool
// of nconn connections; in-memory and DuckDB stores get a single connection,
// since a second pool would not see the same database.
func OpenSource(ctx context.Context, conn SourceConn, nconn int) (*Source, error) {
	mode := db.ModeRead
	if conn.Target.InMemory() || conn.Target.Driver != db.DriverSQLite {
		mode = db.ModeWrite
		nconn = 1
	}
	if nconn <= 0 {
		nconn = 1
	}
	pool, err := db.Open(ctx, conn.Target, mode, nconn)
	if err != nil {
		return nil, err
	}
	s := NewSource(pool, conn, nconn)
	s.owned = true
	return s, nil
}

// DB exposes the underlying pool.
func (s *Source) DB() *sql.DB { return s.db }

// Conn returns the descriptor the source reads from.
func (s *Source) Conn() SourceConn { return s.conn }

// Parallelism returns the number of partitions read at once.
func (s *Source) Parallelism() int { return s.nconn }

// Close closes the pool if the source opened it.
func (s *Source) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
