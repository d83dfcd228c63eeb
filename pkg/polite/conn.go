// Package polite moves data between embedded SQL stores and Arrow-backed
// frames: run statements, materialize queries as frames, and persist frames
// as tables.
package polite

import (
	"context"
	"database/sql"
	"log/slog"

	"polite/internal/bridge"
	"polite/internal/db"
	"polite/internal/sqltext"
	"polite/internal/transport"
)

// MemoryPath is the path of an ephemeral in-memory store.
const MemoryPath = db.MemoryPath

// Conn is a handle to one store. It is backed by a single database
// connection, so an in-memory store lives until Close. A Conn must not be
// used from several goroutines at once.
type Conn struct {
	db     *sql.DB
	source bridge.SourceConn
	logger *slog.Logger
}

// Connect opens the store at path. An empty path or ":memory:" opens an
// in-memory SQLite store; "sqlite://" and "duckdb://" prefixes select the
// driver explicitly.
func Connect(ctx context.Context, path string, opts ...Option) (*Conn, error) {
	o := connOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}

	display := displayPath(path)
	source, err := bridge.ParseSourceConn(path)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Path: display, Err: err}
	}
	pool, err := db.Open(ctx, source.Target, db.ModeWrite, 1)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Path: display, Err: err}
	}
	o.logger.DebugContext(ctx, "connected", "target", source.String())
	return &Conn{db: pool, source: source, logger: o.logger}, nil
}

// Path returns the store path, ":memory:" for in-memory stores.
func (c *Conn) Path() string { return c.source.Target.Path }

// Driver returns the database/sql driver name of the store.
func (c *Conn) Driver() string { return c.source.Target.Driver }

// Types returns the type system used to map the store's columns.
func (c *Conn) Types() transport.TypeSystem { return c.source.Types }

// DB exposes the underlying pool.
func (c *Conn) DB() *sql.DB { return c.db }

// Close releases the connection. In-memory stores are discarded.
func (c *Conn) Close() error { return c.db.Close() }

// Execute runs a single statement without parameters. It returns the number
// of rows affected by INSERT, UPDATE, DELETE and REPLACE statements and 0 for
// anything else.
func Execute(ctx context.Context, conn *Conn, query string) (int64, error) {
	res, err := conn.db.ExecContext(ctx, query)
	if err != nil {
		return 0, &Error{Kind: KindExec, Path: conn.Path(), SQL: query, Err: err}
	}
	// The driver's change counter is stale after DDL, so only DML reports it.
	if !sqltext.Classify(query).IsDML() {
		conn.logger.DebugContext(ctx, "executed", "sql", query)
		return 0, nil
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &Error{Kind: KindExec, Path: conn.Path(), SQL: query, Err: err}
	}
	conn.logger.DebugContext(ctx, "executed", "sql", query, "rows", n)
	return n, nil
}
