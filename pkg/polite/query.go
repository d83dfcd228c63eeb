package polite

import (
	"context"
	"database/sql"
	"log/slog"

	"polite/internal/bridge"
	"polite/internal/db"
	"polite/pkg/frame"
)

// ToFrame runs query on conn and materializes the result. Columns keep the
// result set's order and map their declared types through the store's type
// system; columns without a declared type, such as expressions, become text.
// Values that do not fit their column become nulls.
//
// The query is prepared first, so syntax errors and missing tables or
// columns fail with KindQuery before any rows are read.
func ToFrame(ctx context.Context, conn *Conn, query string, opts ...QueryOption) (*frame.Frame, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	if err := prepare(ctx, conn.db.PrepareContext, query); err != nil {
		return nil, &Error{Kind: KindQuery, Path: conn.Path(), SQL: query, Err: err}
	}

	src := bridge.NewSource(conn.db, conn.source, 1)
	if o.parallelism > 1 && o.partitions > 1 &&
		conn.Driver() == db.DriverSQLite && !conn.source.Target.InMemory() {
		readSrc, err := bridge.OpenSource(ctx, conn.source, o.parallelism)
		if err != nil {
			return nil, &Error{Kind: KindBridge, Path: conn.Path(), SQL: query, Err: err}
		}
		defer readSrc.Close() //nolint:errcheck
		src = readSrc
	}
	return materialize(ctx, src, conn.Path(), query, o, conn.logger)
}

// QueryPath opens the store named by target ("sqlite://path", "duckdb://path"
// or a bare SQLite path), materializes query and closes the store again.
func QueryPath(ctx context.Context, target, query string, opts ...QueryOption) (*frame.Frame, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := bridge.ParseSourceConn(target)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Path: target, Err: err}
	}
	nconn := o.parallelism
	if nconn <= 0 {
		nconn = 1
	}
	src, err := bridge.OpenSource(ctx, conn, nconn)
	if err != nil {
		return nil, &Error{Kind: KindConnect, Path: conn.Target.Path, Err: err}
	}
	defer src.Close() //nolint:errcheck

	if err := prepare(ctx, src.DB().PrepareContext, query); err != nil {
		return nil, &Error{Kind: KindQuery, Path: conn.Target.Path, SQL: query, Err: err}
	}
	return materialize(ctx, src, conn.Target.Path, query, o, slog.New(slog.DiscardHandler))
}

type prepareFunc func(context.Context, string) (*sql.Stmt, error)

func prepare(ctx context.Context, fn prepareFunc, query string) error {
	stmt, err := fn(ctx, query)
	if err != nil {
		return err
	}
	return stmt.Close()
}

func materialize(ctx context.Context, src *bridge.Source, path, query string, o queryOptions, logger *slog.Logger) (*frame.Frame, error) {
	queries := []string{query}
	if o.partitionOn != "" {
		var err error
		queries, err = bridge.Partition(ctx, src, bridge.PartitionQuery{
			Query:  query,
			Column: o.partitionOn,
			Min:    o.min,
			Max:    o.max,
			Num:    o.partitions,
		})
		if err != nil {
			return nil, &Error{Kind: KindBridge, Path: path, SQL: query, Err: err}
		}
	}

	dst := bridge.NewArrowDestination()
	defer dst.Release()
	if err := bridge.NewDispatcher(src, dst, queries, logger).Run(ctx); err != nil {
		return nil, &Error{Kind: KindBridge, Path: path, SQL: query, Err: err}
	}

	f, err := dst.Frame()
	if err != nil {
		return nil, &Error{Kind: KindConversion, Path: path, SQL: query, Err: err}
	}
	logger.DebugContext(ctx, "materialized", "sql", query, "rows", f.Height(), "columns", f.Width(),
		"partitions", len(queries))
	return f, nil
}
