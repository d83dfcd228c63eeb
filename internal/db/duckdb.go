package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
)

// OpenDuckDB opens a single-connection DuckDB pool for path, or an in-memory
// database when path is empty or ":memory:".
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path
	if IsMemoryPath(path) {
		dsn = ""
	}

	db, err := sql.Open(DriverDuckDB, dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}
