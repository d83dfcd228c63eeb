package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite creates a file-backed store in t.TempDir(), runs the seed
// statements on a write pool and registers cleanup. It returns the store path
// and the write pool.
func OpenTestSQLite(t *testing.T, seed ...string) (string, *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")
	writeDB, err := OpenSQLite(context.Background(), path, ModeWrite, 0)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = writeDB.Close() })

	for _, stmt := range seed {
		if _, err := writeDB.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return path, writeDB
}
