package polite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"polite/internal/ddl"
	"polite/pkg/frame"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// FromFrame writes f into table on conn. The table is created with one
// column per frame column, in frame order, unless it already exists. Each row
// is then inserted positionally.
//
// Rows are written one by one, so a failure part-way leaves the earlier rows
// in place. WithTransaction makes the write all-or-nothing.
func FromFrame(ctx context.Context, conn *Conn, table string, f *frame.Frame, opts ...PersistOption) error {
	var o persistOptions
	for _, opt := range opts {
		opt(&o)
	}
	saveErr := func(err error) error {
		return &Error{Kind: KindSave, Path: conn.Path(), Table: table, Err: err}
	}

	if f.Width() == 0 {
		return saveErr(fmt.Errorf("frame has no columns"))
	}
	cols := make([]ddl.ColumnDef, f.Width())
	for i, fld := range f.Schema().Fields() {
		cols[i] = ddl.ColumnDef{Name: fld.Name, Type: conn.Types().DeclType(frame.KindOf(fld.Type))}
	}
	create, err := ddl.CreateTableIfNotExists(table, cols)
	if err != nil {
		return saveErr(err)
	}
	insert, err := ddl.InsertPositional(table, f.Width())
	if err != nil {
		return saveErr(err)
	}

	if !o.transaction {
		return writeRows(ctx, conn, conn.db, create, insert, f, saveErr)
	}

	tx, err := conn.db.BeginTx(ctx, nil)
	if err != nil {
		return saveErr(fmt.Errorf("begin: %w", err))
	}
	if err := writeRows(ctx, conn, tx, create, insert, f, saveErr); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			conn.logger.WarnContext(ctx, "rollback failed", "table", table, "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return saveErr(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func writeRows(ctx context.Context, conn *Conn, ex execer, create, insert string, f *frame.Frame, saveErr func(error) error) error {
	if _, err := ex.ExecContext(ctx, create); err != nil {
		return saveErr(fmt.Errorf("create table: %w", err))
	}

	stmt, err := ex.PrepareContext(ctx, insert)
	if err != nil {
		return saveErr(fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close() //nolint:errcheck

	for i := 0; i < f.Height(); i++ {
		if _, err := stmt.ExecContext(ctx, f.Row(i)...); err != nil {
			return saveErr(fmt.Errorf("insert row %d: %w", i, err))
		}
	}
	conn.logger.DebugContext(ctx, "persisted frame", "sql", insert, "rows", f.Height())
	return nil
}
