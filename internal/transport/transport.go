// Package transport maps source type systems onto frame kinds and moves
// scanned values into arrow builders.
package transport

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"polite/internal/db"
	"polite/pkg/frame"
)

// TypeSystem is a closed, total mapping between a store's declared column
// types and frame kinds.
type TypeSystem interface {
	// Name identifies the type system, e.g. "sqlite".
	Name() string
	// Kind maps a declared column type to a frame kind. Unknown or empty
	// declarations map to KindText; Kind never fails.
	Kind(declType string) frame.Kind
	// DeclType maps a frame kind to the column type used when creating
	// tables. KindUnsupported maps to the text type.
	DeclType(k frame.Kind) string
}

var (
	// SQLite is the type system of SQLite stores.
	SQLite TypeSystem = sqliteTypes{}
	// DuckDB is the type system of DuckDB stores.
	DuckDB TypeSystem = duckdbTypes{}
)

// ForDriver returns the type system of a database/sql driver name.
func ForDriver(driver string) (TypeSystem, error) {
	switch driver {
	case db.DriverSQLite:
		return SQLite, nil
	case db.DriverDuckDB:
		return DuckDB, nil
	default:
		return nil, fmt.Errorf("no type system for driver %q", driver)
	}
}

type sqliteTypes struct{}

func (sqliteTypes) Name() string { return "sqlite" }

func (sqliteTypes) Kind(declType string) frame.Kind {
	switch normalize(declType) {
	case "INTEGER":
		return frame.KindInt64
	case "REAL":
		return frame.KindFloat64
	default:
		return frame.KindText
	}
}

func (sqliteTypes) DeclType(k frame.Kind) string {
	switch k {
	case frame.KindInt64:
		return "INTEGER"
	case frame.KindFloat64:
		return "REAL"
	default:
		return "TEXT"
	}
}

type duckdbTypes struct{}

func (duckdbTypes) Name() string { return "duckdb" }

func (duckdbTypes) Kind(declType string) frame.Kind {
	switch normalize(declType) {
	case "BIGINT", "INTEGER", "SMALLINT", "TINYINT",
		"UBIGINT", "UINTEGER", "USMALLINT", "UTINYINT", "HUGEINT":
		return frame.KindInt64
	case "DOUBLE", "FLOAT", "REAL":
		return frame.KindFloat64
	default:
		return frame.KindText
	}
}

func (duckdbTypes) DeclType(k frame.Kind) string {
	switch k {
	case frame.KindInt64:
		return "BIGINT"
	case frame.KindFloat64:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

func normalize(declType string) string {
	return strings.ToUpper(strings.TrimSpace(declType))
}

// Schema builds the arrow schema of a result set. Every field is nullable and
// keeps the result set's positional order and names, duplicates included.
func Schema(ts TypeSystem, cols []*sql.ColumnType) *arrow.Schema {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		fields[i] = arrow.Field{
			Name:     c.Name(),
			Type:     ts.Kind(c.DatabaseTypeName()).DataType(),
			Nullable: true,
		}
	}
	return arrow.NewSchema(fields, nil)
}
