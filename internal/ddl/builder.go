// Package ddl builds the SQL statements polite issues on behalf of callers:
// table creation and positional inserts for persistence, and the range
// queries used to partition a read.
package ddl

import (
	"fmt"
	"strings"
)

// PartitionAlias is the alias wrapped around a query that is being partitioned.
const PartitionAlias = "cx_part"

// ColumnDef describes a column for CREATE TABLE.
type ColumnDef struct {
	Name string
	Type string
}

// CreateTableIfNotExists returns
// CREATE TABLE IF NOT EXISTS "<table>" ("<col1>" TYPE1, "<col2>" TYPE2, ...).
// Columns keep the given order.
func CreateTableIfNotExists(table string, columns []ColumnDef) (string, error) {
	if err := ValidateName(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	colDefs := make([]string, len(columns))
	for i, c := range columns {
		if err := ValidateName(c.Name); err != nil {
			return "", fmt.Errorf("invalid column name at position %d: %w", i, err)
		}
		if err := ValidateColumnType(c.Type); err != nil {
			return "", fmt.Errorf("invalid column type for %q: %w", c.Name, err)
		}
		colDefs[i] = QuoteIdentifier(c.Name) + " " + c.Type
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		QuoteIdentifier(table),
		strings.Join(colDefs, ", "),
	), nil
}

// InsertPositional returns INSERT INTO "<table>" VALUES (?, ?, ...) with
// width placeholders.
func InsertPositional(table string, width int) (string, error) {
	if err := ValidateName(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if width <= 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", width), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdentifier(table), placeholders), nil
}

// TrimStatement strips surrounding whitespace and trailing semicolons so the
// statement can be nested as a subquery.
func TrimStatement(query string) string {
	q := strings.TrimSpace(query)
	for strings.HasSuffix(q, ";") {
		q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	}
	return q
}

// subquery prepares query for nesting in parentheses. A trailing line
// comment would swallow the closing parenthesis, so such queries get a
// newline.
func subquery(query string) string {
	q := TrimStatement(query)
	if strings.Contains(q, "--") {
		q += "\n"
	}
	return q
}

// MinMaxQueries returns the two single-aggregate queries that find the range
// of column over query.
func MinMaxQueries(query, column string) (minQuery, maxQuery string) {
	q := subquery(query)
	col := QuoteIdentifier(column)
	minQuery = fmt.Sprintf("SELECT MIN(%s) FROM (%s) AS %s", col, q, PartitionAlias)
	maxQuery = fmt.Sprintf("SELECT MAX(%s) FROM (%s) AS %s", col, q, PartitionAlias)
	return minQuery, maxQuery
}

// KeyRange bounds a range partition on an integer key: Lower <= key < Upper.
// A nil Upper leaves the range open above. Nulls also admits rows whose key
// is NULL.
type KeyRange struct {
	Lower int64
	Upper *int64
	Nulls bool
}

// RangePartitionQuery restricts query to rows whose column value lies in r.
func RangePartitionQuery(query, column string, r KeyRange) string {
	col := PartitionAlias + "." + QuoteIdentifier(column)
	cond := fmt.Sprintf("%s >= %d", col, r.Lower)
	if r.Upper != nil {
		cond += fmt.Sprintf(" AND %s < %d", col, *r.Upper)
	}
	if r.Nulls {
		cond = fmt.Sprintf("(%s) OR %s IS NULL", cond, col)
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS %s WHERE %s", subquery(query), PartitionAlias, cond)
}
