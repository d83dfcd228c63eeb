package bridge

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polite/internal/db"
	"polite/internal/ddl"
	"polite/pkg/frame"
)

func seedNumbers(t *testing.T, n int) string {
	t.Helper()
	stmts := []string{"CREATE TABLE nums (id INTEGER, label TEXT, ratio REAL)"}
	for i := 1; i <= n; i++ {
		stmts = append(stmts, fmt.Sprintf("INSERT INTO nums VALUES (%d, 'n%d', %d.5)", i, i, i))
	}
	path, _ := db.OpenTestSQLite(t, stmts...)
	return path
}

func openSource(t *testing.T, path string, nconn int) *Source {
	t.Helper()
	conn, err := ParseSourceConn("sqlite://" + path)
	require.NoError(t, err)
	src, err := OpenSource(context.Background(), conn, nconn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func ptr(v int64) *int64 { return &v }

func TestParseSourceConn(t *testing.T) {
	c, err := ParseSourceConn("sqlite:///tmp/x.db")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Types.Name())
	assert.Equal(t, "/tmp/x.db", c.Target.Path)
	assert.Equal(t, "sqlite:///tmp/x.db", c.String())

	c, err = ParseSourceConn("duckdb://")
	require.NoError(t, err)
	assert.Equal(t, "duckdb", c.Types.Name())
	assert.True(t, c.Target.InMemory())

	_, err = ParseSourceConn("mysql://host/db")
	require.Error(t, err)
}

func keyRange(lo, hi int64) ddl.KeyRange { return ddl.KeyRange{Lower: lo, Upper: ptr(hi)} }

func TestSplitRange(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi int64
		num    int
		want   []ddl.KeyRange
	}{
		{"even", 1, 10, 2, []ddl.KeyRange{keyRange(1, 6), keyRange(6, 11)}},
		{"remainder_goes_last", 1, 10, 3, []ddl.KeyRange{keyRange(1, 4), keyRange(4, 7), keyRange(7, 11)}},
		{"single", 5, 5, 1, []ddl.KeyRange{keyRange(5, 6)}},
		{"more_partitions_than_values", 1, 2, 3, []ddl.KeyRange{keyRange(1, 1), keyRange(1, 1), keyRange(1, 3)}},
		{"negative", -4, 3, 2, []ddl.KeyRange{keyRange(-4, 0), keyRange(0, 4)}},
		{"max_int64_is_open_above", 1, math.MaxInt64, 2,
			[]ddl.KeyRange{keyRange(1, 1<<62), {Lower: 1 << 62}}},
		{"full_int64_range", math.MinInt64, math.MaxInt64, 2,
			[]ddl.KeyRange{keyRange(math.MinInt64, 0), {Lower: 0}}},
		{"full_int64_range_single", math.MinInt64, math.MaxInt64, 1,
			[]ddl.KeyRange{{Lower: math.MinInt64}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitRange(tt.lo, tt.hi, tt.num))
		})
	}
}

func TestPartition_ExplicitRange(t *testing.T) {
	src := openSource(t, seedNumbers(t, 1), 1)

	queries, err := Partition(context.Background(), src, PartitionQuery{
		Query: "SELECT * FROM nums", Column: "id", Min: ptr(1), Max: ptr(10), Num: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`SELECT * FROM (SELECT * FROM nums) AS cx_part WHERE (cx_part."id" >= 1 AND cx_part."id" < 6) OR cx_part."id" IS NULL`,
		`SELECT * FROM (SELECT * FROM nums) AS cx_part WHERE cx_part."id" >= 6 AND cx_part."id" < 11`,
	}, queries)
}

func TestPartition_FetchedRange(t *testing.T) {
	src := openSource(t, seedNumbers(t, 9), 1)

	lo, hi, err := ColumnRange(context.Background(), src, "SELECT * FROM nums", "id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lo)
	assert.Equal(t, int64(9), hi)

	queries, err := Partition(context.Background(), src, PartitionQuery{
		Query: "SELECT * FROM nums", Column: "id", Num: 3,
	})
	require.NoError(t, err)
	require.Len(t, queries, 3)
	assert.Contains(t, queries[2], `>= 7 AND cx_part."id" < 10`)
}

func TestPartition_RealColumnTruncated(t *testing.T) {
	src := openSource(t, seedNumbers(t, 3), 1)

	lo, hi, err := ColumnRange(context.Background(), src, "SELECT * FROM nums", "ratio")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lo)
	assert.Equal(t, int64(3), hi)
}

func TestPartition_EmptyResultCountsAsZero(t *testing.T) {
	src := openSource(t, seedNumbers(t, 0), 1)

	lo, hi, err := ColumnRange(context.Background(), src, "SELECT * FROM nums", "id")
	require.NoError(t, err)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

func TestPartition_Errors(t *testing.T) {
	src := openSource(t, seedNumbers(t, 3), 1)
	ctx := context.Background()

	_, err := Partition(ctx, src, PartitionQuery{Query: "SELECT * FROM nums", Column: "label", Num: 2})
	require.ErrorIs(t, err, ErrNonIntegerPartition)

	_, err = Partition(ctx, src, PartitionQuery{Query: "SELECT * FROM nums", Column: "id", Min: ptr(1), Num: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both min and max")

	_, err = Partition(ctx, src, PartitionQuery{Query: "SELECT * FROM nums", Column: "id", Num: 0})
	require.Error(t, err)

	_, err = Partition(ctx, src, PartitionQuery{Query: "SELECT * FROM nums", Column: "nope", Num: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition min")
}

func readAll(t *testing.T, src *Source, queries ...string) *frame.Frame {
	t.Helper()
	dst := NewArrowDestination()
	require.NoError(t, NewDispatcher(src, dst, queries, nil).Run(context.Background()))
	f, err := dst.Frame()
	require.NoError(t, err)
	return f
}

func TestDispatcher_SingleQuery(t *testing.T) {
	src := openSource(t, seedNumbers(t, 5), 1)

	f := readAll(t, src, "SELECT id, label, ratio, id * 2 AS twice FROM nums ORDER BY id")
	assert.Equal(t, []string{"id", "label", "ratio", "twice"}, f.Names())
	assert.Equal(t, []frame.Kind{frame.KindInt64, frame.KindText, frame.KindFloat64, frame.KindText}, f.Kinds())
	assert.Equal(t, 5, f.Height())
	assert.Equal(t, []any{int64(1), "n1", 1.5, "2"}, f.Row(0))
}

func TestDispatcher_PartitionedMatchesUnpartitioned(t *testing.T) {
	path := seedNumbers(t, 50)
	src := openSource(t, path, 4)

	whole := readAll(t, src, "SELECT * FROM nums ORDER BY id")

	queries, err := Partition(context.Background(), src, PartitionQuery{
		Query: "SELECT * FROM nums", Column: "id", Num: 4,
	})
	require.NoError(t, err)
	parts := readAll(t, src, queries...)

	require.Equal(t, whole.Height(), parts.Height())
	ids, err := parts.ColumnAt(0).Int64Values()
	require.NoError(t, err)
	for i, id := range ids {
		assert.Equal(t, int64(i+1), id, "partitions concatenate in range order")
	}
	for i := 0; i < whole.Height(); i++ {
		assert.Equal(t, whole.Row(i), parts.Row(i))
	}
}

func TestDispatcher_PartitionsKeepExtremeAndNullKeys(t *testing.T) {
	path, _ := db.OpenTestSQLite(t,
		"CREATE TABLE keys (id INTEGER, label TEXT)",
		fmt.Sprintf("INSERT INTO keys VALUES (%d, 'min'), (NULL, 'none'), (0, 'zero'), (%d, 'max')",
			int64(math.MinInt64+1), int64(math.MaxInt64)),
	)
	src := openSource(t, path, 2)

	queries, err := Partition(context.Background(), src, PartitionQuery{
		Query: "SELECT * FROM keys", Column: "id", Num: 3,
	})
	require.NoError(t, err)
	parts := readAll(t, src, queries...)

	require.Equal(t, 4, parts.Height())
	labels, err := parts.ColumnAt(1).TextValues()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"min", "none", "zero", "max"}, labels)
}

func TestDispatcher_QueryFailure(t *testing.T) {
	src := openSource(t, seedNumbers(t, 2), 2)
	dst := NewArrowDestination()

	err := NewDispatcher(src, dst, []string{"SELECT * FROM nums", "SELECT * FROM missing"}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition 1")
	assert.Nil(t, dst.Records())
}

func TestDispatcher_NoQueries(t *testing.T) {
	src := openSource(t, seedNumbers(t, 1), 1)
	err := NewDispatcher(src, NewArrowDestination(), nil, nil).Run(context.Background())
	require.Error(t, err)
}

func TestArrowDestination_SchemaMismatch(t *testing.T) {
	src := openSource(t, seedNumbers(t, 2), 1)
	dst := NewArrowDestination()
	require.NoError(t, NewDispatcher(src, dst, []string{
		"SELECT id FROM nums",
		"SELECT label AS id FROM nums",
	}, nil).Run(context.Background()))

	_, err := dst.Frame()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "does not match"))
}

func TestArrowDestination_Empty(t *testing.T) {
	dst := NewArrowDestination()
	assert.Nil(t, dst.Schema())
	_, err := dst.Frame()
	require.Error(t, err)
}

func TestGetArrow(t *testing.T) {
	path := seedNumbers(t, 4)
	conn, err := ParseSourceConn("sqlite://" + path)
	require.NoError(t, err)

	dst, err := GetArrow(context.Background(), conn, []string{
		"SELECT id FROM nums WHERE id <= 2",
		"SELECT id FROM nums WHERE id > 2",
	}, nil)
	require.NoError(t, err)
	defer dst.Release()

	recs := dst.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, int64(2), recs[0].NumRows())
	assert.Equal(t, int64(2), recs[1].NumRows())
	assert.True(t, dst.Schema().Equal(arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)))
}

func TestGetArrow_DuckDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lake.duckdb")
	pool, err := db.OpenDuckDB(context.Background(), path)
	require.NoError(t, err)
	_, err = pool.Exec("CREATE TABLE t (a BIGINT, b DOUBLE, c VARCHAR, d DATE)")
	require.NoError(t, err)
	_, err = pool.Exec("INSERT INTO t VALUES (1, 2.5, 'x', DATE '2024-01-02'), (NULL, NULL, NULL, NULL)")
	require.NoError(t, err)
	require.NoError(t, pool.Close())

	conn, err := ParseSourceConn("duckdb://" + path)
	require.NoError(t, err)
	dst, err := GetArrow(context.Background(), conn, []string{"SELECT * FROM t ORDER BY a NULLS LAST"}, nil)
	require.NoError(t, err)

	f, err := dst.Frame()
	require.NoError(t, err)
	assert.Equal(t, []frame.Kind{frame.KindInt64, frame.KindFloat64, frame.KindText, frame.KindText}, f.Kinds())
	row := f.Row(0)
	assert.Equal(t, int64(1), row[0])
	assert.Equal(t, 2.5, row[1])
	assert.Equal(t, "x", row[2])
	assert.True(t, strings.HasPrefix(row[3].(string), "2024-01-02"))
	assert.Equal(t, []any{nil, nil, nil, nil}, f.Row(1))
}
