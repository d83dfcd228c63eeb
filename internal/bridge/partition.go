package bridge

import (
	"context"
	"errors"
	"fmt"
	"math"

	"polite/internal/ddl"
)

// ErrNonIntegerPartition is returned when the partition column's range is not
// integral.
var ErrNonIntegerPartition = errors.New("partition can only be done on integer columns")

// PartitionQuery describes how to split Query into Num range partitions on
// the integer column Column. Min and Max are either both set or both nil;
// nil means the range is fetched from the data.
type PartitionQuery struct {
	Query  string
	Column string
	Min    *int64
	Max    *int64
	Num    int
}

// Partition returns the partition queries for pq in ascending range order.
// Rows whose partition key is NULL are read by the first partition.
func Partition(ctx context.Context, src *Source, pq PartitionQuery) ([]string, error) {
	if pq.Num <= 0 {
		return nil, fmt.Errorf("partition count must be positive, got %d", pq.Num)
	}
	if pq.Column == "" {
		return nil, fmt.Errorf("partition column is required")
	}

	var lo, hi int64
	switch {
	case pq.Min != nil && pq.Max != nil:
		lo, hi = *pq.Min, *pq.Max
	case pq.Min == nil && pq.Max == nil:
		var err error
		lo, hi, err = ColumnRange(ctx, src, pq.Query, pq.Column)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("partition range must set both min and max or neither")
	}
	if lo > hi {
		return nil, fmt.Errorf("partition range is empty: min %d > max %d", lo, hi)
	}

	ranges := SplitRange(lo, hi, pq.Num)
	ranges[0].Nulls = true
	queries := make([]string, len(ranges))
	for i, r := range ranges {
		queries[i] = ddl.RangePartitionQuery(pq.Query, pq.Column, r)
	}
	return queries, nil
}

// SplitRange splits [lo, hi] into num half-open ranges [start, end). Each
// range is (hi-lo+1)/num wide; the last one extends to hi+1, or is open above
// when hi is math.MaxInt64. Widths are computed in uint64 so any int64 range
// splits without overflow.
func SplitRange(lo, hi int64, num int) []ddl.KeyRange {
	span := uint64(hi) - uint64(lo)
	n := uint64(num)
	size := span / n
	if span%n == n-1 {
		size++
	}
	at := func(i int) int64 { return int64(uint64(lo) + uint64(i)*size) }

	out := make([]ddl.KeyRange, num)
	for i := range out {
		r := ddl.KeyRange{Lower: at(i)}
		switch {
		case i < num-1:
			end := at(i + 1)
			r.Upper = &end
		case hi < math.MaxInt64:
			end := hi + 1
			r.Upper = &end
		}
		out[i] = r
	}
	return out
}

// ColumnRange fetches MIN and MAX of column over query with two separate
// queries. NULL aggregates (an empty result) count as 0.
func ColumnRange(ctx context.Context, src *Source, query, column string) (lo, hi int64, err error) {
	minQuery, maxQuery := ddl.MinMaxQueries(query, column)
	if lo, err = scanBound(ctx, src, minQuery); err != nil {
		return 0, 0, fmt.Errorf("partition min: %w", err)
	}
	if hi, err = scanBound(ctx, src, maxQuery); err != nil {
		return 0, 0, fmt.Errorf("partition max: %w", err)
	}
	return lo, hi, nil
}

func scanBound(ctx context.Context, src *Source, query string) (int64, error) {
	var v any
	if err := src.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	default:
		return 0, ErrNonIntegerPartition
	}
}
