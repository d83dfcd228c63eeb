package polite

import "log/slog"

// Option configures Connect.
type Option func(*connOptions)

type connOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger for statements, partitions and persisted rows.
// Connections log nothing by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *connOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// QueryOption configures ToFrame and QueryPath.
type QueryOption func(*queryOptions)

type queryOptions struct {
	partitionOn string
	partitions  int
	min, max    *int64
	parallelism int
}

// WithPartition splits the query into n range partitions on the integer
// column col, with the range taken from the data. Rows whose col is NULL are
// read with the first partition.
func WithPartition(col string, n int) QueryOption {
	return func(o *queryOptions) {
		o.partitionOn = col
		o.partitions = n
	}
}

// WithPartitionRange is WithPartition over the explicit range [lo, hi].
// Rows whose col lies outside the range are not read; NULL keys still are.
func WithPartitionRange(col string, lo, hi int64, n int) QueryOption {
	return func(o *queryOptions) {
		o.partitionOn = col
		o.partitions = n
		o.min, o.max = &lo, &hi
	}
}

// WithParallelism reads up to n partitions at once. It only takes effect on
// file-backed SQLite stores, which get a dedicated read pool.
func WithParallelism(n int) QueryOption {
	return func(o *queryOptions) {
		o.parallelism = n
	}
}

// PersistOption configures FromFrame and SaveFrame.
type PersistOption func(*persistOptions)

type persistOptions struct {
	transaction bool
}

// WithTransaction writes all rows in one transaction that is rolled back on
// any failure. Without it, rows written before a failure stay committed.
func WithTransaction() PersistOption {
	return func(o *persistOptions) {
		o.transaction = true
	}
}
