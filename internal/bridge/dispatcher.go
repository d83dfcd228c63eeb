package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"polite/internal/transport"
)

// Dispatcher reads every query of a partitioned read into dst, one goroutine
// per partition, at most src.Parallelism() at a time.
type Dispatcher struct {
	src     *Source
	dst     *ArrowDestination
	queries []string
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards records.
func NewDispatcher(src *Source, dst *ArrowDestination, queries []string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{src: src, dst: dst, queries: queries, logger: logger}
}

// Run executes the partitions. The first failure cancels the others and is
// returned; the destination then holds no records.
func (d *Dispatcher) Run(ctx context.Context) error {
	if len(d.queries) == 0 {
		return fmt.Errorf("no queries to run")
	}
	d.dst.allocate(len(d.queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.src.Parallelism())
	for i, q := range d.queries {
		g.Go(func() error {
			rec, err := d.readPartition(gctx, q)
			if err != nil {
				return fmt.Errorf("partition %d: %w", i, err)
			}
			d.dst.set(i, rec)
			d.logger.DebugContext(gctx, "partition read",
				"partition", i, "rows", rec.NumRows(), "source", d.src.conn.String())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.dst.Release()
		return err
	}
	return nil
}

// readPartition materializes one query into a record whose schema comes
// from the result set's declared column types.
func (d *Dispatcher) readPartition(ctx context.Context, query string) (arrow.Record, error) {
	rows, err := d.src.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	schema := transport.Schema(d.src.conn.Types, colTypes)

	rb := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer rb.Release()

	vals := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			// A row the driver cannot scan is kept as a row of nulls.
			d.logger.DebugContext(ctx, "scan failed, row kept as nulls", "error", err)
			clear(vals)
		}
		for i, v := range vals {
			transport.Append(rb.Field(i), v)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rb.NewRecord(), nil
}
