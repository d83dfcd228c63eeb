package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"

	"polite/pkg/frame"
)

// ArrowDestination collects one record per partition, in partition order.
type ArrowDestination struct {
	records []arrow.Record
}

// NewArrowDestination returns an empty destination.
func NewArrowDestination() *ArrowDestination {
	return &ArrowDestination{}
}

func (d *ArrowDestination) allocate(n int) {
	d.records = make([]arrow.Record, n)
}

// set stores partition i. Each partition writes its own slot.
func (d *ArrowDestination) set(i int, rec arrow.Record) {
	d.records[i] = rec
}

// Records returns the partition records. They stay owned by the destination.
func (d *ArrowDestination) Records() []arrow.Record {
	return d.records
}

// Schema returns the schema of the first partition, or nil before a run.
func (d *ArrowDestination) Schema() *arrow.Schema {
	if len(d.records) == 0 || d.records[0] == nil {
		return nil
	}
	return d.records[0].Schema()
}

// Frame concatenates the partitions into one frame. Partitions whose schemas
// disagree cannot be combined.
func (d *ArrowDestination) Frame() (*frame.Frame, error) {
	schema := d.Schema()
	if schema == nil {
		return nil, fmt.Errorf("destination holds no records")
	}
	return frame.Concat(schema, d.records)
}

// Release drops every partition record.
func (d *ArrowDestination) Release() {
	for _, rec := range d.records {
		if rec != nil {
			rec.Release()
		}
	}
	d.records = nil
}

// GetArrow opens conn, reads every query into a new destination and closes
// the source again. Queries run concurrently, one connection each.
func GetArrow(ctx context.Context, conn SourceConn, queries []string, logger *slog.Logger) (*ArrowDestination, error) {
	src, err := OpenSource(ctx, conn, len(queries))
	if err != nil {
		return nil, err
	}
	defer src.Close() //nolint:errcheck

	dst := NewArrowDestination()
	if err := NewDispatcher(src, dst, queries, logger).Run(ctx); err != nil {
		return nil, err
	}
	return dst, nil
}
