package frame

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Frame is an ordered set of equally long, named, nullable columns.
type Frame struct {
	rec arrow.Record
}

// New builds a frame from series in the given order. All series must have
// the same length. The frame retains the series' arrays, so callers may
// release the series afterwards.
func New(series ...*Series) (*Frame, error) {
	height := 0
	if len(series) > 0 && series[0] != nil {
		height = series[0].Len()
	}
	fields := make([]arrow.Field, len(series))
	cols := make([]arrow.Array, len(series))
	for i, s := range series {
		if s == nil {
			return nil, fmt.Errorf("series %d is nil", i)
		}
		if s.Len() != height {
			return nil, fmt.Errorf("series %q has %d rows, expected %d", s.Name(), s.Len(), height)
		}
		fields[i] = arrow.Field{Name: s.Name(), Type: s.DataType(), Nullable: true}
		cols[i] = s.arr
	}
	rec := array.NewRecord(arrow.NewSchema(fields, nil), cols, int64(height))
	return &Frame{rec: rec}, nil
}

// FromRecord wraps rec. The record is retained.
func FromRecord(rec arrow.Record) *Frame {
	rec.Retain()
	return &Frame{rec: rec}
}

// Empty returns a zero-row frame with the given schema.
func Empty(schema *arrow.Schema) *Frame {
	cols := make([]arrow.Array, schema.NumFields())
	for i, f := range schema.Fields() {
		b := array.NewBuilder(memory.DefaultAllocator, f.Type)
		cols[i] = b.NewArray()
		b.Release()
	}
	rec := array.NewRecord(schema, cols, 0)
	for _, c := range cols {
		c.Release()
	}
	return &Frame{rec: rec}
}

// Concat stacks records sharing schema into one frame, keeping their order.
func Concat(schema *arrow.Schema, recs []arrow.Record) (*Frame, error) {
	for i, r := range recs {
		if !r.Schema().Equal(schema) {
			return nil, fmt.Errorf("record %d schema %s does not match %s", i, r.Schema(), schema)
		}
	}
	switch len(recs) {
	case 0:
		return Empty(schema), nil
	case 1:
		return FromRecord(recs[0]), nil
	}

	var rows int64
	for _, r := range recs {
		rows += r.NumRows()
	}
	cols := make([]arrow.Array, schema.NumFields())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()
	chunks := make([]arrow.Array, len(recs))
	for i := range cols {
		for j, r := range recs {
			chunks[j] = r.Column(i)
		}
		c, err := array.Concatenate(chunks, memory.DefaultAllocator)
		if err != nil {
			return nil, fmt.Errorf("concatenate column %q: %w", schema.Field(i).Name, err)
		}
		cols[i] = c
	}
	return &Frame{rec: array.NewRecord(schema, cols, rows)}, nil
}

// Record exposes the backing record. It stays owned by the frame.
func (f *Frame) Record() arrow.Record { return f.rec }

// Schema returns the arrow schema of the frame.
func (f *Frame) Schema() *arrow.Schema { return f.rec.Schema() }

// Height returns the number of rows.
func (f *Frame) Height() int { return int(f.rec.NumRows()) }

// Width returns the number of columns.
func (f *Frame) Width() int { return int(f.rec.NumCols()) }

// Shape returns (height, width).
func (f *Frame) Shape() (int, int) { return f.Height(), f.Width() }

// Names returns the column names in frame order.
func (f *Frame) Names() []string {
	names := make([]string, f.Width())
	for i, fld := range f.rec.Schema().Fields() {
		names[i] = fld.Name
	}
	return names
}

// Kinds returns the column kinds in frame order.
func (f *Frame) Kinds() []Kind {
	kinds := make([]Kind, f.Width())
	for i, fld := range f.rec.Schema().Fields() {
		kinds[i] = KindOf(fld.Type)
	}
	return kinds
}

// Column returns the first column called name.
func (f *Frame) Column(name string) (*Series, error) {
	for i, fld := range f.rec.Schema().Fields() {
		if fld.Name == name {
			return f.ColumnAt(i), nil
		}
	}
	return nil, fmt.Errorf("column %q not found", name)
}

// ColumnAt returns column i. It panics when i is out of range.
func (f *Frame) ColumnAt(i int) *Series {
	return NewSeries(f.rec.ColumnName(i), f.rec.Column(i))
}

// Row returns row i as Go values in column order (see Series.Value).
func (f *Frame) Row(i int) []any {
	row := make([]any, f.Width())
	for c := range row {
		s := Series{name: f.rec.ColumnName(c), arr: f.rec.Column(c)}
		row[c] = s.Value(i)
	}
	return row
}

// Release drops the frame's reference to its record.
func (f *Frame) Release() { f.rec.Release() }
