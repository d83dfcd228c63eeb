package frame

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/csv"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// parquetRowGroupSize caps the rows per parquet row group.
const parquetRowGroupSize = 64 * 1024

// WriteCSV writes the frame as CSV with a header row. Nulls are empty cells.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w, f.rec.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	if err := cw.Write(f.rec); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return cw.Error()
}

// WriteJSON writes the frame as newline-delimited JSON objects, one per row.
func (f *Frame) WriteJSON(w io.Writer) error {
	if err := array.RecordToJSON(f.rec, w); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// WriteParquet writes the frame as a single parquet file. The caller keeps
// ownership of w: it is not closed, even when it implements io.Closer.
func (f *Frame) WriteParquet(w io.Writer) error {
	tbl := array.NewTableFromRecords(f.rec.Schema(), []arrow.Record{f.rec})
	defer tbl.Release()
	props := parquet.NewWriterProperties()
	if err := pqarrow.WriteTable(tbl, struct{ io.Writer }{w}, parquetRowGroupSize, props, pqarrow.DefaultWriterProps()); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}

// ReadCSV reads a CSV document with a header row, inferring column types
// from the data.
func ReadCSV(r io.Reader) (*Frame, error) {
	rdr := csv.NewInferringReader(r, csv.WithHeader(true), csv.WithChunk(-1))
	defer rdr.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	schema := rdr.Schema()
	if schema == nil {
		return nil, fmt.Errorf("read csv: no rows to infer column types from")
	}
	return Concat(schema, recs)
}

// ReadParquet reads a whole parquet file into a frame.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*Frame, error) {
	tbl, err := pqarrow.ReadTable(ctx, r, parquet.NewReaderProperties(memory.DefaultAllocator),
		pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	defer tbl.Release()

	tr := array.NewTableReader(tbl, -1)
	defer tr.Release()
	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for tr.Next() {
		rec := tr.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return Concat(tbl.Schema(), recs)
}
