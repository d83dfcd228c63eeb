package frame

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Series is a named column. It shares its arrow array with the frame it was
// taken from.
type Series struct {
	name string
	arr  arrow.Array
}

// NewInt64 builds an int64 series. valid marks non-null entries; a nil valid
// slice means every entry is present. When valid is non-nil it must have the
// same length as values.
func NewInt64(name string, values []int64, valid []bool) *Series {
	b := array.NewInt64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return &Series{name: name, arr: b.NewArray()}
}

// NewFloat64 builds a float64 series; see NewInt64 for valid.
func NewFloat64(name string, values []float64, valid []bool) *Series {
	b := array.NewFloat64Builder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return &Series{name: name, arr: b.NewArray()}
}

// NewText builds a text series; see NewInt64 for valid.
func NewText(name string, values []string, valid []bool) *Series {
	b := array.NewStringBuilder(memory.DefaultAllocator)
	defer b.Release()
	b.AppendValues(values, valid)
	return &Series{name: name, arr: b.NewArray()}
}

// NewSeries wraps an existing arrow array. The array is retained.
func NewSeries(name string, arr arrow.Array) *Series {
	arr.Retain()
	return &Series{name: name, arr: arr}
}

// Name returns the column name.
func (s *Series) Name() string { return s.name }

// Len returns the number of entries, nulls included.
func (s *Series) Len() int { return s.arr.Len() }

// NullN returns the number of null entries.
func (s *Series) NullN() int { return s.arr.NullN() }

// Kind returns the column kind.
func (s *Series) Kind() Kind { return KindOf(s.arr.DataType()) }

// DataType returns the underlying arrow type.
func (s *Series) DataType() arrow.DataType { return s.arr.DataType() }

// Array exposes the underlying arrow array. It is owned by the series.
func (s *Series) Array() arrow.Array { return s.arr }

// IsNull reports whether entry i is null.
func (s *Series) IsNull(i int) bool { return s.arr.IsNull(i) }

// Int64 returns entry i of an int64 series. ok is false for nulls and for
// series of any other kind.
func (s *Series) Int64(i int) (v int64, ok bool) {
	a, isInt := s.arr.(*array.Int64)
	if !isInt || a.IsNull(i) {
		return 0, false
	}
	return a.Value(i), true
}

// Float64 returns entry i of a float64 series.
func (s *Series) Float64(i int) (v float64, ok bool) {
	a, isFloat := s.arr.(*array.Float64)
	if !isFloat || a.IsNull(i) {
		return 0, false
	}
	return a.Value(i), true
}

// Text returns entry i of a text series.
func (s *Series) Text(i int) (v string, ok bool) {
	a, isText := s.arr.(*array.String)
	if !isText || a.IsNull(i) {
		return "", false
	}
	return a.Value(i), true
}

// Value returns entry i as a Go value: nil for null, int64, float64 or
// string for the supported kinds, and the arrow string rendering otherwise.
func (s *Series) Value(i int) any {
	if s.arr.IsNull(i) {
		return nil
	}
	switch a := s.arr.(type) {
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.String:
		return a.Value(i)
	default:
		return s.arr.ValueStr(i)
	}
}

// Int64Values returns the non-null entries of an int64 series in order.
func (s *Series) Int64Values() ([]int64, error) {
	a, ok := s.arr.(*array.Int64)
	if !ok {
		return nil, s.kindError(KindInt64)
	}
	out := make([]int64, 0, a.Len()-a.NullN())
	for i := 0; i < a.Len(); i++ {
		if a.IsValid(i) {
			out = append(out, a.Value(i))
		}
	}
	return out, nil
}

// Float64Values returns the non-null entries of a float64 series in order.
func (s *Series) Float64Values() ([]float64, error) {
	a, ok := s.arr.(*array.Float64)
	if !ok {
		return nil, s.kindError(KindFloat64)
	}
	out := make([]float64, 0, a.Len()-a.NullN())
	for i := 0; i < a.Len(); i++ {
		if a.IsValid(i) {
			out = append(out, a.Value(i))
		}
	}
	return out, nil
}

// TextValues returns the non-null entries of a text series in order.
func (s *Series) TextValues() ([]string, error) {
	a, ok := s.arr.(*array.String)
	if !ok {
		return nil, s.kindError(KindText)
	}
	out := make([]string, 0, a.Len()-a.NullN())
	for i := 0; i < a.Len(); i++ {
		if a.IsValid(i) {
			out = append(out, a.Value(i))
		}
	}
	return out, nil
}

// Release drops the series' reference to its array.
func (s *Series) Release() { s.arr.Release() }

func (s *Series) kindError(want Kind) error {
	return fmt.Errorf("column %q is %s, not %s", s.name, s.Kind(), want)
}

// cell renders entry i for table display.
func (s *Series) cell(i int) string {
	if s.arr.IsNull(i) {
		return "null"
	}
	if a, ok := s.arr.(*array.String); ok {
		return a.Value(i)
	}
	return s.arr.ValueStr(i)
}
