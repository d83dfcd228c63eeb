// Package frame provides a small columnar dataframe backed by a single Arrow
// record. Frames are what query results materialize into and what table
// persistence reads from.
package frame

import "github.com/apache/arrow-go/v18/arrow"

// Kind is the closed set of column kinds a frame produces.
type Kind int

const (
	// KindUnsupported marks a column whose arrow type is none of the kinds
	// below. Frames wrapping foreign records may carry such columns.
	KindUnsupported Kind = iota
	KindInt64
	KindFloat64
	KindText
)

// String returns the short polars-style name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt64:
		return "i64"
	case KindFloat64:
		return "f64"
	case KindText:
		return "str"
	default:
		return "unsupported"
	}
}

// DataType returns the arrow type used to store columns of this kind.
// KindUnsupported has no storage type and returns nil.
func (k Kind) DataType() arrow.DataType {
	switch k {
	case KindInt64:
		return arrow.PrimitiveTypes.Int64
	case KindFloat64:
		return arrow.PrimitiveTypes.Float64
	case KindText:
		return arrow.BinaryTypes.String
	default:
		return nil
	}
}

// KindOf reports the kind of an arrow type.
func KindOf(dt arrow.DataType) Kind {
	if dt == nil {
		return KindUnsupported
	}
	switch dt.ID() {
	case arrow.INT64:
		return KindInt64
	case arrow.FLOAT64:
		return KindFloat64
	case arrow.STRING:
		return KindText
	default:
		return KindUnsupported
	}
}
