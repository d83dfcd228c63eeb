package transport

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// Append coerces a scanned value into b. Values that cannot be represented
// in the builder's type become nulls; Append never fails.
//
// Integer columns accept Go integer types only. Float columns also accept
// integers. Text columns render numbers, booleans and times as text.
func Append(b array.Builder, v any) {
	if v == nil {
		b.AppendNull()
		return
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		if n, ok := asInt64(v); ok {
			b.Append(n)
			return
		}
	case *array.Float64Builder:
		if f, ok := asFloat64(v); ok {
			b.Append(f)
			return
		}
	case *array.StringBuilder:
		if s, ok := asText(v); ok {
			b.Append(s)
			return
		}
	}
	b.AppendNull()
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	default:
		if n, ok := asInt64(v); ok {
			return float64(n), true
		}
		return 0, false
	}
}

func asText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case time.Time:
		return x.Format(time.RFC3339Nano), true
	case fmt.Stringer:
		return x.String(), true
	default:
		if n, ok := asInt64(v); ok {
			return strconv.FormatInt(n, 10), true
		}
		return fmt.Sprint(v), true
	}
}
