package datom

import (
	"bytes"
	"strings"
	"time"
)

// CompareValues compares two values of the same ValueType and returns
// -1, 0, or 1. It is used outside the index's byte-level ordering,
// by tests and any caller that needs a total order on a decoded
// Value without re-deriving one from the encoded key bytes.
func CompareValues(left, right Value) int {
	switch l := left.(type) {
	case string:
		r := right.(string)
		return strings.Compare(l, r)
	case int64:
		r := right.(int64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		default:
			return 0
		}
	case float64:
		r := right.(float64)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		default:
			return 0
		}
	case bool:
		r := right.(bool)
		switch {
		case l == r:
			return 0
		case !l && r:
			return -1
		default:
			return 1
		}
	case time.Time:
		r := right.(time.Time)
		switch {
		case l.Before(r):
			return -1
		case l.After(r):
			return 1
		default:
			return 0
		}
	case []byte:
		return bytes.Compare(l, right.([]byte))
	case Ref:
		r := right.(Ref)
		switch {
		case l < r:
			return -1
		case l > r:
			return 1
		default:
			return 0
		}
	case Keyword:
		return strings.Compare(string(l), string(right.(Keyword)))
	case Symbol:
		return strings.Compare(string(l), string(right.(Symbol)))
	case UUID:
		r := right.(UUID)
		return bytes.Compare(l[:], r[:])
	default:
		panic("datom: CompareValues on unsupported type")
	}
}

// ValuesEqual reports whether two values of the same ValueType are
// equal.
func ValuesEqual(a, b Value) bool {
	return CompareValues(a, b) == 0
}
