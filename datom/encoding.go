package datom

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Bytes serializes a Value to its plain (non-order-preserving) byte
// form, used wherever a value is stored as a payload rather than as
// part of a sortable key: giant records. Order-
// preserving encoding for index keys lives in package index, which
// composes these bytes with codec's bit-flip helpers.
func Bytes(v Value) []byte {
	switch val := v.(type) {
	case string:
		return []byte(val)
	case int64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(val))
		return buf
	case float64:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(val))
		return buf
	case bool:
		if val {
			return []byte{1}
		}
		return []byte{0}
	case time.Time:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(val.UnixNano()))
		return buf
	case []byte:
		return val
	case Ref:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(val))
		return buf
	case Keyword:
		return []byte(val)
	case Symbol:
		return []byte(val)
	case UUID:
		return val[:]
	default:
		panic(fmt.Sprintf("datom: cannot encode value of type %T", v))
	}
}

// FromBytes deserializes a Value given its ValueType tag.
func FromBytes(t ValueType, data []byte) (Value, error) {
	switch t {
	case TypeString:
		return string(data), nil
	case TypeLong:
		if len(data) != 8 {
			return nil, fmt.Errorf("datom: long value must be 8 bytes, got %d", len(data))
		}
		return int64(binary.BigEndian.Uint64(data)), nil
	case TypeDouble:
		if len(data) != 8 {
			return nil, fmt.Errorf("datom: double value must be 8 bytes, got %d", len(data))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	case TypeBool:
		if len(data) != 1 {
			return nil, fmt.Errorf("datom: bool value must be 1 byte, got %d", len(data))
		}
		return data[0] != 0, nil
	case TypeInstant:
		if len(data) != 8 {
			return nil, fmt.Errorf("datom: instant value must be 8 bytes, got %d", len(data))
		}
		return time.Unix(0, int64(binary.BigEndian.Uint64(data))).UTC(), nil
	case TypeBytes:
		return append([]byte(nil), data...), nil
	case TypeRef:
		if len(data) != 8 {
			return nil, fmt.Errorf("datom: ref value must be 8 bytes, got %d", len(data))
		}
		return Ref(binary.BigEndian.Uint64(data)), nil
	case TypeKeyword:
		return Keyword(data), nil
	case TypeSymbol:
		return Symbol(data), nil
	case TypeUUID:
		if len(data) != 16 {
			return nil, fmt.Errorf("datom: uuid value must be 16 bytes, got %d", len(data))
		}
		var u UUID
		copy(u[:], data)
		return u, nil
	default:
		return nil, fmt.Errorf("datom: unknown value type %v", t)
	}
}
