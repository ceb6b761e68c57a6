// Package datom defines the fundamental data model of the triple store:
// the Datom tuple, its typed Value payload, and the byte encoding used
// to persist a Value outside of an index key (giant records).
package datom

import (
	"fmt"
	"time"
)

// ValueType tags the Datalog type of a Value. Its numeric order is
// deliberate: SysMin sorts below every real type and SysMax sorts
// above every real type, so index-bound construction can pick a tag
// without knowing the concrete value (see index.EncodeLow/EncodeHigh).
type ValueType byte

const (
	SysMin ValueType = iota
	TypeBool
	TypeLong
	TypeDouble
	TypeRef
	TypeInstant
	TypeString
	TypeKeyword
	TypeSymbol
	TypeUUID
	TypeBytes
	SysMax ValueType = 255
)

func (t ValueType) String() string {
	switch t {
	case SysMin:
		return "sysMin"
	case TypeBool:
		return "bool"
	case TypeLong:
		return "long"
	case TypeDouble:
		return "double"
	case TypeRef:
		return "ref"
	case TypeInstant:
		return "instant"
	case TypeString:
		return "string"
	case TypeKeyword:
		return "keyword"
	case TypeSymbol:
		return "symbol"
	case TypeUUID:
		return "uuid"
	case TypeBytes:
		return "bytes"
	case SysMax:
		return "sysMax"
	default:
		return fmt.Sprintf("valueType(%d)", byte(t))
	}
}

// Ref is a reference to another entity, used as a Value when an
// attribute's ValueType is TypeRef.
type Ref uint64

// Keyword is an interned-style Datalog keyword value (e.g. :status/active)
// used when an attribute's ValueType is TypeKeyword.
type Keyword string

// Symbol is a Datalog symbol value, distinct from Keyword and String
// for type-tag purposes even though both are plain strings underneath.
type Symbol string

// UUID is a 16-byte universally unique identifier value.
type UUID [16]byte

// Value is anything storable as a datom's v component. Concretely one
// of: string, int64, float64, bool, time.Time, []byte, Ref, Keyword,
// Symbol, UUID.
type Value interface{}

// TypeOf classifies a Value into its ValueType tag. Panics on a type
// that isn't one of the supported Value kinds; the codec and the
// ingestion engine are expected to only ever hand it well-formed
// values (no layer checks a value against its attribute's declared
// valueType).
func TypeOf(v Value) ValueType {
	switch v.(type) {
	case string:
		return TypeString
	case int64:
		return TypeLong
	case float64:
		return TypeDouble
	case bool:
		return TypeBool
	case time.Time:
		return TypeInstant
	case []byte:
		return TypeBytes
	case Ref:
		return TypeRef
	case Keyword:
		return TypeKeyword
	case Symbol:
		return TypeSymbol
	case UUID:
		return TypeUUID
	default:
		panic(fmt.Sprintf("datom: unsupported value type %T", v))
	}
}

// Sentinel low/high values used when building a range bound with a
// known attribute but unbounded value: they carry the min/max tag but
// no payload, so index.EncodeLow/EncodeHigh never dereferences them as
// concrete values.
type sysMinValue struct{}
type sysMaxValue struct{}

var (
	// SysMinValue is the unbounded low end of any value range.
	SysMinValue Value = sysMinValue{}
	// SysMaxValue is the unbounded high end of any value range.
	SysMaxValue Value = sysMaxValue{}
)

func IsSysMin(v Value) bool { _, ok := v.(sysMinValue); return ok }
func IsSysMax(v Value) bool { _, ok := v.(sysMaxValue); return ok }
