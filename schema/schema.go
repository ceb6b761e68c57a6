// Package schema implements the attribute catalog: stable aid
// allocation, attribute properties, the implicit (built-in) schema,
// the reverse schema, and migration rules. The in-memory view is an
// immutable snapshot published by atomic pointer swap, so readers
// never contend with the single writer.
package schema

import (
	"encoding/binary"
	"fmt"

	"github.com/wbrown/datomstore/datom"
)

// Cardinality is whether an attribute may hold one or many values per
// entity.
type Cardinality byte

const (
	CardinalityOne Cardinality = iota
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "many"
	}
	return "one"
}

// UniqueKind is an attribute's uniqueness constraint.
type UniqueKind byte

const (
	UniqueNone UniqueKind = iota
	UniqueIdentity
	UniqueValue
)

func (u UniqueKind) String() string {
	switch u {
	case UniqueIdentity:
		return "identity"
	case UniqueValue:
		return "value"
	default:
		return "none"
	}
}

// Properties is the value of the schema map: everything the catalog
// tracks about one attribute. Aid is assigned once, at first sight,
// and never changes afterward.
type Properties struct {
	Aid         uint32
	ValueType   datom.ValueType
	Cardinality Cardinality
	Unique      UniqueKind
	IsComponent bool
}

// Schema maps attribute name to its properties.
type Schema map[string]Properties

// RSchema is the reverse schema: property -> set of attributes having
// it. It is a pure function of Schema, recomputed on every mutation
// rather than maintained incrementally.
type RSchema struct {
	ByValueType map[datom.ValueType]map[string]bool
	ByUnique    map[UniqueKind]map[string]bool
	Many        map[string]bool
	Component   map[string]bool
}

// DeriveRSchema recomputes RSchema from scratch.
func DeriveRSchema(s Schema) RSchema {
	r := RSchema{
		ByValueType: make(map[datom.ValueType]map[string]bool),
		ByUnique:    make(map[UniqueKind]map[string]bool),
		Many:        make(map[string]bool),
		Component:   make(map[string]bool),
	}
	for attr, p := range s {
		if r.ByValueType[p.ValueType] == nil {
			r.ByValueType[p.ValueType] = make(map[string]bool)
		}
		r.ByValueType[p.ValueType][attr] = true

		if r.ByUnique[p.Unique] == nil {
			r.ByUnique[p.Unique] = make(map[string]bool)
		}
		r.ByUnique[p.Unique][attr] = true

		if p.Cardinality == CardinalityMany {
			r.Many[attr] = true
		}
		if p.IsComponent {
			r.Component[attr] = true
		}
	}
	return r
}

// Attrs derives the aid -> attribute-name map from Schema.
func Attrs(s Schema) map[uint32]string {
	out := make(map[uint32]string, len(s))
	for attr, p := range s {
		out[p.Aid] = attr
	}
	return out
}

// MaxAid returns the largest aid present in s, or 0 if s is empty.
func MaxAid(s Schema) uint32 {
	var max uint32
	for _, p := range s {
		if p.Aid > max {
			max = p.Aid
		}
	}
	return max
}

// Implicit built-in attributes, seeded at store creation. Aids 1-6 are
// reserved for them; user attributes start allocating at 7.
const (
	AttrIdent       = ":db/ident"
	AttrAid         = ":db/aid"
	AttrValueType   = ":db/valueType"
	AttrCardinality = ":db/cardinality"
	AttrUnique      = ":db/unique"
	AttrIsComponent = ":db/isComponent"
)

// ImplicitSchema returns the built-in schema every store is seeded
// with on first open.
func ImplicitSchema() Schema {
	return Schema{
		AttrIdent:       {Aid: 1, ValueType: datom.TypeKeyword, Cardinality: CardinalityOne, Unique: UniqueIdentity},
		AttrAid:         {Aid: 2, ValueType: datom.TypeLong, Cardinality: CardinalityOne, Unique: UniqueNone},
		AttrValueType:   {Aid: 3, ValueType: datom.TypeKeyword, Cardinality: CardinalityOne, Unique: UniqueNone},
		AttrCardinality: {Aid: 4, ValueType: datom.TypeKeyword, Cardinality: CardinalityOne, Unique: UniqueNone},
		AttrUnique:      {Aid: 5, ValueType: datom.TypeKeyword, Cardinality: CardinalityOne, Unique: UniqueNone},
		AttrIsComponent: {Aid: 6, ValueType: datom.TypeBool, Cardinality: CardinalityOne, Unique: UniqueNone},
	}
}

// PropsSize is the fixed on-disk width of an encoded Properties
// record, exported so package store can size the Schema namespace.
const PropsSize = 4 + 1 + 1 + 1 + 1
const propsSize = PropsSize

// encodeProps hand-packs Properties at fixed field widths. The record
// is five manually-enumerable fields; a generic serialization library
// would add nothing but indirection.
func encodeProps(p Properties) []byte {
	buf := make([]byte, propsSize)
	binary.BigEndian.PutUint32(buf[0:4], p.Aid)
	buf[4] = byte(p.ValueType)
	buf[5] = byte(p.Cardinality)
	buf[6] = byte(p.Unique)
	if p.IsComponent {
		buf[7] = 1
	}
	return buf
}

func decodeProps(b []byte) (Properties, error) {
	if len(b) != propsSize {
		return Properties{}, fmt.Errorf("schema: properties record must be %d bytes, got %d", propsSize, len(b))
	}
	return Properties{
		Aid:         binary.BigEndian.Uint32(b[0:4]),
		ValueType:   datom.ValueType(b[4]),
		Cardinality: Cardinality(b[5]),
		Unique:      UniqueKind(b[6]),
		IsComponent: b[7] != 0,
	}, nil
}
