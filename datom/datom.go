package datom

import "fmt"

// Datom is a single immutable fact: entity e has attribute a with
// value v. Added distinguishes assertion from retraction intent during
// ingestion; it is never persisted. Once a datom is indexed, its
// presence in an index is the only assertion state that exists.
type Datom struct {
	E     uint64
	A     string
	V     Value
	Added bool
}

func (d Datom) String() string {
	return fmt.Sprintf("[%d %s %v]", d.E, d.A, d.V)
}

// Assert builds an assertion datom.
func Assert(e uint64, a string, v Value) Datom {
	return Datom{E: e, A: a, V: v, Added: true}
}

// Retract builds a retraction datom.
func Retract(e uint64, a string, v Value) Datom {
	return Datom{E: e, A: a, V: v, Added: false}
}
