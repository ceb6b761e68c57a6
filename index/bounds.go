package index

import (
	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/datom"
)

// Bound is a partially-specified datom used as a range endpoint: any
// of E, Aid, V may be absent (nil), in which case EncodeLow/EncodeHigh
// fill it with the component's minimum or maximum sentinel (zero/max
// entity and attribute ids, sysMin/sysMax value tags) so a closed
// range covers exactly the intended subset.
type Bound struct {
	E   *uint64
	Aid *uint32
	V   datom.Value // nil means unknown
}

// EncodeLow builds the closed-range low bound for kind.
func EncodeLow(kind Kind, b Bound) ([]byte, error) {
	return encodeBound(kind, b, false)
}

// EncodeHigh builds the closed-range high bound for kind.
func EncodeHigh(kind Kind, b Bound) ([]byte, error) {
	return encodeBound(kind, b, true)
}

func encodeBound(kind Kind, b Bound, high bool) ([]byte, error) {
	if b.Aid == nil && b.V != nil {
		if _, ok := b.V.(datom.Ref); !ok {
			return nil, ErrBadBound
		}
	}

	var e uint64
	if b.E != nil {
		e = *b.E
	} else if high {
		e = ^uint64(0)
	}
	eb := codec.OrderedUint64(e)

	var aid uint32
	if b.Aid != nil {
		aid = *b.Aid
	} else if high {
		aid = ^uint32(0)
	}
	ab := codec.OrderedUint32(aid)

	var slot []byte
	if b.V != nil {
		slot, _ = encodeValueSlot(b.V)
	} else if high {
		slot, _ = encodeValueSlot(datom.SysMaxValue)
	} else {
		slot, _ = encodeValueSlot(datom.SysMinValue)
	}

	switch kind {
	case EAV:
		return concat(eb[:], ab[:], slot), nil
	case AVE:
		return concat(ab[:], slot, eb[:]), nil
	case VEA:
		return concat(slot, eb[:], ab[:]), nil
	default:
		return nil, ErrBadBound
	}
}
