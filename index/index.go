// Package index implements the Indexable codec: the mapping between
// (e, aid, v, valueType) and the order-preserving byte keys that back
// the EAV, AVE, and VEA covering indexes. Keys are packed by hand,
// big-endian integers with sign bits flipped, a one-byte type tag per
// value, so that the K/V layer's plain byte-wise comparator realizes
// the semantic sort order without any compare-function hook.
package index

import (
	"fmt"
	"time"

	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/datom"
)

// Kind selects which covering index a key belongs to; the same
// (e, aid, v) triple decodes differently depending on Kind because the
// component order in the key differs.
type Kind byte

const (
	EAV Kind = iota
	AVE
	VEA
)

func (k Kind) String() string {
	switch k {
	case EAV:
		return "eav"
	case AVE:
		return "ave"
	case VEA:
		return "vea"
	default:
		return fmt.Sprintf("index(%d)", byte(k))
	}
}

// MaxKeySize bounds how wide an encoded key may be. Header (e + aid)
// is 12 bytes fixed; the remaining budget is shared by the value's
// type tag and its ordered payload. Values whose ordered payload does
// not fit are classified giant: the key still carries as much of the
// payload as fits (approximate ordering), and the full value lives in
// the Giants table.
const MaxKeySize = 511

const headerSize = 8 + 4 // e + aid

// ValueBudget is how many bytes (tag + payload) the value portion of a
// key may occupy before it is classified giant.
const ValueBudget = MaxKeySize - headerSize

// Retrieved is the decoded (e, aid, v) triple recovered from an index
// key. If the stored index value was a giant marker, V holds only the
// truncated key-resident prefix; callers that need the real value
// dereference Giants using the gt id decoded alongside the key
// (see DecodeIndexValue).
type Retrieved struct {
	E   uint64
	Aid uint32
	V   datom.Value
}

// Errors returned while building or decoding keys.
var (
	// ErrBadBound is returned by EncodeLow/EncodeHigh when a bound names
	// a value but no attribute, and the value is not a ref. An
	// unattributed value bound is only meaningful for the VEA index,
	// where the value position is always a ref.
	ErrBadBound = fmt.Errorf("index: bad bound")
	ErrShortKey = fmt.Errorf("index: key too short")
)

// valuePayload returns v's ValueType tag and its order-preserving byte
// encoding (unbounded length; truncation to ValueBudget happens where
// the payload is placed into a key).
func valuePayload(v datom.Value) (datom.ValueType, []byte) {
	if datom.IsSysMin(v) {
		return datom.SysMin, nil
	}
	if datom.IsSysMax(v) {
		return datom.SysMax, nil
	}

	t := datom.TypeOf(v)
	switch t {
	case datom.TypeLong:
		b := codec.OrderedInt64(v.(int64))
		return t, b[:]
	case datom.TypeDouble:
		b := codec.OrderedFloat64(v.(float64))
		return t, b[:]
	case datom.TypeRef:
		b := codec.OrderedUint64(uint64(v.(datom.Ref)))
		return t, b[:]
	case datom.TypeInstant:
		b := codec.OrderedInt64(v.(time.Time).UnixNano())
		return t, b[:]
	case datom.TypeBool:
		if v.(bool) {
			return t, []byte{1}
		}
		return t, []byte{0}
	case datom.TypeString:
		return t, []byte(v.(string))
	case datom.TypeKeyword:
		return t, []byte(v.(datom.Keyword))
	case datom.TypeSymbol:
		return t, []byte(v.(datom.Symbol))
	case datom.TypeUUID:
		u := v.(datom.UUID)
		return t, u[:]
	case datom.TypeBytes:
		return t, v.([]byte)
	default:
		panic(fmt.Sprintf("index: unsupported value type %v", t))
	}
}

// IsGiant reports whether tag+payload exceeds the in-key value budget.
func IsGiant(payload []byte) bool {
	return 1+len(payload) > ValueBudget
}

// varWidth reports whether a type's payload has no fixed byte width.
// Variable-width payloads are escape-terminated (see escapeTerminate)
// so a key component following the value still compares after it:
// without the terminator, "a" followed by a large entity id could sort
// above "ab" in AVE, breaking the (aid, v, e) order.
func varWidth(t datom.ValueType) bool {
	switch t {
	case datom.TypeString, datom.TypeKeyword, datom.TypeSymbol, datom.TypeBytes:
		return true
	default:
		return false
	}
}

// escapeTerminate rewrites a variable-width payload so that byte-wise
// comparison of two escaped payloads (each followed by arbitrary key
// bytes) matches comparison of the raw payloads: embedded 0x00 becomes
// 0x00 0xFF and a two-byte 0x00 0x00 terminator is appended. The
// terminator sorts below any continuation byte and below the 0x00 0xFF
// escape pair, so a strict prefix always sorts first whatever key bytes
// follow it.
func escapeTerminate(p []byte) []byte {
	out := make([]byte, 0, len(p)+2)
	for _, b := range p {
		out = append(out, b)
		if b == 0x00 {
			out = append(out, 0xFF)
		}
	}
	return append(out, 0x00, 0x00)
}

// unescapeValue reverses escapeTerminate. Tolerant of giant-truncated
// input: a missing or half terminator, or a dangling escape byte,
// decodes to the longest recoverable prefix.
func unescapeValue(p []byte) []byte {
	if n := len(p); n >= 2 && p[n-2] == 0x00 && p[n-1] == 0x00 {
		p = p[:n-2]
	} else if n > 0 && p[n-1] == 0x00 {
		p = p[:n-1]
	}
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		out = append(out, p[i])
		if p[i] == 0x00 && i+1 < len(p) && p[i+1] == 0xFF {
			i++
		}
	}
	return out
}

// encodeValueSlot writes a value's tag+payload into the value slot of
// a key, truncating the payload if it is giant, and reports whether it
// did so.
func encodeValueSlot(v datom.Value) (slot []byte, giant bool) {
	tag, payload := valuePayload(v)
	if varWidth(tag) {
		payload = escapeTerminate(payload)
	}
	giant = IsGiant(payload)
	if giant {
		payload = payload[:ValueBudget-1]
	}
	slot = make([]byte, 1+len(payload))
	slot[0] = byte(tag)
	copy(slot[1:], payload)
	return slot, giant
}

// EncodeDatom builds the index key for (e, aid, v) under kind, and
// reports whether v's value is giant (too large to fit the key's
// value budget; the caller must then store the full datom in Giants
// and put the gt id, not v, in the index's own value slot).
func EncodeDatom(kind Kind, e uint64, aid uint32, v datom.Value) (key []byte, giant bool) {
	eb := codec.OrderedUint64(e)
	ab := codec.OrderedUint32(aid)
	slot, giant := encodeValueSlot(v)

	switch kind {
	case EAV:
		return concat(eb[:], ab[:], slot), giant
	case AVE:
		return concat(ab[:], slot, eb[:]), giant
	case VEA:
		return concat(slot, eb[:], ab[:]), giant
	default:
		panic(fmt.Sprintf("index: unknown kind %v", kind))
	}
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// DecodeIndexValue interprets an index entry's 8-byte value slot: 0
// means the key-resident value is complete (normal); any other value
// is a gt id into the Giants table.
func DecodeIndexValue(b []byte) (giant bool, gt uint64, err error) {
	if len(b) != 8 {
		return false, 0, fmt.Errorf("index: index value must be 8 bytes, got %d", len(b))
	}
	gt = codec.DecodeOrderedUint64(b)
	return gt != 0, gt, nil
}

// EncodeIndexValue is the inverse of DecodeIndexValue: gt=0 means normal.
func EncodeIndexValue(gt uint64) []byte {
	b := codec.OrderedUint64(gt)
	return b[:]
}
