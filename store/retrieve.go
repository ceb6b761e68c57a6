package store

import (
	"fmt"

	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/datom"
	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/kv"
)

// namespaceFor maps an index kind to its backing K/V namespace.
func namespaceFor(kind index.Kind) kv.Namespace {
	switch kind {
	case index.EAV:
		return kv.NSEav
	case index.AVE:
		return kv.NSAve
	case index.VEA:
		return kv.NSVea
	default:
		panic(fmt.Sprintf("store: unknown index kind %v", kind))
	}
}

func boundsToSpec(kind index.Kind, lo, hi index.Bound, reverse bool) (kv.RangeSpec, error) {
	loKey, err := index.EncodeLow(kind, lo)
	if err != nil {
		return kv.RangeSpec{}, err
	}
	hiKey, err := index.EncodeHigh(kind, hi)
	if err != nil {
		return kv.RangeSpec{}, err
	}
	if reverse {
		return kv.ClosedBack(hiKey, loKey), nil
	}
	return kv.Closed(loKey, hiKey), nil
}

// dereferenceGiant fetches the full value for a giant id from the
// Giants sub-database.
func (s *Store) dereferenceGiant(gt uint64) (datom.Value, error) {
	b, found, err := s.kv.Get(kv.NSGiants, giantKey(gt))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("store: giant %s missing from Giants table", codec.EncodeUint64(gt))
	}
	return decodeGiantValue(b)
}

// retrievedToDatom assembles a datom from a decoded index entry: if
// the stored index value is normal, the decoded key already carries v
// in full; otherwise the real value is fetched from Giants.
func (s *Store) retrievedToDatom(r index.Retrieved, idxVal []byte) (datom.Datom, error) {
	attrs := s.Attrs()
	attr, ok := attrs[r.Aid]
	if !ok {
		return datom.Datom{}, fmt.Errorf("store: aid %d has no attribute mapping", r.Aid)
	}

	giant, gt, err := index.DecodeIndexValue(idxVal)
	if err != nil {
		return datom.Datom{}, err
	}

	v := r.V
	if giant {
		v, err = s.dereferenceGiant(gt)
		if err != nil {
			return datom.Datom{}, err
		}
	}
	return datom.Assert(r.E, attr, v), nil
}

// Fetch performs a point lookup of one fully-specified datom in EAV.
func (s *Store) Fetch(e uint64, attr string, v datom.Value) ([]datom.Datom, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	props, ok := s.cat.Resolve(attr)
	if !ok {
		return nil, nil
	}

	key, _ := index.EncodeDatom(index.EAV, e, props.Aid, v)
	idxVal, found, err := s.kv.Get(kv.NSEav, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	r, err := index.DecodeKey(index.EAV, key)
	if err != nil {
		return nil, err
	}
	d, err := s.retrievedToDatom(r, idxVal)
	if err != nil {
		return nil, err
	}
	return []datom.Datom{d}, nil
}

// Populated reports whether any entry exists in kind's closed range.
func (s *Store) Populated(kind index.Kind, lo, hi index.Bound) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	spec, err := boundsToSpec(kind, lo, hi, false)
	if err != nil {
		return false, err
	}
	_, _, found, err := s.kv.GetFirst(namespaceFor(kind), spec)
	return found, err
}

// Size returns the exact count of entries in kind's closed range.
func (s *Store) Size(kind index.Kind, lo, hi index.Bound) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	spec, err := boundsToSpec(kind, lo, hi, false)
	if err != nil {
		return 0, err
	}
	return s.kv.RangeCount(namespaceFor(kind), spec)
}

// Head returns the first datom in kind's closed range, if any.
func (s *Store) Head(kind index.Kind, lo, hi index.Bound) (*datom.Datom, error) {
	return s.edge(kind, lo, hi, false)
}

// Tail returns the last datom in kind's closed range, if any; scans in
// reverse rather than materializing the whole range.
func (s *Store) Tail(kind index.Kind, lo, hi index.Bound) (*datom.Datom, error) {
	return s.edge(kind, lo, hi, true)
}

func (s *Store) edge(kind index.Kind, lo, hi index.Bound, reverse bool) (*datom.Datom, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	spec, err := boundsToSpec(kind, lo, hi, reverse)
	if err != nil {
		return nil, err
	}
	key, val, found, err := s.kv.GetFirst(namespaceFor(kind), spec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	r, err := index.DecodeKey(kind, key)
	if err != nil {
		return nil, err
	}
	d, err := s.retrievedToDatom(r, val)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Slice materializes kind's closed range in ascending order.
func (s *Store) Slice(kind index.Kind, lo, hi index.Bound) ([]datom.Datom, error) {
	return s.scan(kind, lo, hi, false)
}

// RSlice materializes kind's closed range in descending order.
func (s *Store) RSlice(kind index.Kind, lo, hi index.Bound) ([]datom.Datom, error) {
	return s.scan(kind, lo, hi, true)
}

func (s *Store) scan(kind index.Kind, lo, hi index.Bound, reverse bool) ([]datom.Datom, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	spec, err := boundsToSpec(kind, lo, hi, reverse)
	if err != nil {
		return nil, err
	}

	var out []datom.Datom
	err = s.kv.Range(namespaceFor(kind), spec, func(key, val []byte) (bool, error) {
		r, err := index.DecodeKey(kind, key)
		if err != nil {
			return false, err
		}
		d, err := s.retrievedToDatom(r, val)
		if err != nil {
			return false, err
		}
		out = append(out, d)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Predicate tests a fully decoded datom; giant values are materialized
// before the predicate sees them.
type Predicate func(datom.Datom) bool

// PopulatedFilter reports whether any datom in kind's closed range
// satisfies pred.
func (s *Store) PopulatedFilter(kind index.Kind, pred Predicate, lo, hi index.Bound) (bool, error) {
	d, err := s.headFilter(kind, pred, lo, hi, false)
	if err != nil {
		return false, err
	}
	return d != nil, nil
}

// SizeFilter counts the datoms in kind's closed range satisfying pred,
// without materializing them.
func (s *Store) SizeFilter(kind index.Kind, pred Predicate, lo, hi index.Bound) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	spec, err := boundsToSpec(kind, lo, hi, false)
	if err != nil {
		return 0, err
	}
	return s.kv.RangeFilterCount(namespaceFor(kind), spec, func(key, val []byte) (bool, error) {
		r, err := index.DecodeKey(kind, key)
		if err != nil {
			return false, err
		}
		d, err := s.retrievedToDatom(r, val)
		if err != nil {
			return false, err
		}
		return pred(d), nil
	})
}

// HeadFilter returns the first matching datom in ascending order.
func (s *Store) HeadFilter(kind index.Kind, pred Predicate, lo, hi index.Bound) (*datom.Datom, error) {
	return s.headFilter(kind, pred, lo, hi, false)
}

// TailFilter returns the first matching datom in descending order.
func (s *Store) TailFilter(kind index.Kind, pred Predicate, lo, hi index.Bound) (*datom.Datom, error) {
	return s.headFilter(kind, pred, lo, hi, true)
}

func (s *Store) headFilter(kind index.Kind, pred Predicate, lo, hi index.Bound, reverse bool) (*datom.Datom, error) {
	datoms, err := s.scanFilterLimit(kind, pred, lo, hi, reverse, 1)
	if err != nil {
		return nil, err
	}
	if len(datoms) == 0 {
		return nil, nil
	}
	return &datoms[0], nil
}

// SliceFilter materializes, in ascending order, the datoms in kind's
// closed range satisfying pred.
func (s *Store) SliceFilter(kind index.Kind, pred Predicate, lo, hi index.Bound) ([]datom.Datom, error) {
	return s.scanFilter(kind, pred, lo, hi, false)
}

// RSliceFilter materializes, in descending order, the datoms in kind's
// closed range satisfying pred.
func (s *Store) RSliceFilter(kind index.Kind, pred Predicate, lo, hi index.Bound) ([]datom.Datom, error) {
	return s.scanFilter(kind, pred, lo, hi, true)
}

func (s *Store) scanFilter(kind index.Kind, pred Predicate, lo, hi index.Bound, reverse bool) ([]datom.Datom, error) {
	return s.scanFilterLimit(kind, pred, lo, hi, reverse, -1)
}

// scanFilterLimit decodes every entry in kind's closed range, applies
// pred to the fully materialized datom (dereferencing giants first),
// and stops early once limit matches are found (limit<0 means
// unbounded).
func (s *Store) scanFilterLimit(kind index.Kind, pred Predicate, lo, hi index.Bound, reverse bool, limit int) ([]datom.Datom, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	spec, err := boundsToSpec(kind, lo, hi, reverse)
	if err != nil {
		return nil, err
	}

	// Decoding a raw entry into a datom (and dereferencing Giants) is
	// done once per entry, inside the kv-level predicate; visit then
	// just accumulates the already-decoded datom the predicate found
	// matching.
	var current datom.Datom
	var out []datom.Datom
	err = s.kv.RangeFilter(namespaceFor(kind), spec, func(key, val []byte) (bool, error) {
		r, err := index.DecodeKey(kind, key)
		if err != nil {
			return false, err
		}
		d, err := s.retrievedToDatom(r, val)
		if err != nil {
			return false, err
		}
		if !pred(d) {
			return false, nil
		}
		current = d
		return true, nil
	}, func(key, val []byte) (bool, error) {
		out = append(out, current)
		return limit < 0 || len(out) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DatomCount returns the total number of entries in kind.
func (s *Store) DatomCount(kind index.Kind) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	return s.kv.RangeCount(namespaceFor(kind), kv.All())
}

// InitMaxEID scans EAV backwards and returns the largest entity id
// present, or 0 if EAV is empty. The entity id is always key-resident
// regardless of whether that entry's value is giant, so no Giants
// dereference is needed here.
func (s *Store) InitMaxEID() (uint64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	key, _, found, err := s.kv.GetFirst(kv.NSEav, kv.AllBack())
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	r, err := index.DecodeKey(index.EAV, key)
	if err != nil {
		return 0, err
	}
	return r.E, nil
}
