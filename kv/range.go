package kv

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// RangeKind selects one of the four scan shapes: full namespace
// forward or backward, or a closed range forward or backward.
type RangeKind byte

const (
	RangeAll RangeKind = iota
	RangeAllBack
	RangeClosed
	RangeClosedBack
)

// RangeSpec describes a scan over one namespace. Lo/Hi are unprefixed
// (namespace-relative) keys; RangeClosed scans ascending from Lo
// through Hi inclusive, RangeClosedBack scans descending from Hi
// through Lo inclusive.
type RangeSpec struct {
	Kind   RangeKind
	Lo, Hi []byte
}

func All() RangeSpec     { return RangeSpec{Kind: RangeAll} }
func AllBack() RangeSpec { return RangeSpec{Kind: RangeAllBack} }
func Closed(lo, hi []byte) RangeSpec {
	return RangeSpec{Kind: RangeClosed, Lo: lo, Hi: hi}
}
func ClosedBack(hi, lo []byte) RangeSpec {
	return RangeSpec{Kind: RangeClosedBack, Lo: lo, Hi: hi}
}

// VisitFunc is called once per entry in range order; returning
// keepGoing=false stops the scan early (used by GetFirst and any
// single-result caller).
type VisitFunc func(key, val []byte) (keepGoing bool, err error)

// PredicateFunc tests a raw entry before it reaches a VisitFunc.
type PredicateFunc func(key, val []byte) (bool, error)

func (s *Store) iterate(ns Namespace, rs RangeSpec, visit VisitFunc) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Reverse = rs.reverse()

	it := txn.NewIterator(opts)
	defer it.Close()

	it.Seek(rs.seekKey(ns))
	for it.Valid() {
		item := it.Item()
		fullKey := item.KeyCopy(nil)
		if fullKey[0] != byte(ns) {
			break
		}
		key := fullKey[1:]
		if !inRange(rs, key) {
			if rs.Kind == RangeClosed || rs.Kind == RangeClosedBack {
				// Once we're past the bound in scan direction, nothing
				// further in this namespace can satisfy it either.
				break
			}
			it.Next()
			continue
		}

		var val []byte
		if err := item.Value(func(v []byte) error {
			val = append([]byte(nil), v...)
			return nil
		}); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}

		keepGoing, err := visit(key, val)
		if err != nil {
			return err
		}
		if !keepGoing {
			return nil
		}
		it.Next()
	}
	return nil
}

// GetFirst returns the first entry in rs's order, if any.
func (s *Store) GetFirst(ns Namespace, rs RangeSpec) (key, val []byte, found bool, err error) {
	err = s.iterate(ns, rs, func(k, v []byte) (bool, error) {
		key, val, found = append([]byte(nil), k...), v, true
		return false, nil
	})
	return key, val, found, err
}

// Range visits every entry in rs's order until visit returns false or
// the range is exhausted.
func (s *Store) Range(ns Namespace, rs RangeSpec, visit VisitFunc) error {
	return s.iterate(ns, rs, visit)
}

// RangeCount returns the number of entries in rs.
func (s *Store) RangeCount(ns Namespace, rs RangeSpec) (int, error) {
	count := 0
	err := s.iterate(ns, rs, func(k, v []byte) (bool, error) {
		count++
		return true, nil
	})
	return count, err
}

// RangeFilter visits every entry in rs's order for which pred is true.
func (s *Store) RangeFilter(ns Namespace, rs RangeSpec, pred PredicateFunc, visit VisitFunc) error {
	return s.iterate(ns, rs, func(k, v []byte) (bool, error) {
		ok, err := pred(k, v)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		return visit(k, v)
	})
}

// RangeFilterCount counts the entries in rs for which pred is true.
func (s *Store) RangeFilterCount(ns Namespace, rs RangeSpec, pred PredicateFunc) (int, error) {
	count := 0
	err := s.RangeFilter(ns, rs, pred, func(k, v []byte) (bool, error) {
		count++
		return true, nil
	})
	return count, err
}
