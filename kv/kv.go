// Package kv is the ordered K/V substrate the storage engine sits on:
// open/close, atomic batched transact, point get, ranged get, range
// count, and range filter, all on top of badger/v4. Badger has no
// concept of named sub-databases, so each Namespace is realized as a
// one-byte key prefix inside a single badger.DB. Namespace scoping
// and range bounds are enforced at this layer, ordering semantics live
// entirely in the callers' key bytes.
package kv

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Namespace identifies one of the six sub-databases: the three
// covering indexes, the giants overflow table, the schema catalog, and
// the meta records.
type Namespace byte

const (
	NSEav Namespace = iota
	NSAve
	NSVea
	NSGiants
	NSSchema
	NSMeta
	nsCount
)

func (ns Namespace) String() string {
	switch ns {
	case NSEav:
		return "eav"
	case NSAve:
		return "ave"
	case NSVea:
		return "vea"
	case NSGiants:
		return "giants"
	case NSSchema:
		return "schema"
	case NSMeta:
		return "meta"
	default:
		return fmt.Sprintf("namespace(%d)", byte(ns))
	}
}

// dbiLimits is a sub-database's key/value size budget; OpenNamespace
// records it and every Transact validates against it, so a key-layout
// bug in package index is caught at the KV boundary rather than
// silently corrupting an index.
type dbiLimits struct {
	maxKeyBytes, maxValBytes int
	opened                   bool
}

// Store is a handle on the K/V substrate. The zero value is not usable;
// construct with Open.
type Store struct {
	db     *badger.DB
	dir    string
	limits [nsCount]dbiLimits
	closed bool
}

// Open opens (creating if absent) the badger environment rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kv: failed to open badger at %s: %w", dir, err)
	}

	return &Store{db: db, dir: dir}, nil
}

// OpenNamespace registers a sub-database's key/value size budget.
// Idempotent: a store's Open call registers every namespace it uses
// once, at startup.
func (s *Store) OpenNamespace(ns Namespace, maxKeyBytes, maxValBytes int) {
	s.limits[ns] = dbiLimits{maxKeyBytes: maxKeyBytes, maxValBytes: maxValBytes, opened: true}
}

// Dir returns the directory the store was opened on.
func (s *Store) Dir() string { return s.dir }

// Closed reports whether Close has been called.
func (s *Store) Closed() bool { return s.closed }

// Close releases the underlying badger environment. Idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// prefixed returns ns's one-byte namespace prefix prepended to key.
func prefixed(ns Namespace, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(ns)
	copy(out[1:], key)
	return out
}

func (s *Store) validate(ns Namespace, key, val []byte) error {
	lim := s.limits[ns]
	if !lim.opened {
		return nil
	}
	if lim.maxKeyBytes > 0 && len(key) > lim.maxKeyBytes {
		return fmt.Errorf("kv: key for %s exceeds %d bytes (got %d)", ns, lim.maxKeyBytes, len(key))
	}
	if lim.maxValBytes > 0 && val != nil && len(val) > lim.maxValBytes {
		return fmt.Errorf("kv: value for %s exceeds %d bytes (got %d)", ns, lim.maxValBytes, len(val))
	}
	return nil
}

// OpKind distinguishes a put from a delete within a Transact batch.
type OpKind byte

const (
	OpPut OpKind = iota
	OpDel
)

// Op is one write in a Transact batch: [:put ns k v] or [:del ns k].
type Op struct {
	Kind OpKind
	NS   Namespace
	Key  []byte
	Val  []byte
}

// Transact commits every op atomically in one badger transaction, in
// input order. If any op fails validation or the commit fails, no key
// in the batch is mutated; atomicity is delegated entirely to badger.
func (s *Store) Transact(ops []Op) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for _, op := range ops {
		if err := s.validate(op.NS, op.Key, op.Val); err != nil {
			return err
		}
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			key := prefixed(op.NS, op.Key)
			switch op.Kind {
			case OpPut:
				if err := txn.Set(key, op.Val); err != nil {
					return fmt.Errorf("kv: put into %s failed: %w", op.NS, err)
				}
			case OpDel:
				if err := txn.Delete(key); err != nil && err != badger.ErrKeyNotFound {
					return fmt.Errorf("kv: delete from %s failed: %w", op.NS, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// Get performs a point lookup in ns.
func (s *Store) Get(ns Namespace, key []byte) (val []byte, found bool, err error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}

	err = s.db.View(func(txn *badger.Txn) error {
		item, e := txn.Get(prefixed(ns, key))
		if e == badger.ErrKeyNotFound {
			return nil
		}
		if e != nil {
			return e
		}
		found = true
		return item.Value(func(v []byte) error {
			val = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return val, found, nil
}

// inRange reports whether key, stripped of its namespace prefix, is
// still within the closed bound described by rs.
func inRange(rs RangeSpec, key []byte) bool {
	switch rs.Kind {
	case RangeAll, RangeAllBack:
		return true
	case RangeClosed, RangeClosedBack:
		return bytes.Compare(key, rs.Lo) >= 0 && bytes.Compare(key, rs.Hi) <= 0
	default:
		return false
	}
}

func (rs RangeSpec) reverse() bool {
	return rs.Kind == RangeAllBack || rs.Kind == RangeClosedBack
}

func (rs RangeSpec) seekKey(ns Namespace) []byte {
	switch rs.Kind {
	case RangeClosed:
		return prefixed(ns, rs.Lo)
	case RangeClosedBack:
		return prefixed(ns, rs.Hi)
	case RangeAllBack:
		// Seek past the namespace's last possible key by seeking to the
		// start of the next namespace.
		return []byte{byte(ns) + 1}
	default: // RangeAll
		return []byte{byte(ns)}
	}
}
