// Package store wires codec, datom, index, schema, and kv together
// into the single handle upper layers use: Store, exclusively owning
// the underlying K/V environment. Writes flow one way (datom, encoded
// key, batched put across indexes); reads run the reverse path and
// re-materialize giant values on the way out.
package store

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/kv"
	"github.com/wbrown/datomstore/schema"
)

// txDatomBatchSize is the fixed chunk size LoadDatoms partitions its
// input into, each chunk committed as one atomic K/V transaction.
const txDatomBatchSize = 1000

// Store is the storage engine's single external handle: it owns the
// K/V environment, the schema catalog, and the giant-id counter, and
// serializes all writers.
type Store struct {
	kv  *kv.Store
	cat *schema.Catalog

	maxGt atomic.Uint64

	// writeMu serializes LoadDatoms and SwapAttr for their full
	// duration. Readers never take it.
	writeMu sync.Mutex

	closed atomic.Bool
}

// Open opens (creating if absent) a store rooted at dir: registers the
// six sub-databases with their key/value size budgets, seeds the
// implicit schema on first use, and recovers max-gt from the Giants
// sub-database.
func Open(dir string) (*Store, error) {
	kvStore, err := kv.Open(dir)
	if err != nil {
		return nil, err
	}

	kvStore.OpenNamespace(kv.NSEav, index.MaxKeySize, 8)
	kvStore.OpenNamespace(kv.NSAve, index.MaxKeySize, 8)
	kvStore.OpenNamespace(kv.NSVea, index.MaxKeySize, 8)
	kvStore.OpenNamespace(kv.NSGiants, 8, 0)
	kvStore.OpenNamespace(kv.NSSchema, 0, schema.PropsSize)
	kvStore.OpenNamespace(kv.NSMeta, 0, 0)

	cat, err := schema.Open(kvStore)
	if err != nil {
		kvStore.Close()
		return nil, fmt.Errorf("store: failed to open schema catalog: %w", err)
	}

	s := &Store{kv: kvStore, cat: cat}

	maxGt, err := recoverMaxGt(kvStore)
	if err != nil {
		kvStore.Close()
		return nil, fmt.Errorf("store: failed to recover max-gt: %w", err)
	}
	s.maxGt.Store(maxGt)

	return s, nil
}

// initialMaxGt is the first giant id a fresh store hands out; gt=0 is
// the reserved "normal" sentinel in index value slots and is never
// allocated.
const initialMaxGt = 1

// recoverMaxGt rebuilds the giant-id counter as last-stored-gt + 1, or
// initialMaxGt if Giants is empty. The counter is never persisted on
// its own; Giants is the only source of truth.
func recoverMaxGt(kvStore *kv.Store) (uint64, error) {
	k, _, found, err := kvStore.GetFirst(kv.NSGiants, kv.AllBack())
	if err != nil {
		return 0, err
	}
	if !found {
		return initialMaxGt, nil
	}
	return codec.DecodeOrderedUint64(k) + 1, nil
}

// Dir returns the directory the store was opened on.
func (s *Store) Dir() string { return s.kv.Dir() }

// Closed reports whether Close has been called.
func (s *Store) Closed() bool { return s.closed.Load() }

// Close releases the underlying K/V environment. Idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.kv.Close()
}

func (s *Store) checkOpen() error {
	if s.Closed() {
		return ErrClosed
	}
	return nil
}

// Schema returns the currently published attribute -> properties map.
func (s *Store) Schema() schema.Schema { return s.cat.Schema() }

// RSchema returns the currently published reverse schema.
func (s *Store) RSchema() schema.RSchema { return s.cat.RSchema() }

// Attrs returns the currently published aid -> attribute-name map.
func (s *Store) Attrs() map[uint32]string { return s.cat.Attrs() }

// MaxAid returns the largest attribute id allocated so far.
func (s *Store) MaxAid() uint32 { return s.cat.MaxAid() }

// MaxGt returns the next giant id to be allocated; initialMaxGt means
// Giants was empty when the store was opened and no giant has been
// allocated since.
func (s *Store) MaxGt() uint64 { return s.maxGt.Load() }

// AdvanceMaxGt reserves the current giant id and advances the counter
// past it, so allocations within one open store are strictly
// increasing. A reopened store resumes after the highest gt still
// present in Giants.
func (s *Store) AdvanceMaxGt() uint64 { return s.maxGt.Add(1) - 1 }

// SetSchema merges input into the catalog: existing attributes keep
// their aid, new ones are allocated max_aid+1.
func (s *Store) SetSchema(input schema.Schema) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.cat.SetSchema(input)
}

// SwapAttr atomically mutates one attribute's properties under the
// store's exclusive write lock.
func (s *Store) SwapAttr(attr string, f schema.MutateFunc) (schema.Properties, error) {
	if err := s.checkOpen(); err != nil {
		return schema.Properties{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.cat.SwapAttr(attr, f)
}

// LastModified returns the timestamp of the most recent write.
func (s *Store) LastModified() (time.Time, error) {
	if err := s.checkOpen(); err != nil {
		return time.Time{}, err
	}
	b, found, err := s.kv.Get(kv.NSMeta, []byte(schema.MetaLastModifiedKey))
	if err != nil {
		return time.Time{}, err
	}
	if !found {
		return time.Time{}, nil
	}
	return schema.DecodeTimestamp(b)
}
