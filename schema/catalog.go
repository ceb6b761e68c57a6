package schema

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/datom"
	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/kv"
)

// ErrSchemaConflict is returned by SwapAttr/SetSchema when a migration
// is refused: narrowing cardinality many->one, changing valueType over
// existing data, or adding :db/unique over data that already violates
// it.
var ErrSchemaConflict = errors.New("schema: migration conflict")

// MetaLastModifiedKey is the Meta namespace key storing the store's
// last-write timestamp. Both schema writes and datom-batch loads in
// package store advance it.
const MetaLastModifiedKey = "last-modified"

// EncodeTimestamp/DecodeTimestamp give package store the same
// timestamp wire format the catalog uses for MetaLastModifiedKey.
func EncodeTimestamp(t time.Time) []byte {
	b := codec.OrderedInt64(t.UnixNano())
	return b[:]
}

func DecodeTimestamp(b []byte) (time.Time, error) {
	if len(b) != 8 {
		return time.Time{}, fmt.Errorf("schema: timestamp must be 8 bytes, got %d", len(b))
	}
	return time.Unix(0, codec.DecodeOrderedInt64(b)).UTC(), nil
}

// snapshot is the immutable published view of the catalog's state.
// Readers obtain one via atomic.Pointer.Load and never see a mutation
// in progress.
type snapshot struct {
	schema  Schema
	rschema RSchema
	attrs   map[uint32]string
	maxAid  uint32
}

// Catalog is the attribute catalog: in-memory snapshot plus its
// badger-backed persistence. All mutation methods assume the caller
// already holds whatever exclusive write lock package store serializes
// LoadDatoms/SwapAttr under. Catalog itself does not lock, so that a
// single store-level critical section can span both a schema mutation
// and its associated datom writes.
type Catalog struct {
	kv   *kv.Store
	snap atomic.Pointer[snapshot]
}

// Open loads the persisted schema from kv, seeding the implicit schema
// on first use, and returns a ready Catalog.
func Open(store *kv.Store) (*Catalog, error) {
	c := &Catalog{kv: store}

	s := make(Schema)
	err := store.Range(kv.NSSchema, kv.All(), func(k, v []byte) (bool, error) {
		props, err := decodeProps(v)
		if err != nil {
			return false, err
		}
		s[string(k)] = props
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("schema: failed to load catalog: %w", err)
	}

	if len(s) == 0 {
		s = ImplicitSchema()
		var ops []kv.Op
		for attr, props := range s {
			ops = append(ops, kv.Op{Kind: kv.OpPut, NS: kv.NSSchema, Key: []byte(attr), Val: encodeProps(props)})
		}
		ops = append(ops, kv.Op{Kind: kv.OpPut, NS: kv.NSMeta, Key: []byte(MetaLastModifiedKey), Val: EncodeTimestamp(epochZero())})
		if err := store.Transact(ops); err != nil {
			return nil, fmt.Errorf("schema: failed to seed implicit schema: %w", err)
		}
	}

	c.publish(s)
	return c, nil
}

// epochZero exists only so Open's initial timestamp doesn't call
// time.Now (kept out of the hot path; store.LoadDatoms stamps real
// wall-clock time on every batch via EncodeTimestamp).
func epochZero() time.Time { return time.Unix(0, 0).UTC() }

func (c *Catalog) publish(s Schema) {
	c.snap.Store(&snapshot{
		schema:  s,
		rschema: DeriveRSchema(s),
		attrs:   Attrs(s),
		maxAid:  MaxAid(s),
	})
}

func (c *Catalog) load() *snapshot { return c.snap.Load() }

// Schema returns the currently published attribute -> properties map.
// The returned map is never mutated in place after publication and is
// safe to read without additional synchronization.
func (c *Catalog) Schema() Schema { return c.load().schema }

// RSchema returns the currently published reverse schema.
func (c *Catalog) RSchema() RSchema { return c.load().rschema }

// Attrs returns the currently published aid -> attribute-name map.
func (c *Catalog) Attrs() map[uint32]string { return c.load().attrs }

// MaxAid returns the largest aid allocated so far.
func (c *Catalog) MaxAid() uint32 { return c.load().maxAid }

// Resolve looks up one attribute's properties.
func (c *Catalog) Resolve(attr string) (Properties, bool) {
	p, ok := c.load().schema[attr]
	return p, ok
}

// MutateFunc computes the new properties for an attribute given its
// old properties (zero value if it didn't exist) and whether it
// existed. Returning an error aborts the swap with no side effects.
type MutateFunc func(old Properties, exists bool) (Properties, error)

// SwapAttr atomically applies f to attr's current properties,
// allocates an aid if attr is new, enforces migration rules, persists
// the result (plus an updated last-modified stamp), and republishes
// the snapshot. Callers must already hold the store's write lock.
func (c *Catalog) SwapAttr(attr string, f MutateFunc) (Properties, error) {
	snap := c.load()
	old, exists := snap.schema[attr]

	updated, err := f(old, exists)
	if err != nil {
		return Properties{}, err
	}

	if exists {
		updated.Aid = old.Aid
		if err := c.checkMigration(old, updated, updated.Aid); err != nil {
			return Properties{}, err
		}
	} else {
		updated.Aid = snap.maxAid + 1
	}

	next := make(Schema, len(snap.schema)+1)
	for k, v := range snap.schema {
		next[k] = v
	}
	next[attr] = updated

	ops := []kv.Op{
		{Kind: kv.OpPut, NS: kv.NSSchema, Key: []byte(attr), Val: encodeProps(updated)},
		{Kind: kv.OpPut, NS: kv.NSMeta, Key: []byte(MetaLastModifiedKey), Val: EncodeTimestamp(time.Now().UTC())},
	}
	if err := c.kv.Transact(ops); err != nil {
		return Properties{}, fmt.Errorf("schema: failed to persist %q: %w", attr, err)
	}

	c.publish(next)
	return updated, nil
}

// EnsureAttr returns attr's existing properties, or allocates a fresh
// record with defaultValueType/cardinality-one if attr has never been
// seen before (the auto-allocate-on-first-sight path ingestion uses).
func (c *Catalog) EnsureAttr(attr string, defaultValueType datom.ValueType) (Properties, error) {
	return c.SwapAttr(attr, func(old Properties, exists bool) (Properties, error) {
		if exists {
			return old, nil
		}
		return Properties{ValueType: defaultValueType, Cardinality: CardinalityOne, Unique: UniqueNone}, nil
	})
}

// SetSchema merges input into the catalog in one transaction, used by
// bulk schema installs. New attributes are allocated aids in sorted
// name order, so the same schema map always produces the same aids;
// existing attributes keep their aid and are subject to the same
// migration rules as SwapAttr.
func (c *Catalog) SetSchema(input Schema) error {
	snap := c.load()
	next := make(Schema, len(snap.schema)+len(input))
	for k, v := range snap.schema {
		next[k] = v
	}

	names := make([]string, 0, len(input))
	for attr := range input {
		names = append(names, attr)
	}
	sort.Strings(names)

	nextAid := snap.maxAid
	var ops []kv.Op
	for _, attr := range names {
		props := input[attr]
		old, exists := snap.schema[attr]
		updated := props
		if exists {
			updated.Aid = old.Aid
			if err := c.checkMigration(old, updated, updated.Aid); err != nil {
				return err
			}
		} else {
			nextAid++
			updated.Aid = nextAid
		}
		next[attr] = updated
		ops = append(ops, kv.Op{Kind: kv.OpPut, NS: kv.NSSchema, Key: []byte(attr), Val: encodeProps(updated)})
	}
	ops = append(ops, kv.Op{Kind: kv.OpPut, NS: kv.NSMeta, Key: []byte(MetaLastModifiedKey), Val: EncodeTimestamp(time.Now().UTC())})

	if err := c.kv.Transact(ops); err != nil {
		return fmt.Errorf("schema: failed to persist schema set: %w", err)
	}
	c.publish(next)
	return nil
}

// checkMigration enforces the migration rules: refuse cardinality
// many->one and valueType changes when the attribute already has data,
// and validate any newly-added :db/unique against the existing AVE
// entries for aid.
func (c *Catalog) checkMigration(old, updated Properties, aid uint32) error {
	hasData, err := c.hasData(aid)
	if err != nil {
		return err
	}

	if hasData {
		if old.Cardinality == CardinalityMany && updated.Cardinality == CardinalityOne {
			return fmt.Errorf("%w: attribute has cardinality-many data, cannot narrow to one", ErrSchemaConflict)
		}
		if old.ValueType != updated.ValueType {
			return fmt.Errorf("%w: attribute has existing data of type %v, cannot change to %v", ErrSchemaConflict, old.ValueType, updated.ValueType)
		}
	}

	if old.Unique == UniqueNone && updated.Unique != UniqueNone {
		dup, err := c.hasDuplicateValues(aid)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("%w: attribute has duplicate values across entities, cannot add uniqueness", ErrSchemaConflict)
		}
	}

	return nil
}

func (c *Catalog) hasData(aid uint32) (bool, error) {
	lo, err := index.EncodeLow(index.AVE, index.Bound{Aid: &aid})
	if err != nil {
		return false, err
	}
	hi, err := index.EncodeHigh(index.AVE, index.Bound{Aid: &aid})
	if err != nil {
		return false, err
	}
	count, err := c.kv.RangeCount(kv.NSAve, kv.Closed(lo, hi))
	return count > 0, err
}

// hasDuplicateValues scans the AVE range for aid, which is ordered by
// (aid, value, entity), looking for the same value attached to two
// different entities. Adjacent non-giant entries carry equal values iff
// their encoded value slots are byte-identical, so the scan compares the
// raw slot between the aid prefix and the trailing entity id rather than
// decoding each key. Giant values are compared on their truncated
// key-resident prefix only, so two distinct giant values sharing that
// prefix count as duplicates.
func (c *Catalog) hasDuplicateValues(aid uint32) (bool, error) {
	lo, err := index.EncodeLow(index.AVE, index.Bound{Aid: &aid})
	if err != nil {
		return false, err
	}
	hi, err := index.EncodeHigh(index.AVE, index.Bound{Aid: &aid})
	if err != nil {
		return false, err
	}

	var lastSlot []byte
	dup := false
	err = c.kv.Range(kv.NSAve, kv.Closed(lo, hi), func(k, v []byte) (bool, error) {
		if len(k) < 13 {
			return false, fmt.Errorf("schema: malformed ave key for aid %d", aid)
		}
		slot := k[4 : len(k)-8]
		if lastSlot != nil && bytes.Equal(lastSlot, slot) {
			dup = true
			return false, nil
		}
		lastSlot = append(lastSlot[:0], slot...)
		return true, nil
	})
	return dup, err
}
