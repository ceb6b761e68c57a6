package store

import (
	"time"

	"github.com/wbrown/datomstore/codec"
	"github.com/wbrown/datomstore/datom"
	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/kv"
	"github.com/wbrown/datomstore/schema"
)

// LoadDatoms ingests datoms, partitioning them into fixed-size batches
// (txDatomBatchSize) each committed as one atomic K/V transaction. The
// whole call holds the store's exclusive write lock: LoadDatoms is
// mutually exclusive with itself and with SwapAttr/SetSchema across
// goroutines. Earlier batches are durable before later batches begin;
// a failed batch leaves none of its index, Giants, or meta writes
// behind, though attributes auto-allocated while building it were
// already committed by their own schema transactions.
func (s *Store) LoadDatoms(datoms []datom.Datom) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for start := 0; start < len(datoms); start += txDatomBatchSize {
		end := start + txDatomBatchSize
		if end > len(datoms) {
			end = len(datoms)
		}
		if err := s.loadBatch(datoms[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadBatch(batch []datom.Datom) error {
	var ops []kv.Op

	for _, d := range batch {
		if d.Added {
			assertOps, err := s.assertOps(d)
			if err != nil {
				return err
			}
			ops = append(ops, assertOps...)
			continue
		}

		retractOps, err := s.retractOps(d)
		if err != nil {
			return err
		}
		ops = append(ops, retractOps...)
	}

	ops = append(ops, kv.Op{
		Kind: kv.OpPut,
		NS:   kv.NSMeta,
		Key:  []byte(schema.MetaLastModifiedKey),
		Val:  schema.EncodeTimestamp(time.Now().UTC()),
	})

	return s.kv.Transact(ops)
}

// assertOps builds the puts for one asserted datom: EAV, AVE, and (if
// the attribute is ref-typed) VEA, plus a Giants entry if the value
// doesn't fit the key budget. An unseen attribute is auto-allocated
// via EnsureAttr, called directly on the catalog (not through
// Store.SwapAttr) because LoadDatoms already holds the store's write
// lock; known attributes resolve from the published snapshot without
// touching the catalog's persistence.
func (s *Store) assertOps(d datom.Datom) ([]kv.Op, error) {
	props, ok := s.cat.Resolve(d.A)
	if !ok {
		var err error
		props, err = s.cat.EnsureAttr(d.A, datom.TypeOf(d.V))
		if err != nil {
			return nil, err
		}
	}

	eavKey, giant := index.EncodeDatom(index.EAV, d.E, props.Aid, d.V)
	aveKey, _ := index.EncodeDatom(index.AVE, d.E, props.Aid, d.V)

	var gt uint64
	if giant {
		gt = s.AdvanceMaxGt()
	}
	idxVal := index.EncodeIndexValue(gt)

	ops := []kv.Op{
		{Kind: kv.OpPut, NS: kv.NSEav, Key: eavKey, Val: idxVal},
		{Kind: kv.OpPut, NS: kv.NSAve, Key: aveKey, Val: idxVal},
	}

	if props.ValueType == datom.TypeRef {
		veaKey, _ := index.EncodeDatom(index.VEA, d.E, props.Aid, d.V)
		ops = append(ops, kv.Op{Kind: kv.OpPut, NS: kv.NSVea, Key: veaKey, Val: idxVal})
	}

	if giant {
		ops = append(ops, kv.Op{Kind: kv.OpPut, NS: kv.NSGiants, Key: giantKey(gt), Val: giantValue(d.V)})
	}

	return ops, nil
}

// retractOps builds the deletes for one retracted datom. An unknown
// attribute or an already-absent EAV entry is a no-op (see
// ErrUnknownAttribute); the batch still advances last-modified via
// loadBatch's trailing put.
func (s *Store) retractOps(d datom.Datom) ([]kv.Op, error) {
	props, ok := s.cat.Resolve(d.A)
	if !ok {
		return nil, nil
	}

	eavKey, _ := index.EncodeDatom(index.EAV, d.E, props.Aid, d.V)
	val, found, err := s.kv.Get(kv.NSEav, eavKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	giant, gt, err := index.DecodeIndexValue(val)
	if err != nil {
		return nil, err
	}

	aveKey, _ := index.EncodeDatom(index.AVE, d.E, props.Aid, d.V)
	ops := []kv.Op{
		{Kind: kv.OpDel, NS: kv.NSEav, Key: eavKey},
		{Kind: kv.OpDel, NS: kv.NSAve, Key: aveKey},
	}

	if props.ValueType == datom.TypeRef {
		veaKey, _ := index.EncodeDatom(index.VEA, d.E, props.Aid, d.V)
		ops = append(ops, kv.Op{Kind: kv.OpDel, NS: kv.NSVea, Key: veaKey})
	}

	if giant {
		ops = append(ops, kv.Op{Kind: kv.OpDel, NS: kv.NSGiants, Key: giantKey(gt)})
	}

	return ops, nil
}

func giantKey(gt uint64) []byte {
	b := codec.OrderedUint64(gt)
	return b[:]
}

func giantValue(v datom.Value) []byte {
	return append([]byte{byte(datom.TypeOf(v))}, datom.Bytes(v)...)
}

func decodeGiantValue(b []byte) (datom.Value, error) {
	if len(b) < 1 {
		return nil, ErrIO
	}
	return datom.FromBytes(datom.ValueType(b[0]), b[1:])
}
