package store

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wbrown/datomstore/datom"
	"github.com/wbrown/datomstore/index"
	"github.com/wbrown/datomstore/schema"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "store-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func u64p(n uint64) *uint64 { return &n }

func aidOf(t *testing.T, s *Store, attr string) uint32 {
	t.Helper()
	props, ok := s.cat.Resolve(attr)
	require.True(t, ok, "attribute %s should be resolvable", attr)
	return props.Aid
}

// Basic assert then retract over a small two-attribute schema.
func TestBasicAssertRetract(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{
		":name": {ValueType: datom.TypeString, Cardinality: schema.CardinalityOne},
		":age":  {ValueType: datom.TypeLong, Cardinality: schema.CardinalityOne},
	}))

	require.NoError(t, s.LoadDatoms([]datom.Datom{
		datom.Assert(1, ":name", "Ada"),
		datom.Assert(1, ":age", int64(36)),
	}))

	// SetSchema allocates aids in sorted name order, so :age sorts
	// before :name within the entity's EAV range.
	e := u64p(1)
	got, err := s.Slice(index.EAV, index.Bound{E: e}, index.Bound{E: e})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, ":age", got[0].A)
	require.Equal(t, ":name", got[1].A)

	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Retract(1, ":age", int64(36))}))

	got, err = s.Slice(index.EAV, index.Bound{E: e}, index.Bound{E: e})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, ":name", got[0].A)
	require.Equal(t, "Ada", got[0].V)
}

// A value too large for the key budget routes through Giants.
func TestGiantString(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":name": {ValueType: datom.TypeString}}))

	big := strings.Repeat("x", 1024)
	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Assert(2, ":name", big)}))

	got, err := s.Fetch(2, ":name", big)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, big, got[0].V)

	giantsInEAV, err := s.DatomCount(index.EAV)
	require.NoError(t, err)
	require.Equal(t, 1, giantsInEAV)
	// One giant consumed gt 1; the counter now points past it.
	require.Equal(t, uint64(2), s.MaxGt())
}

// Ref-typed datoms are reachable through the VEA index by value.
func TestReverseAttributeVEA(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":friend": {ValueType: datom.TypeRef}}))

	require.NoError(t, s.LoadDatoms([]datom.Datom{
		datom.Assert(10, ":friend", datom.Ref(20)),
		datom.Assert(11, ":friend", datom.Ref(20)),
	}))

	v := datom.Value(datom.Ref(20))
	got, err := s.Slice(index.VEA, index.Bound{V: v}, index.Bound{V: v})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(10), got[0].E)
	require.Equal(t, uint64(11), got[1].E)

	e20 := u64p(20)
	eavGot, err := s.Slice(index.EAV, index.Bound{E: e20}, index.Bound{E: e20})
	require.NoError(t, err)
	require.Empty(t, eavGot)
}

// Closed AVE ranges are inclusive on both endpoints.
func TestRangeBounds(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":score": {ValueType: datom.TypeLong}}))

	var datoms []datom.Datom
	for e := uint64(1); e <= 100; e++ {
		datoms = append(datoms, datom.Assert(e, ":score", int64(e*10)))
	}
	require.NoError(t, s.LoadDatoms(datoms))

	aid := aidOf(t, s, ":score")
	lo := index.Bound{Aid: &aid, V: int64(250)}
	hi := index.Bound{Aid: &aid, V: int64(500)}
	size, err := s.Size(index.AVE, lo, hi)
	require.NoError(t, err)
	require.Equal(t, 26, size)
}

// SliceFilter applies the predicate to decoded datoms in index order.
func TestPredicateFilter(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":score": {ValueType: datom.TypeLong}}))

	var datoms []datom.Datom
	for e := uint64(1); e <= 100; e++ {
		datoms = append(datoms, datom.Assert(e, ":score", int64(e*10)))
	}
	require.NoError(t, s.LoadDatoms(datoms))

	aid := aidOf(t, s, ":score")
	lo := index.Bound{Aid: &aid}
	hi := index.Bound{Aid: &aid}
	pred := func(d datom.Datom) bool { return d.V.(int64)%100 == 0 }

	got, err := s.SliceFilter(index.AVE, pred, lo, hi)
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, d := range got {
		require.Equal(t, int64((i+1)*100), d.V)
	}
}

// Reopening a directory recovers max-gt, giants, and aids intact.
func TestReopenPersistence(t *testing.T) {
	dir, err := os.MkdirTemp("", "store-reopen-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.SetSchema(schema.Schema{":name": {ValueType: datom.TypeString}}))
	aid := aidOf(t, s, ":name")

	big := strings.Repeat("y", 1024)
	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Assert(2, ":name", big)}))
	require.Equal(t, uint64(2), s.MaxGt())
	require.NoError(t, s.Close())

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()

	// Recovered as last-stored-gt + 1, so no gt is skipped or reused.
	require.Equal(t, uint64(2), s2.MaxGt())
	got, err := s2.Fetch(2, ":name", big)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, big, got[0].V)

	props, ok := s2.cat.Resolve(":name")
	require.True(t, ok)
	require.Equal(t, aid, props.Aid)
}

// Size, slice, rslice, head, and tail must all agree on the same range.
func TestSizeSliceRSliceHeadTailAgree(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":score": {ValueType: datom.TypeLong}}))

	var datoms []datom.Datom
	for e := uint64(1); e <= 10; e++ {
		datoms = append(datoms, datom.Assert(e, ":score", int64(e)))
	}
	require.NoError(t, s.LoadDatoms(datoms))

	aid := aidOf(t, s, ":score")
	lo := index.Bound{Aid: &aid}
	hi := index.Bound{Aid: &aid}

	size, err := s.Size(index.AVE, lo, hi)
	require.NoError(t, err)

	slice, err := s.Slice(index.AVE, lo, hi)
	require.NoError(t, err)
	require.Equal(t, size, len(slice))

	rslice, err := s.RSlice(index.AVE, lo, hi)
	require.NoError(t, err)
	require.Equal(t, size, len(rslice))

	for i := range slice {
		require.True(t, datom.ValuesEqual(slice[i].V, rslice[len(rslice)-1-i].V))
	}

	head, err := s.Head(index.AVE, lo, hi)
	require.NoError(t, err)
	require.NotNil(t, head)
	require.True(t, datom.ValuesEqual(head.V, slice[0].V))

	tail, err := s.Tail(index.AVE, lo, hi)
	require.NoError(t, err)
	require.NotNil(t, tail)
	require.True(t, datom.ValuesEqual(tail.V, slice[len(slice)-1].V))
}

// After SwapAttr, rschema and attrs are
// re-derived consistently.
func TestSwapAttrKeepsRSchemaAndAttrsConsistent(t *testing.T) {
	s, _ := openTestStore(t)
	props, err := s.SwapAttr(":widget/sku", func(old schema.Properties, exists bool) (schema.Properties, error) {
		return schema.Properties{ValueType: datom.TypeString, Unique: schema.UniqueValue}, nil
	})
	require.NoError(t, err)

	rs := s.RSchema()
	require.True(t, rs.ByUnique[schema.UniqueValue][":widget/sku"])

	attrs := s.Attrs()
	require.Equal(t, ":widget/sku", attrs[props.Aid])
}

// Fetch round-trips through assert/retract.
func TestFetchRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":name": {ValueType: datom.TypeString}}))

	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Assert(5, ":name", "Grace")}))
	got, err := s.Fetch(5, ":name", "Grace")
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Retract(5, ":name", "Grace")}))
	got, err = s.Fetch(5, ":name", "Grace")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClosedStoreFailsFast(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.Close())
	require.True(t, s.Closed())

	_, err := s.Fetch(1, ":name", "x")
	require.ErrorIs(t, err, ErrClosed)

	err = s.LoadDatoms([]datom.Datom{datom.Assert(1, ":name", "x")})
	require.ErrorIs(t, err, ErrClosed)
}

func TestRetractUnknownAttributeIsNoOp(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Retract(1, ":never/seen", "x")}))

	lm, err := s.LastModified()
	require.NoError(t, err)
	require.False(t, lm.IsZero())
}

func TestStatReportsIndexSizes(t *testing.T) {
	s, _ := openTestStore(t)
	require.NoError(t, s.SetSchema(schema.Schema{":name": {ValueType: datom.TypeString}}))
	require.NoError(t, s.LoadDatoms([]datom.Datom{datom.Assert(1, ":name", "Ada")}))

	report, err := s.Stat()
	require.NoError(t, err)
	require.Contains(t, report, "eav")
	require.Contains(t, report, "datomstore")
}
