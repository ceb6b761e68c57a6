package index

import (
	"bytes"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wbrown/datomstore/datom"
)

func u64p(n uint64) *uint64 { return &n }
func u32p(n uint32) *uint32 { return &n }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []datom.Value{
		int64(-7), int64(42), 3.14, -3.14, true, false,
		"hello", datom.Keyword(":x"), datom.Symbol("sym"),
		datom.UUID{1, 2, 3}, []byte{9, 9}, datom.Ref(99),
		time.Unix(0, 123456).UTC(),
	}

	for _, kind := range []Kind{EAV, AVE, VEA} {
		for _, v := range cases {
			key, giant := EncodeDatom(kind, 5, 10, v)
			require.False(t, giant)

			got, err := DecodeKey(kind, key)
			require.NoError(t, err)
			require.Equal(t, uint64(5), got.E)
			require.Equal(t, uint32(10), got.Aid)
			require.True(t, datom.ValuesEqual(v, got.V), "kind=%v value=%v got=%v", kind, v, got.V)
		}
	}
}

func TestEAVOrderMatchesSemanticOrder(t *testing.T) {
	type triple struct {
		e   uint64
		aid uint32
		v   datom.Value
	}
	triples := []triple{
		{1, 1, int64(1)},
		{1, 2, int64(0)},
		{2, 1, int64(0)},
		{1, 1, int64(2)},
	}

	keys := make([][]byte, len(triples))
	for i, tr := range triples {
		keys[i], _ = EncodeDatom(EAV, tr.e, tr.aid, tr.v)
	}

	sorted := append([][]byte(nil), keys...)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	// Expected semantic order: (1,1,1) < (1,1,2) < (1,2,0) < (2,1,0)
	expectedOrder := []int{0, 3, 1, 2}
	for i, idx := range expectedOrder {
		require.True(t, bytes.Equal(sorted[i], keys[idx]), "position %d", i)
	}
}

func TestLongOrderingWithNegatives(t *testing.T) {
	vals := []int64{-100, -1, 0, 1, 100}
	var keys [][]byte
	for _, v := range vals {
		k, _ := EncodeDatom(AVE, 1, 1, v)
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		require.Less(t, bytes.Compare(keys[i-1], keys[i]), 0)
	}
}

func TestAVEOrderWithVariableWidthValues(t *testing.T) {
	// Within one attribute, AVE must order by (v, e) even when one
	// value is a strict prefix of another and the shorter value's
	// entity id has large high bytes trailing it in the key.
	k1, _ := EncodeDatom(AVE, 0xFF00000000000001, 1, "a")
	k2, _ := EncodeDatom(AVE, 1, 1, "ab")
	require.Less(t, bytes.Compare(k1, k2), 0)

	// Embedded zero bytes must not collide with the terminator.
	k3, _ := EncodeDatom(AVE, 1, 1, "a\x00b")
	require.Less(t, bytes.Compare(k1, k3), 0)
	require.Less(t, bytes.Compare(k3, k2), 0)

	got, err := DecodeKey(AVE, k3)
	require.NoError(t, err)
	require.Equal(t, "a\x00b", got.V)
}

func TestGiantClassification(t *testing.T) {
	small := "short"
	big := make([]byte, ValueBudget*2)
	for i := range big {
		big[i] = 'x'
	}

	_, giant := EncodeDatom(EAV, 1, 1, small)
	require.False(t, giant)

	_, giant = EncodeDatom(EAV, 1, 1, string(big))
	require.True(t, giant)
}

func TestEncodeLowHighBounds(t *testing.T) {
	aid := u32p(7)
	lo, err := EncodeLow(AVE, Bound{Aid: aid})
	require.NoError(t, err)
	hi, err := EncodeHigh(AVE, Bound{Aid: aid})
	require.NoError(t, err)
	require.Less(t, bytes.Compare(lo, hi), 0)

	key, _ := EncodeDatom(AVE, 42, 7, int64(100))
	require.True(t, bytes.Compare(lo, key) <= 0)
	require.True(t, bytes.Compare(key, hi) <= 0)
}

func TestEncodeBoundBadBoundWhenValueKnownAttributeUnknown(t *testing.T) {
	_, err := EncodeLow(VEA, Bound{V: "oops"})
	require.ErrorIs(t, err, ErrBadBound)

	_, err = EncodeLow(VEA, Bound{V: datom.Ref(5)})
	require.NoError(t, err)
}

func TestIndexValueRoundTrip(t *testing.T) {
	b := EncodeIndexValue(0)
	giant, gt, err := DecodeIndexValue(b)
	require.NoError(t, err)
	require.False(t, giant)
	require.Equal(t, uint64(0), gt)

	b = EncodeIndexValue(123)
	giant, gt, err = DecodeIndexValue(b)
	require.NoError(t, err)
	require.True(t, giant)
	require.Equal(t, uint64(123), gt)
}
