package datom

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    Value
	}{
		{"string", "hello"},
		{"long", int64(-42)},
		{"double", 3.14},
		{"bool", true},
		{"instant", time.Unix(0, 123456789).UTC()},
		{"bytes", []byte{1, 2, 3}},
		{"ref", Ref(7)},
		{"keyword", Keyword(":status/active")},
		{"symbol", Symbol("x")},
		{"uuid", UUID{1, 2, 3}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			typ := TypeOf(c.v)
			encoded := Bytes(c.v)
			decoded, err := FromBytes(typ, encoded)
			require.NoError(t, err)
			require.True(t, ValuesEqual(c.v, decoded))
		})
	}
}

func TestTypeOfPanicsOnUnsupported(t *testing.T) {
	require.Panics(t, func() { TypeOf(struct{}{}) })
}

func TestCompareValuesOrdering(t *testing.T) {
	require.Equal(t, -1, CompareValues(int64(1), int64(2)))
	require.Equal(t, 1, CompareValues(2.5, 1.5))
	require.Equal(t, 0, CompareValues("a", "a"))
	require.Equal(t, -1, CompareValues(Ref(1), Ref(2)))
}
