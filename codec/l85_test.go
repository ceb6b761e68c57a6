package codec

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeUint64FixedWidth(t *testing.T) {
	for _, n := range []uint64{0, 1, 84, 85, 1 << 32, 1<<64 - 1} {
		require.Len(t, EncodeUint64(n), encodedUint64Len)
	}
}

func TestEncodeUint64Distinct(t *testing.T) {
	seen := map[string]uint64{}
	for _, n := range []uint64{0, 1, 2, 84, 85, 86, 7224, 7225, 1 << 40} {
		s := EncodeUint64(n)
		prev, dup := seen[s]
		require.False(t, dup, "%d and %d encode identically", prev, n)
		seen[s] = n
	}
}

func TestEncodeUint64PreservesOrder(t *testing.T) {
	nums := []uint64{0, 1, 2, 255, 256, 65535, 1 << 40, 1<<64 - 1}
	encoded := make([]string, len(nums))
	for i, n := range nums {
		encoded[i] = EncodeUint64(n)
	}

	sortedNums := append([]uint64(nil), nums...)
	sort.Slice(sortedNums, func(i, j int) bool { return sortedNums[i] < sortedNums[j] })
	sortedEncoded := append([]string(nil), encoded...)
	sort.Strings(sortedEncoded)

	for i, n := range sortedNums {
		require.Equal(t, EncodeUint64(n), sortedEncoded[i])
	}
}
