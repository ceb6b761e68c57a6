// Package codec provides the byte-order and debug-encoding helpers the
// storage engine builds its sortable keys and diagnostics on.
package codec

// l85Alphabet is a base85 digit set whose digit order matches ASCII
// order, so a fixed-width rendering compares as a string the way the
// underlying number compares.
const l85Alphabet = "!$%&()+,-./" +
	"0123456789:;<=>@" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ[]_`" +
	"abcdefghijklmnopqrstuvwxyz{}"

// encodedUint64Len is the fixed width of a rendered counter: ten
// base85 digits cover the full 64-bit range (85^10 > 2^64).
const encodedUint64Len = 10

// EncodeUint64 renders a 64-bit counter (a gt id or an aid) as a
// fixed-width, order-preserving base85 string, used by Stat() output
// and error messages as a compact alternative to raw hex.
func EncodeUint64(n uint64) string {
	var buf [encodedUint64Len]byte
	for i := encodedUint64Len - 1; i >= 0; i-- {
		buf[i] = l85Alphabet[n%85]
		n /= 85
	}
	return string(buf[:])
}
