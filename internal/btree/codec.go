package btree

import "github.com/relstore/storagecore/internal/alias/bx"

// KeyCodec supplies the fixed width, 3-way comparator, and wire
// encoding for one concrete key type K. The specification calls for
// key widths parameterized at build time (4, 8, 16, 32, or 64 bytes);
// in Go this becomes a generic type parameter plus one of these codec
// values, rather than a set of compiled template specializations.
type KeyCodec[K any] interface {
	// Size is the fixed number of bytes K occupies on disk.
	Size() int
	// Compare returns <0, 0, >0 as a < b, a == b, a > b.
	Compare(a, b K) int
	// Encode writes k into buf[:Size()].
	Encode(buf []byte, k K)
	// Decode reads a K out of buf[:Size()].
	Decode(buf []byte) K
}

// Int32Codec is the 4-byte key width.
type Int32Codec struct{}

func (Int32Codec) Size() int                  { return 4 }
func (Int32Codec) Compare(a, b int32) int     { return int(a) - int(b) }
func (Int32Codec) Encode(buf []byte, k int32) { bx.PutU32(buf, uint32(k)) }
func (Int32Codec) Decode(buf []byte) int32    { return int32(bx.U32(buf)) }

// Int64Codec is the 8-byte key width.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }
func (Int64Codec) Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
func (Int64Codec) Encode(buf []byte, k int64) { bx.PutU64(buf, uint64(k)) }
func (Int64Codec) Decode(buf []byte) int64    { return int64(bx.U64(buf)) }

// Bytes16, Bytes32, Bytes64 are the 16/32/64-byte fixed-width key
// widths, compared lexicographically — typically used for composite or
// character keys padded to a fixed size by the caller.
type (
	Bytes16 [16]byte
	Bytes32 [32]byte
	Bytes64 [64]byte
)

type Bytes16Codec struct{}

func (Bytes16Codec) Size() int                    { return 16 }
func (Bytes16Codec) Compare(a, b Bytes16) int      { return compareBytes(a[:], b[:]) }
func (Bytes16Codec) Encode(buf []byte, k Bytes16)  { copy(buf, k[:]) }
func (Bytes16Codec) Decode(buf []byte) Bytes16 {
	var k Bytes16
	copy(k[:], buf)
	return k
}

type Bytes32Codec struct{}

func (Bytes32Codec) Size() int                   { return 32 }
func (Bytes32Codec) Compare(a, b Bytes32) int     { return compareBytes(a[:], b[:]) }
func (Bytes32Codec) Encode(buf []byte, k Bytes32) { copy(buf, k[:]) }
func (Bytes32Codec) Decode(buf []byte) Bytes32 {
	var k Bytes32
	copy(k[:], buf)
	return k
}

type Bytes64Codec struct{}

func (Bytes64Codec) Size() int                   { return 64 }
func (Bytes64Codec) Compare(a, b Bytes64) int     { return compareBytes(a[:], b[:]) }
func (Bytes64Codec) Encode(buf []byte, k Bytes64) { copy(buf, k[:]) }
func (Bytes64Codec) Decode(buf []byte) Bytes64 {
	var k Bytes64
	copy(k[:], buf)
	return k
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
