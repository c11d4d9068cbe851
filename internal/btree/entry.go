package btree

import "github.com/relstore/storagecore/internal/alias/bx"

// getU32/putU32 are little-endian accessors for the 4-byte value slot
// every entry carries (a page id for internal entries, a RecordID for
// leaf entries), following the reference project's bx byte-order
// helper idiom rather than calling encoding/binary inline everywhere.
func getU32(b []byte) uint32        { return bx.U32(b) }
func putU32(b []byte, v uint32)     { bx.PutU32(b, v) }
