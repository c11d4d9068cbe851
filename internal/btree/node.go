package btree

import (
	"github.com/relstore/storagecore/internal/alias/bx"
	"github.com/relstore/storagecore/internal/storage"
)

// PageType distinguishes the two node layouts that share one page
// format.
type PageType uint32

const (
	InternalPageType PageType = 0
	LeafPageType     PageType = 1
)

// RecordID is the 4-byte value a leaf entry points at: an opaque
// identifier supplied by the caller (the row storage layer, out of
// scope for this specification). It is never interpreted here.
type RecordID uint32

// InvalidPageID mirrors storage.InvalidPageID for use in node fields.
const InvalidPageID = storage.InvalidPageID

// Shared header layout, little-endian, per §6:
//
//	page_type:       u32 @ 0
//	size:            i32 @ 4
//	max_size:        i32 @ 8
//	parent_page_id:  i32 @ 12
//	page_id:         i32 @ 16
//	(leaf only) next_page_id: i32 @ 20
const (
	offPageType           = 0
	offSize               = 4
	offMaxSize            = 8
	offParentPageID       = 12
	offPageID             = 16
	internalEntriesOffset = 20
	offNextPageID         = 20
	leafEntriesOffset     = 24
)

// header wraps the common fields every node page carries, operating
// directly on the page's backing buffer.
type header struct {
	buf []byte
}

func (h header) pageType() PageType { return PageType(bx.U32At(h.buf, offPageType)) }
func (h header) setPageType(t PageType) {
	bx.PutU32At(h.buf, offPageType, uint32(t))
}

func (h header) size() int     { return int(bx.I32(h.buf[offSize:])) }
func (h header) setSize(n int) { bx.PutU32At(h.buf, offSize, uint32(int32(n))) }

func (h header) maxSize() int { return int(bx.I32(h.buf[offMaxSize:])) }
func (h header) setMaxSize(n int) {
	bx.PutU32At(h.buf, offMaxSize, uint32(int32(n)))
}

func (h header) parentPageID() int32 { return bx.I32(h.buf[offParentPageID:]) }
func (h header) setParentPageID(id int32) {
	bx.PutU32At(h.buf, offParentPageID, uint32(id))
}

func (h header) pageID() int32 { return bx.I32(h.buf[offPageID:]) }
func (h header) setPageID(id int32) {
	bx.PutU32At(h.buf, offPageID, uint32(id))
}

// GetSize and GetMaxSize are the node accessors the original BusTub
// coursework exposes publicly, kept here under the same names as the
// exported counterparts of size() and maxSize().
func (h header) GetSize() int    { return h.size() }
func (h header) GetMaxSize() int { return h.maxSize() }
func (h header) PageID() int32   { return h.pageID() }
