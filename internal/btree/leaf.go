package btree

import (
	"fmt"
	"io"
)

// LeafNode holds (key, RecordID) entries plus a next_page_id pointer
// chaining every leaf into one ascending-key-order singly-linked list.
type LeafNode[K any] struct {
	header
	codec     KeyCodec[K]
	entrySize int
}

func newLeafNode[K any](buf []byte, codec KeyCodec[K]) *LeafNode[K] {
	return &LeafNode[K]{header: header{buf: buf}, codec: codec, entrySize: codec.Size() + 4}
}

// Init formats a freshly allocated page as an empty leaf node.
func (n *LeafNode[K]) Init(pageID, parentID int32, maxSize int) {
	n.setPageType(LeafPageType)
	n.setSize(0)
	n.setMaxSize(maxSize)
	n.setParentPageID(parentID)
	n.setPageID(pageID)
	n.SetNextPageID(InvalidPageID)
}

func (n *LeafNode[K]) NextPageID() int32 {
	return int32(getU32(n.buf[offNextPageID:]))
}

func (n *LeafNode[K]) SetNextPageID(id int32) {
	putU32(n.buf[offNextPageID:], uint32(id))
}

func (n *LeafNode[K]) entryOffset(i int) int {
	return leafEntriesOffset + i*n.entrySize
}

// physicalCapacity is how many entries actually fit in the page's
// backing buffer: one more than maxSize(), the logical split
// threshold, so a leaf can briefly hold max_size+1 entries between an
// over-capacity insert and the split that follows it.
func (n *LeafNode[K]) physicalCapacity() int {
	return (len(n.buf) - leafEntriesOffset) / n.entrySize
}

func (n *LeafNode[K]) KeyAt(i int) K {
	off := n.entryOffset(i)
	return n.codec.Decode(n.buf[off : off+n.codec.Size()])
}

func (n *LeafNode[K]) ValueAt(i int) RecordID {
	off := n.entryOffset(i) + n.codec.Size()
	return RecordID(getU32(n.buf[off:]))
}

func (n *LeafNode[K]) setEntry(i int, k K, v RecordID) {
	off := n.entryOffset(i)
	n.codec.Encode(n.buf[off:off+n.codec.Size()], k)
	putU32(n.buf[off+n.codec.Size():], uint32(v))
}

// KeyIndex returns the first index i with KeyAt(i) >= key.
func (n *LeafNode[K]) KeyIndex(key K) int {
	lo, hi := 0, n.size()
	for lo < hi {
		mid := (lo + hi) / 2
		if n.codec.Compare(n.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup returns the value for an exact key match.
func (n *LeafNode[K]) Lookup(key K) (RecordID, bool) {
	i := n.KeyIndex(key)
	if i < n.size() && n.codec.Compare(n.KeyAt(i), key) == 0 {
		return n.ValueAt(i), true
	}
	return 0, false
}

// Insert inserts (key, value) in sorted position. Returns the new size
// and true, or the current size and false if key already exists or the
// page is already full.
func (n *LeafNode[K]) Insert(key K, value RecordID) (int, bool) {
	i := n.KeyIndex(key)
	if i < n.size() && n.codec.Compare(n.KeyAt(i), key) == 0 {
		return n.size(), false
	}
	if n.size() >= n.physicalCapacity() {
		return n.size(), false
	}
	for j := n.size(); j > i; j-- {
		n.setEntry(j, n.KeyAt(j-1), n.ValueAt(j-1))
	}
	n.setEntry(i, key, value)
	n.setSize(n.size() + 1)
	return n.size(), true
}

// RemoveAndDelete removes key if present, returning the new size and
// whether it was found.
func (n *LeafNode[K]) RemoveAndDelete(key K) (int, bool) {
	i := n.KeyIndex(key)
	if i >= n.size() || n.codec.Compare(n.KeyAt(i), key) != 0 {
		return n.size(), false
	}
	for j := i; j < n.size()-1; j++ {
		n.setEntry(j, n.KeyAt(j+1), n.ValueAt(j+1))
	}
	n.setSize(n.size() - 1)
	return n.size(), true
}

// MoveHalfTo moves the tail half of this leaf's entries to recipient's
// end. Caller is responsible for splicing next_page_id pointers.
func (n *LeafNode[K]) MoveHalfTo(recipient *LeafNode[K]) {
	start := n.size() / 2
	n.CopyNFrom(recipient, start, n.size()-start)
	n.setSize(start)
}

// CopyNFrom copies count entries starting at this node's index start
// into recipient's end, without truncating this node.
func (n *LeafNode[K]) CopyNFrom(recipient *LeafNode[K], start, count int) {
	for i := 0; i < count; i++ {
		recipient.setEntry(recipient.size()+i, n.KeyAt(start+i), n.ValueAt(start+i))
	}
	recipient.setSize(recipient.size() + count)
}

// MoveAllTo empties this leaf into recipient's end, also carrying over
// this leaf's next_page_id so the chain is repaired at the merge site.
func (n *LeafNode[K]) MoveAllTo(recipient *LeafNode[K]) {
	n.CopyNFrom(recipient, 0, n.size())
	recipient.SetNextPageID(n.NextPageID())
	n.setSize(0)
}

// MoveFirstToEndOf rotates this leaf's first entry to the end of
// recipient (redistribution during a left-to-right borrow).
func (n *LeafNode[K]) MoveFirstToEndOf(recipient *LeafNode[K]) {
	k, v := n.KeyAt(0), n.ValueAt(0)
	for i := 0; i < n.size()-1; i++ {
		n.setEntry(i, n.KeyAt(i+1), n.ValueAt(i+1))
	}
	n.setSize(n.size() - 1)
	recipient.setEntry(recipient.size(), k, v)
	recipient.setSize(recipient.size() + 1)
}

// MoveLastToFrontOf rotates this leaf's last entry to the front of
// recipient (redistribution during a right-to-left borrow).
func (n *LeafNode[K]) MoveLastToFrontOf(recipient *LeafNode[K]) {
	last := n.size() - 1
	k, v := n.KeyAt(last), n.ValueAt(last)
	n.setSize(last)
	for i := recipient.size(); i > 0; i-- {
		recipient.setEntry(i, recipient.KeyAt(i-1), recipient.ValueAt(i-1))
	}
	recipient.setEntry(0, k, v)
	recipient.setSize(recipient.size() + 1)
}

// DebugDump writes a one-line human-readable dump of this leaf's
// entries, in the reference project's leaf debug-dump style.
func (n *LeafNode[K]) DebugDump(w io.Writer) {
	fmt.Fprintf(w, "Leaf{page=%d size=%d next=%d [", n.pageID(), n.size(), n.NextPageID())
	for i := 0; i < n.size(); i++ {
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprintf(w, "%v:%d", n.KeyAt(i), n.ValueAt(i))
	}
	fmt.Fprint(w, "]}")
}
