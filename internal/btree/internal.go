package btree

import (
	"fmt"

	"github.com/relstore/storagecore/internal/bufferpool"
)

// InternalNode is an internal (routing) page: entries are (key,
// child_page_id) pairs. Entry 0's key is unused (the "dummy" entry);
// entry 0's value is the leftmost child. For i >= 1, entry i's key is
// the smallest key reachable through entry i's child.
type InternalNode[K any] struct {
	header
	codec     KeyCodec[K]
	entrySize int
}

func newInternalNode[K any](buf []byte, codec KeyCodec[K]) *InternalNode[K] {
	return &InternalNode[K]{header: header{buf: buf}, codec: codec, entrySize: codec.Size() + 4}
}

// Init formats a freshly allocated page as an empty internal node.
func (n *InternalNode[K]) Init(pageID, parentID int32, maxSize int) {
	n.setPageType(InternalPageType)
	n.setSize(0)
	n.setMaxSize(maxSize)
	n.setParentPageID(parentID)
	n.setPageID(pageID)
}

func (n *InternalNode[K]) entryOffset(i int) int {
	return internalEntriesOffset + i*n.entrySize
}

func (n *InternalNode[K]) KeyAt(i int) K {
	off := n.entryOffset(i)
	return n.codec.Decode(n.buf[off : off+n.codec.Size()])
}

func (n *InternalNode[K]) SetKeyAt(i int, k K) {
	off := n.entryOffset(i)
	n.codec.Encode(n.buf[off:off+n.codec.Size()], k)
}

func (n *InternalNode[K]) ValueAt(i int) int32 {
	off := n.entryOffset(i) + n.codec.Size()
	return int32(getU32(n.buf[off:]))
}

func (n *InternalNode[K]) setValueAt(i int, v int32) {
	off := n.entryOffset(i) + n.codec.Size()
	putU32(n.buf[off:], uint32(v))
}

func (n *InternalNode[K]) setEntry(i int, k K, v int32) {
	n.SetKeyAt(i, k)
	n.setValueAt(i, v)
}

// ValueIndex returns the entry index whose value equals v, or -1.
func (n *InternalNode[K]) ValueIndex(v int32) int {
	for i := 0; i < n.size(); i++ {
		if n.ValueAt(i) == v {
			return i
		}
	}
	return -1
}

// Lookup returns the child page id to follow for key.
func (n *InternalNode[K]) Lookup(key K) int32 {
	sz := n.size()
	// first index i in [1, sz) with KeyAt(i) >= key
	lo, hi := 1, sz
	for lo < hi {
		mid := (lo + hi) / 2
		if n.codec.Compare(n.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == sz {
		return n.ValueAt(sz - 1)
	}
	if n.codec.Compare(n.KeyAt(lo), key) == 0 {
		return n.ValueAt(lo)
	}
	return n.ValueAt(lo - 1)
}

// PopulateNewRoot writes a brand-new root with two children.
func (n *InternalNode[K]) PopulateNewRoot(oldValue int32, newKey K, newValue int32) {
	n.setValueAt(0, oldValue)
	n.setEntry(1, newKey, newValue)
	n.setSize(2)
}

// InsertAfter inserts (newKey, newValue) immediately after the entry
// whose value is oldValue, shifting later entries right.
func (n *InternalNode[K]) InsertAfter(oldValue int32, newKey K, newValue int32) int {
	idx := n.ValueIndex(oldValue) + 1
	for i := n.size(); i > idx; i-- {
		k := n.KeyAt(i - 1)
		v := n.ValueAt(i - 1)
		n.setEntry(i, k, v)
	}
	n.setEntry(idx, newKey, newValue)
	n.setSize(n.size() + 1)
	return n.size()
}

// Remove deletes the entry at index, shifting later entries left.
func (n *InternalNode[K]) Remove(index int) {
	for i := index; i < n.size()-1; i++ {
		n.setEntry(i, n.KeyAt(i+1), n.ValueAt(i+1))
	}
	n.setSize(n.size() - 1)
}

// RemoveAndReturnOnlyChild requires size == 1 and returns that one
// child, clearing the node. Called only from adjustRoot.
func (n *InternalNode[K]) RemoveAndReturnOnlyChild() int32 {
	if n.size() != 1 {
		panic(fmt.Sprintf("btree: RemoveAndReturnOnlyChild on internal node with size %d", n.size()))
	}
	only := n.ValueAt(0)
	n.setSize(0)
	return only
}

// reparentChild fetches child, rewrites its parent_page_id to
// newParentID, and unpins it dirty. Required whenever a child moves
// between internal nodes.
func reparentChild(bpm *bufferpool.Pool, childID, newParentID int32) error {
	page, err := bpm.Fetch(childID)
	if err != nil {
		return err
	}
	h := header{buf: page.Data[:]}
	h.setParentPageID(newParentID)
	bpm.Unpin(childID, true)
	return nil
}

// MoveHalfTo moves the tail half of this node's entries to recipient's
// end, re-parenting each moved child.
func (n *InternalNode[K]) MoveHalfTo(recipient *InternalNode[K], bpm *bufferpool.Pool) error {
	start := n.size() / 2
	count := n.size() - start

	for i := 0; i < count; i++ {
		k := n.KeyAt(start + i)
		v := n.ValueAt(start + i)
		recipient.setEntry(recipient.size()+i, k, v)
	}
	recipient.setSize(recipient.size() + count)
	n.setSize(start)

	for i := 0; i < count; i++ {
		if err := reparentChild(bpm, recipient.ValueAt(recipient.size()-count+i), recipient.pageID()); err != nil {
			return err
		}
	}
	return nil
}

// MoveAllTo empties this node into recipient's end. middleKey becomes
// the key of the first moved entry (this node's dummy-keyed leftmost
// child), since the parent's separator key must migrate down on merge.
func (n *InternalNode[K]) MoveAllTo(recipient *InternalNode[K], middleKey K, bpm *bufferpool.Pool) error {
	if n.size() == 0 {
		return nil
	}
	start := recipient.size()
	recipient.setEntry(start, middleKey, n.ValueAt(0))
	for i := 1; i < n.size(); i++ {
		recipient.setEntry(start+i, n.KeyAt(i), n.ValueAt(i))
	}
	count := n.size()
	recipient.setSize(start + count)
	n.setSize(0)

	for i := 0; i < count; i++ {
		if err := reparentChild(bpm, recipient.ValueAt(start+i), recipient.pageID()); err != nil {
			return err
		}
	}
	return nil
}

// MoveFirstToEndOf rotates this node's first entry to the end of
// recipient, with middleKey (the parent's old separator) becoming the
// moved entry's key on the recipient side.
func (n *InternalNode[K]) MoveFirstToEndOf(recipient *InternalNode[K], middleKey K, bpm *bufferpool.Pool) error {
	movedValue := n.ValueAt(0)
	for i := 0; i < n.size()-1; i++ {
		n.setEntry(i, n.KeyAt(i+1), n.ValueAt(i+1))
	}
	n.setSize(n.size() - 1)

	recipient.setEntry(recipient.size(), middleKey, movedValue)
	recipient.setSize(recipient.size() + 1)
	return reparentChild(bpm, movedValue, recipient.pageID())
}

// MoveLastToFrontOf rotates this node's last entry to the front of
// recipient, with middleKey becoming the key of recipient's old
// leftmost child (which shifts into entry 1) — not of the moved
// entry, whose value becomes the new dummy entry 0 and whose key is
// unused.
func (n *InternalNode[K]) MoveLastToFrontOf(recipient *InternalNode[K], middleKey K, bpm *bufferpool.Pool) error {
	last := n.size() - 1
	movedValue := n.ValueAt(last)
	n.setSize(last)

	oldSize := recipient.size()
	oldFirstValue := recipient.ValueAt(0)
	for i := oldSize; i > 1; i-- {
		recipient.setEntry(i, recipient.KeyAt(i-1), recipient.ValueAt(i-1))
	}
	recipient.setEntry(1, middleKey, oldFirstValue)
	recipient.setValueAt(0, movedValue)
	recipient.setSize(oldSize + 1)
	return reparentChild(bpm, movedValue, recipient.pageID())
}
