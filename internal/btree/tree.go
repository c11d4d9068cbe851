package btree

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/relstore/storagecore/internal/bufferpool"
	"github.com/relstore/storagecore/internal/storage"
)

// Tree is an order-m B+ tree index whose nodes live one-per-page behind
// a buffer pool. K is the key type; a KeyCodec[K] supplies its on-disk
// width, encoding, and comparator.
type Tree[K any] struct {
	bpm             *bufferpool.Pool
	codec           KeyCodec[K]
	rootPageID      int32
	leafMaxSize     int
	internalMaxSize int
	log             *slog.Logger
}

// NewTree constructs an empty tree backed by bpm. leafMaxSize and
// internalMaxSize are derived from the page size and the codec's key
// width, leaving room for the one-entry overflow a split needs.
func NewTree[K any](bpm *bufferpool.Pool, codec KeyCodec[K]) *Tree[K] {
	return &Tree[K]{
		bpm:             bpm,
		codec:           codec,
		rootPageID:      InvalidPageID,
		leafMaxSize:     maxLeafEntries(codec.Size()) - 1,
		internalMaxSize: maxInternalEntries(codec.Size()) - 1,
		log:             slog.Default(),
	}
}

func minSize(maxSize int) int {
	return (maxSize + 1) / 2
}

// IsEmpty reports whether the tree currently has no root.
func (t *Tree[K]) IsEmpty() bool {
	return t.rootPageID == InvalidPageID
}

// findLeaf descends from the root to the leaf that would contain key,
// unpinning every internal page along the way. The returned leaf page
// is left pinned; the caller owns exactly one unpin of it.
func (t *Tree[K]) findLeaf(key K) (*storage.Page, int32, error) {
	pageID := t.rootPageID
	page, err := t.bpm.Fetch(pageID)
	if err != nil {
		return nil, 0, err
	}
	for (header{buf: page.Data[:]}).pageType() != LeafPageType {
		internal := newInternalNode[K](page.Data[:], t.codec)
		childID := internal.Lookup(key)
		t.bpm.Unpin(pageID, false)
		pageID = childID
		page, err = t.bpm.Fetch(pageID)
		if err != nil {
			return nil, 0, err
		}
	}
	return page, pageID, nil
}

// GetValue looks up key, returning its value and true on a hit.
func (t *Tree[K]) GetValue(key K) (RecordID, bool, error) {
	if t.IsEmpty() {
		return 0, false, nil
	}
	page, pageID, err := t.findLeaf(key)
	if err != nil {
		return 0, false, err
	}
	leaf := newLeafNode[K](page.Data[:], t.codec)
	v, ok := leaf.Lookup(key)
	t.bpm.Unpin(pageID, false)
	return v, ok, nil
}

func (t *Tree[K]) startNewTree(key K, value RecordID) error {
	pageID, page, err := t.bpm.NewPage()
	if err != nil {
		return err
	}
	leaf := newLeafNode[K](page.Data[:], t.codec)
	leaf.Init(pageID, InvalidPageID, t.leafMaxSize)
	leaf.Insert(key, value)
	t.rootPageID = pageID
	t.bpm.Unpin(pageID, true)
	return nil
}

// Insert adds (key, value), returning false without modification if key
// already exists.
func (t *Tree[K]) Insert(key K, value RecordID) (bool, error) {
	if t.IsEmpty() {
		if err := t.startNewTree(key, value); err != nil {
			return false, err
		}
		return true, nil
	}

	leafPage, leafID, err := t.findLeaf(key)
	if err != nil {
		return false, err
	}
	leaf := newLeafNode[K](leafPage.Data[:], t.codec)
	wasFull := leaf.size() >= t.leafMaxSize
	if _, inserted := leaf.Insert(key, value); !inserted {
		t.bpm.Unpin(leafID, false)
		return false, nil
	}
	if !wasFull {
		t.bpm.Unpin(leafID, true)
		return true, nil
	}

	newLeafID, newLeafPage, err := t.bpm.NewPage()
	if err != nil {
		t.bpm.Unpin(leafID, true)
		return false, err
	}
	sibling := newLeafNode[K](newLeafPage.Data[:], t.codec)
	sibling.Init(newLeafID, leaf.parentPageID(), t.leafMaxSize)
	leaf.MoveHalfTo(sibling)
	sibling.SetNextPageID(leaf.NextPageID())
	leaf.SetNextPageID(newLeafID)
	upKey := sibling.KeyAt(0)

	t.log.Debug("btree: leaf split", "leaf", leafID, "new_leaf", newLeafID, "up_key", fmt.Sprint(upKey))

	err = t.insertIntoParent(leafID, upKey, newLeafID)
	t.bpm.Unpin(leafID, true)
	t.bpm.Unpin(newLeafID, true)
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoParent installs (middleKey, rightID) as leftID's new right
// sibling in leftID's parent, creating a new root if leftID had none,
// and recursing on a parent split.
func (t *Tree[K]) insertIntoParent(leftID int32, middleKey K, rightID int32) error {
	leftPage, err := t.bpm.Fetch(leftID)
	if err != nil {
		return err
	}
	parentID := header{buf: leftPage.Data[:]}.parentPageID()
	t.bpm.Unpin(leftID, false)

	if parentID == InvalidPageID {
		newRootID, rootPage, err := t.bpm.NewPage()
		if err != nil {
			return err
		}
		root := newInternalNode[K](rootPage.Data[:], t.codec)
		root.Init(newRootID, InvalidPageID, t.internalMaxSize)
		root.PopulateNewRoot(leftID, middleKey, rightID)
		t.rootPageID = newRootID
		t.bpm.Unpin(newRootID, true)

		if err := reparentChild(t.bpm, leftID, newRootID); err != nil {
			return err
		}
		return reparentChild(t.bpm, rightID, newRootID)
	}

	parentPage, err := t.bpm.Fetch(parentID)
	if err != nil {
		return err
	}
	parent := newInternalNode[K](parentPage.Data[:], t.codec)
	newSize := parent.InsertAfter(leftID, middleKey, rightID)
	if newSize <= t.internalMaxSize {
		t.bpm.Unpin(parentID, true)
		return nil
	}

	newInternalID, newInternalPage, err := t.bpm.NewPage()
	if err != nil {
		t.bpm.Unpin(parentID, true)
		return err
	}
	newInternal := newInternalNode[K](newInternalPage.Data[:], t.codec)
	newInternal.Init(newInternalID, parent.parentPageID(), t.internalMaxSize)
	promoted := parent.KeyAt(parent.size() / 2)
	moveErr := parent.MoveHalfTo(newInternal, t.bpm)

	t.log.Debug("btree: internal split", "node", parentID, "new_node", newInternalID)

	if moveErr == nil {
		moveErr = t.insertIntoParent(parentID, promoted, newInternalID)
	}
	t.bpm.Unpin(parentID, true)
	t.bpm.Unpin(newInternalID, true)
	return moveErr
}

// Remove deletes key, a no-op if key is absent, rebalancing via
// coalesce-or-redistribute when a non-root node drops below its
// minimum occupancy.
func (t *Tree[K]) Remove(key K) error {
	if t.IsEmpty() {
		return nil
	}
	leafPage, leafID, err := t.findLeaf(key)
	if err != nil {
		return err
	}
	leaf := newLeafNode[K](leafPage.Data[:], t.codec)
	newSize, found := leaf.RemoveAndDelete(key)
	if !found {
		t.bpm.Unpin(leafID, false)
		return nil
	}

	isRoot := leafID == t.rootPageID
	if !isRoot && newSize < minSize(t.leafMaxSize) {
		if err := t.coalesceOrRedistributeLeaf(leafID, leaf); err != nil {
			t.bpm.Unpin(leafID, true)
			return err
		}
	}
	t.bpm.Unpin(leafID, true)
	if isRoot {
		return t.adjustRoot(leafID)
	}
	return nil
}

// coalesceOrRedistributeLeaf rebalances an underfull leaf against a
// sibling found through its parent: merges when the combined size still
// fits one page, otherwise rotates a single entry across.
func (t *Tree[K]) coalesceOrRedistributeLeaf(nodeID int32, node *LeafNode[K]) error {
	parentID := node.parentPageID()
	if parentID == InvalidPageID {
		return nil
	}
	parentPage, err := t.bpm.Fetch(parentID)
	if err != nil {
		return err
	}
	parent := newInternalNode[K](parentPage.Data[:], t.codec)
	idx := parent.ValueIndex(nodeID)
	siblingIsLeft := idx > 0
	var siblingID int32
	if siblingIsLeft {
		siblingID = parent.ValueAt(idx - 1)
	} else {
		siblingID = parent.ValueAt(idx + 1)
	}
	siblingPage, err := t.bpm.Fetch(siblingID)
	if err != nil {
		t.bpm.Unpin(parentID, false)
		return err
	}
	sibling := newLeafNode[K](siblingPage.Data[:], t.codec)

	if node.size()+sibling.size() <= t.leafMaxSize {
		if siblingIsLeft {
			node.MoveAllTo(sibling)
			parent.Remove(idx)
			t.bpm.Unpin(siblingID, true)
			t.bpm.Unpin(nodeID, true)
			t.bpm.DeletePage(nodeID)
		} else {
			sibling.MoveAllTo(node)
			parent.Remove(idx + 1)
			t.bpm.Unpin(nodeID, true)
			t.bpm.Unpin(siblingID, true)
			t.bpm.DeletePage(siblingID)
		}
		t.log.Debug("btree: leaf coalesce", "survivor_parent", parentID)

		parentIsRoot := parentID == t.rootPageID
		if !parentIsRoot && parent.size() < minSize(t.internalMaxSize) {
			if err := t.coalesceOrRedistributeInternal(parentID, parent); err != nil {
				t.bpm.Unpin(parentID, true)
				return err
			}
		}
		t.bpm.Unpin(parentID, true)
		if parentIsRoot {
			return t.adjustRoot(parentID)
		}
		return nil
	}

	if siblingIsLeft {
		sibling.MoveLastToFrontOf(node)
		parent.SetKeyAt(idx, node.KeyAt(0))
	} else {
		sibling.MoveFirstToEndOf(node)
		parent.SetKeyAt(idx+1, sibling.KeyAt(0))
	}
	t.bpm.Unpin(siblingID, true)
	t.bpm.Unpin(parentID, true)
	return nil
}

// coalesceOrRedistributeInternal is coalesceOrRedistributeLeaf's analog
// for internal nodes: merges carry the parent's separator down as the
// migrated entry's key, and re-parent every child that moves.
func (t *Tree[K]) coalesceOrRedistributeInternal(nodeID int32, node *InternalNode[K]) error {
	parentID := node.parentPageID()
	if parentID == InvalidPageID {
		return nil
	}
	parentPage, err := t.bpm.Fetch(parentID)
	if err != nil {
		return err
	}
	parent := newInternalNode[K](parentPage.Data[:], t.codec)
	idx := parent.ValueIndex(nodeID)
	siblingIsLeft := idx > 0
	var siblingID int32
	if siblingIsLeft {
		siblingID = parent.ValueAt(idx - 1)
	} else {
		siblingID = parent.ValueAt(idx + 1)
	}
	siblingPage, err := t.bpm.Fetch(siblingID)
	if err != nil {
		t.bpm.Unpin(parentID, false)
		return err
	}
	sibling := newInternalNode[K](siblingPage.Data[:], t.codec)

	if node.size()+sibling.size() < t.internalMaxSize {
		var mergeErr error
		if siblingIsLeft {
			middleKey := parent.KeyAt(idx)
			mergeErr = node.MoveAllTo(sibling, middleKey, t.bpm)
			parent.Remove(idx)
		} else {
			middleKey := parent.KeyAt(idx + 1)
			mergeErr = sibling.MoveAllTo(node, middleKey, t.bpm)
			parent.Remove(idx + 1)
		}
		if mergeErr != nil {
			t.bpm.Unpin(nodeID, true)
			t.bpm.Unpin(siblingID, true)
			t.bpm.Unpin(parentID, true)
			return mergeErr
		}
		if siblingIsLeft {
			t.bpm.Unpin(siblingID, true)
			t.bpm.Unpin(nodeID, true)
			t.bpm.DeletePage(nodeID)
		} else {
			t.bpm.Unpin(nodeID, true)
			t.bpm.Unpin(siblingID, true)
			t.bpm.DeletePage(siblingID)
		}

		t.log.Debug("btree: internal coalesce", "survivor_parent", parentID)

		parentIsRoot := parentID == t.rootPageID
		if !parentIsRoot && parent.size() < minSize(t.internalMaxSize) {
			if err := t.coalesceOrRedistributeInternal(parentID, parent); err != nil {
				t.bpm.Unpin(parentID, true)
				return err
			}
		}
		t.bpm.Unpin(parentID, true)
		if parentIsRoot {
			return t.adjustRoot(parentID)
		}
		return nil
	}

	var redistErr error
	if siblingIsLeft {
		movedKey := sibling.KeyAt(sibling.size() - 1)
		middleKey := parent.KeyAt(idx)
		redistErr = sibling.MoveLastToFrontOf(node, middleKey, t.bpm)
		parent.SetKeyAt(idx, movedKey)
	} else {
		movedKey := sibling.KeyAt(1)
		middleKey := parent.KeyAt(idx + 1)
		redistErr = sibling.MoveFirstToEndOf(node, middleKey, t.bpm)
		parent.SetKeyAt(idx+1, movedKey)
	}
	t.bpm.Unpin(siblingID, true)
	t.bpm.Unpin(parentID, true)
	return redistErr
}

// adjustRoot fetches the root fresh and, if it has collapsed to a
// single child (internal) or emptied out (leaf), promotes the child or
// empties the tree.
func (t *Tree[K]) adjustRoot(rootID int32) error {
	page, err := t.bpm.Fetch(rootID)
	if err != nil {
		return err
	}
	if (header{buf: page.Data[:]}).pageType() == LeafPageType {
		leaf := newLeafNode[K](page.Data[:], t.codec)
		empty := leaf.size() == 0
		t.bpm.Unpin(rootID, false)
		if empty {
			t.rootPageID = InvalidPageID
			t.bpm.DeletePage(rootID)
		}
		return nil
	}

	root := newInternalNode[K](page.Data[:], t.codec)
	if root.size() != 1 {
		t.bpm.Unpin(rootID, false)
		return nil
	}
	onlyChild := root.RemoveAndReturnOnlyChild()
	t.bpm.Unpin(rootID, true)
	if err := reparentChild(t.bpm, onlyChild, InvalidPageID); err != nil {
		return err
	}
	t.rootPageID = onlyChild
	t.bpm.DeletePage(rootID)
	return nil
}

// Height returns the number of page fetches from root to a leaf. An
// empty tree has height 0.
func (t *Tree[K]) Height() (int, error) {
	if t.IsEmpty() {
		return 0, nil
	}
	height := 1
	pageID := t.rootPageID
	page, err := t.bpm.Fetch(pageID)
	if err != nil {
		return 0, err
	}
	for (header{buf: page.Data[:]}).pageType() != LeafPageType {
		internal := newInternalNode[K](page.Data[:], t.codec)
		childID := internal.ValueAt(0)
		t.bpm.Unpin(pageID, false)
		pageID = childID
		page, err = t.bpm.Fetch(pageID)
		if err != nil {
			return 0, err
		}
		height++
	}
	t.bpm.Unpin(pageID, false)
	return height, nil
}

// Iterator walks every (key, value) pair in ascending key order via the
// leaf chain, holding at most one leaf pinned at a time.
type Iterator[K any] struct {
	tree   *Tree[K]
	pageID int32
	idx    int
	leaf   *LeafNode[K]
	done   bool
}

// Begin returns an iterator positioned at the first entry of the
// leftmost leaf. An empty tree yields an immediately-invalid iterator.
func (t *Tree[K]) Begin() (*Iterator[K], error) {
	if t.IsEmpty() {
		return &Iterator[K]{done: true}, nil
	}
	pageID := t.rootPageID
	page, err := t.bpm.Fetch(pageID)
	if err != nil {
		return nil, err
	}
	for (header{buf: page.Data[:]}).pageType() != LeafPageType {
		internal := newInternalNode[K](page.Data[:], t.codec)
		childID := internal.ValueAt(0)
		t.bpm.Unpin(pageID, false)
		pageID = childID
		page, err = t.bpm.Fetch(pageID)
		if err != nil {
			return nil, err
		}
	}
	it := &Iterator[K]{tree: t, pageID: pageID, idx: 0, leaf: newLeafNode[K](page.Data[:], t.codec)}
	if it.leaf.size() == 0 {
		it.advance()
	}
	return it, nil
}

// BeginAt returns an iterator positioned at the first entry whose key
// is >= key. An empty tree, or a key past every entry, yields an
// immediately-invalid iterator.
func (t *Tree[K]) BeginAt(key K) (*Iterator[K], error) {
	if t.IsEmpty() {
		return &Iterator[K]{done: true}, nil
	}
	page, pageID, err := t.findLeaf(key)
	if err != nil {
		return nil, err
	}
	leaf := newLeafNode[K](page.Data[:], t.codec)
	it := &Iterator[K]{tree: t, pageID: pageID, idx: leaf.KeyIndex(key), leaf: leaf}
	if it.idx >= it.leaf.size() {
		it.advance()
	}
	return it, nil
}

// Valid reports whether Key/Value may be called.
func (it *Iterator[K]) Valid() bool { return !it.done }

// Key returns the current entry's key. Valid must be true.
func (it *Iterator[K]) Key() K { return it.leaf.KeyAt(it.idx) }

// Value returns the current entry's value. Valid must be true.
func (it *Iterator[K]) Value() RecordID { return it.leaf.ValueAt(it.idx) }

// Next advances to the next entry, following next_page_id across leaf
// boundaries and unpinning each leaf once its entries are exhausted.
func (it *Iterator[K]) Next() {
	it.idx++
	if it.idx >= it.leaf.size() {
		it.advance()
	}
}

func (it *Iterator[K]) advance() {
	next := it.leaf.NextPageID()
	it.tree.bpm.Unpin(it.pageID, false)
	if next == InvalidPageID {
		it.done = true
		return
	}
	page, err := it.tree.bpm.Fetch(next)
	if err != nil {
		it.done = true
		return
	}
	it.pageID = next
	it.leaf = newLeafNode[K](page.Data[:], it.tree.codec)
	it.idx = 0
	if it.leaf.size() == 0 {
		it.advance()
	}
}

// Close releases the currently pinned leaf, if any. Safe to call on an
// already-exhausted iterator.
func (it *Iterator[K]) Close() {
	if !it.done {
		it.tree.bpm.Unpin(it.pageID, false)
		it.done = true
	}
}

// DebugDump writes a human-readable, indented dump of every node in the
// tree to w, depth-first from the root.
func (t *Tree[K]) DebugDump(w io.Writer) error {
	if t.IsEmpty() {
		fmt.Fprintln(w, "<empty tree>")
		return nil
	}
	return t.debugDumpPage(w, t.rootPageID, 0)
}

func (t *Tree[K]) debugDumpPage(w io.Writer, pageID int32, depth int) error {
	page, err := t.bpm.Fetch(pageID)
	if err != nil {
		return err
	}
	defer t.bpm.Unpin(pageID, false)

	indent := strings.Repeat("  ", depth)
	if (header{buf: page.Data[:]}).pageType() == LeafPageType {
		leaf := newLeafNode[K](page.Data[:], t.codec)
		fmt.Fprint(w, indent)
		leaf.DebugDump(w)
		fmt.Fprintln(w)
		return nil
	}

	internal := newInternalNode[K](page.Data[:], t.codec)
	fmt.Fprintf(w, "%sInternal{page=%d size=%d}\n", indent, pageID, internal.size())
	for i := 0; i < internal.size(); i++ {
		if err := t.debugDumpPage(w, internal.ValueAt(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}
