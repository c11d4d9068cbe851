// Package replacer implements the buffer pool's victim-selection
// policy: a bounded set of unpinned frames ordered least- to
// most-recently-unpinned.
package replacer

import (
	"container/list"
	"sync"
)

// LRU is a thread-safe least-recently-unpinned frame tracker. It wraps
// container/list the same way the reference project's generic cache
// helper does, keeping a map of frame id to list element for O(1)
// removal by key alongside O(1) push-to-back and pop-front.
type LRU struct {
	mu       sync.Mutex
	order    *list.List
	elements map[int]*list.Element
}

// New returns an empty LRU replacer.
func New() *LRU {
	return &LRU{
		order:    list.New(),
		elements: make(map[int]*list.Element),
	}
}

// Victim removes and returns the least-recently-unpinned frame. The
// second return value is false if no frame is tracked.
func (r *LRU) Victim() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	front := r.order.Front()
	if front == nil {
		return 0, false
	}

	frameID := front.Value.(int)
	r.order.Remove(front)
	delete(r.elements, frameID)
	return frameID, true
}

// Pin removes f from the tracked set, if present. No-op otherwise.
// Called when a frame's pin count transitions 0 -> >=1.
func (r *LRU) Pin(f int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	elem, ok := r.elements[f]
	if !ok {
		return
	}
	r.order.Remove(elem)
	delete(r.elements, f)
}

// Unpin appends f at the most-recently-used end if not already present.
// Re-unpinning a frame that is already tracked is a no-op: it must not
// move the frame's position, since "unpinned" means "evictable since
// the last transition to 0", not "touched again".
func (r *LRU) Unpin(f int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.elements[f]; ok {
		return
	}
	r.elements[f] = r.order.PushBack(f)
}

// Size returns the number of frames currently tracked as evictable.
func (r *LRU) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.order.Len()
}
