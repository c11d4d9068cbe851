// Package bufferpool implements the fixed-size buffer pool that
// mediates all access to pages on disk, coordinating a free list and an
// LRU replacer to decide which resident page to evict on a miss.
package bufferpool

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/relstore/storagecore/internal/replacer"
	"github.com/relstore/storagecore/internal/storage"
)

var (
	// ErrNoFreeFrame is returned by Fetch/NewPage when every frame is
	// pinned and the free list is empty: the pool is exhausted.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")

	// ErrPagePinned names the condition of a page that is resident and
	// still held by at least one caller. No function in this package
	// returns it: DeletePage reports that case by returning false.
	ErrPagePinned = errors.New("bufferpool: page is pinned")
)

// Frame is one slot of the pool: a page buffer plus the metadata the
// specification requires (current page id, pin count, dirty bit).
type Frame struct {
	PageID   int32
	Page     *storage.Page
	PinCount int32
	IsDirty  bool
}

// Pool is the buffer pool manager. All public operations are
// serialized under a single mutex per §5 of the specification; disk
// I/O happens while holding it, which is a deliberate simplification.
type Pool struct {
	dm *storage.DiskManager

	mu        sync.Mutex
	frames    []*Frame
	pageTable map[int32]int // page id -> frame index
	freeList  []int         // frame indices holding no page
	lru       *replacer.LRU
}

// NewPool allocates a fixed array of poolSize frames backed by dm. All
// frames start on the free list.
func NewPool(dm *storage.DiskManager, poolSize int) *Pool {
	p := &Pool{
		dm:        dm,
		frames:    make([]*Frame, poolSize),
		pageTable: make(map[int32]int, poolSize),
		freeList:  make([]int, poolSize),
		lru:       replacer.New(),
	}
	for i := 0; i < poolSize; i++ {
		p.freeList[i] = i
	}
	return p
}

// Fetch pins and returns the page identified by pageID, loading it from
// disk (evicting a victim frame if necessary) on a miss. Returns
// ErrNoFreeFrame if the pool is exhausted.
func (p *Pool) Fetch(pageID int32) (*storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.pageTable[pageID]; ok {
		f := p.frames[idx]
		if f.PinCount == 0 {
			p.lru.Pin(idx)
		}
		f.PinCount++
		return f.Page, nil
	}

	idx, err := p.targetFrame()
	if err != nil {
		return nil, err
	}

	frame := p.frames[idx]
	if frame == nil {
		frame = &Frame{Page: storage.NewPage()}
		p.frames[idx] = frame
	} else {
		if frame.IsDirty {
			slog.Debug("bufferpool: evicting dirty frame", "frame", idx, "page_id", frame.PageID)
			if err := p.dm.WritePage(frame.PageID, &frame.Page.Data); err != nil {
				return nil, err
			}
		} else {
			slog.Debug("bufferpool: evicting clean frame", "frame", idx, "page_id", frame.PageID)
		}
		delete(p.pageTable, frame.PageID)
		frame.Page.Reset()
	}

	if err := p.dm.ReadPage(pageID, &frame.Page.Data); err != nil {
		return nil, err
	}

	frame.PageID = pageID
	frame.PinCount = 1
	frame.IsDirty = false
	p.pageTable[pageID] = idx
	p.lru.Pin(idx)

	return frame.Page, nil
}

// NewPage allocates a fresh page id from the disk manager, pins a
// frame for it, and returns the page id and its (zeroed) buffer.
// Returns ErrNoFreeFrame if the pool is exhausted.
func (p *Pool) NewPage() (int32, *storage.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, err := p.targetFrame()
	if err != nil {
		return 0, nil, err
	}

	pageID := p.dm.AllocatePage()

	frame := p.frames[idx]
	if frame == nil {
		frame = &Frame{Page: storage.NewPage()}
		p.frames[idx] = frame
	} else {
		if frame.IsDirty {
			slog.Debug("bufferpool: evicting dirty frame", "frame", idx, "page_id", frame.PageID)
			if err := p.dm.WritePage(frame.PageID, &frame.Page.Data); err != nil {
				return 0, nil, err
			}
		}
		delete(p.pageTable, frame.PageID)
		frame.Page.Reset()
	}

	frame.PageID = pageID
	frame.PinCount = 1
	frame.IsDirty = false
	p.pageTable[pageID] = idx
	p.lru.Pin(idx)

	return pageID, frame.Page, nil
}

// targetFrame picks the frame index to (re)use for a miss: a free-list
// slot first, an LRU victim otherwise. Must be called with mu held.
func (p *Pool) targetFrame() (int, error) {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, nil
	}

	idx, ok := p.lru.Victim()
	if !ok {
		return 0, ErrNoFreeFrame
	}
	return idx, nil
}

// Unpin decrements the pin count of pageID, recording the dirty flag.
// Returns false if the page is not resident or already unpinned.
func (p *Pool) Unpin(pageID int32, isDirty bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	f := p.frames[idx]
	if f.PinCount == 0 {
		return false
	}

	if isDirty {
		f.IsDirty = true
	}
	f.PinCount--
	if f.PinCount == 0 {
		p.lru.Unpin(idx)
	}
	return true
}

// DeletePage removes pageID from the pool, discarding its buffer without
// writing it back, and asks the disk manager to deallocate it. Returns
// false if the page is resident and still pinned.
func (p *Pool) DeletePage(pageID int32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		_ = p.dm.DeallocatePage(pageID)
		return true
	}

	f := p.frames[idx]
	if f.PinCount > 0 {
		return false
	}

	delete(p.pageTable, pageID)
	p.lru.Pin(idx) // remove from replacer set, if present
	f.PageID = storage.InvalidPageID
	f.IsDirty = false
	f.Page.Reset()
	p.freeList = append(p.freeList, idx)

	_ = p.dm.DeallocatePage(pageID)
	return true
}

// Flush writes pageID's buffer to disk unconditionally and clears its
// dirty bit. Returns (false, nil) if the page is not resident — the
// recoverable §7 NotResident case — and (false, err) if the resident
// write itself failed, the fatal-and-propagated §7 I/O failure case;
// these are distinct outcomes and callers should not conflate them.
func (p *Pool) Flush(pageID int32) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pageID]
	if !ok {
		return false, nil
	}
	f := p.frames[idx]
	if err := p.dm.WritePage(f.PageID, &f.Page.Data); err != nil {
		return false, err
	}
	f.IsDirty = false
	return true, nil
}

// FlushAll flushes every resident page.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for pageID, idx := range p.pageTable {
		f := p.frames[idx]
		if err := p.dm.WritePage(pageID, &f.Page.Data); err != nil {
			return err
		}
		f.IsDirty = false
	}
	return nil
}
