package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/relstore/storagecore/internal/alias/util"
)

// DiskManager owns the single flat database file and is the sole
// collaborator the buffer pool uses for I/O. The file is an array of
// fixed PageSize-byte pages indexed by page id; a page's on-disk bytes
// are its in-memory buffer verbatim.
type DiskManager struct {
	mu        sync.Mutex
	file      *os.File
	nextPage  int32
	pageCount int32
}

// NewDiskManager opens (creating if absent) the database file at path
// and recovers the next allocatable page id from its current size.
func NewDiskManager(path string) (*DiskManager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, fileMode0644)
	if err != nil {
		return nil, fmt.Errorf("storage: open database file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		util.CloseFileFunc(file)
		return nil, fmt.Errorf("storage: stat database file: %w", err)
	}

	pageCount := int32(info.Size() / PageSize)
	slog.Debug("storage: opened database file", "path", path, "page_count", pageCount)

	return &DiskManager{
		file:      file,
		nextPage:  pageCount,
		pageCount: pageCount,
	}, nil
}

// ReadPage fills buf (which must be PageSize bytes) with the contents of
// pageID. Reading a page beyond the current file extent (a page that was
// allocated but never written) yields zeros. I/O errors are fatal per
// the specification: they are returned wrapped, never retried.
func (d *DiskManager) ReadPage(pageID int32, buf *[PageSize]byte) error {
	if pageID < 0 {
		return ErrInvalidPageID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range buf {
		buf[i] = 0
	}

	if pageID >= d.pageCount {
		return nil
	}

	offset := int64(pageID) * PageSize
	if _, err := d.file.ReadAt(buf[:], offset); err != nil && err != io.EOF {
		return fmt.Errorf("%w: read page %d: %v", ErrStorageIO, pageID, err)
	}
	return nil
}

// WritePage persists buf (PageSize bytes) as the contents of pageID.
func (d *DiskManager) WritePage(pageID int32, buf *[PageSize]byte) error {
	if pageID < 0 {
		return ErrInvalidPageID
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	offset := int64(pageID) * PageSize
	if _, err := d.file.WriteAt(buf[:], offset); err != nil {
		return fmt.Errorf("%w: write page %d: %v", ErrStorageIO, pageID, err)
	}

	if pageID >= d.pageCount {
		d.pageCount = pageID + 1
	}
	return nil
}

// AllocatePage returns a fresh page id. Allocation never reuses an id;
// free-space reclamation within or across pages is out of scope.
func (d *DiskManager) AllocatePage() int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPage
	d.nextPage++
	return id
}

// DeallocatePage is a no-op: page id reuse is out of scope for this
// specification, so there is nothing to reclaim.
func (d *DiskManager) DeallocatePage(pageID int32) error {
	return nil
}

// Close flushes and closes the underlying file.
func (d *DiskManager) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	slog.Debug("storage: closing database file", "page_count", d.pageCount)
	if err := d.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrStorageIO, err)
	}
	return d.file.Close()
}
