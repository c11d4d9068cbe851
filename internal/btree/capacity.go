package btree

import "github.com/relstore/storagecore/internal/storage"

// maxLeafEntries returns the largest number of fixed-size (key, value)
// entries a leaf page can hold after its header and next_page_id field.
func maxLeafEntries(keySize int) int {
	free := storage.PageSize - leafEntriesOffset
	entrySize := keySize + 4
	if free <= 0 || entrySize <= 0 {
		return 0
	}
	return free / entrySize
}

// maxInternalEntries returns the largest number of fixed-size (key,
// child_page_id) entries an internal page can hold after its header,
// including the unused dummy entry 0.
func maxInternalEntries(keySize int) int {
	free := storage.PageSize - internalEntriesOffset
	entrySize := keySize + 4
	if free <= 0 || entrySize <= 0 {
		return 0
	}
	return free / entrySize
}
