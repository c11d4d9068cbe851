package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/storagecore/internal/storage"
)

func newTestPool(t *testing.T, capacity int) (*Pool, *storage.DiskManager) {
	t.Helper()
	dir := t.TempDir()
	dm, err := storage.NewDiskManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return NewPool(dm, capacity), dm
}

func TestPool_NewPageThenFetch_LoadsAndPins(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	id, page, err := pool.NewPage()
	require.NoError(t, err)
	page.Data[0] = 0x42
	require.True(t, pool.Unpin(id, true))

	fetched, err := pool.Fetch(id)
	require.NoError(t, err)
	require.Equal(t, byte(0x42), fetched.Data[0])
	require.True(t, pool.Unpin(id, false))
}

func TestPool_NewPage_Full_NoFreeFrameError(t *testing.T) {
	pool, _ := newTestPool(t, 2)

	id0, _, err := pool.NewPage()
	require.NoError(t, err)
	id1, _, err := pool.NewPage()
	require.NoError(t, err)
	// both frames now pinned; pool exhausted
	_, _, err = pool.NewPage()
	require.ErrorIs(t, err, ErrNoFreeFrame)

	require.True(t, pool.Unpin(id0, false))
	require.True(t, pool.Unpin(id1, false))

	// now a free frame exists via eviction
	_, _, err = pool.NewPage()
	require.NoError(t, err)
}

func TestPool_PoolSizeOne_EvictsAndReloads(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	idA, pageA, err := pool.NewPage()
	require.NoError(t, err)
	pageA.Data[0] = 0xAA
	require.True(t, pool.Unpin(idA, true))

	idB, pageB, err := pool.NewPage() // evicts A, flushing it first
	require.NoError(t, err)
	pageB.Data[0] = 0xBB
	require.True(t, pool.Unpin(idB, true))

	back, err := pool.Fetch(idA)
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), back.Data[0], "dirty victim must be written back before its frame is reused")
	require.True(t, pool.Unpin(idA, false))
}

func TestPool_EvictDirtyFrameAndFlush(t *testing.T) {
	pool, dm := newTestPool(t, 1)

	id, page, err := pool.NewPage()
	require.NoError(t, err)
	page.Data[0] = 0x7F
	require.True(t, pool.Unpin(id, true))

	// force eviction of the only frame
	_, _, err = pool.NewPage()
	require.NoError(t, err)

	var out [storage.PageSize]byte
	require.NoError(t, dm.ReadPage(id, &out))
	require.Equal(t, byte(0x7F), out[0])
}

func TestPool_DeletePage_PinnedReturnsFalse(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	id, _, err := pool.NewPage()
	require.NoError(t, err)

	require.False(t, pool.DeletePage(id))

	require.True(t, pool.Unpin(id, false))
	require.True(t, pool.DeletePage(id))
}

func TestPool_Unpin_NotResidentReturnsFalse(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	require.False(t, pool.Unpin(999, false))
}

func TestPool_Unpin_AlreadyZeroReturnsFalse(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	id, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.Unpin(id, false))
	require.False(t, pool.Unpin(id, false))
}

func TestPool_FlushAll(t *testing.T) {
	pool, dm := newTestPool(t, 4)

	id1, p1, err := pool.NewPage()
	require.NoError(t, err)
	p1.Data[0] = 1
	require.True(t, pool.Unpin(id1, true))

	id2, p2, err := pool.NewPage()
	require.NoError(t, err)
	p2.Data[0] = 2
	require.True(t, pool.Unpin(id2, true))

	require.NoError(t, pool.FlushAll())

	var out [storage.PageSize]byte
	require.NoError(t, dm.ReadPage(id1, &out))
	require.Equal(t, byte(1), out[0])
	require.NoError(t, dm.ReadPage(id2, &out))
	require.Equal(t, byte(2), out[0])
}

func TestPool_FreeListPreferredOverEviction(t *testing.T) {
	pool, _ := newTestPool(t, 2)

	idA, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.Unpin(idA, false))

	// one free frame remains; NewPage must use it, not evict A
	idB, _, err := pool.NewPage()
	require.NoError(t, err)
	require.True(t, pool.Unpin(idB, false))

	// A is still resident (not evicted) since a free frame was available
	_, resident := pool.pageTable[idA]
	require.True(t, resident)
	_, err = pool.Fetch(idA)
	require.NoError(t, err)
	require.True(t, pool.Unpin(idA, false))
}
