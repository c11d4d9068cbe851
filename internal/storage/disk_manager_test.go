package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDiskManager(t *testing.T) *DiskManager {
	t.Helper()
	dir := t.TempDir()
	dm, err := NewDiskManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return dm
}

func TestDiskManager_AllocatePage_IsMonotonicAndNeverReused(t *testing.T) {
	dm := newTestDiskManager(t)

	a := dm.AllocatePage()
	b := dm.AllocatePage()
	c := dm.AllocatePage()

	require.Equal(t, a+1, b)
	require.Equal(t, b+1, c)
}

func TestDiskManager_WriteThenReadPage_RoundTrips(t *testing.T) {
	dm := newTestDiskManager(t)
	id := dm.AllocatePage()

	var out [PageSize]byte
	var in [PageSize]byte
	copy(in[:], "hello page")

	require.NoError(t, dm.WritePage(id, &in))
	require.NoError(t, dm.ReadPage(id, &out))
	require.Equal(t, in, out)
}

func TestDiskManager_ReadPage_NeverWrittenReadsZero(t *testing.T) {
	dm := newTestDiskManager(t)
	id := dm.AllocatePage()

	var out [PageSize]byte
	out[0] = 0xFF // poison, must be cleared by ReadPage
	require.NoError(t, dm.ReadPage(id, &out))

	var zero [PageSize]byte
	require.Equal(t, zero, out)
}

func TestDiskManager_ReadPage_NegativeIDFails(t *testing.T) {
	dm := newTestDiskManager(t)
	var out [PageSize]byte
	require.ErrorIs(t, dm.ReadPage(-1, &out), ErrInvalidPageID)
}
