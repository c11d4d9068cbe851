package btree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relstore/storagecore/internal/alias/bx"
	"github.com/relstore/storagecore/internal/bufferpool"
	"github.com/relstore/storagecore/internal/storage"
)

func newTestTree(t *testing.T, poolSize int) *Tree[int32] {
	t.Helper()
	dir := t.TempDir()
	dm, err := storage.NewDiskManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	pool := bufferpool.NewPool(dm, poolSize)
	return NewTree[int32](pool, Int32Codec{})
}

// newTestTreeBytes64 builds a tree keyed on the 64-byte fixed-width
// codec, whose much larger entry size shrinks leaf/internal fanout
// enough that a 3-level (root -> internal -> leaf) tree is reachable
// with a few thousand inserts instead of the ~10^5 an int32-keyed tree
// would need.
func newTestTreeBytes64(t *testing.T, poolSize int) *Tree[Bytes64] {
	t.Helper()
	dir := t.TempDir()
	dm, err := storage.NewDiskManager(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	pool := bufferpool.NewPool(dm, poolSize)
	return NewTree[Bytes64](pool, Bytes64Codec{})
}

// bytes64Key encodes i as a big-endian uint32 in the first 4 bytes of a
// Bytes64 key, zero-padded, so lexicographic (byte-wise) comparison
// order matches ascending numeric order for non-negative i.
func bytes64Key(i int32) Bytes64 {
	var k Bytes64
	bx.PutU32BE(k[:4], uint32(i))
	return k
}

func bytes64KeyValue(k Bytes64) int32 {
	return int32(bx.U32BE(k[:4]))
}

func TestTree_InsertThenGetValueRoundTrips(t *testing.T) {
	tree := newTestTree(t, 16)

	for i := int32(1); i <= 50; i++ {
		inserted, err := tree.Insert(i, RecordID(i*10))
		require.NoError(t, err)
		require.True(t, inserted)
	}

	for i := int32(1); i <= 50; i++ {
		v, found, err := tree.GetValue(i)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, RecordID(i*10), v)
	}
}

func TestTree_DuplicateInsertReturnsFalse(t *testing.T) {
	tree := newTestTree(t, 16)

	inserted, err := tree.Insert(2, 20)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = tree.Insert(2, 9999)
	require.NoError(t, err)
	require.False(t, inserted)

	v, found, err := tree.GetValue(2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, RecordID(20), v)
}

func TestTree_GetValueOnEmptyTreeReturnsFalse(t *testing.T) {
	tree := newTestTree(t, 4)
	_, found, err := tree.GetValue(1)
	require.NoError(t, err)
	require.False(t, found)
	require.True(t, tree.IsEmpty())
}

func TestTree_RemoveThenGetValueMisses(t *testing.T) {
	tree := newTestTree(t, 16)
	for i := int32(1); i <= 10; i++ {
		_, err := tree.Insert(i, RecordID(i))
		require.NoError(t, err)
	}

	require.NoError(t, tree.Remove(5))
	_, found, err := tree.GetValue(5)
	require.NoError(t, err)
	require.False(t, found)

	for _, k := range []int32{1, 2, 3, 4, 6, 7, 8, 9, 10} {
		_, found, err := tree.GetValue(k)
		require.NoError(t, err)
		require.True(t, found)
	}
}

func TestTree_RemoveMissingKeyIsNoOp(t *testing.T) {
	tree := newTestTree(t, 4)
	_, err := tree.Insert(1, 1)
	require.NoError(t, err)

	require.NoError(t, tree.Remove(99))

	v, found, err := tree.GetValue(1)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, RecordID(1), v)
}

func TestTree_RemoveOnEmptyTreeIsNoOp(t *testing.T) {
	tree := newTestTree(t, 4)
	require.True(t, tree.IsEmpty())
	require.NoError(t, tree.Remove(1))
	require.True(t, tree.IsEmpty())
}

func TestTree_RemoveDownToZeroEmptiesTree(t *testing.T) {
	tree := newTestTree(t, 8)
	for i := int32(1); i <= 5; i++ {
		_, err := tree.Insert(i, RecordID(i))
		require.NoError(t, err)
	}
	for i := int32(1); i <= 5; i++ {
		require.NoError(t, tree.Remove(i))
	}
	require.True(t, tree.IsEmpty())
	height, err := tree.Height()
	require.NoError(t, err)
	require.Zero(t, height)
}

func TestTree_IteratorVisitsEveryKeyInOrder(t *testing.T) {
	tree := newTestTree(t, 16)
	want := []int32{5, 1, 4, 2, 3}
	for _, k := range want {
		_, err := tree.Insert(k, RecordID(k))
		require.NoError(t, err)
	}

	it, err := tree.Begin()
	require.NoError(t, err)

	var got []int32
	for it.Valid() {
		got = append(got, it.Key())
		it.Next()
	}
	it.Close()

	require.Equal(t, []int32{1, 2, 3, 4, 5}, got)
}

func TestTree_IteratorOnEmptyTreeIsImmediatelyInvalid(t *testing.T) {
	tree := newTestTree(t, 4)
	it, err := tree.Begin()
	require.NoError(t, err)
	require.False(t, it.Valid())
}

func TestTree_ManyInsertsProduceMultiLevelHeightAndFullScan(t *testing.T) {
	tree := newTestTree(t, 32)
	const n = 2000
	for i := int32(1); i <= n; i++ {
		inserted, err := tree.Insert(i, RecordID(i))
		require.NoError(t, err)
		require.True(t, inserted)
	}

	height, err := tree.Height()
	require.NoError(t, err)
	require.GreaterOrEqual(t, height, 2)

	for _, k := range []int32{1, 500, 1000, 1999, n} {
		v, found, err := tree.GetValue(k)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, RecordID(k), v)
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	count := int32(0)
	for it.Valid() {
		count++
		require.Equal(t, count, it.Key())
		it.Next()
	}
	it.Close()
	require.Equal(t, int32(n), count)
}

func TestTree_BeginAtSeeksToFirstKeyGreaterOrEqual(t *testing.T) {
	tree := newTestTree(t, 16)
	for _, k := range []int32{10, 20, 30, 40, 50} {
		_, err := tree.Insert(k, RecordID(k))
		require.NoError(t, err)
	}

	it, err := tree.BeginAt(25)
	require.NoError(t, err)
	var got []int32
	for it.Valid() {
		got = append(got, it.Key())
		it.Next()
	}
	it.Close()
	require.Equal(t, []int32{30, 40, 50}, got)

	it, err = tree.BeginAt(30)
	require.NoError(t, err)
	require.True(t, it.Valid())
	require.Equal(t, int32(30), it.Key())
	it.Close()

	it, err = tree.BeginAt(51)
	require.NoError(t, err)
	require.False(t, it.Valid())
	it.Close()
}

func TestTree_BeginAtOnEmptyTreeIsImmediatelyInvalid(t *testing.T) {
	tree := newTestTree(t, 4)
	it, err := tree.BeginAt(1)
	require.NoError(t, err)
	require.False(t, it.Valid())
}

func TestTree_DeepTreeDeletionsExerciseInternalRebalancing(t *testing.T) {
	tree := newTestTreeBytes64(t, 64)
	const n = 4000

	for i := int32(1); i <= n; i++ {
		inserted, err := tree.Insert(bytes64Key(i), RecordID(i))
		require.NoError(t, err)
		require.True(t, inserted)
	}

	height, err := tree.Height()
	require.NoError(t, err)
	require.GreaterOrEqual(t, height, 3, "expected a non-root internal level to exist")

	// Delete every odd key (drives leaf- and internal-level coalesce
	// and redistribute against both left and right siblings across the
	// whole tree), then a block of even keys at the high end (drives
	// further rebalancing concentrated on one edge of the tree).
	for i := int32(1); i <= n; i += 2 {
		require.NoError(t, tree.Remove(bytes64Key(i)))
	}
	for i := int32(n); i >= n-400; i -= 4 {
		require.NoError(t, tree.Remove(bytes64Key(i)))
	}

	isDeleted := func(i int32) bool {
		return i%2 == 1 || (i >= n-400 && i%4 == 0)
	}
	for i := int32(1); i <= n; i++ {
		_, found, err := tree.GetValue(bytes64Key(i))
		require.NoError(t, err)
		if isDeleted(i) {
			require.False(t, found, "key %d should have been deleted", i)
		} else {
			require.True(t, found, "key %d should still be present", i)
		}
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	prev := int32(-1)
	count := 0
	for it.Valid() {
		cur := bytes64KeyValue(it.Key())
		require.Greater(t, cur, prev, "iterator must visit keys in ascending order")
		require.False(t, isDeleted(cur), "iterator visited a deleted key %d", cur)
		prev = cur
		count++
		it.Next()
	}
	it.Close()
	require.Greater(t, count, 0)
}

func TestTree_DeletingMostKeysStillLeavesSurvivorsSearchable(t *testing.T) {
	tree := newTestTree(t, 32)
	const n = 500
	for i := int32(1); i <= n; i++ {
		_, err := tree.Insert(i, RecordID(i))
		require.NoError(t, err)
	}
	for i := int32(1); i <= n; i++ {
		if i%2 == 0 {
			require.NoError(t, tree.Remove(i))
		}
	}
	for i := int32(1); i <= n; i++ {
		v, found, err := tree.GetValue(i)
		require.NoError(t, err)
		if i%2 == 0 {
			require.False(t, found)
		} else {
			require.True(t, found)
			require.Equal(t, RecordID(i), v)
		}
	}
}
