package extentfs

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestVolume(t *testing.T, blockCount, inodeCount uint32) *volume {
	image := make([]byte, int(blockCount)*BlockSizeBytes)
	require.NoError(t, Format(image, &FormatOptions{
		InodeCount: inodeCount,
		Now:        time.Unix(1700000000, 0),
	}))
	v, err := openVolume(image)
	require.NoError(t, err)
	return v
}

// newTestFile returns an inode that owns an extent table at the
// provided block, but no data blocks.
func newTestFile(v *volume, extentTable uint32) inode {
	v.blockBitmap().set(extentTable)
	return inode{
		mode:        ModeTypeRegular | 0o644,
		links:       1,
		extentTable: extentTable,
	}
}

func extentsOf(v *volume, i *inode) []extent {
	var extents []extent
	for e := uint32(0); e < i.extentCount; e++ {
		extents = append(extents, v.readExtent(i.extentTable, e))
	}
	return extents
}

func TestAllocateBlocks(t *testing.T) {
	t.Run("Contiguous", func(t *testing.T) {
		// Blocks 0-3 hold metadata, 4-5 the root directory.
		v := newTestVolume(t, 64, 16)
		i := newTestFile(v, 6)

		require.Equal(t, StatusOK, v.allocateBlocks(&i, 3))
		require.Equal(t, []extent{{start: 7, count: 3}}, extentsOf(v, &i))
		require.Equal(t, uint32(3), i.blockCount)

		// Growing the file extends the last extent.
		require.Equal(t, StatusOK, v.allocateBlocks(&i, 2))
		require.Equal(t, []extent{{start: 7, count: 5}}, extentsOf(v, &i))
		require.Equal(t, uint32(5), i.blockCount)
	})

	t.Run("Fragmented", func(t *testing.T) {
		v := newTestVolume(t, 64, 16)
		i := newTestFile(v, 6)
		require.Equal(t, StatusOK, v.allocateBlocks(&i, 3))
		v.blockBitmap().set(10)
		v.blockBitmap().set(14)

		require.Equal(t, StatusOK, v.allocateBlocks(&i, 5))
		require.Equal(t, []extent{
			{start: 7, count: 3},
			{start: 11, count: 3},
			{start: 15, count: 2},
		}, extentsOf(v, &i))
		require.Equal(t, uint32(8), i.blockCount)
	})

	t.Run("WrapAround", func(t *testing.T) {
		// The search starts after the last extent and continues
		// at the start of the data region.
		v := newTestVolume(t, 64, 16)
		i := newTestFile(v, 6)
		bm := v.blockBitmap()
		for b := uint32(7); b < 62; b++ {
			if b != 20 {
				bm.set(b)
			}
		}
		v.writeExtent(i.extentTable, 0, extent{start: 60, count: 2})
		i.extentCount = 1
		i.blockCount = 2

		require.Equal(t, StatusOK, v.allocateBlocks(&i, 3))
		require.Equal(t, []extent{
			{start: 60, count: 4},
			{start: 20, count: 1},
		}, extentsOf(v, &i))
		require.Equal(t, uint32(5), i.blockCount)
		require.Equal(t, uint32(0), bm.countFree())
	})

	t.Run("NewBlocksAreZeroed", func(t *testing.T) {
		v := newTestVolume(t, 64, 16)
		i := newTestFile(v, 6)
		copy(v.block(7), bytes.Repeat([]byte{0xff}, BlockSizeBytes))

		require.Equal(t, StatusOK, v.allocateBlocks(&i, 1))
		require.Equal(t, make([]byte, BlockSizeBytes), v.block(7))
	})

	t.Run("NoSpace", func(t *testing.T) {
		v := newTestVolume(t, 64, 16)
		i := newTestFile(v, 6)
		before := bytes.Clone(v.image)

		require.Equal(t, StatusErrNoSpc, v.allocateBlocks(&i, 58))
		require.True(t, bytes.Equal(before, v.image))
		require.Equal(t, uint32(0), i.extentCount)

		require.Equal(t, StatusOK, v.allocateBlocks(&i, 57))
		require.Equal(t, []extent{{start: 7, count: 57}}, extentsOf(v, &i))
	})

	t.Run("TooManyExtents", func(t *testing.T) {
		// Leave only every other block free, so that each
		// allocated block ends up in an extent of its own.
		v := newTestVolume(t, 2048, 16)
		i := newTestFile(v, 6)
		bm := v.blockBitmap()
		for b := uint32(7); b < 2048; b += 2 {
			bm.set(b)
		}
		before := bytes.Clone(v.image)

		require.Equal(t, StatusErrTooManyExtents, v.allocateBlocks(&i, extentsPerTable+1))
		require.True(t, bytes.Equal(before, v.image))

		require.Equal(t, StatusOK, v.allocateBlocks(&i, extentsPerTable))
		require.Equal(t, uint32(extentsPerTable), i.extentCount)
		require.Equal(t, StatusErrTooManyExtents, v.allocateBlocks(&i, 1))
	})
}

func TestShrinkBlocks(t *testing.T) {
	v := newTestVolume(t, 64, 16)
	i := newTestFile(v, 6)
	require.Equal(t, StatusOK, v.allocateBlocks(&i, 3))
	v.blockBitmap().set(10)
	require.Equal(t, StatusOK, v.allocateBlocks(&i, 3))
	require.Equal(t, []extent{{start: 7, count: 3}, {start: 11, count: 3}}, extentsOf(v, &i))

	// Removing the last extent entirely and part of the one before.
	v.shrinkBlocks(&i, 4)
	require.Equal(t, []extent{{start: 7, count: 2}}, extentsOf(v, &i))
	require.Equal(t, uint32(2), i.blockCount)
	bm := v.blockBitmap()
	for b, expected := range map[uint32]bool{
		6: true, 7: true, 8: true, 9: false, 10: true, 11: false, 12: false, 13: false,
	} {
		require.Equal(t, expected, bm.isSet(b), b)
	}

	v.releaseAllBlocks(&i)
	require.Equal(t, uint32(noExtentTable), i.extentTable)
	require.Equal(t, uint32(0), i.extentCount)
	require.Equal(t, uint32(0), i.blockCount)
	require.False(t, bm.isSet(6))
	require.False(t, bm.isSet(7))
	require.False(t, bm.isSet(8))
}
