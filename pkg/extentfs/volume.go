package extentfs

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// volume provides typed access to the records stored in an image. All
// accessors are bounds checked against the image and the geometry
// recorded in the superblock. Out of range accesses indicate that the
// image is corrupted or that an invariant is violated, and cause a
// panic. volume performs no locking of its own.
type volume struct {
	image      []byte
	blockCount uint32
	inodeCount uint32
	geometry
}

// openVolume validates the superblock of an image and returns a
// volume for accessing it.
func openVolume(image []byte) (*volume, error) {
	if len(image) < BlockSizeBytes || len(image)%BlockSizeBytes != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Image size %d is not a positive multiple of the block size", len(image))
	}
	sb := superblockFromBytes(image[:superblockSizeBytes])
	if sb.magic != Magic {
		return nil, status.Errorf(codes.InvalidArgument, "Image has magic %#x, while %#x was expected", sb.magic, Magic)
	}
	if sb.blockSize != BlockSizeBytes || sb.inodeSize != inodeSizeBytes {
		return nil, status.Errorf(codes.InvalidArgument, "Image uses block size %d and inode size %d, while %d and %d were expected", sb.blockSize, sb.inodeSize, BlockSizeBytes, inodeSizeBytes)
	}
	if sb.sizeBytes != uint64(len(image)) || uint64(sb.blockCount)*BlockSizeBytes != uint64(len(image)) {
		return nil, status.Errorf(codes.InvalidArgument, "Image is %d bytes in size, while the superblock describes %d blocks and %d bytes", len(image), sb.blockCount, sb.sizeBytes)
	}
	if sb.inodeCount == 0 {
		return nil, status.Error(codes.InvalidArgument, "Image has no inodes")
	}
	g := computeGeometry(sb.blockCount, sb.inodeCount)
	if g.inodeBitmapStart != sb.inodeBitmapStart ||
		g.blockBitmapStart != sb.blockBitmapStart ||
		g.inodeTableStart != sb.inodeTableStart ||
		g.firstDataBlock != sb.firstDataBlock {
		return nil, status.Error(codes.InvalidArgument, "Region offsets in the superblock do not match the block and inode counts")
	}
	if g.firstDataBlock+2 > sb.blockCount {
		return nil, status.Errorf(codes.InvalidArgument, "Image with %d blocks is too small to hold its metadata", sb.blockCount)
	}
	return &volume{
		image:      image,
		blockCount: sb.blockCount,
		inodeCount: sb.inodeCount,
		geometry:   g,
	}, nil
}

func (v *volume) blocks(first, end uint32) []byte {
	if first > end || end > v.blockCount {
		panic(fmt.Sprintf("Block range [%d, %d) is outside of an image with %d blocks", first, end, v.blockCount))
	}
	return v.image[uint64(first)*BlockSizeBytes : uint64(end)*BlockSizeBytes]
}

func (v *volume) block(n uint32) []byte {
	return v.blocks(n, n+1)
}

func (v *volume) zeroBlock(n uint32) {
	clear(v.block(n))
}

// zeroFileRange zero fills a range of logical bytes of a file. Bytes
// that are not backed by a data block are skipped.
func (v *volume) zeroFileRange(i *inode, from, to uint64) {
	for from < to {
		b, ok := v.blockAt(i, from/BlockSizeBytes)
		if !ok {
			return
		}
		within := from % BlockSizeBytes
		n := min(BlockSizeBytes-within, to-from)
		clear(v.dataBlock(b)[within : within+n])
		from += n
	}
}

func (v *volume) readSuperblock() *superblock {
	return superblockFromBytes(v.image[:superblockSizeBytes])
}

func (v *volume) writeSuperblock(sb *superblock) {
	sb.toBytes(v.image[:superblockSizeBytes])
}

func (v *volume) inodeBitmap() bitmap {
	return bitmap{
		bits:  v.blocks(v.inodeBitmapStart, v.blockBitmapStart),
		limit: v.inodeCount,
	}
}

func (v *volume) blockBitmap() bitmap {
	return bitmap{
		bits:  v.blocks(v.blockBitmapStart, v.inodeTableStart),
		limit: v.blockCount,
	}
}

func (v *volume) inodeRecord(n uint32) []byte {
	if n >= v.inodeCount {
		panic(fmt.Sprintf("Inode %d is outside of an inode table with %d entries", n, v.inodeCount))
	}
	b := v.block(v.inodeTableStart + n/inodesPerBlock)
	offset := (n % inodesPerBlock) * inodeSizeBytes
	return b[offset : offset+inodeSizeBytes]
}

func (v *volume) readInode(n uint32) inode {
	return inodeFromBytes(v.inodeRecord(n))
}

func (v *volume) writeInode(n uint32, i *inode) {
	i.toBytes(v.inodeRecord(n))
}

func (v *volume) dataBlock(n uint32) []byte {
	if n < v.firstDataBlock {
		panic(fmt.Sprintf("Block %d lies in the metadata region, which ends at block %d", n, v.firstDataBlock))
	}
	return v.block(n)
}

func (v *volume) extentRecord(table, index uint32) []byte {
	if index >= extentsPerTable {
		panic(fmt.Sprintf("Extent %d is outside of an extent table with %d entries", index, extentsPerTable))
	}
	offset := index * extentSizeBytes
	return v.dataBlock(table)[offset : offset+extentSizeBytes]
}

func (v *volume) readExtent(table, index uint32) extent {
	return extentFromBytes(v.extentRecord(table, index))
}

func (v *volume) writeExtent(table, index uint32, e extent) {
	e.toBytes(v.extentRecord(table, index))
}

func (v *volume) dentryRecord(block uint32, slot int) []byte {
	if slot < 0 || slot >= dentriesPerBlock {
		panic(fmt.Sprintf("Directory entry slot %d is outside of a block with %d slots", slot, dentriesPerBlock))
	}
	offset := slot * dentrySizeBytes
	return v.dataBlock(block)[offset : offset+dentrySizeBytes]
}

func (v *volume) readDentry(block uint32, slot int) dentry {
	return dentryFromBytes(v.dentryRecord(block, slot))
}

func (v *volume) writeDentry(block uint32, slot int, d dentry) {
	d.toBytes(v.dentryRecord(block, slot))
}

// forEachDataBlock calls fn for every data block of an inode, in
// extent order. Iteration stops when fn returns false.
func (v *volume) forEachDataBlock(i *inode, fn func(block uint32) bool) {
	for e := uint32(0); e < i.extentCount; e++ {
		ext := v.readExtent(i.extentTable, e)
		for b := ext.start; b < ext.end(); b++ {
			if !fn(b) {
				return
			}
		}
	}
}

// blockAt returns the physical block holding the logical block index
// of a file.
func (v *volume) blockAt(i *inode, logical uint64) (uint32, bool) {
	for e := uint32(0); e < i.extentCount; e++ {
		ext := v.readExtent(i.extentTable, e)
		if logical < uint64(ext.count) {
			return ext.start + uint32(logical), true
		}
		logical -= uint64(ext.count)
	}
	return 0, false
}

// directorySlot identifies a dentry within a directory's data blocks.
type directorySlot struct {
	block uint32
	slot  int
}

// forEachDentry calls fn for every dentry slot of a directory,
// including free slots and "." and "..". Iteration stops when fn
// returns false.
func (v *volume) forEachDentry(directory *inode, fn func(s directorySlot, d dentry) bool) {
	v.forEachDataBlock(directory, func(block uint32) bool {
		for slot := 0; slot < dentriesPerBlock; slot++ {
			if !fn(directorySlot{block: block, slot: slot}, v.readDentry(block, slot)) {
				return false
			}
		}
		return true
	})
}

// lookup searches a directory for an entry with a given name.
func (v *volume) lookup(directory *inode, name string) (directorySlot, uint32, bool) {
	var found directorySlot
	var inodeNumber uint32
	ok := false
	v.forEachDentry(directory, func(s directorySlot, d dentry) bool {
		if d.name != "" && d.name == name {
			found, inodeNumber, ok = s, d.inodeNumber, true
			return false
		}
		return true
	})
	return found, inodeNumber, ok
}

// findFreeDentry returns the first free slot of a directory.
func (v *volume) findFreeDentry(directory *inode) (directorySlot, bool) {
	var found directorySlot
	ok := false
	v.forEachDentry(directory, func(s directorySlot, d dentry) bool {
		if d.name == "" {
			found, ok = s, true
			return false
		}
		return true
	})
	return found, ok
}

// resyncSuperblock recomputes the free inode and free block counters
// from the bitmaps, which are the only authoritative source of
// allocation state.
func (v *volume) resyncSuperblock() {
	sb := v.readSuperblock()
	sb.freeInodeCount = v.inodeBitmap().countFree()
	sb.freeBlockCount = v.blockBitmap().countFree()
	v.writeSuperblock(sb)
}
