package extentfs

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/buildbarn/bb-storage/pkg/util"
)

// Verify checks the consistency of an image without modifying it. It
// returns a description of every inconsistency found. An error is
// returned if the image does not contain a file system at all.
//
// The following properties are checked:
//
//   - Every inode reachable from the root directory is marked allocated
//     in the inode bitmap, and vice versa.
//   - Every metadata block, extent table and data block of a reachable
//     inode is marked allocated in the block bitmap, and vice versa. No
//     block is owned twice.
//   - The free counters in the superblock match the bitmaps.
//   - Files use exactly as many blocks as their size requires.
//   - The size of a directory equals the size of its own data blocks
//     plus the sizes of all of its children.
func Verify(image []byte) ([]string, error) {
	v, err := openVolume(image)
	if err != nil {
		return nil, util.StatusWrap(err, "Invalid image")
	}
	c := consistencyChecker{
		volume:          v,
		reachableInodes: bitset.New(uint(v.inodeCount)),
		reachableBlocks: bitset.New(uint(v.blockCount)),
	}
	for b := uint32(0); b < v.firstDataBlock; b++ {
		c.reachableBlocks.Set(uint(b))
	}
	c.reachableInodes.Set(rootInodeNumber)
	c.checkInode("/", rootInodeNumber)
	c.compareBitmap("inode", v.inodeBitmap(), c.reachableInodes)
	c.compareBitmap("block", v.blockBitmap(), c.reachableBlocks)

	sb := v.readSuperblock()
	if free := v.inodeBitmap().countFree(); sb.freeInodeCount != free {
		c.reportf("Superblock reports %d free inodes, while the inode bitmap has %d", sb.freeInodeCount, free)
	}
	if free := v.blockBitmap().countFree(); sb.freeBlockCount != free {
		c.reportf("Superblock reports %d free blocks, while the block bitmap has %d", sb.freeBlockCount, free)
	}
	return c.problems, nil
}

type consistencyChecker struct {
	volume          *volume
	reachableInodes *bitset.BitSet
	reachableBlocks *bitset.BitSet
	problems        []string
}

func (c *consistencyChecker) reportf(format string, args ...interface{}) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

func (c *consistencyChecker) claimBlock(path string, b uint32) bool {
	v := c.volume
	if b < v.firstDataBlock || b >= v.blockCount {
		c.reportf("%s: block %d lies outside the data region", path, b)
		return false
	}
	if c.reachableBlocks.Test(uint(b)) {
		c.reportf("%s: block %d is owned more than once", path, b)
		return false
	}
	c.reachableBlocks.Set(uint(b))
	return true
}

// checkInode validates a reachable inode and, in case of a directory,
// all of its children. It returns the size of the inode.
func (c *consistencyChecker) checkInode(path string, inodeNumber uint32) uint64 {
	v := c.volume
	i := v.readInode(inodeNumber)
	if i.extentTable == noExtentTable {
		if i.extentCount != 0 || i.blockCount != 0 {
			c.reportf("%s: inode %d has %d extents, but no extent table", path, inodeNumber, i.extentCount)
			return i.sizeBytes
		}
	} else {
		if !c.claimBlock(path, i.extentTable) {
			return i.sizeBytes
		}
		if i.extentCount > extentsPerTable {
			c.reportf("%s: inode %d has %d extents, which exceeds the maximum", path, inodeNumber, i.extentCount)
			return i.sizeBytes
		}
		blocks := uint64(0)
		for e := uint32(0); e < i.extentCount; e++ {
			ext := v.readExtent(i.extentTable, e)
			if ext.count == 0 || uint64(ext.start)+uint64(ext.count) > uint64(v.blockCount) {
				c.reportf("%s: extent %d of inode %d is invalid", path, e, inodeNumber)
				return i.sizeBytes
			}
			for b := ext.start; b < ext.end(); b++ {
				if !c.claimBlock(path, b) {
					return i.sizeBytes
				}
			}
			blocks += uint64(ext.count)
		}
		if blocks != uint64(i.blockCount) {
			c.reportf("%s: inode %d has %d blocks in its extents, while it records %d", path, inodeNumber, blocks, i.blockCount)
		}
	}

	if !i.isDirectory() {
		if expected := divideRoundUp(i.sizeBytes, BlockSizeBytes); uint64(i.blockCount) != expected {
			c.reportf("%s: file of %d bytes uses %d blocks, while %d are needed", path, i.sizeBytes, i.blockCount, expected)
		}
		return i.sizeBytes
	}

	expectedSize := uint64(i.blockCount) * BlockSizeBytes
	v.forEachDentry(&i, func(_ directorySlot, d dentry) bool {
		switch d.name {
		case "":
		case ".":
			if d.inodeNumber != inodeNumber {
				c.reportf("%s: entry \".\" refers to inode %d", path, d.inodeNumber)
			}
		case "..":
		default:
			childPath := path + d.name
			if d.inodeNumber >= v.inodeCount {
				c.reportf("%s: refers to inode %d, which is out of range", childPath, d.inodeNumber)
				return true
			}
			if !v.inodeBitmap().isSet(d.inodeNumber) {
				c.reportf("%s: refers to inode %d, which is free", childPath, d.inodeNumber)
			}
			if c.reachableInodes.Test(uint(d.inodeNumber)) {
				c.reportf("%s: inode %d is reachable more than once", childPath, d.inodeNumber)
				return true
			}
			c.reachableInodes.Set(uint(d.inodeNumber))
			if child := v.readInode(d.inodeNumber); child.isDirectory() {
				childPath += "/"
			}
			expectedSize += c.checkInode(childPath, d.inodeNumber)
		}
		return true
	})
	if i.sizeBytes != expectedSize {
		c.reportf("%s: directory has size %d, while its blocks and children account for %d", path, i.sizeBytes, expectedSize)
	}
	return i.sizeBytes
}

func (c *consistencyChecker) compareBitmap(name string, bm bitmap, reachable *bitset.BitSet) {
	allocated := bm.toBitSet()
	for n := uint32(0); n < bm.limit; n++ {
		isAllocated, isReachable := allocated.Test(uint(n)), reachable.Test(uint(n))
		if isAllocated && !isReachable {
			c.reportf("%s %d is allocated, but not in use", name, n)
		} else if !isAllocated && isReachable {
			c.reportf("%s %d is in use, but not allocated", name, n)
		}
	}
}
