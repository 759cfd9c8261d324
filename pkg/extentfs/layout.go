package extentfs

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

const (
	// BlockSizeBytes is the size of every block in the image,
	// including the superblock.
	BlockSizeBytes = 4096
	// Magic is stored at the start of the superblock.
	Magic uint64 = 0xC5C369A1C5C369A1

	inodeSizeBytes  = 64
	extentSizeBytes = 8
	dentrySizeBytes = 256

	// NameMaximumLength is the longest name a directory entry can
	// hold. One byte of the name field is reserved for the
	// terminating NUL.
	NameMaximumLength = dentrySizeBytes - 4 - 1
	// PathMaximumLength is the longest path that is accepted by
	// any of the operations.
	PathMaximumLength = 4095

	// MinimumBlockCount is the smallest image that can be
	// formatted.
	MinimumBlockCount = 8

	inodesPerBlock     = BlockSizeBytes / inodeSizeBytes
	extentsPerTable    = BlockSizeBytes / extentSizeBytes
	dentriesPerBlock   = BlockSizeBytes / dentrySizeBytes
	bitsPerBitmapBlock = BlockSizeBytes * 8

	// rootInodeNumber is the inode slot of the root directory.
	rootInodeNumber = 0
	// noExtentTable is stored in an inode that has never had any
	// data blocks allocated. Block zero always holds the
	// superblock, so it can never be an extent table.
	noExtentTable = 0
)

// File type and permission bits stored in the mode field of an inode.
const (
	ModeTypeMask      uint32 = 0o170000
	ModeTypeDirectory uint32 = 0o040000
	ModeTypeRegular   uint32 = 0o100000
	ModePermissions   uint32 = 0o7777
)

// superblock is the decoded form of block zero of the image.
type superblock struct {
	magic            uint64
	sizeBytes        uint64
	blockSize        uint32
	inodeSize        uint32
	blockCount       uint32
	freeBlockCount   uint32
	inodeCount       uint32
	freeInodeCount   uint32
	inodeBitmapStart uint32
	blockBitmapStart uint32
	inodeTableStart  uint32
	firstDataBlock   uint32
	volumeUUID       uuid.UUID
	formatTime       time.Time
}

const superblockSizeBytes = 0x50

func superblockFromBytes(b []byte) *superblock {
	var id uuid.UUID
	copy(id[:], b[0x38:0x48])
	return &superblock{
		magic:            binary.LittleEndian.Uint64(b[0x00:0x08]),
		sizeBytes:        binary.LittleEndian.Uint64(b[0x08:0x10]),
		blockSize:        binary.LittleEndian.Uint32(b[0x10:0x14]),
		inodeSize:        binary.LittleEndian.Uint32(b[0x14:0x18]),
		blockCount:       binary.LittleEndian.Uint32(b[0x18:0x1c]),
		freeBlockCount:   binary.LittleEndian.Uint32(b[0x1c:0x20]),
		inodeCount:       binary.LittleEndian.Uint32(b[0x20:0x24]),
		freeInodeCount:   binary.LittleEndian.Uint32(b[0x24:0x28]),
		inodeBitmapStart: binary.LittleEndian.Uint32(b[0x28:0x2c]),
		blockBitmapStart: binary.LittleEndian.Uint32(b[0x2c:0x30]),
		inodeTableStart:  binary.LittleEndian.Uint32(b[0x30:0x34]),
		firstDataBlock:   binary.LittleEndian.Uint32(b[0x34:0x38]),
		volumeUUID:       id,
		formatTime:       time.Unix(0, int64(binary.LittleEndian.Uint64(b[0x48:0x50]))),
	}
}

func (sb *superblock) toBytes(b []byte) {
	binary.LittleEndian.PutUint64(b[0x00:0x08], sb.magic)
	binary.LittleEndian.PutUint64(b[0x08:0x10], sb.sizeBytes)
	binary.LittleEndian.PutUint32(b[0x10:0x14], sb.blockSize)
	binary.LittleEndian.PutUint32(b[0x14:0x18], sb.inodeSize)
	binary.LittleEndian.PutUint32(b[0x18:0x1c], sb.blockCount)
	binary.LittleEndian.PutUint32(b[0x1c:0x20], sb.freeBlockCount)
	binary.LittleEndian.PutUint32(b[0x20:0x24], sb.inodeCount)
	binary.LittleEndian.PutUint32(b[0x24:0x28], sb.freeInodeCount)
	binary.LittleEndian.PutUint32(b[0x28:0x2c], sb.inodeBitmapStart)
	binary.LittleEndian.PutUint32(b[0x2c:0x30], sb.blockBitmapStart)
	binary.LittleEndian.PutUint32(b[0x30:0x34], sb.inodeTableStart)
	binary.LittleEndian.PutUint32(b[0x34:0x38], sb.firstDataBlock)
	copy(b[0x38:0x48], sb.volumeUUID[:])
	binary.LittleEndian.PutUint64(b[0x48:0x50], uint64(sb.formatTime.UnixNano()))
}

// geometry describes where the regions of an image start. It is
// derived from the block and inode counts only, so that format and
// mount agree on it.
type geometry struct {
	inodeBitmapStart uint32
	blockBitmapStart uint32
	inodeTableStart  uint32
	firstDataBlock   uint32
}

func divideRoundUp(a, b uint64) uint64 {
	return (a + b - 1) / b
}

func computeGeometry(blockCount, inodeCount uint32) geometry {
	inodeBitmapBlocks := uint32(divideRoundUp(uint64(inodeCount), bitsPerBitmapBlock))
	blockBitmapBlocks := uint32(divideRoundUp(uint64(blockCount), bitsPerBitmapBlock))
	inodeTableBlocks := uint32(divideRoundUp(uint64(inodeCount)*inodeSizeBytes, BlockSizeBytes))
	g := geometry{inodeBitmapStart: 1}
	g.blockBitmapStart = g.inodeBitmapStart + inodeBitmapBlocks
	g.inodeTableStart = g.blockBitmapStart + blockBitmapBlocks
	g.firstDataBlock = g.inodeTableStart + inodeTableBlocks
	return g
}

// inode is the decoded form of a single inode table record.
type inode struct {
	mode             uint32
	links            uint32
	sizeBytes        uint64
	modificationTime time.Time
	// Number of data blocks referenced by the extent table. The
	// extent table block itself is not included.
	blockCount  uint32
	extentTable uint32
	extentCount uint32
}

func inodeFromBytes(b []byte) inode {
	return inode{
		mode:      binary.LittleEndian.Uint32(b[0:4]),
		links:     binary.LittleEndian.Uint32(b[4:8]),
		sizeBytes: binary.LittleEndian.Uint64(b[8:16]),
		modificationTime: time.Unix(
			int64(binary.LittleEndian.Uint64(b[16:24])),
			int64(binary.LittleEndian.Uint32(b[24:28]))),
		blockCount:  binary.LittleEndian.Uint32(b[28:32]),
		extentTable: binary.LittleEndian.Uint32(b[32:36]),
		extentCount: binary.LittleEndian.Uint32(b[36:40]),
	}
}

func (i *inode) toBytes(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], i.mode)
	binary.LittleEndian.PutUint32(b[4:8], i.links)
	binary.LittleEndian.PutUint64(b[8:16], i.sizeBytes)
	binary.LittleEndian.PutUint64(b[16:24], uint64(i.modificationTime.Unix()))
	binary.LittleEndian.PutUint32(b[24:28], uint32(i.modificationTime.Nanosecond()))
	binary.LittleEndian.PutUint32(b[28:32], i.blockCount)
	binary.LittleEndian.PutUint32(b[32:36], i.extentTable)
	binary.LittleEndian.PutUint32(b[36:40], i.extentCount)
	for j := 40; j < inodeSizeBytes; j++ {
		b[j] = 0
	}
}

func (i *inode) isDirectory() bool {
	return i.mode&ModeTypeMask == ModeTypeDirectory
}

// extent is a run of contiguous data blocks.
type extent struct {
	start uint32
	count uint32
}

func (e extent) end() uint32 {
	return e.start + e.count
}

func extentFromBytes(b []byte) extent {
	return extent{
		start: binary.LittleEndian.Uint32(b[0:4]),
		count: binary.LittleEndian.Uint32(b[4:8]),
	}
}

func (e extent) toBytes(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], e.start)
	binary.LittleEndian.PutUint32(b[4:8], e.count)
}

// dentry is a single directory entry. An empty name denotes a free
// slot.
type dentry struct {
	inodeNumber uint32
	name        string
}

func dentryFromBytes(b []byte) dentry {
	nameField := b[4:dentrySizeBytes]
	n := 0
	for n < len(nameField) && nameField[n] != 0 {
		n++
	}
	return dentry{
		inodeNumber: binary.LittleEndian.Uint32(b[0:4]),
		name:        string(nameField[:n]),
	}
}

func (d dentry) toBytes(b []byte) {
	if len(d.name) > NameMaximumLength {
		panic("Directory entry name exceeds the maximum length")
	}
	binary.LittleEndian.PutUint32(b[0:4], d.inodeNumber)
	nameField := b[4:dentrySizeBytes]
	n := copy(nameField, d.name)
	for ; n < len(nameField); n++ {
		nameField[n] = 0
	}
}
