package extentfs

import (
	"time"

	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/uuid"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FormatOptions controls how an image is formatted.
type FormatOptions struct {
	// Number of inodes to reserve space for in the inode table.
	InodeCount uint32
	// Overwrite an image that already contains a file system.
	Force bool
	// Zero the entire image, as opposed to only the blocks that
	// are used by the empty file system.
	Zero bool
	// Identifier of the volume. A random identifier is generated
	// if left unset.
	VolumeUUID uuid.UUID
	// Time stored in the superblock and used as the modification
	// time of the root directory.
	Now time.Time
}

// Format writes an empty file system to an image. The resulting file
// system only contains a root directory, holding entries "." and
// "..", both referring to the root directory itself.
func Format(image []byte, options *FormatOptions) error {
	if len(image)%BlockSizeBytes != 0 {
		return status.Errorf(codes.InvalidArgument, "Image size %d is not a multiple of the block size", len(image))
	}
	blockCount64 := uint64(len(image)) / BlockSizeBytes
	if blockCount64 < MinimumBlockCount {
		return status.Errorf(codes.InvalidArgument, "Image contains %d blocks, while at least %d blocks are required", blockCount64, MinimumBlockCount)
	}
	if blockCount64 > uint64(^uint32(0)) {
		return status.Errorf(codes.InvalidArgument, "Image contains %d blocks, which exceeds the maximum", blockCount64)
	}
	blockCount := uint32(blockCount64)
	if options.InodeCount == 0 {
		return status.Error(codes.InvalidArgument, "At least one inode is required")
	}
	g := computeGeometry(blockCount, options.InodeCount)
	if uint64(g.firstDataBlock)+2 > blockCount64 {
		return status.Errorf(codes.InvalidArgument, "Image with %d blocks is too small to hold %d inodes and a root directory", blockCount, options.InodeCount)
	}
	if !options.Force && superblockFromBytes(image[:superblockSizeBytes]).magic == Magic {
		return status.Error(codes.AlreadyExists, "Image already contains a file system")
	}

	volumeUUID := options.VolumeUUID
	if volumeUUID == uuid.Nil {
		var err error
		if volumeUUID, err = uuid.NewRandom(); err != nil {
			return util.StatusWrapWithCode(err, codes.Internal, "Failed to generate volume UUID")
		}
	}

	v := &volume{
		image:      image,
		blockCount: blockCount,
		inodeCount: options.InodeCount,
		geometry:   g,
	}
	zeroEnd := g.firstDataBlock + 2
	if options.Zero {
		zeroEnd = blockCount
	}
	for b := uint32(0); b < zeroEnd; b++ {
		v.zeroBlock(b)
	}

	v.writeSuperblock(&superblock{
		magic:            Magic,
		sizeBytes:        uint64(len(image)),
		blockSize:        BlockSizeBytes,
		inodeSize:        inodeSizeBytes,
		blockCount:       blockCount,
		inodeCount:       options.InodeCount,
		inodeBitmapStart: g.inodeBitmapStart,
		blockBitmapStart: g.blockBitmapStart,
		inodeTableStart:  g.inodeTableStart,
		firstDataBlock:   g.firstDataBlock,
		volumeUUID:       volumeUUID,
		formatTime:       options.Now,
	})

	// Metadata blocks and the two blocks of the root directory.
	bm := v.blockBitmap()
	for b := uint32(0); b < g.firstDataBlock+2; b++ {
		bm.set(b)
	}
	v.inodeBitmap().set(rootInodeNumber)

	extentTable := g.firstDataBlock
	data := g.firstDataBlock + 1
	v.writeExtent(extentTable, 0, extent{start: data, count: 1})
	v.writeDentry(data, 0, dentry{inodeNumber: rootInodeNumber, name: "."})
	v.writeDentry(data, 1, dentry{inodeNumber: rootInodeNumber, name: ".."})
	v.writeInode(rootInodeNumber, &inode{
		mode:             ModeTypeDirectory | 0o777,
		links:            2,
		sizeBytes:        BlockSizeBytes,
		modificationTime: options.Now,
		blockCount:       1,
		extentTable:      extentTable,
		extentCount:      1,
	})

	v.resyncSuperblock()
	return nil
}
