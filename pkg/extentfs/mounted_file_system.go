package extentfs

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/sirupsen/logrus"
)

type mountedFileSystem struct {
	clock  clock.Clock
	logger logrus.FieldLogger

	// Mutating operations take the lock exclusively. Operations
	// that only inspect the image may run concurrently.
	lock   sync.RWMutex
	volume *volume
}

// Mount validates that an image contains a file system and returns a
// FileSystem that operates on it. All changes are applied to the image
// in place. The caller is responsible for persisting the image.
func Mount(image []byte, clock clock.Clock, logger logrus.FieldLogger) (FileSystem, error) {
	v, err := openVolume(image)
	if err != nil {
		return nil, util.StatusWrap(err, "Invalid image")
	}
	sb := v.readSuperblock()
	logger.WithFields(logrus.Fields{
		"volume_uuid": sb.volumeUUID.String(),
		"blocks":      sb.blockCount,
		"free_blocks": sb.freeBlockCount,
		"inodes":      sb.inodeCount,
		"free_inodes": sb.freeInodeCount,
	}).Info("Mounted file system")
	return &mountedFileSystem{
		clock:  clock,
		logger: logger,
		volume: v,
	}, nil
}

func attributesFromInode(inodeNumber uint32, i *inode) Attributes {
	return Attributes{
		InodeNumber:      inodeNumber,
		Mode:             i.mode,
		LinkCount:        i.links,
		SizeBytes:        i.sizeBytes,
		Blocks:           divideRoundUp(i.sizeBytes, 512),
		ModificationTime: i.modificationTime,
	}
}

func (fs *mountedFileSystem) Stat(ctx context.Context, path string) (Attributes, Status) {
	components, s := parsePath(path)
	if s != StatusOK {
		return Attributes{}, s
	}

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	inodeNumber, i, s := fs.volume.resolve(components)
	if s != StatusOK {
		return Attributes{}, s
	}
	return attributesFromInode(inodeNumber, &i), StatusOK
}

func (fs *mountedFileSystem) ReadDir(ctx context.Context, path string, firstCookie uint64, reporter DirectoryEntryReporter) Status {
	components, s := parsePath(path)
	if s != StatusOK {
		return s
	}

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	v := fs.volume
	_, directory, s := v.resolve(components)
	if s != StatusOK {
		return s
	}
	if !directory.isDirectory() {
		return StatusErrNotDir
	}

	cookie := uint64(0)
	s = StatusOK
	v.forEachDentry(&directory, func(_ directorySlot, d dentry) bool {
		if d.name == "" || d.name == "." || d.name == ".." {
			return true
		}
		cookie++
		if cookie <= firstCookie {
			return true
		}
		child := v.readInode(d.inodeNumber)
		attributes := attributesFromInode(d.inodeNumber, &child)
		if !reporter.ReportEntry(cookie, d.name, &attributes) {
			s = StatusErrNoMem
			return false
		}
		return true
	})
	return s
}

// planDirectoryGrowth selects the block by which a directory is grown
// when it has no free slots left. The block directly following the
// last extent is preferred, so that the last extent can be extended.
func (v *volume) planDirectoryGrowth(directory *inode, exclude ...uint32) (uint32, Status) {
	bm := v.blockBitmap()
	if directory.extentCount > 0 {
		next := v.readExtent(directory.extentTable, directory.extentCount-1).end()
		if next < v.blockCount && !bm.isSet(next) && !containsUint32(exclude, next) {
			return next, StatusOK
		}
	}
	if directory.extentCount >= extentsPerTable {
		return 0, StatusErrTooManyExtents
	}
	b, ok := bm.findFree(exclude...)
	if !ok {
		return 0, StatusErrNoSpc
	}
	return b, StatusOK
}

// growDirectory adds a zero filled block to the data region of a
// directory, returning the first slot of the new block.
func (v *volume) growDirectory(directory *inode, block uint32) directorySlot {
	v.blockBitmap().set(block)
	v.zeroBlock(block)
	if n := directory.extentCount; n > 0 {
		if last := v.readExtent(directory.extentTable, n-1); last.end() == block {
			last.count++
			v.writeExtent(directory.extentTable, n-1, last)
			directory.blockCount++
			return directorySlot{block: block}
		}
	}
	v.writeExtent(directory.extentTable, directory.extentCount, extent{start: block, count: 1})
	directory.extentCount++
	directory.blockCount++
	return directorySlot{block: block}
}

// createChild implements the common parts of CreateFile and
// MakeDirectory. All inodes and blocks needed are selected before the
// image is modified, so that the image is left untouched on failure.
func (fs *mountedFileSystem) createChild(path string, mode uint32, isDirectory bool) (Attributes, Status) {
	components, s := parseEntryPath(path)
	if s != StatusOK {
		return Attributes{}, s
	}
	if len(components) == 0 {
		return Attributes{}, StatusErrExist
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	v := fs.volume
	parentNumber, parent, name, s := v.resolveParent(components)
	if s != StatusOK {
		return Attributes{}, s
	}
	if _, _, ok := v.lookup(&parent, name); ok {
		return Attributes{}, StatusErrExist
	}

	logger := fs.logger.WithField("path", path)
	inodeNumber, ok := v.inodeBitmap().findFree()
	if !ok {
		logger.Warn("No free inodes available")
		return Attributes{}, StatusErrNoSpc
	}
	var reserved []uint32
	slot, hasSlot := v.findFreeDentry(&parent)
	if !hasSlot {
		b, s := v.planDirectoryGrowth(&parent)
		if s != StatusOK {
			logger.WithField("status", s).Warn("Cannot grow parent directory")
			return Attributes{}, s
		}
		reserved = append(reserved, b)
	}
	var extentTable, data uint32
	if isDirectory {
		bm := v.blockBitmap()
		if extentTable, ok = bm.findFree(reserved...); ok {
			reserved = append(reserved, extentTable)
			data, ok = bm.findFree(reserved...)
		}
		if !ok {
			logger.Warn("No free blocks available for directory")
			return Attributes{}, StatusErrNoSpc
		}
	}

	// Commit all changes.
	now := fs.clock.Now()
	delta := int64(0)
	v.inodeBitmap().set(inodeNumber)
	if !hasSlot {
		slot = v.growDirectory(&parent, reserved[0])
		delta += BlockSizeBytes
	}
	v.writeDentry(slot.block, slot.slot, dentry{inodeNumber: inodeNumber, name: name})
	parent.links++
	v.writeInode(parentNumber, &parent)

	child := inode{
		mode:             ModeTypeRegular | mode&ModePermissions,
		links:            1,
		modificationTime: now,
	}
	if isDirectory {
		bm := v.blockBitmap()
		bm.set(extentTable)
		bm.set(data)
		v.zeroBlock(extentTable)
		v.zeroBlock(data)
		v.writeExtent(extentTable, 0, extent{start: data, count: 1})
		v.writeDentry(data, 0, dentry{inodeNumber: inodeNumber, name: "."})
		v.writeDentry(data, 1, dentry{inodeNumber: parentNumber, name: ".."})
		child = inode{
			mode:             ModeTypeDirectory | mode&ModePermissions,
			links:            2,
			sizeBytes:        BlockSizeBytes,
			modificationTime: now,
			blockCount:       1,
			extentTable:      extentTable,
			extentCount:      1,
		}
		delta += BlockSizeBytes
	}
	v.writeInode(inodeNumber, &child)
	v.propagate(components, delta, now)
	v.resyncSuperblock()

	logger.WithFields(logrus.Fields{
		"inode":     inodeNumber,
		"directory": isDirectory,
	}).Debug("Created entry")
	return attributesFromInode(inodeNumber, &child), StatusOK
}

func (fs *mountedFileSystem) CreateFile(ctx context.Context, path string, mode uint32) (Attributes, Status) {
	return fs.createChild(path, mode, false)
}

func (fs *mountedFileSystem) MakeDirectory(ctx context.Context, path string, mode uint32) (Attributes, Status) {
	return fs.createChild(path, mode, true)
}

// removeChild detaches an inode from its parent directory, releases
// all of its blocks and the inode itself, and subtracts its size from
// all ancestors. Only removing a directory lowers the link count of
// the parent, as only directories hold a ".." entry.
func (fs *mountedFileSystem) removeChild(components []string, inodeNumber uint32, i *inode) {
	v := fs.volume
	parentNumber, parent, name, s := v.resolveParent(components)
	if s != StatusOK {
		panic("Parent directory of a resolved path cannot be resolved")
	}
	slot, _, _ := v.lookup(&parent, name)
	v.writeDentry(slot.block, slot.slot, dentry{})
	if i.isDirectory() && parent.links > 0 {
		parent.links--
	}
	v.writeInode(parentNumber, &parent)

	v.releaseAllBlocks(i)
	v.inodeBitmap().clear(inodeNumber)
	v.writeInode(inodeNumber, &inode{})

	v.propagate(components, -int64(i.sizeBytes), fs.clock.Now())
	v.resyncSuperblock()
}

func (fs *mountedFileSystem) RemoveDirectory(ctx context.Context, path string) Status {
	components, s := parseEntryPath(path)
	if s != StatusOK {
		return s
	}
	if len(components) == 0 {
		return StatusErrInval
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	v := fs.volume
	inodeNumber, directory, s := v.resolve(components)
	if s != StatusOK {
		return s
	}
	if !directory.isDirectory() {
		return StatusErrNotDir
	}
	empty := true
	v.forEachDentry(&directory, func(_ directorySlot, d dentry) bool {
		if d.name != "" && d.name != "." && d.name != ".." {
			empty = false
			return false
		}
		return true
	})
	if !empty {
		return StatusErrNotEmpty
	}

	fs.removeChild(components, inodeNumber, &directory)
	fs.logger.WithFields(logrus.Fields{
		"path":  path,
		"inode": inodeNumber,
	}).Debug("Removed directory")
	return StatusOK
}

func (fs *mountedFileSystem) Unlink(ctx context.Context, path string) Status {
	components, s := parseEntryPath(path)
	if s != StatusOK {
		return s
	}
	if len(components) == 0 {
		return StatusErrIsDir
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	inodeNumber, file, s := fs.volume.resolve(components)
	if s != StatusOK {
		return s
	}
	if file.isDirectory() {
		return StatusErrIsDir
	}

	fs.removeChild(components, inodeNumber, &file)
	fs.logger.WithFields(logrus.Fields{
		"path":  path,
		"inode": inodeNumber,
	}).Debug("Unlinked file")
	return StatusOK
}

func (fs *mountedFileSystem) SetModificationTime(ctx context.Context, path string, t *time.Time) (Attributes, Status) {
	components, s := parsePath(path)
	if s != StatusOK {
		return Attributes{}, s
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	inodeNumber, i, s := fs.volume.resolve(components)
	if s != StatusOK {
		return Attributes{}, s
	}
	if t == nil {
		i.modificationTime = fs.clock.Now()
	} else {
		i.modificationTime = *t
	}
	fs.volume.writeInode(inodeNumber, &i)
	return attributesFromInode(inodeNumber, &i), StatusOK
}

func (fs *mountedFileSystem) Truncate(ctx context.Context, path string, size uint64) Status {
	components, s := parsePath(path)
	if s != StatusOK {
		return s
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.truncate(path, components, size)
}

// truncate changes the size of a file. Truncating a file to zero
// bytes releases all of its blocks, including its extent table, which
// is equivalent to removing and recreating the file with the same
// mode. Like CreateFile, this raises the link count of the parent
// directory. The inode number is retained.
func (fs *mountedFileSystem) truncate(path string, components []string, size uint64) Status {
	v := fs.volume
	inodeNumber, i, s := v.resolve(components)
	if s != StatusOK {
		return s
	}
	if i.isDirectory() {
		return StatusErrIsDir
	}

	logger := fs.logger.WithFields(logrus.Fields{
		"path":  path,
		"inode": inodeNumber,
	})
	oldSize := i.sizeBytes
	if size == 0 {
		parentNumber, parent, _, s := v.resolveParent(components)
		if s != StatusOK {
			panic("Parent directory of a resolved path cannot be resolved")
		}
		parent.links++
		v.writeInode(parentNumber, &parent)
		v.releaseAllBlocks(&i)
	} else {
		needed := divideRoundUp(size, BlockSizeBytes)
		actual := uint64(i.blockCount)
		switch {
		case needed == actual:
			if size > oldSize {
				v.zeroFileRange(&i, oldSize, size)
			}
		case needed < actual:
			v.shrinkBlocks(&i, uint32(actual-needed))
		default:
			if needed > math.MaxUint32 {
				return StatusErrNoSpc
			}
			bm := v.blockBitmap()
			createdExtentTable := false
			if i.extentTable == noExtentTable {
				table, ok := bm.findFree()
				if !ok {
					logger.Warn("No free block available for extent table")
					return StatusErrNoSpc
				}
				bm.set(table)
				v.zeroBlock(table)
				i.extentTable = table
				createdExtentTable = true
			}
			if s := v.allocateBlocks(&i, uint32(needed-actual)); s != StatusOK {
				if createdExtentTable {
					bm.clear(i.extentTable)
				}
				logger.WithFields(logrus.Fields{
					"blocks": needed - actual,
					"status": s,
				}).Warn("Failed to allocate blocks")
				return s
			}
			// Bytes past the old end of file in what used to
			// be the last block may contain stale data.
			v.zeroFileRange(&i, oldSize, actual*BlockSizeBytes)
		}
	}

	now := fs.clock.Now()
	i.sizeBytes = size
	i.modificationTime = now
	v.writeInode(inodeNumber, &i)
	v.propagate(components, int64(size)-int64(oldSize), now)
	v.resyncSuperblock()
	logger.WithFields(logrus.Fields{
		"old_size": oldSize,
		"new_size": size,
		"extents":  i.extentCount,
	}).Debug("Truncated file")
	return StatusOK
}

func (fs *mountedFileSystem) Read(ctx context.Context, path string, buf []byte, offset uint64) (int, Status) {
	components, s := parsePath(path)
	if s != StatusOK {
		return 0, s
	}

	fs.lock.RLock()
	defer fs.lock.RUnlock()

	v := fs.volume
	_, i, s := v.resolve(components)
	if s != StatusOK {
		return 0, s
	}
	if i.isDirectory() {
		return 0, StatusErrIsDir
	}
	if offset >= i.sizeBytes {
		return 0, StatusOK
	}
	b, ok := v.blockAt(&i, offset/BlockSizeBytes)
	if !ok {
		return 0, StatusOK
	}
	within := offset % BlockSizeBytes
	n := copy(buf, v.dataBlock(b)[within:])
	if backed := i.sizeBytes - offset; uint64(n) > backed {
		clear(buf[backed:n])
		n = int(backed)
	}
	return n, StatusOK
}

func (fs *mountedFileSystem) Write(ctx context.Context, path string, data []byte, offset uint64) (int, Status) {
	components, s := parsePath(path)
	if s != StatusOK {
		return 0, s
	}
	if len(components) == 0 {
		return 0, StatusErrIsDir
	}

	fs.lock.Lock()
	defer fs.lock.Unlock()

	v := fs.volume
	inodeNumber, i, s := v.resolve(components)
	if s != StatusOK {
		return 0, s
	}
	if i.isDirectory() {
		return 0, StatusErrIsDir
	}
	if len(data) == 0 {
		return 0, StatusOK
	}

	within := offset % BlockSizeBytes
	n := min(uint64(len(data)), BlockSizeBytes-within)
	grown := false
	if end := offset + n; end > i.sizeBytes {
		grown = true
		if s := fs.truncate(path, components, end); s != StatusOK {
			return 0, s
		}
		i = v.readInode(inodeNumber)
	}
	b, ok := v.blockAt(&i, offset/BlockSizeBytes)
	if !ok {
		panic("File does not have a block backing a write within its size")
	}
	copy(v.dataBlock(b)[within:within+n], data[:n])
	now := fs.clock.Now()
	i.modificationTime = now
	v.writeInode(inodeNumber, &i)
	// Growing the file already went through truncate, which
	// updates all ancestors. Overwrites still need to update their
	// modification times.
	if !grown {
		v.propagate(components, 0, now)
	}
	return int(n), StatusOK
}

func (fs *mountedFileSystem) StatFS(ctx context.Context) Statistics {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	sb := fs.volume.readSuperblock()
	return Statistics{
		BlockSizeBytes:    sb.blockSize,
		BlockCount:        sb.blockCount,
		FreeBlockCount:    sb.freeBlockCount,
		InodeCount:        sb.inodeCount,
		FreeInodeCount:    sb.freeInodeCount,
		NameMaximumLength: NameMaximumLength,
		VolumeUUID:        sb.volumeUUID,
	}
}
