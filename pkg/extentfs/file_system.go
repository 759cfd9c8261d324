package extentfs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Attributes of a file or directory, as returned by Stat.
type Attributes struct {
	InodeNumber uint32
	Mode        uint32
	LinkCount   uint32
	SizeBytes   uint64
	// Size in 512-byte units, rounded up.
	Blocks           uint64
	ModificationTime time.Time
}

// IsDirectory returns whether the attributes belong to a directory.
func (a *Attributes) IsDirectory() bool {
	return a.Mode&ModeTypeMask == ModeTypeDirectory
}

// Statistics of the file system as a whole, as returned by StatFS.
type Statistics struct {
	BlockSizeBytes    uint32
	BlockCount        uint32
	FreeBlockCount    uint32
	InodeCount        uint32
	FreeInodeCount    uint32
	NameMaximumLength uint32
	VolumeUUID        uuid.UUID
}

// FileSystemID returns a 64-bit identifier of the volume, suitable for
// reporting as f_fsid.
func (s *Statistics) FileSystemID() uint64 {
	var id uint64
	for _, b := range s.VolumeUUID[:8] {
		id = id<<8 | uint64(b)
	}
	return id ^ Magic
}

// DirectoryEntryReporter is called by ReadDir for every entry in a
// directory. The cookie can be provided to a successive call to
// ReadDir to resume iteration after the entry. ReportEntry returns
// false if it is unable to accept the entry.
type DirectoryEntryReporter interface {
	ReportEntry(nextCookie uint64, name string, attributes *Attributes) bool
}

// FileSystem is the set of operations that can be performed against a
// mounted image. Paths are absolute and use "/" as a separator.
//
// Reads and writes never cross a block boundary. They transfer at
// most the bytes between the offset and the end of the block that
// contains it, and return the number of bytes transferred.
type FileSystem interface {
	Stat(ctx context.Context, path string) (Attributes, Status)
	// ReadDir reports all entries of a directory, except "." and
	// "..", starting at the provided cookie.
	ReadDir(ctx context.Context, path string, firstCookie uint64, reporter DirectoryEntryReporter) Status
	CreateFile(ctx context.Context, path string, mode uint32) (Attributes, Status)
	MakeDirectory(ctx context.Context, path string, mode uint32) (Attributes, Status)
	RemoveDirectory(ctx context.Context, path string) Status
	Unlink(ctx context.Context, path string) Status
	// SetModificationTime sets the modification time of a file
	// or directory. A nil time denotes the current time.
	SetModificationTime(ctx context.Context, path string, t *time.Time) (Attributes, Status)
	Truncate(ctx context.Context, path string, size uint64) Status
	Read(ctx context.Context, path string, buf []byte, offset uint64) (int, Status)
	Write(ctx context.Context, path string, data []byte, offset uint64) (int, Status)
	StatFS(ctx context.Context) Statistics
}
