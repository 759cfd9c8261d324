//go:build darwin || linux
// +build darwin linux

package blockimage

import (
	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mappedFileImage struct {
	data []byte
}

// NewMappedFileImage creates an Image that is backed by a file, which
// is mapped into memory with MAP_SHARED. Changes to the image are
// written back to the file by the kernel. Sync() forces them to be
// written back immediately.
//
// The size of the file must be a nonzero multiple of the block size.
// If sizeBytes is nonzero, the file is created or resized to that size
// first.
func NewMappedFileImage(path string, sizeBytes int64, blockSizeBytes int64) (Image, error) {
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if sizeBytes != 0 {
		flags |= unix.O_CREAT
	}
	return mapFile(path, flags, unix.PROT_READ|unix.PROT_WRITE, sizeBytes, blockSizeBytes)
}

// NewReadOnlyMappedFileImage is identical to NewMappedFileImage,
// except that the file is opened and mapped read-only. Attempting to
// modify the contents of the image causes the process to crash.
func NewReadOnlyMappedFileImage(path string, blockSizeBytes int64) (Image, error) {
	return mapFile(path, unix.O_RDONLY|unix.O_CLOEXEC, unix.PROT_READ, 0, blockSizeBytes)
}

func mapFile(path string, flags, prot int, sizeBytes, blockSizeBytes int64) (Image, error) {
	fd, err := unix.Open(path, flags, 0o600)
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to open image %#v", path)
	}
	defer unix.Close(fd)

	if sizeBytes != 0 {
		if err := unix.Ftruncate(fd, sizeBytes); err != nil {
			return nil, util.StatusWrapf(err, "Failed to resize image %#v to %d bytes", path, sizeBytes)
		}
	}
	var sb unix.Stat_t
	if err := unix.Fstat(fd, &sb); err != nil {
		return nil, util.StatusWrapf(err, "Failed to obtain size of image %#v", path)
	}
	if sb.Size <= 0 || sb.Size%blockSizeBytes != 0 {
		return nil, status.Errorf(codes.InvalidArgument, "Size of image %#v is %d bytes, which is not a nonzero multiple of the block size %d", path, sb.Size, blockSizeBytes)
	}

	data, err := unix.Mmap(fd, 0, int(sb.Size), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to map image %#v into memory", path)
	}
	return &mappedFileImage{data: data}, nil
}

func (i *mappedFileImage) Bytes() []byte {
	return i.data
}

func (i *mappedFileImage) Sync() error {
	if err := unix.Msync(i.data, unix.MS_SYNC); err != nil {
		return util.StatusWrap(err, "Failed to synchronize image")
	}
	return nil
}

func (i *mappedFileImage) Close() error {
	if err := unix.Munmap(i.data); err != nil {
		return util.StatusWrap(err, "Failed to unmap image")
	}
	i.data = nil
	return nil
}
