package extentfs_test

import (
	"testing"
	"time"

	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// fixedClock is a clock.Clock that always returns the same time. Only
// Now() is used by the file system.
type fixedClock struct {
	clock.Clock
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

var (
	formatTime = time.Unix(1700000000, 0)
	mutateTime = time.Unix(1700000100, 500)
	volumeUUID = uuid.MustParse("7a7f8d0e-3c51-4a53-9a7e-2d2f1e6c4b10")
)

func newFormattedImage(t *testing.T, blockCount, inodeCount uint32) []byte {
	image := make([]byte, int(blockCount)*extentfs.BlockSizeBytes)
	require.NoError(t, extentfs.Format(image, &extentfs.FormatOptions{
		InodeCount: inodeCount,
		VolumeUUID: volumeUUID,
		Now:        formatTime,
	}))
	return image
}

func newTestFileSystem(t *testing.T, blockCount, inodeCount uint32) ([]byte, extentfs.FileSystem) {
	image := newFormattedImage(t, blockCount, inodeCount)
	logger, _ := test.NewNullLogger()
	fs, err := extentfs.Mount(image, &fixedClock{now: mutateTime}, logger)
	require.NoError(t, err)
	return image, fs
}

func requireConsistent(t *testing.T, image []byte) {
	t.Helper()
	problems, err := extentfs.Verify(image)
	require.NoError(t, err)
	require.Empty(t, problems)
}
