package extentfs_test

import (
	"context"
	"testing"
	"time"

	"github.com/buildbarn/bb-extentfs/internal/mock"
	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
)

func TestTracingFileSystem(t *testing.T) {
	ctrl, ctx := gomock.WithContext(context.Background(), t)

	baseFileSystem := mock.NewMockFileSystem(ctrl)
	fs := extentfs.NewTracingFileSystem(baseFileSystem, noop.NewTracerProvider())

	t.Run("CreateFile", func(t *testing.T) {
		baseFileSystem.EXPECT().CreateFile(gomock.Any(), "/f", uint32(0o644)).Return(extentfs.Attributes{
			InodeNumber: 7,
			Mode:        extentfs.ModeTypeRegular | 0o644,
		}, extentfs.StatusOK)
		attributes, s := fs.CreateFile(ctx, "/f", 0o644)
		require.Equal(t, extentfs.StatusOK, s)
		require.Equal(t, uint32(7), attributes.InodeNumber)
	})

	t.Run("Failure", func(t *testing.T) {
		baseFileSystem.EXPECT().RemoveDirectory(gomock.Any(), "/d").Return(extentfs.StatusErrNotEmpty)
		require.Equal(t, extentfs.StatusErrNotEmpty, fs.RemoveDirectory(ctx, "/d"))
	})

	t.Run("SetModificationTime", func(t *testing.T) {
		mtime := time.Unix(1500000000, 0)
		baseFileSystem.EXPECT().SetModificationTime(gomock.Any(), "/f", &mtime).Return(extentfs.Attributes{
			ModificationTime: mtime,
		}, extentfs.StatusOK)
		attributes, s := fs.SetModificationTime(ctx, "/f", &mtime)
		require.Equal(t, extentfs.StatusOK, s)
		require.Equal(t, mtime, attributes.ModificationTime)
	})

	t.Run("Write", func(t *testing.T) {
		baseFileSystem.EXPECT().Write(gomock.Any(), "/f", []byte("abc"), uint64(4095)).Return(1, extentfs.StatusOK)
		n, s := fs.Write(ctx, "/f", []byte("abc"), 4095)
		require.Equal(t, extentfs.StatusOK, s)
		require.Equal(t, 1, n)
	})

	t.Run("StatFS", func(t *testing.T) {
		// StatFS is not traced, but is forwarded.
		baseFileSystem.EXPECT().StatFS(ctx).Return(extentfs.Statistics{InodeCount: 16})
		require.Equal(t, extentfs.Statistics{InodeCount: 16}, fs.StatFS(ctx))
	})
}
