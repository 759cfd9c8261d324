//go:build darwin || linux
// +build darwin linux

package blockimage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/buildbarn/bb-extentfs/pkg/blockimage"
	"github.com/stretchr/testify/require"
)

func TestMappedFileImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")

	t.Run("Nonexistent", func(t *testing.T) {
		_, err := blockimage.NewMappedFileImage(path, 0, 4096)
		require.Error(t, err)
	})

	t.Run("CreateAndReopen", func(t *testing.T) {
		image, err := blockimage.NewMappedFileImage(path, 8*4096, 4096)
		require.NoError(t, err)
		require.Len(t, image.Bytes(), 8*4096)
		copy(image.Bytes()[5*4096:], "Hello")
		require.NoError(t, image.Sync())
		require.NoError(t, image.Close())

		contents, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, []byte("Hello"), contents[5*4096:5*4096+5])

		image, err = blockimage.NewMappedFileImage(path, 0, 4096)
		require.NoError(t, err)
		require.Equal(t, []byte("Hello"), image.Bytes()[5*4096:5*4096+5])
		require.NoError(t, image.Close())
	})

	t.Run("InvalidSize", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, make([]byte, 5000), 0o600))
		_, err := blockimage.NewMappedFileImage(path, 0, 4096)
		require.Error(t, err)
	})
}

func TestReadOnlyMappedFileImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")

	t.Run("Nonexistent", func(t *testing.T) {
		// Read-only images are never created.
		_, err := blockimage.NewReadOnlyMappedFileImage(path, 4096)
		require.Error(t, err)
		_, err = os.Stat(path)
		require.True(t, os.IsNotExist(err))
	})

	t.Run("Contents", func(t *testing.T) {
		contents := make([]byte, 4*4096)
		copy(contents[3*4096:], "Hello")
		require.NoError(t, os.WriteFile(path, contents, 0o400))

		image, err := blockimage.NewReadOnlyMappedFileImage(path, 4096)
		require.NoError(t, err)
		require.Equal(t, contents, image.Bytes())
		require.NoError(t, image.Sync())
		require.NoError(t, image.Close())

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o400), info.Mode().Perm())
	})

	t.Run("InvalidSize", func(t *testing.T) {
		require.NoError(t, os.Chmod(path, 0o600))
		require.NoError(t, os.WriteFile(path, make([]byte, 5000), 0o600))
		_, err := blockimage.NewReadOnlyMappedFileImage(path, 4096)
		require.Error(t, err)
	})
}

func TestMemoryImage(t *testing.T) {
	image := blockimage.NewMemoryImage(4 * 4096)
	require.Len(t, image.Bytes(), 4*4096)
	require.NoError(t, image.Sync())
	require.NoError(t, image.Close())
}
