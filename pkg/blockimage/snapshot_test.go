package blockimage_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/buildbarn/bb-extentfs/pkg/blockimage"
	"github.com/buildbarn/bb-storage/pkg/testutil"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestImage() []byte {
	// Mostly zero, like a sparsely used file system.
	image := make([]byte, 64*4096)
	r := rand.New(rand.NewSource(1))
	r.Read(image[4096:3*4096])
	copy(image[40*4096:], "Hello, world")
	return image
}

func TestSnapshot(t *testing.T) {
	image := newTestImage()

	for _, compression := range []blockimage.Compression{
		blockimage.CompressionLZ4,
		blockimage.CompressionXZ,
	} {
		t.Run(compression.String(), func(t *testing.T) {
			var snapshot bytes.Buffer
			require.NoError(t, blockimage.WriteSnapshot(&snapshot, image, compression))
			require.Less(t, snapshot.Len(), len(image)/2)

			sr, err := blockimage.NewSnapshotReader(&snapshot)
			require.NoError(t, err)
			require.Equal(t, uint64(len(image)), sr.SizeBytes())
			require.Equal(t, compression, sr.Compression())

			restored := make([]byte, sr.SizeBytes())
			require.NoError(t, sr.ReadInto(restored))
			require.True(t, bytes.Equal(image, restored))
		})
	}

	t.Run("InvalidMagic", func(t *testing.T) {
		_, err := blockimage.NewSnapshotReader(bytes.NewReader(make([]byte, 100)))
		testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Snapshot header has an invalid magic"), err)
	})

	t.Run("TruncatedHeader", func(t *testing.T) {
		_, err := blockimage.NewSnapshotReader(bytes.NewReader([]byte("EXTSNAP")))
		require.Error(t, err)
	})

	t.Run("SizeMismatch", func(t *testing.T) {
		var snapshot bytes.Buffer
		require.NoError(t, blockimage.WriteSnapshot(&snapshot, image, blockimage.CompressionLZ4))
		sr, err := blockimage.NewSnapshotReader(&snapshot)
		require.NoError(t, err)
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.InvalidArgument, "Snapshot contains an image of 262144 bytes, while the target is 4096 bytes in size"),
			sr.ReadInto(make([]byte, 4096)))
	})

	t.Run("UnknownCompression", func(t *testing.T) {
		var snapshot bytes.Buffer
		testutil.RequireEqualStatus(
			t,
			status.Error(codes.InvalidArgument, "Unknown compression algorithm 7"),
			blockimage.WriteSnapshot(&snapshot, image, blockimage.Compression(7)))
	})
}

func TestParseCompression(t *testing.T) {
	compression, err := blockimage.ParseCompression("xz")
	require.NoError(t, err)
	require.Equal(t, blockimage.CompressionXZ, compression)

	_, err = blockimage.ParseCompression("zstd")
	testutil.RequireEqualStatus(t, status.Error(codes.InvalidArgument, "Unknown compression algorithm \"zstd\""), err)
}
