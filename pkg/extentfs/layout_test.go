package extentfs

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestComputeGeometry(t *testing.T) {
	require.Equal(t, geometry{
		inodeBitmapStart: 1,
		blockBitmapStart: 2,
		inodeTableStart:  3,
		firstDataBlock:   4,
	}, computeGeometry(64, 16))

	require.Equal(t, geometry{
		inodeBitmapStart: 1,
		blockBitmapStart: 4,
		inodeTableStart:  8,
		firstDataBlock:   8 + 1094,
	}, computeGeometry(100000, 70000))
}

func TestSuperblockEncoding(t *testing.T) {
	sb := superblock{
		magic:            Magic,
		sizeBytes:        64 * BlockSizeBytes,
		blockSize:        BlockSizeBytes,
		inodeSize:        inodeSizeBytes,
		blockCount:       64,
		freeBlockCount:   58,
		inodeCount:       16,
		freeInodeCount:   15,
		inodeBitmapStart: 1,
		blockBitmapStart: 2,
		inodeTableStart:  3,
		firstDataBlock:   4,
		volumeUUID:       uuid.MustParse("9d7a2a3e-25f1-4b7e-8f3e-0d1f2c3b4a59"),
		formatTime:       time.Unix(1700000000, 42),
	}
	b := make([]byte, superblockSizeBytes)
	sb.toBytes(b)
	require.Equal(t, []byte{0xa1, 0x69, 0xc3, 0xc5, 0xa1, 0x69, 0xc3, 0xc5}, b[:8])
	require.Equal(t, []byte{0x40, 0, 0, 0}, b[0x18:0x1c])
	require.Equal(t, &sb, superblockFromBytes(b))
}

func TestInodeEncoding(t *testing.T) {
	i := inode{
		mode:             ModeTypeRegular | 0o644,
		links:            1,
		sizeBytes:        123456789,
		modificationTime: time.Unix(1600000000, 999999999),
		blockCount:       30141,
		extentTable:      77,
		extentCount:      3,
	}
	b := make([]byte, inodeSizeBytes)
	for j := range b {
		b[j] = 0xff
	}
	i.toBytes(b)
	require.Equal(t, make([]byte, inodeSizeBytes-40), b[40:])
	require.Equal(t, i, inodeFromBytes(b))
	require.False(t, i.isDirectory())
}

func TestDentryEncoding(t *testing.T) {
	t.Run("ShorterNameOverwritesLonger", func(t *testing.T) {
		b := make([]byte, dentrySizeBytes)
		dentry{inodeNumber: 5, name: "a_long_name"}.toBytes(b)
		dentry{inodeNumber: 7, name: "short"}.toBytes(b)
		require.Equal(t, dentry{inodeNumber: 7, name: "short"}, dentryFromBytes(b))
	})

	t.Run("MaximumLength", func(t *testing.T) {
		b := make([]byte, dentrySizeBytes)
		name := strings.Repeat("x", NameMaximumLength)
		dentry{inodeNumber: 1, name: name}.toBytes(b)
		require.Equal(t, byte(0), b[dentrySizeBytes-1])
		require.Equal(t, dentry{inodeNumber: 1, name: name}, dentryFromBytes(b))
	})

	t.Run("TooLong", func(t *testing.T) {
		b := make([]byte, dentrySizeBytes)
		require.Panics(t, func() {
			dentry{inodeNumber: 1, name: strings.Repeat("x", NameMaximumLength+1)}.toBytes(b)
		})
	})
}

func TestParsePath(t *testing.T) {
	for path, expected := range map[string][]string{
		"":           nil,
		"/":          nil,
		"///":        nil,
		"/a":         {"a"},
		"/a/b/":      {"a", "b"},
		"//a//b//c/": {"a", "b", "c"},
		"/./..":      nil,
		"/a/./b":     {"a", "b"},
		"/a/../b":    {"b"},
		"/a/b/..":    {"a"},
		"/../../a":   {"a"},
	} {
		components, s := parsePath(path)
		require.Equal(t, StatusOK, s, path)
		require.Equal(t, expected, components, path)
	}

	_, s := parsePath("/" + strings.Repeat("a", NameMaximumLength+1))
	require.Equal(t, StatusErrNameTooLong, s)
	_, s = parsePath(strings.Repeat("/a", PathMaximumLength/2+1))
	require.Equal(t, StatusErrNameTooLong, s)
}

func TestParseEntryPath(t *testing.T) {
	for _, path := range []string{"/.", "/..", "/d/.", "/d/..", "/d/./", "/d/..//"} {
		_, s := parseEntryPath(path)
		require.Equal(t, StatusErrInval, s, path)
	}

	components, s := parseEntryPath("/d/../e/")
	require.Equal(t, StatusOK, s)
	require.Equal(t, []string{"e"}, components)

	components, s = parseEntryPath("/")
	require.Equal(t, StatusOK, s)
	require.Empty(t, components)

	components, s = parseEntryPath("/d/.hidden")
	require.Equal(t, StatusOK, s)
	require.Equal(t, []string{"d", ".hidden"}, components)
}
