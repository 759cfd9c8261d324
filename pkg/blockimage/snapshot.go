package blockimage

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Compression algorithm used to store the contents of a snapshot.
type Compression uint8

const (
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = 1
	// CompressionXZ favors size.
	CompressionXZ Compression = 2
)

// ParseCompression converts the name of a compression algorithm, as
// provided on the command line, to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "lz4":
		return CompressionLZ4, nil
	case "xz":
		return CompressionXZ, nil
	default:
		return 0, status.Errorf(codes.InvalidArgument, "Unknown compression algorithm %#v", name)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionXZ:
		return "xz"
	default:
		return "unknown"
	}
}

var snapshotMagic = [8]byte{'E', 'X', 'T', 'S', 'N', 'A', 'P', 0}

// Snapshots start with a fixed size header, followed by the compressed
// contents of the image:
//
//	[0:8]   magic
//	[8]     compression algorithm
//	[9:16]  reserved
//	[16:24] uncompressed size in bytes, little endian
const snapshotHeaderSizeBytes = 24

// WriteSnapshot writes a compressed copy of an image to a writer.
func WriteSnapshot(w io.Writer, image []byte, compression Compression) error {
	var header [snapshotHeaderSizeBytes]byte
	copy(header[:8], snapshotMagic[:])
	header[8] = byte(compression)
	binary.LittleEndian.PutUint64(header[16:], uint64(len(image)))
	if _, err := w.Write(header[:]); err != nil {
		return util.StatusWrap(err, "Failed to write snapshot header")
	}

	var compressor io.WriteCloser
	switch compression {
	case CompressionLZ4:
		compressor = lz4.NewWriter(w)
	case CompressionXZ:
		xzWriter, err := xz.NewWriter(w)
		if err != nil {
			return util.StatusWrap(err, "Failed to create xz compressor")
		}
		compressor = xzWriter
	default:
		return status.Errorf(codes.InvalidArgument, "Unknown compression algorithm %d", compression)
	}
	if _, err := io.Copy(compressor, bytes.NewReader(image)); err != nil {
		return util.StatusWrapf(err, "Failed to write %s compressed image", compression)
	}
	if err := compressor.Close(); err != nil {
		return util.StatusWrapf(err, "Failed to flush %s compressed image", compression)
	}
	return nil
}

// SnapshotReader reads the contents of a snapshot created by
// WriteSnapshot.
type SnapshotReader struct {
	sizeBytes    uint64
	compression  Compression
	decompressor io.Reader
}

// NewSnapshotReader reads the header of a snapshot. The size of the
// image can be obtained before its contents are extracted, so that
// the caller can allocate storage for it.
func NewSnapshotReader(r io.Reader) (*SnapshotReader, error) {
	var header [snapshotHeaderSizeBytes]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, util.StatusWrap(err, "Failed to read snapshot header")
	}
	if !bytes.Equal(header[:8], snapshotMagic[:]) {
		return nil, status.Error(codes.InvalidArgument, "Snapshot header has an invalid magic")
	}

	sr := &SnapshotReader{
		sizeBytes:   binary.LittleEndian.Uint64(header[16:]),
		compression: Compression(header[8]),
	}
	switch sr.compression {
	case CompressionLZ4:
		sr.decompressor = lz4.NewReader(r)
	case CompressionXZ:
		xzReader, err := xz.NewReader(r)
		if err != nil {
			return nil, util.StatusWrap(err, "Failed to create xz decompressor")
		}
		sr.decompressor = xzReader
	default:
		return nil, status.Errorf(codes.InvalidArgument, "Snapshot uses unknown compression algorithm %d", header[8])
	}
	return sr, nil
}

// SizeBytes returns the size of the image stored in the snapshot.
func (sr *SnapshotReader) SizeBytes() uint64 {
	return sr.sizeBytes
}

// Compression returns the algorithm used to compress the snapshot.
func (sr *SnapshotReader) Compression() Compression {
	return sr.compression
}

// ReadInto extracts the image into a byte slice of exactly SizeBytes()
// bytes.
func (sr *SnapshotReader) ReadInto(image []byte) error {
	if uint64(len(image)) != sr.sizeBytes {
		return status.Errorf(codes.InvalidArgument, "Snapshot contains an image of %d bytes, while the target is %d bytes in size", sr.sizeBytes, len(image))
	}
	if _, err := io.ReadFull(sr.decompressor, image); err != nil {
		return util.StatusWrapf(err, "Failed to read %s compressed image", sr.compression)
	}
	return nil
}
