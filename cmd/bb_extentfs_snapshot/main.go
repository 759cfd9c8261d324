package main

import (
	"bufio"
	"context"
	"os"

	"github.com/buildbarn/bb-extentfs/pkg/blockimage"
	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/buildbarn/bb-storage/pkg/program"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This tool converts between image files and compressed snapshots of
// them, which are suitable for archival and transfer:
//
//	bb_extentfs_snapshot export [--compression=lz4|xz] image snapshot
//	bb_extentfs_snapshot import image snapshot
//
// Imported images are checked for consistency.

func main() {
	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		compressionName := pflag.String("compression", "lz4", "Compression algorithm used when exporting: lz4 or xz.")
		pflag.Parse()
		if pflag.NArg() != 3 {
			return status.Error(codes.InvalidArgument, "Usage: bb_extentfs_snapshot export|import image snapshot")
		}
		imagePath, snapshotPath := pflag.Arg(1), pflag.Arg(2)
		logger := logrus.WithFields(logrus.Fields{
			"image":    imagePath,
			"snapshot": snapshotPath,
		})

		switch pflag.Arg(0) {
		case "export":
			compression, err := blockimage.ParseCompression(*compressionName)
			if err != nil {
				return err
			}
			if err := exportSnapshot(imagePath, snapshotPath, compression); err != nil {
				return err
			}
			logger.WithField("compression", compression).Info("Exported snapshot")
			return nil
		case "import":
			problems, err := importSnapshot(imagePath, snapshotPath)
			if err != nil {
				return err
			}
			for _, problem := range problems {
				logger.Warn(problem)
			}
			if len(problems) > 0 {
				return status.Errorf(codes.DataLoss, "Imported image contains %d inconsistencies", len(problems))
			}
			logger.Info("Imported snapshot")
			return nil
		default:
			return status.Errorf(codes.InvalidArgument, "Unknown action %#v", pflag.Arg(0))
		}
	})
}

func exportSnapshot(imagePath, snapshotPath string, compression blockimage.Compression) error {
	image, err := blockimage.NewReadOnlyMappedFileImage(imagePath, extentfs.BlockSizeBytes)
	if err != nil {
		return util.StatusWrap(err, "Failed to open image")
	}
	defer image.Close()

	f, err := os.Create(snapshotPath)
	if err != nil {
		return util.StatusWrapf(err, "Failed to create snapshot %#v", snapshotPath)
	}
	w := bufio.NewWriter(f)
	if err := blockimage.WriteSnapshot(w, image.Bytes(), compression); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return util.StatusWrapf(err, "Failed to write snapshot %#v", snapshotPath)
	}
	if err := f.Close(); err != nil {
		return util.StatusWrapf(err, "Failed to close snapshot %#v", snapshotPath)
	}
	return nil
}

func importSnapshot(imagePath, snapshotPath string) ([]string, error) {
	f, err := os.Open(snapshotPath)
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to open snapshot %#v", snapshotPath)
	}
	defer f.Close()

	snapshotReader, err := blockimage.NewSnapshotReader(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	image, err := blockimage.NewMappedFileImage(imagePath, int64(snapshotReader.SizeBytes()), extentfs.BlockSizeBytes)
	if err != nil {
		return nil, util.StatusWrap(err, "Failed to create image")
	}
	defer image.Close()

	if err := snapshotReader.ReadInto(image.Bytes()); err != nil {
		return nil, err
	}
	if err := image.Sync(); err != nil {
		return nil, err
	}
	return extentfs.Verify(image.Bytes())
}
