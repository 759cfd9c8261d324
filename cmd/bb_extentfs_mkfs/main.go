package main

import (
	"context"

	"github.com/buildbarn/bb-extentfs/pkg/blockimage"
	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/program"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This tool formats an image file, so that it can be mounted by
// bb_extentfs. The image file is created if --size is provided.

func main() {
	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		inodeCount := pflag.Uint32P("inodes", "i", 0, "Number of inodes. Defaults to one inode per four blocks.")
		force := pflag.BoolP("force", "f", false, "Overwrite an image that already contains a file system.")
		zero := pflag.BoolP("zero", "z", false, "Zero the entire image before formatting.")
		sizeBytes := pflag.Int64("size", 0, "Create or resize the image file to this many bytes.")
		verbose := pflag.BoolP("verbose", "v", false, "Log the layout of the formatted image.")
		pflag.Parse()
		if pflag.NArg() != 1 {
			return status.Error(codes.InvalidArgument, "Usage: bb_extentfs_mkfs [flags] image")
		}
		imagePath := pflag.Arg(0)

		logger := logrus.New()
		if *verbose {
			logger.SetLevel(logrus.DebugLevel)
		}

		image, err := blockimage.NewMappedFileImage(imagePath, *sizeBytes, extentfs.BlockSizeBytes)
		if err != nil {
			return util.StatusWrap(err, "Failed to open image")
		}
		defer image.Close()

		options := extentfs.FormatOptions{
			InodeCount: *inodeCount,
			Force:      *force,
			Zero:       *zero,
			Now:        clock.SystemClock.Now(),
		}
		if options.InodeCount == 0 {
			options.InodeCount = uint32(len(image.Bytes()) / extentfs.BlockSizeBytes / 4)
		}
		if err := extentfs.Format(image.Bytes(), &options); err != nil {
			return util.StatusWrapf(err, "Failed to format image %#v", imagePath)
		}
		if err := image.Sync(); err != nil {
			return err
		}

		fileSystem, err := extentfs.Mount(image.Bytes(), clock.SystemClock, logger.WithField("image", imagePath))
		if err != nil {
			return util.StatusWrapWithCode(err, codes.Internal, "Formatted image cannot be mounted")
		}
		statistics := fileSystem.StatFS(ctx)
		logger.WithFields(logrus.Fields{
			"volume_uuid": statistics.VolumeUUID.String(),
			"blocks":      statistics.BlockCount,
			"free_blocks": statistics.FreeBlockCount,
			"inodes":      statistics.InodeCount,
			"free_inodes": statistics.FreeInodeCount,
		}).Info("Formatted image")
		return nil
	})
}
