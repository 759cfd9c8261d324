package main

import (
	"context"
	"os"

	"github.com/buildbarn/bb-extentfs/pkg/blockimage"
	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/buildbarn/bb-storage/pkg/program"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/sirupsen/logrus"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This tool checks the consistency of an image file without modifying
// it. Every inconsistency is logged, and the tool fails if any were
// found.

func main() {
	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		if len(os.Args) != 2 {
			return status.Error(codes.InvalidArgument, "Usage: bb_extentfs_fsck image")
		}
		imagePath := os.Args[1]
		image, err := blockimage.NewReadOnlyMappedFileImage(imagePath, extentfs.BlockSizeBytes)
		if err != nil {
			return util.StatusWrap(err, "Failed to open image")
		}
		defer image.Close()

		problems, err := extentfs.Verify(image.Bytes())
		if err != nil {
			return util.StatusWrapf(err, "Failed to verify image %#v", imagePath)
		}
		logger := logrus.WithField("image", imagePath)
		for _, problem := range problems {
			logger.Warn(problem)
		}
		if len(problems) > 0 {
			return status.Errorf(codes.DataLoss, "Found %d inconsistencies", len(problems))
		}
		logger.Info("Image is consistent")
		return nil
	})
}
