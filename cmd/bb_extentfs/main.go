package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/buildbarn/bb-extentfs/pkg/blockimage"
	"github.com/buildbarn/bb-extentfs/pkg/configuration/bb_extentfs"
	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/buildbarn/bb-extentfs/pkg/extentfs/fuse"
	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/program"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// This service mounts a volume stored in an image file through FUSE.
// The image is mapped into memory, meaning that changes made through
// the mount end up in the image file. Changes are flushed to disk
// periodically, when files are fsync()'ed, and upon shutdown.

func main() {
	program.RunMain(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
		if len(os.Args) != 2 {
			return status.Error(codes.InvalidArgument, "Usage: bb_extentfs bb_extentfs.jsonnet")
		}
		configuration, err := bb_extentfs.GetExtentFSConfiguration(os.Args[1])
		if err != nil {
			return util.StatusWrapf(err, "Failed to read configuration from %s", os.Args[1])
		}

		logger := logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		level, err := logrus.ParseLevel(configuration.LogLevel)
		if err != nil {
			return util.StatusWrapWithCode(err, codes.InvalidArgument, "Invalid log level")
		}
		logger.SetLevel(level)

		image, err := blockimage.NewMappedFileImage(configuration.ImagePath, 0, extentfs.BlockSizeBytes)
		if err != nil {
			return util.StatusWrap(err, "Failed to open image")
		}
		fileSystem, err := extentfs.Mount(
			image.Bytes(),
			clock.SystemClock,
			logger.WithField("image", configuration.ImagePath))
		if err != nil {
			image.Close()
			return util.StatusWrapf(err, "Failed to mount image %#v", configuration.ImagePath)
		}
		fileSystem = extentfs.NewTracingFileSystem(
			extentfs.NewMetricsFileSystem(fileSystem, clock.SystemClock),
			otel.GetTracerProvider())

		mountConfiguration := &configuration.Mount
		server, err := fuse.Mount(
			fuse.NewRawFileSystem(fileSystem, fuse.Options{
				EntryValidity:     mountConfiguration.DirectoryEntryValidity.Duration,
				AttributeValidity: mountConfiguration.InodeAttributeValidity.Duration,
				Sync:              image.Sync,
			}),
			&fuse.MountOptions{
				MountPath:                   mountConfiguration.MountPath,
				FsName:                      mountConfiguration.FsName,
				AllowOther:                  mountConfiguration.AllowOther,
				DirectMount:                 mountConfiguration.DirectMount,
				MaximumDirtyPagesPercentage: mountConfiguration.MaximumDirtyPagesPercentage,
			})
		if err != nil {
			image.Close()
			return util.StatusWrapf(err, "Failed to mount %#v", mountConfiguration.MountPath)
		}
		logger.WithField("mount_path", mountConfiguration.MountPath).Info("Serving volume")

		siblingsGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
			if err := flushUntilShutdown(ctx, image, server.Unmount, clock.SystemClock, configuration.SyncInterval.Duration, logger); err != nil {
				return util.StatusWrapf(err, "Failed to shut down %#v", mountConfiguration.MountPath)
			}
			return nil
		})

		if address := configuration.DiagnosticsHTTPListenAddress; address != "" {
			router := mux.NewRouter()
			router.Handle("/metrics", promhttp.Handler())
			router.HandleFunc("/-/healthy", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			diagnosticsServer := &http.Server{
				Addr:    address,
				Handler: router,
			}
			siblingsGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
				<-ctx.Done()
				return diagnosticsServer.Close()
			})
			siblingsGroup.Go(func(ctx context.Context, siblingsGroup, dependenciesGroup program.Group) error {
				if err := diagnosticsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return util.StatusWrap(err, "Diagnostics HTTP server failed")
				}
				return nil
			})
		}
		return nil
	})
}

// flushUntilShutdown periodically flushes the image until the context
// is canceled. A zero interval disables periodic flushing. Upon
// shutdown it unmounts the file system, flushes the image one last
// time and closes it. Closing is done by the same goroutine that
// performs periodic flushes, so that the two never overlap.
func flushUntilShutdown(ctx context.Context, image blockimage.Image, unmount func() error, clock clock.Clock, interval time.Duration, logger logrus.FieldLogger) error {
	if interval > 0 {
	FlushLoop:
		for {
			timer, t := clock.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				break FlushLoop
			case <-t:
				if err := image.Sync(); err != nil {
					logger.WithError(err).Error("Failed to flush image")
				}
			}
		}
	} else {
		<-ctx.Done()
	}

	if err := unmount(); err != nil {
		return util.StatusWrap(err, "Failed to unmount")
	}
	if err := image.Sync(); err != nil {
		return err
	}
	return image.Close()
}
