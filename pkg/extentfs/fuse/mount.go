//go:build darwin || linux
// +build darwin linux

package fuse

import (
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// MountOptions describes where and how a RawFileSystem is mounted.
type MountOptions struct {
	MountPath   string
	FsName      string
	AllowOther  bool
	DirectMount bool
	// If nonzero, the kernel's limit on dirty pages of the mount,
	// as a percentage.
	MaximumDirtyPagesPercentage int
}

// Mount exposes a RawFileSystem at a path in the file system. The
// returned server is already serving requests. It can be stopped by
// calling Unmount().
func Mount(rawFileSystem fuse.RawFileSystem, options *MountOptions) (*fuse.Server, error) {
	server, err := fuse.NewServer(
		rawFileSystem,
		options.MountPath,
		&fuse.MountOptions{
			// The name isn't strictly necessary, but is
			// filled in to prevent runc from crashing when
			// parsing the mount table.
			FsName:      options.FsName,
			Name:        "extentfs",
			AllowOther:  options.AllowOther,
			DirectMount: options.DirectMount,
		})
	if err != nil {
		return nil, util.StatusWrap(err, "Failed to create FUSE server")
	}
	go server.Serve()
	if err := server.WaitMount(); err != nil {
		server.Unmount()
		return nil, util.StatusWrap(err, "Failed to wait for FUSE mount")
	}

	// Adjust configuration options that can only be set after the
	// FUSE server has been launched.
	if options.MaximumDirtyPagesPercentage != 0 {
		if err := SetMaximumDirtyPagesPercentage(options.MountPath, options.MaximumDirtyPagesPercentage); err != nil {
			server.Unmount()
			return nil, util.StatusWrap(err, "Failed to set maximum dirty pages percentage")
		}
	}
	return server, nil
}
