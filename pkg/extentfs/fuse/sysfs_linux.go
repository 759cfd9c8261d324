//go:build linux
// +build linux

package fuse

import (
	"fmt"
	"os"
	"strconv"

	"github.com/buildbarn/bb-storage/pkg/util"

	"golang.org/x/sys/unix"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SetMaximumDirtyPagesPercentage adjusts the kernel's limit on the
// maximum number of dirty pages belonging to a FUSE mount. The limit is
// specified as a decimal percentage in range [1, 100].
//
// Every write to a mounted volume is applied to the image in memory,
// so raising this limit lets the kernel batch more of them.
func SetMaximumDirtyPagesPercentage(mountPath string, percentage int) error {
	if percentage < 1 || percentage > 100 {
		return status.Errorf(codes.InvalidArgument, "Maximum dirty pages percentage %d is not in range [1, 100]", percentage)
	}

	// The backing device info of the mount is named after the
	// major/minor number of its st_dev.
	var sb unix.Stat_t
	if err := unix.Stat(mountPath, &sb); err != nil {
		return util.StatusWrapf(err, "Failed to obtain device number of mount %#v", mountPath)
	}
	maxRatioPath := fmt.Sprintf("/sys/class/bdi/%d:%d/max_ratio", unix.Major(sb.Dev), unix.Minor(sb.Dev))

	if err := os.WriteFile(maxRatioPath, []byte(strconv.Itoa(percentage)), 0o666); err != nil {
		return util.StatusWrapf(err, "Failed to write %#v of mount %#v", maxRatioPath, mountPath)
	}
	return nil
}
