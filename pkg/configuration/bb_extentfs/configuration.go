package bb_extentfs

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/google/go-jsonnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Duration is a time.Duration that is stored in the configuration
// file as a string, such as "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MountConfiguration controls how the volume is exposed through FUSE.
type MountConfiguration struct {
	MountPath                   string   `json:"mountPath"`
	FsName                      string   `json:"fsName"`
	AllowOther                  bool     `json:"allowOther"`
	DirectMount                 bool     `json:"directMount"`
	DirectoryEntryValidity      Duration `json:"directoryEntryValidity"`
	InodeAttributeValidity      Duration `json:"inodeAttributeValidity"`
	MaximumDirtyPagesPercentage int      `json:"maximumDirtyPagesPercentage"`
}

// ApplicationConfiguration is the configuration of bb_extentfs.
type ApplicationConfiguration struct {
	// Path of the image file holding the volume.
	ImagePath string             `json:"imagePath"`
	Mount     MountConfiguration `json:"mount"`
	// Interval at which changes to the image are flushed to disk.
	// Zero disables periodic flushing.
	SyncInterval Duration `json:"syncInterval"`
	// Address on which Prometheus metrics are exposed. Empty
	// disables the diagnostics HTTP server.
	DiagnosticsHTTPListenAddress string `json:"diagnosticsHttpListenAddress"`
	// Name of a logrus log level.
	LogLevel string `json:"logLevel"`
}

// GetExtentFSConfiguration reads the configuration from a Jsonnet file
// and fills in default values. Environment variables are exposed to
// the Jsonnet file as external variables.
func GetExtentFSConfiguration(path string) (*ApplicationConfiguration, error) {
	vm := jsonnet.MakeVM()
	for _, variable := range os.Environ() {
		if name, value, ok := strings.Cut(variable, "="); ok {
			vm.ExtVar(name, value)
		}
	}
	jsonText, err := vm.EvaluateFile(path)
	if err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to evaluate configuration")
	}

	var configuration ApplicationConfiguration
	decoder := json.NewDecoder(strings.NewReader(jsonText))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&configuration); err != nil {
		return nil, util.StatusWrapWithCode(err, codes.InvalidArgument, "Failed to parse configuration")
	}
	setDefaultExtentFSValues(&configuration)
	if configuration.ImagePath == "" {
		return nil, status.Error(codes.InvalidArgument, "No image path specified")
	}
	if configuration.Mount.MountPath == "" {
		return nil, status.Error(codes.InvalidArgument, "No mount path specified")
	}
	return &configuration, nil
}

func setDefaultExtentFSValues(configuration *ApplicationConfiguration) {
	if configuration.Mount.FsName == "" {
		configuration.Mount.FsName = "bb_extentfs"
	}
	if configuration.LogLevel == "" {
		configuration.LogLevel = "info"
	}
}
