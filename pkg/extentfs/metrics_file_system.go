package extentfs

import (
	"context"
	"sync"
	"time"

	"github.com/buildbarn/bb-storage/pkg/clock"
	"github.com/buildbarn/bb-storage/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	fileSystemPrometheusMetrics sync.Once

	fileSystemOperationsDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "buildbarn",
			Subsystem: "extentfs",
			Name:      "file_system_operations_duration_seconds",
			Help:      "Amount of time spent per operation on the file system, in seconds.",
			Buckets:   util.DecimalExponentialBuckets(-6, 6, 2),
		},
		[]string{"operation", "status"})
	fileSystemTransferredBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "extentfs",
			Name:      "file_system_transferred_bytes_total",
			Help:      "Total number of bytes read from and written to files.",
		},
		[]string{"operation"})
)

// operationHistogram holds references to Prometheus metrics for a
// single file system operation.
type operationHistogram struct {
	ok      prometheus.Observer
	failure prometheus.ObserverVec
}

func newOperationHistogram(operation string) operationHistogram {
	return operationHistogram{
		ok:      fileSystemOperationsDurationSeconds.WithLabelValues(operation, StatusOK.String()),
		failure: fileSystemOperationsDurationSeconds.MustCurryWith(map[string]string{"operation": operation}),
	}
}

func (m *operationHistogram) observe(s Status, timeStart, timeStop time.Time) {
	d := timeStop.Sub(timeStart).Seconds()
	if s == StatusOK {
		m.ok.Observe(d)
	} else {
		m.failure.WithLabelValues(s.String()).Observe(d)
	}
}

type metricsFileSystem struct {
	base  FileSystem
	clock clock.Clock

	stat                operationHistogram
	readDir             operationHistogram
	createFile          operationHistogram
	makeDirectory       operationHistogram
	removeDirectory     operationHistogram
	unlink              operationHistogram
	setModificationTime operationHistogram
	truncate            operationHistogram
	read                operationHistogram
	write               operationHistogram
	statFS              operationHistogram

	readBytes    prometheus.Counter
	writtenBytes prometheus.Counter
}

// NewMetricsFileSystem creates a decorator for FileSystem that exposes
// the duration and outcome of every operation as Prometheus metrics.
func NewMetricsFileSystem(base FileSystem, clock clock.Clock) FileSystem {
	fileSystemPrometheusMetrics.Do(func() {
		prometheus.MustRegister(fileSystemOperationsDurationSeconds)
		prometheus.MustRegister(fileSystemTransferredBytes)
	})

	return &metricsFileSystem{
		base:  base,
		clock: clock,

		stat:                newOperationHistogram("Stat"),
		readDir:             newOperationHistogram("ReadDir"),
		createFile:          newOperationHistogram("CreateFile"),
		makeDirectory:       newOperationHistogram("MakeDirectory"),
		removeDirectory:     newOperationHistogram("RemoveDirectory"),
		unlink:              newOperationHistogram("Unlink"),
		setModificationTime: newOperationHistogram("SetModificationTime"),
		truncate:            newOperationHistogram("Truncate"),
		read:                newOperationHistogram("Read"),
		write:               newOperationHistogram("Write"),
		statFS:              newOperationHistogram("StatFS"),

		readBytes:    fileSystemTransferredBytes.WithLabelValues("Read"),
		writtenBytes: fileSystemTransferredBytes.WithLabelValues("Write"),
	}
}

func (fs *metricsFileSystem) Stat(ctx context.Context, path string) (Attributes, Status) {
	timeStart := fs.clock.Now()
	attributes, s := fs.base.Stat(ctx, path)
	fs.stat.observe(s, timeStart, fs.clock.Now())
	return attributes, s
}

func (fs *metricsFileSystem) ReadDir(ctx context.Context, path string, firstCookie uint64, reporter DirectoryEntryReporter) Status {
	timeStart := fs.clock.Now()
	s := fs.base.ReadDir(ctx, path, firstCookie, reporter)
	fs.readDir.observe(s, timeStart, fs.clock.Now())
	return s
}

func (fs *metricsFileSystem) CreateFile(ctx context.Context, path string, mode uint32) (Attributes, Status) {
	timeStart := fs.clock.Now()
	attributes, s := fs.base.CreateFile(ctx, path, mode)
	fs.createFile.observe(s, timeStart, fs.clock.Now())
	return attributes, s
}

func (fs *metricsFileSystem) MakeDirectory(ctx context.Context, path string, mode uint32) (Attributes, Status) {
	timeStart := fs.clock.Now()
	attributes, s := fs.base.MakeDirectory(ctx, path, mode)
	fs.makeDirectory.observe(s, timeStart, fs.clock.Now())
	return attributes, s
}

func (fs *metricsFileSystem) RemoveDirectory(ctx context.Context, path string) Status {
	timeStart := fs.clock.Now()
	s := fs.base.RemoveDirectory(ctx, path)
	fs.removeDirectory.observe(s, timeStart, fs.clock.Now())
	return s
}

func (fs *metricsFileSystem) Unlink(ctx context.Context, path string) Status {
	timeStart := fs.clock.Now()
	s := fs.base.Unlink(ctx, path)
	fs.unlink.observe(s, timeStart, fs.clock.Now())
	return s
}

func (fs *metricsFileSystem) SetModificationTime(ctx context.Context, path string, t *time.Time) (Attributes, Status) {
	timeStart := fs.clock.Now()
	attributes, s := fs.base.SetModificationTime(ctx, path, t)
	fs.setModificationTime.observe(s, timeStart, fs.clock.Now())
	return attributes, s
}

func (fs *metricsFileSystem) Truncate(ctx context.Context, path string, size uint64) Status {
	timeStart := fs.clock.Now()
	s := fs.base.Truncate(ctx, path, size)
	fs.truncate.observe(s, timeStart, fs.clock.Now())
	return s
}

func (fs *metricsFileSystem) Read(ctx context.Context, path string, buf []byte, offset uint64) (int, Status) {
	timeStart := fs.clock.Now()
	n, s := fs.base.Read(ctx, path, buf, offset)
	fs.read.observe(s, timeStart, fs.clock.Now())
	fs.readBytes.Add(float64(n))
	return n, s
}

func (fs *metricsFileSystem) Write(ctx context.Context, path string, data []byte, offset uint64) (int, Status) {
	timeStart := fs.clock.Now()
	n, s := fs.base.Write(ctx, path, data, offset)
	fs.write.observe(s, timeStart, fs.clock.Now())
	fs.writtenBytes.Add(float64(n))
	return n, s
}

func (fs *metricsFileSystem) StatFS(ctx context.Context) Statistics {
	timeStart := fs.clock.Now()
	statistics := fs.base.StatFS(ctx)
	fs.statFS.observe(StatusOK, timeStart, fs.clock.Now())
	return statistics
}
