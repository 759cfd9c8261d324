package extentfs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otel_codes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracingFileSystem struct {
	FileSystem
	tracer trace.Tracer
}

// NewTracingFileSystem is a decorator for FileSystem that creates an
// OpenTelemetry trace span for every operation that accesses a path.
// Operations that do not succeed mark their span as failed.
func NewTracingFileSystem(base FileSystem, tracerProvider trace.TracerProvider) FileSystem {
	return &tracingFileSystem{
		FileSystem: base,
		tracer:     tracerProvider.Tracer("github.com/buildbarn/bb-extentfs/pkg/extentfs"),
	}
}

func (fs *tracingFileSystem) start(ctx context.Context, operation, path string, attributes ...attribute.KeyValue) (context.Context, trace.Span) {
	return fs.tracer.Start(ctx, "FileSystem."+operation, trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String("path", path)}, attributes...)...))
}

func endSpan(span trace.Span, s Status) {
	span.SetAttributes(attribute.String("status", s.String()))
	if s != StatusOK {
		span.SetStatus(otel_codes.Error, s.String())
	}
	span.End()
}

func (fs *tracingFileSystem) Stat(ctx context.Context, path string) (Attributes, Status) {
	ctxWithTracing, span := fs.start(ctx, "Stat", path)
	attributes, s := fs.FileSystem.Stat(ctxWithTracing, path)
	endSpan(span, s)
	return attributes, s
}

func (fs *tracingFileSystem) ReadDir(ctx context.Context, path string, firstCookie uint64, reporter DirectoryEntryReporter) Status {
	ctxWithTracing, span := fs.start(ctx, "ReadDir", path, attribute.Int64("first_cookie", int64(firstCookie)))
	s := fs.FileSystem.ReadDir(ctxWithTracing, path, firstCookie, reporter)
	endSpan(span, s)
	return s
}

func (fs *tracingFileSystem) CreateFile(ctx context.Context, path string, mode uint32) (Attributes, Status) {
	ctxWithTracing, span := fs.start(ctx, "CreateFile", path, attribute.Int64("mode", int64(mode)))
	attributes, s := fs.FileSystem.CreateFile(ctxWithTracing, path, mode)
	if s == StatusOK {
		span.SetAttributes(attribute.Int64("inode", int64(attributes.InodeNumber)))
	}
	endSpan(span, s)
	return attributes, s
}

func (fs *tracingFileSystem) MakeDirectory(ctx context.Context, path string, mode uint32) (Attributes, Status) {
	ctxWithTracing, span := fs.start(ctx, "MakeDirectory", path, attribute.Int64("mode", int64(mode)))
	attributes, s := fs.FileSystem.MakeDirectory(ctxWithTracing, path, mode)
	if s == StatusOK {
		span.SetAttributes(attribute.Int64("inode", int64(attributes.InodeNumber)))
	}
	endSpan(span, s)
	return attributes, s
}

func (fs *tracingFileSystem) RemoveDirectory(ctx context.Context, path string) Status {
	ctxWithTracing, span := fs.start(ctx, "RemoveDirectory", path)
	s := fs.FileSystem.RemoveDirectory(ctxWithTracing, path)
	endSpan(span, s)
	return s
}

func (fs *tracingFileSystem) Unlink(ctx context.Context, path string) Status {
	ctxWithTracing, span := fs.start(ctx, "Unlink", path)
	s := fs.FileSystem.Unlink(ctxWithTracing, path)
	endSpan(span, s)
	return s
}

func (fs *tracingFileSystem) SetModificationTime(ctx context.Context, path string, t *time.Time) (Attributes, Status) {
	ctxWithTracing, span := fs.start(ctx, "SetModificationTime", path)
	attributes, s := fs.FileSystem.SetModificationTime(ctxWithTracing, path, t)
	endSpan(span, s)
	return attributes, s
}

func (fs *tracingFileSystem) Truncate(ctx context.Context, path string, size uint64) Status {
	ctxWithTracing, span := fs.start(ctx, "Truncate", path, attribute.Int64("size", int64(size)))
	s := fs.FileSystem.Truncate(ctxWithTracing, path, size)
	endSpan(span, s)
	return s
}

func (fs *tracingFileSystem) Read(ctx context.Context, path string, buf []byte, offset uint64) (int, Status) {
	ctxWithTracing, span := fs.start(ctx, "Read", path,
		attribute.Int64("offset", int64(offset)),
		attribute.Int("size", len(buf)))
	n, s := fs.FileSystem.Read(ctxWithTracing, path, buf, offset)
	span.SetAttributes(attribute.Int("transferred", n))
	endSpan(span, s)
	return n, s
}

func (fs *tracingFileSystem) Write(ctx context.Context, path string, data []byte, offset uint64) (int, Status) {
	ctxWithTracing, span := fs.start(ctx, "Write", path,
		attribute.Int64("offset", int64(offset)),
		attribute.Int("size", len(data)))
	n, s := fs.FileSystem.Write(ctxWithTracing, path, data, offset)
	span.SetAttributes(attribute.Int("transferred", n))
	endSpan(span, s)
	return n, s
}
