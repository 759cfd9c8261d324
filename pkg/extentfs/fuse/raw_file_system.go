//go:build darwin || linux
// +build darwin linux

package fuse

import (
	"context"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/buildbarn/bb-extentfs/pkg/extentfs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

func toFUSEStatus(s extentfs.Status) fuse.Status {
	switch s {
	case extentfs.StatusOK:
		return fuse.OK
	case extentfs.StatusErrExist:
		return fuse.Status(syscall.EEXIST)
	case extentfs.StatusErrInval:
		return fuse.EINVAL
	case extentfs.StatusErrIsDir:
		return fuse.EISDIR
	case extentfs.StatusErrNameTooLong:
		return fuse.Status(syscall.ENAMETOOLONG)
	case extentfs.StatusErrNoEnt:
		return fuse.ENOENT
	case extentfs.StatusErrNoMem:
		return fuse.Status(syscall.ENOMEM)
	case extentfs.StatusErrNoSpc, extentfs.StatusErrTooManyExtents:
		return fuse.Status(syscall.ENOSPC)
	case extentfs.StatusErrNotDir:
		return fuse.ENOTDIR
	case extentfs.StatusErrNotEmpty:
		return fuse.Status(syscall.ENOTEMPTY)
	default:
		panic("Unknown status")
	}
}

type nodeEntry struct {
	path    string
	nLookup uint64
}

// Options that alter the behavior of the RawFileSystem returned by
// NewRawFileSystem.
type Options struct {
	// Amount of time the kernel may cache directory entries and
	// attributes.
	EntryValidity     time.Duration
	AttributeValidity time.Duration
	// Called when a file is fsync()'ed. May be left unset.
	Sync func() error
}

type rawFileSystem struct {
	fuse.RawFileSystem

	fileSystem extentfs.FileSystem
	options    Options

	// Map to resolve node IDs to paths.
	nodeLock sync.RWMutex
	nodes    map[uint64]nodeEntry
}

// NewRawFileSystem creates a go-fuse RawFileSystem that forwards FUSE
// operations to a path based FileSystem.
//
// Node IDs are derived from inode numbers, with the root directory
// corresponding to FUSE_ROOT_ID. For every node ID the path at which it
// was looked up is tracked, so that operations can be forwarded.
//
// Reads and writes issued by the kernel may span multiple blocks. These
// are split up at block boundaries, as FileSystem transfers at most a
// single block per call. Operations that are not part of FileSystem,
// such as renaming and symbolic links, are rejected with ENOSYS.
func NewRawFileSystem(fileSystem extentfs.FileSystem, options Options) fuse.RawFileSystem {
	return &rawFileSystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),

		fileSystem: fileSystem,
		options:    options,

		nodes: map[uint64]nodeEntry{
			fuse.FUSE_ROOT_ID: {
				path:    "/",
				nLookup: 1,
			},
		},
	}
}

func toNodeID(inodeNumber uint32) uint64 {
	return uint64(inodeNumber) + fuse.FUSE_ROOT_ID
}

func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func populateAttr(attributes *extentfs.Attributes, out *fuse.Attr) {
	out.Ino = toNodeID(attributes.InodeNumber)
	out.Mode = attributes.Mode
	out.Nlink = attributes.LinkCount
	out.Size = attributes.SizeBytes
	out.Blocks = attributes.Blocks
	out.Blksize = extentfs.BlockSizeBytes

	nanos := attributes.ModificationTime.UnixNano()
	out.Mtime = uint64(nanos / 1e9)
	out.Mtimensec = uint32(nanos % 1e9)
}

func (rfs *rawFileSystem) populateEntryOut(attributes *extentfs.Attributes, out *fuse.EntryOut) {
	populateAttr(attributes, &out.Attr)
	out.NodeId = out.Ino
	out.SetEntryTimeout(rfs.options.EntryValidity)
	out.SetAttrTimeout(rfs.options.AttributeValidity)
}

func (rfs *rawFileSystem) populateAttrOut(attributes *extentfs.Attributes, out *fuse.AttrOut) {
	populateAttr(attributes, &out.Attr)
	out.SetTimeout(rfs.options.AttributeValidity)
}

func (rfs *rawFileSystem) getPath(nodeID uint64) string {
	rfs.nodeLock.RLock()
	defer rfs.nodeLock.RUnlock()

	if entry, ok := rfs.nodes[nodeID]; ok {
		return entry.path
	}
	panic(fmt.Sprintf("Node ID %d does not correspond to a known file or directory", nodeID))
}

func (rfs *rawFileSystem) addNode(p string, attributes *extentfs.Attributes, out *fuse.EntryOut) {
	rfs.populateEntryOut(attributes, out)

	rfs.nodeLock.Lock()
	defer rfs.nodeLock.Unlock()

	// Increment lookup count of the node. The node ID may have been
	// used for a file that has since been removed, in which case
	// the path is updated.
	rfs.nodes[out.NodeId] = nodeEntry{
		path:    p,
		nLookup: rfs.nodes[out.NodeId].nLookup + 1,
	}
}

// channelBackedContext is an implementation of context.Context around
// the cancellation channel that go-fuse provides. It does not have any
// values or deadline associated with it.
type channelBackedContext struct {
	cancel <-chan struct{}
}

var _ context.Context = channelBackedContext{}

func (ctx channelBackedContext) Deadline() (time.Time, bool) {
	var t time.Time
	return t, false
}

func (ctx channelBackedContext) Done() <-chan struct{} {
	return ctx.cancel
}

func (ctx channelBackedContext) Err() error {
	select {
	case <-ctx.cancel:
		return context.Canceled
	default:
		return nil
	}
}

func (ctx channelBackedContext) Value(key any) any {
	return nil
}

func (rfs *rawFileSystem) String() string {
	return "ExtentRawFileSystem"
}

func (rfs *rawFileSystem) SetDebug(debug bool) {}

func (rfs *rawFileSystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	p := childPath(rfs.getPath(header.NodeId), name)
	attributes, s := rfs.fileSystem.Stat(channelBackedContext{cancel: cancel}, p)
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	rfs.addNode(p, &attributes, out)
	return fuse.OK
}

func (rfs *rawFileSystem) Forget(nodeID, nLookup uint64) {
	rfs.nodeLock.Lock()
	defer rfs.nodeLock.Unlock()

	// Decrement lookup count of the node. We can remove the entry
	// from our bookkeeping if the lookup count reaches zero.
	entry, ok := rfs.nodes[nodeID]
	if !ok {
		panic(fmt.Sprintf("Attempted to forget node %d %d times, even though no node under that ID exists", nodeID, nLookup))
	}
	if entry.nLookup < nLookup {
		panic(fmt.Sprintf("Attempted to forget node %d %d times, while it was only looked up %d times", nodeID, nLookup, entry.nLookup))
	}
	entry.nLookup -= nLookup
	if entry.nLookup == 0 {
		delete(rfs.nodes, nodeID)
	} else {
		rfs.nodes[nodeID] = entry
	}
}

func (rfs *rawFileSystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	attributes, s := rfs.fileSystem.Stat(channelBackedContext{cancel: cancel}, rfs.getPath(input.NodeId))
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	rfs.populateAttrOut(&attributes, out)
	return fuse.OK
}

func (rfs *rawFileSystem) SetAttr(cancel <-chan struct{}, input *fuse.SetAttrIn, out *fuse.AttrOut) fuse.Status {
	ctx := channelBackedContext{cancel: cancel}
	p := rfs.getPath(input.NodeId)

	// Ownership and permissions are fixed at creation time.
	if input.Valid&(fuse.FATTR_UID|fuse.FATTR_GID|fuse.FATTR_MODE) != 0 {
		return fuse.EPERM
	}
	if input.Valid&fuse.FATTR_SIZE != 0 {
		if s := rfs.fileSystem.Truncate(ctx, p, input.Size); s != extentfs.StatusOK {
			return toFUSEStatus(s)
		}
	}
	if input.Valid&(fuse.FATTR_MTIME|fuse.FATTR_MTIME_NOW) != 0 {
		var t *time.Time
		if input.Valid&fuse.FATTR_MTIME_NOW == 0 {
			mtime := time.Unix(int64(input.Mtime), int64(input.Mtimensec))
			t = &mtime
		}
		if _, s := rfs.fileSystem.SetModificationTime(ctx, p, t); s != extentfs.StatusOK {
			return toFUSEStatus(s)
		}
	}

	attributes, s := rfs.fileSystem.Stat(ctx, p)
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	rfs.populateAttrOut(&attributes, out)
	return fuse.OK
}

func (rfs *rawFileSystem) Mkdir(cancel <-chan struct{}, input *fuse.MkdirIn, name string, out *fuse.EntryOut) fuse.Status {
	p := childPath(rfs.getPath(input.NodeId), name)
	attributes, s := rfs.fileSystem.MakeDirectory(channelBackedContext{cancel: cancel}, p, input.Mode&^input.Umask)
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	rfs.addNode(p, &attributes, out)
	return fuse.OK
}

func (rfs *rawFileSystem) Unlink(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	p := childPath(rfs.getPath(header.NodeId), name)
	return toFUSEStatus(rfs.fileSystem.Unlink(channelBackedContext{cancel: cancel}, p))
}

func (rfs *rawFileSystem) Rmdir(cancel <-chan struct{}, header *fuse.InHeader, name string) fuse.Status {
	p := childPath(rfs.getPath(header.NodeId), name)
	return toFUSEStatus(rfs.fileSystem.RemoveDirectory(channelBackedContext{cancel: cancel}, p))
}

func (rfs *rawFileSystem) Create(cancel <-chan struct{}, input *fuse.CreateIn, name string, out *fuse.CreateOut) fuse.Status {
	ctx := channelBackedContext{cancel: cancel}
	p := childPath(rfs.getPath(input.NodeId), name)
	attributes, s := rfs.fileSystem.CreateFile(ctx, p, input.Mode&^input.Umask)
	if s == extentfs.StatusErrExist && input.Flags&syscall.O_EXCL == 0 {
		// Opening an existing file through creat() is permitted,
		// as long as O_EXCL is not provided.
		if input.Flags&syscall.O_TRUNC != 0 {
			if s := rfs.fileSystem.Truncate(ctx, p, 0); s != extentfs.StatusOK {
				return toFUSEStatus(s)
			}
		}
		attributes, s = rfs.fileSystem.Stat(ctx, p)
		if s == extentfs.StatusOK && attributes.IsDirectory() {
			s = extentfs.StatusErrIsDir
		}
	}
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	rfs.addNode(p, &attributes, &out.EntryOut)
	return fuse.OK
}

func (rfs *rawFileSystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	ctx := channelBackedContext{cancel: cancel}
	p := rfs.getPath(input.NodeId)
	if input.Flags&syscall.O_TRUNC != 0 {
		return toFUSEStatus(rfs.fileSystem.Truncate(ctx, p, 0))
	}
	attributes, s := rfs.fileSystem.Stat(ctx, p)
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	if attributes.IsDirectory() {
		return fuse.EISDIR
	}
	return fuse.OK
}

func (rfs *rawFileSystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	ctx := channelBackedContext{cancel: cancel}
	p := rfs.getPath(input.NodeId)
	if uint32(len(buf)) > input.Size {
		buf = buf[:input.Size]
	}

	nRead := 0
	for nRead < len(buf) {
		offset := input.Offset + uint64(nRead)
		n, s := rfs.fileSystem.Read(ctx, p, buf[nRead:], offset)
		if s != extentfs.StatusOK {
			if nRead > 0 {
				break
			}
			return nil, toFUSEStatus(s)
		}
		nRead += n
		// A read that stops short of the end of the block has
		// reached the end of the file.
		if n == 0 || (offset+uint64(n))%extentfs.BlockSizeBytes != 0 {
			break
		}
	}
	return fuse.ReadResultData(buf[:nRead]), fuse.OK
}

func (rfs *rawFileSystem) Write(cancel <-chan struct{}, input *fuse.WriteIn, data []byte) (uint32, fuse.Status) {
	ctx := channelBackedContext{cancel: cancel}
	p := rfs.getPath(input.NodeId)

	nWritten := 0
	for nWritten < len(data) {
		n, s := rfs.fileSystem.Write(ctx, p, data[nWritten:], input.Offset+uint64(nWritten))
		if s != extentfs.StatusOK {
			if nWritten > 0 {
				break
			}
			return 0, toFUSEStatus(s)
		}
		nWritten += n
	}
	return uint32(nWritten), fuse.OK
}

func (rfs *rawFileSystem) Release(cancel <-chan struct{}, input *fuse.ReleaseIn) {}

func (rfs *rawFileSystem) Flush(cancel <-chan struct{}, input *fuse.FlushIn) fuse.Status {
	return fuse.OK
}

func (rfs *rawFileSystem) Fsync(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	if rfs.options.Sync != nil {
		if err := rfs.options.Sync(); err != nil {
			return fuse.EIO
		}
	}
	return fuse.OK
}

func (rfs *rawFileSystem) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	attributes, s := rfs.fileSystem.Stat(channelBackedContext{cancel: cancel}, rfs.getPath(input.NodeId))
	if s != extentfs.StatusOK {
		return toFUSEStatus(s)
	}
	if !attributes.IsDirectory() {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

// Directory entries that needed to be prepended to the results of all
// ReadDir() and ReadDirPlus() operations. The inode number is not
// filled in for these entries, which is permitted.
var dotDotEntries = []fuse.DirEntry{
	{Mode: fuse.S_IFDIR, Name: "."},
	{Mode: fuse.S_IFDIR, Name: ".."},
}

const dotDotEntriesCount uint64 = 2

func toFUSEDirEntry(name string, attributes *extentfs.Attributes) fuse.DirEntry {
	return fuse.DirEntry{
		Mode: attributes.Mode & extentfs.ModeTypeMask,
		Name: name,
		Ino:  toNodeID(attributes.InodeNumber),
	}
}

// readDirReporter adds entries to the kernel's reply buffer. The
// buffer assigns offsets sequentially, which matches the cookies
// handed out by FileSystem.ReadDir after "." and ".." are accounted
// for.
type readDirReporter struct {
	out   *fuse.DirEntryList
	added int
}

func (r *readDirReporter) ReportEntry(nextCookie uint64, name string, attributes *extentfs.Attributes) bool {
	if !r.out.AddDirEntry(toFUSEDirEntry(name, attributes)) {
		return false
	}
	r.added++
	return true
}

// readDirStatus converts the result of FileSystem.ReadDir. A reply
// buffer that fills up after at least one entry has been added is not
// an error, as the kernel resumes at the next offset.
func readDirStatus(s extentfs.Status, added int) fuse.Status {
	if s == extentfs.StatusErrNoMem && added > 0 {
		return fuse.OK
	}
	return toFUSEStatus(s)
}

func (rfs *rawFileSystem) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	// Inject "." and ".." entries at the start of the results.
	offset := input.Offset
	added := 0
	for ; offset < dotDotEntriesCount; offset++ {
		if !out.AddDirEntry(dotDotEntries[offset]) {
			return fuse.OK
		}
		added++
	}

	r := readDirReporter{out: out, added: added}
	s := rfs.fileSystem.ReadDir(
		channelBackedContext{cancel: cancel},
		rfs.getPath(input.NodeId),
		offset-dotDotEntriesCount,
		&r)
	return readDirStatus(s, r.added)
}

type readDirPlusReporter struct {
	rfs    *rawFileSystem
	parent string
	out    *fuse.DirEntryList
	added  int
}

func (r *readDirPlusReporter) ReportEntry(nextCookie uint64, name string, attributes *extentfs.Attributes) bool {
	e := r.out.AddDirLookupEntry(toFUSEDirEntry(name, attributes))
	if e == nil {
		return false
	}
	r.rfs.addNode(childPath(r.parent, name), attributes, e)
	r.added++
	return true
}

func (rfs *rawFileSystem) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	// Return "." and ".." entries at the start of the results.
	// These don't need to be looked up, as the kernel tracks these
	// for us automatically.
	offset := input.Offset
	added := 0
	for ; offset < dotDotEntriesCount; offset++ {
		if out.AddDirLookupEntry(dotDotEntries[offset]) == nil {
			return fuse.OK
		}
		added++
	}

	parent := rfs.getPath(input.NodeId)
	r := readDirPlusReporter{rfs: rfs, parent: parent, out: out, added: added}
	s := rfs.fileSystem.ReadDir(
		channelBackedContext{cancel: cancel},
		parent,
		offset-dotDotEntriesCount,
		&r)
	return readDirStatus(s, r.added)
}

func (rfs *rawFileSystem) ReleaseDir(input *fuse.ReleaseIn) {}

func (rfs *rawFileSystem) FsyncDir(cancel <-chan struct{}, input *fuse.FsyncIn) fuse.Status {
	return rfs.Fsync(cancel, input)
}

func (rfs *rawFileSystem) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	statistics := rfs.fileSystem.StatFS(channelBackedContext{cancel: cancel})
	out.Blocks = uint64(statistics.BlockCount)
	out.Bfree = uint64(statistics.FreeBlockCount)
	out.Bavail = uint64(statistics.FreeBlockCount)
	out.Files = uint64(statistics.InodeCount)
	out.Ffree = uint64(statistics.FreeInodeCount)
	out.Bsize = statistics.BlockSizeBytes
	out.Frsize = statistics.BlockSizeBytes
	out.NameLen = statistics.NameMaximumLength
	return fuse.OK
}
