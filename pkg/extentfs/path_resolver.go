package extentfs

import (
	"strings"
)

// parsePath splits an absolute path into its components. Empty
// components, caused by leading, trailing or repeated slashes, are
// dropped. "." and ".." are resolved lexically, so that the resulting
// components form the chain of directories that is actually
// traversed. ".." at the root refers to the root itself. The root
// directory has no components.
func parsePath(p string) ([]string, Status) {
	if len(p) > PathMaximumLength {
		return nil, StatusErrNameTooLong
	}
	var components []string
	for _, component := range strings.Split(p, "/") {
		switch component {
		case "", ".":
		case "..":
			if len(components) > 0 {
				components = components[:len(components)-1]
			}
		default:
			if len(component) > NameMaximumLength {
				return nil, StatusErrNameTooLong
			}
			components = append(components, component)
		}
	}
	return components, StatusOK
}

// parseEntryPath is used by operations that add or remove directory
// entries. The "." and ".." entries of a directory are managed by the
// file system itself, so paths ending with them are rejected.
func parseEntryPath(p string) ([]string, Status) {
	trimmed := strings.TrimRight(p, "/")
	if name := trimmed[strings.LastIndexByte(trimmed, '/')+1:]; name == "." || name == ".." {
		return nil, StatusErrInval
	}
	return parsePath(p)
}

// resolve walks a list of path components starting at the root
// directory. Before descending into a component, the current inode is
// checked to be a directory. This means that resolving "/a/b" where
// "a" is a file yields StatusErrNotDir, regardless of whether "b"
// exists.
func (v *volume) resolve(components []string) (uint32, inode, Status) {
	inodeNumber := uint32(rootInodeNumber)
	current := v.readInode(inodeNumber)
	for _, component := range components {
		if !current.isDirectory() {
			return 0, inode{}, StatusErrNotDir
		}
		_, child, ok := v.lookup(&current, component)
		if !ok {
			return 0, inode{}, StatusErrNoEnt
		}
		inodeNumber = child
		current = v.readInode(inodeNumber)
	}
	return inodeNumber, current, StatusOK
}

// resolveParent resolves all but the last component of a path, and
// requires the result to be a directory. The last component is
// returned as the name that the caller operates on. The root
// directory has no parent, so callers must handle it up front.
func (v *volume) resolveParent(components []string) (uint32, inode, string, Status) {
	if len(components) == 0 {
		panic("The root directory has no parent")
	}
	parentNumber, parent, s := v.resolve(components[:len(components)-1])
	if s != StatusOK {
		return 0, inode{}, "", s
	}
	if !parent.isDirectory() {
		return 0, inode{}, "", StatusErrNotDir
	}
	return parentNumber, parent, components[len(components)-1], StatusOK
}
