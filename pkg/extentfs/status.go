package extentfs

// Status is the result of an operation performed against the file
// system. Operations never return Go errors for conditions that are
// part of normal file system semantics. Mapping these codes to errno
// values is left to the protocol adapter.
type Status int

const (
	// StatusOK indicates that the operation succeeded.
	StatusOK Status = iota
	// StatusErrExist indicates that a file or directory with the
	// requested name already exists.
	StatusErrExist
	// StatusErrInval indicates that the operation cannot be
	// applied to the target, such as removing the root directory.
	StatusErrInval
	// StatusErrIsDir indicates that a file operation was applied
	// to a directory.
	StatusErrIsDir
	// StatusErrNameTooLong indicates that a path component or the
	// path as a whole is too long.
	StatusErrNameTooLong
	// StatusErrNoEnt indicates that a path component does not
	// exist.
	StatusErrNoEnt
	// StatusErrNoMem indicates that the consumer of a directory
	// listing refused to accept an entry.
	StatusErrNoMem
	// StatusErrNoSpc indicates that no free inode or data block
	// is available.
	StatusErrNoSpc
	// StatusErrNotDir indicates that an intermediate path
	// component, or the target of a directory operation, is not a
	// directory.
	StatusErrNotDir
	// StatusErrNotEmpty indicates that a directory still contains
	// entries other than "." and "..".
	StatusErrNotEmpty
	// StatusErrTooManyExtents indicates that a file would need
	// more extents than fit in its extent table.
	StatusErrTooManyExtents
)

var statusNames = [...]string{
	StatusOK:                "OK",
	StatusErrExist:          "Exist",
	StatusErrInval:          "Inval",
	StatusErrIsDir:          "IsDir",
	StatusErrNameTooLong:    "NameTooLong",
	StatusErrNoEnt:          "NoEnt",
	StatusErrNoMem:          "NoMem",
	StatusErrNoSpc:          "NoSpc",
	StatusErrNotDir:         "NotDir",
	StatusErrNotEmpty:       "NotEmpty",
	StatusErrTooManyExtents: "TooManyExtents",
}

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "Unknown"
}
