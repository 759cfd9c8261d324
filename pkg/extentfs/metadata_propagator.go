package extentfs

import (
	"time"
)

// propagate adjusts the size of every directory on the path leading to
// the final component by delta, and sets their modification time.
// Directory sizes thereby reflect the data held by their descendants.
// The final component itself is left untouched, and may already have
// been removed from its parent.
func (v *volume) propagate(components []string, delta int64, now time.Time) {
	if len(components) == 0 {
		return
	}
	inodeNumber := uint32(rootInodeNumber)
	for depth := 0; ; depth++ {
		current := v.readInode(inodeNumber)
		current.sizeBytes = uint64(int64(current.sizeBytes) + delta)
		current.modificationTime = now
		v.writeInode(inodeNumber, &current)
		if depth == len(components)-1 {
			return
		}
		_, child, ok := v.lookup(&current, components[depth])
		if !ok {
			return
		}
		inodeNumber = child
	}
}
