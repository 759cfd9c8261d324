package extentfs

// allocateBlocks grows the data region of an inode by count blocks.
// The inode must already own an extent table.
//
// Blocks are searched for starting right after the last extent of
// the inode, wrapping around to the start of the data region. This
// keeps files contiguous when possible. Every maximal run of free
// blocks that is found becomes a single extent. If the first run
// directly follows the last extent, the last extent is extended
// instead.
//
// Allocation is planned before any change is made, so that the image
// is left untouched if not enough blocks or extent table slots are
// available. Newly allocated blocks are zero filled.
func (v *volume) allocateBlocks(i *inode, count uint32) Status {
	if count == 0 {
		return StatusOK
	}
	bm := v.blockBitmap()

	start := v.firstDataBlock
	var last extent
	if i.extentCount > 0 {
		last = v.readExtent(i.extentTable, i.extentCount-1)
		if end := last.end(); end < v.blockCount {
			start = end
		}
	}

	var runs []extent
	remaining := count
	scan := func(from, to uint32) {
		for b := from; b < to && remaining > 0; b++ {
			if bm.isSet(b) {
				continue
			}
			if n := len(runs); n > 0 && runs[n-1].end() == b {
				runs[n-1].count++
			} else {
				runs = append(runs, extent{start: b, count: 1})
			}
			remaining--
		}
	}
	scan(start, v.blockCount)
	scan(v.firstDataBlock, start)
	if remaining > 0 {
		return StatusErrNoSpc
	}

	coalesce := i.extentCount > 0 && runs[0].start == last.end()
	newExtents := uint32(len(runs))
	if coalesce {
		newExtents--
	}
	if i.extentCount+newExtents > extentsPerTable {
		return StatusErrTooManyExtents
	}

	// Commit the plan.
	for _, r := range runs {
		for b := r.start; b < r.end(); b++ {
			bm.set(b)
			v.zeroBlock(b)
		}
	}
	if coalesce {
		last.count += runs[0].count
		v.writeExtent(i.extentTable, i.extentCount-1, last)
		runs = runs[1:]
	}
	for _, r := range runs {
		v.writeExtent(i.extentTable, i.extentCount, r)
		i.extentCount++
	}
	i.blockCount += count
	return StatusOK
}

// releaseExtent clears the bitmap bits of all blocks of an extent.
func (v *volume) releaseExtent(e extent) {
	bm := v.blockBitmap()
	for b := e.start; b < e.end(); b++ {
		bm.clear(b)
	}
}

// shrinkBlocks releases count blocks from the end of the data region
// of an inode. Extents that become empty are removed from the extent
// table. The extent table block itself is retained.
func (v *volume) shrinkBlocks(i *inode, count uint32) {
	for count > 0 && i.extentCount > 0 {
		index := i.extentCount - 1
		e := v.readExtent(i.extentTable, index)
		if e.count > count {
			e.count -= count
			v.releaseExtent(extent{start: e.end(), count: count})
			v.writeExtent(i.extentTable, index, e)
			i.blockCount -= count
			return
		}
		v.releaseExtent(e)
		v.writeExtent(i.extentTable, index, extent{})
		i.extentCount--
		i.blockCount -= e.count
		count -= e.count
	}
}

// releaseAllBlocks releases every data block of an inode, followed by
// its extent table.
func (v *volume) releaseAllBlocks(i *inode) {
	if i.extentTable == noExtentTable {
		return
	}
	for e := uint32(0); e < i.extentCount; e++ {
		v.releaseExtent(v.readExtent(i.extentTable, e))
	}
	v.blockBitmap().clear(i.extentTable)
	i.extentTable = noExtentTable
	i.extentCount = 0
	i.blockCount = 0
}
