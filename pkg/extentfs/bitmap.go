package extentfs

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// bitmap provides access to one of the allocation bitmaps stored in
// the image. Bit i is stored in byte i/8, with the least significant
// bit first. One bits indicate that the inode or block is in use.
// Only the first limit bits are meaningful; the remaining bits of the
// bitmap blocks are always zero.
type bitmap struct {
	bits  []byte
	limit uint32
}

func (b bitmap) isSet(i uint32) bool {
	if i >= b.limit {
		panic(fmt.Sprintf("Bit %d is outside of a bitmap with %d entries", i, b.limit))
	}
	return b.bits[i/8]&(1<<(i%8)) != 0
}

func (b bitmap) set(i uint32) {
	if b.isSet(i) {
		panic(fmt.Sprintf("Attempted to allocate entry %d, even though it is already allocated", i))
	}
	b.bits[i/8] |= 1 << (i % 8)
}

func (b bitmap) clear(i uint32) {
	if !b.isSet(i) {
		panic(fmt.Sprintf("Attempted to free entry %d, even though it is not allocated", i))
	}
	b.bits[i/8] &^= 1 << (i % 8)
}

// findFree returns the lowest numbered free entry that is not part of
// the exclusion list. The exclusion list is used by callers that need
// to pick multiple distinct entries before committing any of them.
func (b bitmap) findFree(exclude ...uint32) (uint32, bool) {
	for byteIndex := uint32(0); byteIndex*8 < b.limit; byteIndex++ {
		free := ^b.bits[byteIndex]
		for free != 0 {
			i := byteIndex*8 + uint32(bits.TrailingZeros8(free))
			if i >= b.limit {
				return 0, false
			}
			if !containsUint32(exclude, i) {
				return i, true
			}
			free &= free - 1
		}
	}
	return 0, false
}

func containsUint32(l []uint32, v uint32) bool {
	for _, e := range l {
		if e == v {
			return true
		}
	}
	return false
}

// toBitSet converts the bitmap to a BitSet, so that it may be counted
// and compared against reachability information.
func (b bitmap) toBitSet() *bitset.BitSet {
	words := make([]uint64, (len(b.bits)+7)/8)
	var padded [8]byte
	for i := range words {
		chunk := b.bits[i*8:]
		if len(chunk) < 8 {
			copy(padded[:], chunk)
			chunk = padded[:]
		}
		words[i] = binary.LittleEndian.Uint64(chunk)
	}
	return bitset.From(words)
}

// countFree returns the number of zero bits within the limit.
func (b bitmap) countFree() uint32 {
	set := b.toBitSet()
	used := uint32(0)
	for i, ok := set.NextSet(0); ok && i < uint(b.limit); i, ok = set.NextSet(i + 1) {
		used++
	}
	return b.limit - used
}
