package extentfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmap(t *testing.T) {
	t.Run("FindFree", func(t *testing.T) {
		// Limits that are not a multiple of eight must not cause
		// padding bits to be handed out.
		bm := bitmap{bits: make([]byte, 2), limit: 12}
		require.Equal(t, uint32(12), bm.countFree())
		for i := uint32(0); i < 12; i++ {
			n, ok := bm.findFree()
			require.True(t, ok)
			require.Equal(t, i, n)
			bm.set(n)
		}
		_, ok := bm.findFree()
		require.False(t, ok)
		require.Equal(t, uint32(0), bm.countFree())
		require.Equal(t, []byte{0xff, 0x0f}, bm.bits)

		bm.clear(3)
		bm.clear(9)
		n, ok := bm.findFree()
		require.True(t, ok)
		require.Equal(t, uint32(3), n)
		n, ok = bm.findFree(3)
		require.True(t, ok)
		require.Equal(t, uint32(9), n)
		_, ok = bm.findFree(3, 9)
		require.False(t, ok)
		require.Equal(t, uint32(2), bm.countFree())
	})

	t.Run("DoubleAllocation", func(t *testing.T) {
		bm := bitmap{bits: make([]byte, 1), limit: 8}
		bm.set(5)
		require.PanicsWithValue(t, "Attempted to allocate entry 5, even though it is already allocated", func() {
			bm.set(5)
		})
	})

	t.Run("DoubleFree", func(t *testing.T) {
		bm := bitmap{bits: make([]byte, 1), limit: 8}
		require.PanicsWithValue(t, "Attempted to free entry 2, even though it is not allocated", func() {
			bm.clear(2)
		})
	})

	t.Run("OutOfRange", func(t *testing.T) {
		bm := bitmap{bits: make([]byte, 1), limit: 6}
		require.PanicsWithValue(t, "Bit 6 is outside of a bitmap with 6 entries", func() {
			bm.isSet(6)
		})
	})

	t.Run("ToBitSet", func(t *testing.T) {
		bits := make([]byte, 20)
		bits[0] = 0x01
		bits[9] = 0x80
		bits[19] = 0x02
		set := bitmap{bits: bits, limit: 160}.toBitSet()
		require.Equal(t, uint(3), set.Count())
		require.True(t, set.Test(0))
		require.True(t, set.Test(79))
		require.True(t, set.Test(153))
		require.Equal(t, uint32(157), bitmap{bits: bits, limit: 160}.countFree())
	})
}
