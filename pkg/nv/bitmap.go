package nv

import "math/bits"

// bitmap holds one bit per byte of the cache window.
type bitmap []uint64

func newBitmap(n int) bitmap {
	return make(bitmap, (n+63)/64)
}

func (b bitmap) set(i int)       { b[i>>6] |= 1 << uint(i&63) }
func (b bitmap) clear(i int)     { b[i>>6] &^= 1 << uint(i&63) }
func (b bitmap) test(i int) bool { return b[i>>6]&(1<<uint(i&63)) != 0 }

func (b bitmap) setAll(n int) {
	for i := 0; i < n; i++ {
		b.set(i)
	}
}

func (b bitmap) count() (n int) {
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return
}

func (b bitmap) any() bool {
	for _, w := range b {
		if w != 0 {
			return true
		}
	}
	return false
}

// nextSet finds the first set bit at or after from, wrapping around.
// Bits at or beyond n are never set.
func (b bitmap) nextSet(from, n int) (int, bool) {
	if n == 0 {
		return 0, false
	}
	if from >= n || from < 0 {
		from = 0
	}
	if i, ok := b.scan(from, n); ok {
		return i, true
	}
	return b.scan(0, from)
}

func (b bitmap) scan(from, to int) (int, bool) {
	for from < to {
		w := b[from>>6] >> uint(from&63)
		if w != 0 {
			if i := from + bits.TrailingZeros64(w); i < to {
				return i, true
			}
			return 0, false
		}
		from = (from | 63) + 1
	}
	return 0, false
}
