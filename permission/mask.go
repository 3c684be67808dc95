package permission

import "math/bits"

// Mask is a variable-width permission bitmask. Bits beyond the allocated words read
// as unset, so masks of different lengths compare equal when their set bits match.
type Mask struct {
	words []uint64
}

// Has reports whether the given bit is set.
func (m *Mask) Has(bit int) bool {
	if bit < 0 {
		return false
	}

	idx := bit / 64
	if idx >= len(m.words) {
		return false
	}

	return (m.words[idx] & (1 << (bit % 64))) != 0
}

// Set sets the given bit in the mask, growing it as needed.
func (m *Mask) Set(bit int) {
	if bit < 0 {
		return
	}

	idx := bit / 64
	if idx >= len(m.words) {
		grown := make([]uint64, idx+1)
		copy(grown, m.words)
		m.words = grown
	}
	m.words[idx] |= 1 << (bit % 64)
}

// Clear clears the given bit in the mask.
func (m *Mask) Clear(bit int) {
	if bit < 0 {
		return
	}

	idx := bit / 64
	if idx >= len(m.words) {
		return
	}
	m.words[idx] &^= 1 << (bit % 64)
}

// Count returns the number of set bits.
func (m *Mask) Count() int {
	n := 0
	for _, w := range m.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Equal reports whether both masks have exactly the same bits set.
func (m *Mask) Equal(other *Mask) bool {
	a, b := m.words, other.words
	if len(a) < len(b) {
		a, b = b, a
	}
	for i := range a {
		var w uint64
		if i < len(b) {
			w = b[i]
		}
		if a[i] != w {
			return false
		}
	}
	return true
}

// Bits returns the set bit positions in ascending order.
func (m *Mask) Bits() []int {
	out := make([]int, 0, m.Count())
	for idx, w := range m.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, idx*64+tz)
			w &^= 1 << tz
		}
	}
	return out
}

// Clone returns an independent copy of the mask.
func (m *Mask) Clone() Mask {
	if len(m.words) == 0 {
		return Mask{}
	}
	words := make([]uint64, len(m.words))
	copy(words, m.words)
	return Mask{words: words}
}
