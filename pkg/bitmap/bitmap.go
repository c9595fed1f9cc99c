// Package bitmap provides the dense bit vector underneath the block
// and node allocation state of a volume. One bits indicate blocks or
// nodes that are in use.
package bitmap

import (
	"fmt"
	"math/bits"
)

const allBits = ^uint64(0)

// Bitmap is a growable vector of bits, indexed from zero. All range
// arguments denote half open intervals [start, end). Out of range
// arguments indicate a bug in the caller and cause a panic.
//
// Bitmap performs no locking of its own. The allocator that owns a
// bitmap serializes access to it.
type Bitmap struct {
	words []uint64
	size  uint64
}

// New creates a bitmap of the given size with all bits cleared.
func New(size uint64) *Bitmap {
	return &Bitmap{
		words: make([]uint64, (size+63)/64),
		size:  size,
	}
}

// Size returns the number of bits in the bitmap.
func (b *Bitmap) Size() uint64 {
	return b.size
}

func (b *Bitmap) checkRange(start, end uint64) {
	if start > end || end > b.size {
		panic(fmt.Sprintf("Range [%d, %d) lies outside the bitmap of size %d", start, end, b.size))
	}
}

// Get returns whether bit i is set.
func (b *Bitmap) Get(i uint64) bool {
	b.checkRange(i, i+1)
	return b.words[i/64]&(1<<(i%64)) != 0
}

// forEachWord calls f for every word overlapping [start, end), with a
// mask selecting the bits of that word that lie inside the range.
// Iteration stops early when f returns false.
func (b *Bitmap) forEachWord(start, end uint64, f func(index uint64, mask uint64) bool) {
	for start < end {
		wordEnd := (start/64 + 1) * 64
		if wordEnd > end {
			wordEnd = end
		}
		mask := allBits << (start % 64)
		if wordEnd%64 != 0 {
			mask &^= allBits << (wordEnd % 64)
		}
		if !f(start/64, mask) {
			return
		}
		start = wordEnd
	}
}

// SetRange sets all bits in [start, end).
func (b *Bitmap) SetRange(start, end uint64) {
	b.checkRange(start, end)
	b.forEachWord(start, end, func(index, mask uint64) bool {
		b.words[index] |= mask
		return true
	})
}

// ClearRange clears all bits in [start, end).
func (b *Bitmap) ClearRange(start, end uint64) {
	b.checkRange(start, end)
	b.forEachWord(start, end, func(index, mask uint64) bool {
		b.words[index] &^= mask
		return true
	})
}

// AllSet returns whether every bit in [start, end) is set. If not, it
// also returns the index of the first clear bit in the range.
func (b *Bitmap) AllSet(start, end uint64) (bool, uint64) {
	b.checkRange(start, end)
	allSet, firstClear := true, uint64(0)
	b.forEachWord(start, end, func(index, mask uint64) bool {
		if missing := mask &^ b.words[index]; missing != 0 {
			allSet = false
			firstClear = index*64 + uint64(bits.TrailingZeros64(missing))
			return false
		}
		return true
	})
	return allSet, firstClear
}

// AllClear returns whether every bit in [start, end) is clear. If not,
// it also returns the index of the first set bit in the range.
func (b *Bitmap) AllClear(start, end uint64) (bool, uint64) {
	b.checkRange(start, end)
	allClear, firstSet := true, uint64(0)
	b.forEachWord(start, end, func(index, mask uint64) bool {
		if present := mask & b.words[index]; present != 0 {
			allClear = false
			firstSet = index*64 + uint64(bits.TrailingZeros64(present))
			return false
		}
		return true
	})
	return allClear, firstSet
}

// nextBit returns the index of the first bit at or after i whose value
// matches desired.
func (b *Bitmap) nextBit(i uint64, desired bool) (uint64, bool) {
	words := b.words
	m := words[i/64]
	if !desired {
		m = ^m
	}
	m &= allBits << (i % 64)
	index := i / 64
	for m == 0 {
		index++
		if index >= uint64(len(words)) {
			return 0, false
		}
		m = words[index]
		if !desired {
			m = ^m
		}
	}
	if j := index*64 + uint64(bits.TrailingZeros64(m)); j < b.size {
		return j, true
	}
	return 0, false
}

// runLengthAt counts how many consecutive bits starting at start have
// the given value, up to maxLength. The caller guarantees that bit
// start itself matches.
func (b *Bitmap) runLengthAt(start, maxLength uint64, desired bool) uint64 {
	length := uint64(0)
	index, shift := start/64, start%64
	for index < uint64(len(b.words)) {
		m := b.words[index]
		if desired {
			m = ^m
		}
		matching := uint64(bits.TrailingZeros64(m >> shift))
		if available := 64 - shift; matching > available {
			matching = available
		}
		length += matching
		if length >= maxLength {
			return maxLength
		}
		if matching < 64-shift {
			return length
		}
		index, shift = index+1, 0
	}
	return length
}

// FindRun locates the first run of clear bits at or after hint,
// returning its start and its length clamped to maxLength. It does not
// wrap around; callers that want to consider the full bitmap scan from
// hint zero.
func (b *Bitmap) FindRun(hint, maxLength uint64) (uint64, uint64, bool) {
	if hint >= b.size || maxLength == 0 {
		return 0, 0, false
	}
	start, ok := b.nextBit(hint, false)
	if !ok {
		return 0, 0, false
	}
	length := b.runLengthAt(start, maxLength, false)
	if start+length > b.size {
		length = b.size - start
	}
	return start, length, true
}

// CountSet returns the total number of set bits.
func (b *Bitmap) CountSet() uint64 {
	count := uint64(0)
	for _, word := range b.words {
		count += uint64(bits.OnesCount64(word))
	}
	return count
}

// Grow extends the bitmap to newSize bits, with the new bits cleared.
func (b *Bitmap) Grow(newSize uint64) {
	if newSize < b.size {
		panic(fmt.Sprintf("Attempted to grow the bitmap from %d to %d bits", b.size, newSize))
	}
	words := (newSize + 63) / 64
	for uint64(len(b.words)) < words {
		b.words = append(b.words, 0)
	}
	b.size = newSize
}

// Shrink truncates the bitmap to newSize bits. All bits being dropped
// must be clear; shrinking is only used to trim excess produced by
// rounding during growth.
func (b *Bitmap) Shrink(newSize uint64) {
	if newSize > b.size {
		panic(fmt.Sprintf("Attempted to shrink the bitmap from %d to %d bits", b.size, newSize))
	}
	if allClear, firstSet := b.AllClear(newSize, b.size); !allClear {
		panic(fmt.Sprintf("Attempted to shrink the bitmap to %d bits, while bit %d is still set", newSize, firstSet))
	}
	b.words = b.words[:(newSize+63)/64]
	b.size = newSize
}

// Run is a maximal sequence of consecutive set bits.
type Run struct {
	Start  uint64
	Length uint64
}

// Runs returns the run length encoding of all set bits, ordered by
// start index.
func (b *Bitmap) Runs() []Run {
	var runs []Run
	for i := uint64(0); i < b.size; {
		start, ok := b.nextBit(i, true)
		if !ok {
			break
		}
		length := b.runLengthAt(start, b.size-start, true)
		runs = append(runs, Run{Start: start, Length: length})
		i = start + length
	}
	return runs
}
