package format

import (
	"fmt"
)

const (
	extentLengthBits = 16
	extentStartMax   = 1<<(64-extentLengthBits) - 1
)

// Extent describes a contiguous run of data blocks belonging to a
// blob, packed into a single 64-bit value: a 48-bit starting block
// index in the low bits and a 16-bit block count in the high bits.
type Extent uint64

// NewExtent creates an extent covering blocks [start, start+length).
// Both fields must fit their packed widths; the allocator never
// produces values that do not, so violations are bugs.
func NewExtent(start, length uint64) Extent {
	if start > extentStartMax {
		panic(fmt.Sprintf("Extent start %d exceeds the maximum block index %d", start, uint64(extentStartMax)))
	}
	if length > ExtentBlockCountMax {
		panic(fmt.Sprintf("Extent length %d exceeds the maximum of %d blocks", length, ExtentBlockCountMax))
	}
	return Extent(start | length<<(64-extentLengthBits))
}

// Start returns the index of the first block covered by the extent.
func (e Extent) Start() uint64 {
	return uint64(e) & extentStartMax
}

// Length returns the number of blocks covered by the extent.
func (e Extent) Length() uint64 {
	return uint64(e) >> (64 - extentLengthBits)
}

// End returns the index of the first block past the extent.
func (e Extent) End() uint64 {
	return e.Start() + e.Length()
}

func (e Extent) String() string {
	return fmt.Sprintf("[%d, %d)", e.Start(), e.End())
}
