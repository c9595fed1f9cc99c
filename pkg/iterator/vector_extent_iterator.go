package iterator

import (
	"github.com/buildbarn/bb-blobfs/pkg/allocator"
	"github.com/buildbarn/bb-blobfs/pkg/format"
)

type vectorExtentIterator struct {
	reserved    []*allocator.ReservedExtent
	extentIndex uint64
	blockIndex  uint64
}

// NewVectorExtentIterator creates an ExtentIterator over a list of
// reserved extents, as returned by a single ReserveBlocks() call. It
// is used while writing a new blob, which has no committed node chain
// to walk yet. The iterator does not take ownership of the
// reservations.
func NewVectorExtentIterator(reserved []*allocator.ReservedExtent) ExtentIterator {
	return &vectorExtentIterator{
		reserved: reserved,
	}
}

func (it *vectorExtentIterator) Done() bool {
	return it.extentIndex >= uint64(len(it.reserved))
}

func (it *vectorExtentIterator) Next() (format.Extent, error) {
	if it.Done() {
		panic("Attempted to iterate extents past the end of the reservation list")
	}
	extent := it.reserved[it.extentIndex].Extent()
	it.extentIndex++
	it.blockIndex += extent.Length()
	return extent, nil
}

func (it *vectorExtentIterator) BlockIndex() uint64 {
	return it.blockIndex
}

func (it *vectorExtentIterator) ExtentIndex() uint64 {
	return it.extentIndex
}
