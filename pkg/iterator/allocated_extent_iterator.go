package iterator

import (
	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type allocatedExtentIterator struct {
	nodes *AllocatedNodeIterator

	// Extents of the node currently being consumed: the inode's
	// inline slot, or the slots of an extent container.
	local       []format.Extent
	localIndex  int
	extentIndex uint64
	blockIndex  uint64
}

// NewAllocatedExtentIterator creates an ExtentIterator over the
// committed extent list of the blob whose inode lives at inodeIndex,
// spanning the inode's inline extent and all chained containers.
//
// Chains coming off disk may be arbitrarily corrupted. Callers that
// have not already validated the chain should run VerifyIteration()
// first, as this iterator only detects malformed nodes, not cycles.
func NewAllocatedExtentIterator(store nodestore.NodeStore, inodeIndex uint32) (ExtentIterator, error) {
	nodes, err := NewAllocatedNodeIterator(store, inodeIndex)
	if err != nil {
		return nil, err
	}
	it := &allocatedExtentIterator{
		nodes: nodes,
	}
	if inode := nodes.Inode(); inode.ExtentCount > 0 {
		it.local = []format.Extent{inode.InlineExtent}
	}
	return it, nil
}

func (it *allocatedExtentIterator) Done() bool {
	return it.extentIndex >= it.nodes.ExtentCount()
}

func (it *allocatedExtentIterator) Next() (format.Extent, error) {
	if it.Done() {
		panic("Attempted to iterate extents past the end of the blob")
	}

	// The current node's extents are exhausted, but more remain.
	// Follow the chain to the next container.
	if it.localIndex == len(it.local) {
		container, err := it.nodes.Next()
		if err != nil {
			return 0, err
		}
		it.local = container.Extents[:container.ExtentCount]
		it.localIndex = 0
	}

	extent := it.local[it.localIndex]
	if extent.Length() == 0 {
		return 0, status.Errorf(codes.DataLoss, "Blob contains an empty extent at index %d", it.extentIndex)
	}
	it.localIndex++
	it.extentIndex++
	it.blockIndex += extent.Length()
	return extent, nil
}

func (it *allocatedExtentIterator) BlockIndex() uint64 {
	return it.blockIndex
}

func (it *allocatedExtentIterator) ExtentIndex() uint64 {
	return it.extentIndex
}
