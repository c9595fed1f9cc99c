package iterator

import (
	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AllocatedNodeIterator walks the chain of nodes backing a committed
// blob: the inode, followed by zero or more extent containers linked
// through their NextNode fields. It is the primitive underneath
// AllocatedExtentIterator and VerifyIteration.
//
// All chain data originates from disk, so malformed chains are
// reported as data integrity errors rather than treated as bugs.
type AllocatedNodeIterator struct {
	store nodestore.NodeStore
	inode format.Inode

	currentNode uint32
	nextNode    uint32
	extentIndex uint64
}

// NewAllocatedNodeIterator creates an iterator over the node chain of
// the blob whose inode lives at inodeIndex.
func NewAllocatedNodeIterator(store nodestore.NodeStore, inodeIndex uint32) (*AllocatedNodeIterator, error) {
	view, err := store.GetNode(inodeIndex)
	if err != nil {
		return nil, util.StatusWrapf(err, "Failed to look up inode %d", inodeIndex)
	}
	node := *view.Node()
	if err := view.Close(); err != nil {
		return nil, util.StatusWrapf(err, "Failed to release inode %d", inodeIndex)
	}
	if !node.Prelude.IsAllocated() || !node.Prelude.IsInode() {
		return nil, status.Errorf(codes.DataLoss, "Node %d is not an allocated inode", inodeIndex)
	}

	it := &AllocatedNodeIterator{
		store:       store,
		inode:       node.Inode,
		currentNode: inodeIndex,
		nextNode:    node.Prelude.NextNode,
	}
	// The inode's single inline slot accounts for the first extent.
	if node.Inode.ExtentCount > 0 {
		it.extentIndex = format.InodeExtentCount
	}
	return it, nil
}

// Inode returns a copy of the inode heading the chain.
func (it *AllocatedNodeIterator) Inode() *format.Inode {
	return &it.inode
}

// ExtentCount returns the total number of extents of the blob.
func (it *AllocatedNodeIterator) ExtentCount() uint64 {
	return uint64(it.inode.ExtentCount)
}

// ExtentIndex returns the cumulative number of extents stored in the
// nodes seen so far.
func (it *AllocatedNodeIterator) ExtentIndex() uint64 {
	return it.extentIndex
}

// NextNodeIndex returns the index of the node the current node links
// to. Only meaningful while Done() returns false.
func (it *AllocatedNodeIterator) NextNodeIndex() uint32 {
	return it.nextNode
}

// Done returns whether the nodes seen so far account for all of the
// blob's extents.
func (it *AllocatedNodeIterator) Done() bool {
	return it.extentIndex >= it.ExtentCount()
}

// Next follows the chain to the next extent container and validates
// it, returning a copy.
func (it *AllocatedNodeIterator) Next() (*format.ExtentContainer, error) {
	if it.Done() {
		panic("Attempted to iterate nodes past the end of the chain")
	}

	nextIndex := it.nextNode
	view, err := it.store.GetNode(nextIndex)
	if err != nil {
		return nil, util.StatusWrapWithCode(err, codes.DataLoss, "Node chain links to an invalid node")
	}
	node := *view.Node()
	if err := view.Close(); err != nil {
		return nil, util.StatusWrapf(err, "Failed to release node %d", nextIndex)
	}

	if !node.Prelude.IsAllocated() || !node.Prelude.IsExtentContainer() {
		return nil, status.Errorf(codes.DataLoss, "Node %d in the chain is not an allocated extent container", nextIndex)
	}
	container := node.Container
	if container.PreviousNode != it.currentNode {
		return nil, status.Errorf(codes.DataLoss, "Extent container %d points back at node %d instead of node %d", nextIndex, container.PreviousNode, it.currentNode)
	}
	if container.ExtentCount == 0 {
		return nil, status.Errorf(codes.DataLoss, "Extent container %d holds no extents", nextIndex)
	}
	remaining := it.ExtentCount() - it.extentIndex
	if uint64(container.ExtentCount) > remaining {
		return nil, status.Errorf(codes.DataLoss, "Extent container %d holds %d extents, while only %d remain", nextIndex, container.ExtentCount, remaining)
	}
	if uint64(container.ExtentCount) < remaining && container.ExtentCount != format.ContainerExtentCount {
		return nil, status.Errorf(codes.DataLoss, "Extent container %d holds %d extents, but is not the last container in the chain", nextIndex, container.ExtentCount)
	}

	it.extentIndex += uint64(container.ExtentCount)
	it.currentNode = nextIndex
	it.nextNode = node.Prelude.NextNode
	return &container, nil
}
