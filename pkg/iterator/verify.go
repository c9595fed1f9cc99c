package iterator

import (
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// VerifyIteration checks the integrity of a blob's node chain before
// it is trusted for real iteration. On top of the per node validation
// performed by AllocatedNodeIterator, it detects cycles by walking the
// chain with two iterators at different speeds: a corrupted chain that
// points back into itself would otherwise make iteration diverge.
func VerifyIteration(store nodestore.NodeStore, inodeIndex uint32) error {
	fast, err := NewAllocatedNodeIterator(store, inodeIndex)
	if err != nil {
		return err
	}
	slow, err := NewAllocatedNodeIterator(store, inodeIndex)
	if err != nil {
		return err
	}

	for !fast.Done() {
		if _, err := fast.Next(); err != nil {
			return err
		}
		if !fast.Done() {
			if _, err := fast.Next(); err != nil {
				return err
			}
		}
		if _, err := slow.Next(); err != nil {
			return err
		}
		if !fast.Done() && fast.NextNodeIndex() == slow.NextNodeIndex() {
			return status.Errorf(codes.DataLoss, "Node chain of inode %d contains a cycle through node %d", inodeIndex, fast.NextNodeIndex())
		}
	}
	return nil
}
