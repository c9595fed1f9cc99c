package allocator

// ReservedNode is an exclusively owned handle on one reserved metadata
// node. The node stays out of reach of other reservation attempts
// until the handle is either consumed by MarkInodeAllocated or
// MarkContainerNodeAllocated, or released to abandon the reservation.
type ReservedNode struct {
	allocator *BaseAllocator
	index     uint32
}

// Index returns the node map index held by the handle.
func (rn *ReservedNode) Index() uint32 {
	if rn.allocator == nil {
		panic("Attempted to access a reserved node that has already been consumed or released")
	}
	return rn.index
}

// Release abandons the reservation, returning the node to the free
// pool. It is a no-op on handles that were consumed by allocation,
// which makes it safe to defer on every code path.
func (rn *ReservedNode) Release() {
	if rn.allocator != nil {
		rn.allocator.unreserveNode(rn.index)
		rn.allocator = nil
	}
}

// consume detaches the handle after the node has been marked
// allocated, without returning it to the free pool.
func (rn *ReservedNode) consume() {
	rn.allocator = nil
}
