package allocator

import (
	"fmt"
	"sync"

	"github.com/buildbarn/bb-blobfs/pkg/bitmap"
	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// BaseAllocator combines the block bitmap, the reserved extent set,
// the node bitmap and the reserved node count into a single allocation
// engine. One instance exists per mounted volume.
//
// A single lock guards all bitmap state, so that the scan and claim
// sequence performed by ReserveBlocks() is atomic with respect to
// other reservation attempts. This subsystem is not on the hot read
// path, so no finer granularity is needed.
type BaseAllocator struct {
	spaceManager SpaceManager
	nodeStore    nodestore.NodeStore

	reserver ExtentReserver

	lock              sync.Mutex
	blockBitmap       *bitmap.Bitmap
	nodeBitmap        *bitmap.Bitmap
	reservedNodeCount uint64
}

var _ Allocator = (*BaseAllocator)(nil)

// NewBaseAllocator creates an allocator for a volume whose committed
// allocation state is described by the two bitmaps: blockBitmap must
// have one set bit per allocated data block and nodeBitmap one set bit
// per node in use. For a freshly formatted volume both bitmaps are
// empty; at mount time they are loaded from the volume's bitmap
// regions.
//
// The space manager is consulted when reservations do not fit. It is
// responsible for growing both the underlying volume and the node
// store; the allocator only resizes its own bitmaps afterwards.
func NewBaseAllocator(spaceManager SpaceManager, nodeStore nodestore.NodeStore, blockBitmap, nodeBitmap *bitmap.Bitmap) *BaseAllocator {
	return &BaseAllocator{
		spaceManager: spaceManager,
		nodeStore:    nodeStore,
		blockBitmap:  blockBitmap,
		nodeBitmap:   nodeBitmap,
	}
}

func (a *BaseAllocator) CheckBlocksAllocated(startBlock, endBlock uint64) (bool, uint64) {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.blockBitmap.AllSet(startBlock, endBlock)
}

func (a *BaseAllocator) IsBlockAllocated(blockIndex uint64) (bool, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if blockIndex >= a.blockBitmap.Size() {
		return false, status.Errorf(codes.OutOfRange, "Block index %d lies outside the volume of %d blocks", blockIndex, a.blockBitmap.Size())
	}
	return a.blockBitmap.Get(blockIndex), nil
}

// findBlocksLocked locates the next run of blocks at or after *hint
// that are both clear in the block bitmap and free of in flight
// reservations, clamped to maxLength. Candidate runs that start inside
// a reservation are skipped; runs that merely collide with one further
// on are clipped to the free prefix. On success the hint is advanced
// past the returned run.
func (a *BaseAllocator) findBlocksLocked(hint *uint64, maxLength uint64) (uint64, uint64, bool) {
	pos := *hint
	for {
		start, length, ok := a.blockBitmap.FindRun(pos, maxLength)
		if !ok {
			return 0, 0, false
		}
		if reservedStart, reservedEnd, found := a.reserver.FirstReservationIn(start, start+length); found {
			if reservedStart <= start {
				pos = reservedEnd
				continue
			}
			length = reservedStart - start
		}
		*hint = start + length
		return start, length, true
	}
}

func (a *BaseAllocator) ReserveBlocks(blockCount uint64) ([]*ReservedExtent, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	var reserved []*ReservedExtent
	releaseAll := func() {
		for _, re := range reserved {
			re.Release()
		}
	}

	remaining := blockCount
	hint := uint64(0)
	grown := false
	for remaining > 0 {
		maxLength := remaining
		if maxLength > format.ExtentBlockCountMax {
			maxLength = format.ExtentBlockCountMax
		}
		start, length, ok := a.findBlocksLocked(&hint, maxLength)
		if !ok {
			if grown {
				releaseAll()
				return nil, status.Errorf(codes.ResourceExhausted, "Failed to reserve %d blocks, even after growing the volume", blockCount)
			}

			// All free space has been claimed. Ask the
			// space manager to extend the volume by the
			// deficit and retry from the old boundary.
			oldBlockCount := a.blockBitmap.Size()
			newBlockCount, err := a.spaceManager.AddBlocks(remaining)
			if err != nil {
				releaseAll()
				return nil, util.StatusWrapf(err, "Failed to reserve %d blocks: growing the volume by %d blocks failed", blockCount, remaining)
			}
			if newBlockCount < oldBlockCount {
				releaseAll()
				return nil, status.Errorf(codes.Internal, "Volume shrank from %d to %d blocks while growing it", oldBlockCount, newBlockCount)
			}
			a.blockBitmap.Grow(newBlockCount)
			hint = oldBlockCount
			grown = true
			continue
		}
		reserved = append(reserved, a.reserver.Reserve(format.NewExtent(start, length)))
		remaining -= length
	}
	return reserved, nil
}

func (a *BaseAllocator) MarkBlocksAllocated(extent format.Extent) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if allClear, firstSet := a.blockBitmap.AllClear(extent.Start(), extent.End()); !allClear {
		panic(fmt.Sprintf("Attempted to allocate blocks %v, while block %d is already allocated", extent, firstSet))
	}
	a.blockBitmap.SetRange(extent.Start(), extent.End())
}

func (a *BaseAllocator) FreeBlocks(extent format.Extent) *ReservedExtent {
	a.lock.Lock()
	defer a.lock.Unlock()

	if allSet, firstClear := a.blockBitmap.AllSet(extent.Start(), extent.End()); !allSet {
		panic(fmt.Sprintf("Attempted to free blocks %v, while block %d is not allocated", extent, firstClear))
	}
	a.blockBitmap.ClearRange(extent.Start(), extent.End())

	// Keep the range reserved until the transaction performing the
	// free is durable, so that a concurrent reservation cannot hand
	// the blocks out while the old contents may still reappear
	// after a crash.
	return a.reserver.Reserve(extent)
}

func (a *BaseAllocator) GetAllocatedRegions() []BlockRegion {
	a.lock.Lock()
	defer a.lock.Unlock()

	runs := a.blockBitmap.Runs()
	regions := make([]BlockRegion, 0, len(runs))
	for _, run := range runs {
		regions = append(regions, BlockRegion{Offset: run.Start, Length: run.Length})
	}
	return regions
}

func (a *BaseAllocator) ReservedBlockCount() uint64 {
	return a.reserver.ReservedBlockCount()
}

func (a *BaseAllocator) BlockCount() uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.blockBitmap.Size()
}

func (a *BaseAllocator) reserveNodeLocked() (*ReservedNode, error) {
	index, _, ok := a.nodeBitmap.FindRun(0, 1)
	if !ok {
		// The node map is full. Ask the space manager to grow
		// it and retry once.
		newNodeCount, err := a.spaceManager.AddNodes()
		if err != nil {
			return nil, util.StatusWrap(err, "Failed to reserve a node: growing the node map failed")
		}
		if newNodeCount < a.nodeBitmap.Size() {
			return nil, status.Errorf(codes.Internal, "Node map shrank from %d to %d nodes while growing it", a.nodeBitmap.Size(), newNodeCount)
		}
		a.nodeBitmap.Grow(newNodeCount)
		index, _, ok = a.nodeBitmap.FindRun(0, 1)
		if !ok {
			return nil, status.Error(codes.ResourceExhausted, "No free nodes available")
		}
	}

	// Reservation and allocation share the bitmap bit. The node
	// only differs from an allocated one in that its on disk flags
	// have not been stamped yet.
	a.nodeBitmap.SetRange(index, index+1)
	a.reservedNodeCount++
	return &ReservedNode{
		allocator: a,
		index:     uint32(index),
	}, nil
}

func (a *BaseAllocator) ReserveNode() (*ReservedNode, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.reserveNodeLocked()
}

func (a *BaseAllocator) ReserveNodes(nodeCount int) ([]*ReservedNode, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	reserved := make([]*ReservedNode, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		node, err := a.reserveNodeLocked()
		if err != nil {
			for _, rn := range reserved {
				a.unreserveNodeLocked(rn.index)
				rn.allocator = nil
			}
			return nil, util.StatusWrapf(err, "Failed to reserve node %d of %d", i+1, nodeCount)
		}
		reserved = append(reserved, node)
	}
	return reserved, nil
}

func (a *BaseAllocator) unreserveNodeLocked(index uint32) {
	if !a.nodeBitmap.Get(uint64(index)) {
		panic(fmt.Sprintf("Attempted to unreserve node %d, which is not marked busy", index))
	}
	a.nodeBitmap.ClearRange(uint64(index), uint64(index)+1)
	a.reservedNodeCount--
}

// unreserveNode is called by ReservedNode.Release() on handles that
// were never consumed by allocation.
func (a *BaseAllocator) unreserveNode(index uint32) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.unreserveNodeLocked(index)
}

// consumeNode detaches a reserved node handle after its node has been
// stamped allocated. The bitmap bit stays set; only the in flight
// reservation count drops.
func (a *BaseAllocator) consumeNode(rn *ReservedNode) {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.reservedNodeCount--
	rn.consume()
}

func (a *BaseAllocator) MarkInodeAllocated(node *ReservedNode) error {
	index := node.Index()
	view, err := a.nodeStore.GetNode(index)
	if err != nil {
		return util.StatusWrapf(err, "Failed to look up reserved node %d", index)
	}
	prelude := &view.Node().Prelude
	if prelude.IsAllocated() {
		panic(fmt.Sprintf("Attempted to allocate node %d as an inode, while it is already allocated", index))
	}
	prelude.Flags = format.FlagAllocated
	prelude.Version = format.NodeVersion
	// The inode has no successor yet. Stamp the sentinel, so that
	// following the link before a container is attached fails
	// loudly instead of reading an arbitrary node.
	prelude.NextNode = format.InvalidNodeIndex
	if err := view.Close(); err != nil {
		return util.StatusWrapf(err, "Failed to write back node %d", index)
	}
	a.consumeNode(node)
	return nil
}

func (a *BaseAllocator) MarkContainerNodeAllocated(node *ReservedNode, previousNode uint32) error {
	index := node.Index()
	previousView, err := a.nodeStore.GetNode(previousNode)
	if err != nil {
		return util.StatusWrapf(err, "Failed to look up previous node %d", previousNode)
	}
	view, err := a.nodeStore.GetNode(index)
	if err != nil {
		previousView.Close()
		return util.StatusWrapf(err, "Failed to look up reserved node %d", index)
	}

	n := view.Node()
	if n.Prelude.IsAllocated() {
		panic(fmt.Sprintf("Attempted to allocate node %d as an extent container, while it is already allocated", index))
	}
	n.Prelude.Flags = format.FlagAllocated | format.FlagExtentContainer
	n.Prelude.Version = format.NodeVersion
	n.Prelude.NextNode = format.InvalidNodeIndex
	n.Container = format.ExtentContainer{PreviousNode: previousNode}
	if err := view.Close(); err != nil {
		previousView.Close()
		return util.StatusWrapf(err, "Failed to write back node %d", index)
	}

	previousView.Node().Prelude.NextNode = index
	if err := previousView.Close(); err != nil {
		return util.StatusWrapf(err, "Failed to write back previous node %d", previousNode)
	}
	a.consumeNode(node)
	return nil
}

func (a *BaseAllocator) FreeNode(nodeIndex uint32) error {
	view, err := a.nodeStore.GetNode(nodeIndex)
	if err != nil {
		return util.StatusWrapf(err, "Failed to look up node %d", nodeIndex)
	}
	prelude := &view.Node().Prelude
	if !prelude.IsAllocated() {
		panic(fmt.Sprintf("Attempted to free node %d, which is not allocated", nodeIndex))
	}
	prelude.Flags = 0
	if err := view.Close(); err != nil {
		return util.StatusWrapf(err, "Failed to write back node %d", nodeIndex)
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	if !a.nodeBitmap.Get(uint64(nodeIndex)) {
		panic(fmt.Sprintf("Attempted to free node %d, which is not marked busy", nodeIndex))
	}
	a.nodeBitmap.ClearRange(uint64(nodeIndex), uint64(nodeIndex)+1)
	return nil
}

func (a *BaseAllocator) ReservedNodeCount() uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.reservedNodeCount
}

func (a *BaseAllocator) NodeCount() uint64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.nodeBitmap.Size()
}
