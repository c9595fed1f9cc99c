package allocator

import (
	"github.com/buildbarn/bb-blobfs/pkg/format"
)

// BlockRegion is a maximal run of allocated data blocks, as reported
// by Allocator.GetAllocatedRegions(). Unlike an extent, a region has
// no upper bound on its length.
type BlockRegion struct {
	Offset uint64
	Length uint64
}

// Allocator hands out the data blocks and metadata nodes of a volume.
// Both resources follow a two phase protocol: a write path first
// reserves the space it needs, and only converts the reservations into
// durable allocations once the transaction persisting them is about to
// commit. Reservations that are never converted are returned to the
// free pool when their handles are released.
type Allocator interface {
	// CheckBlocksAllocated returns whether every block in
	// [startBlock, endBlock) is allocated. If not, it also returns
	// the index of the first unallocated block in the range.
	CheckBlocksAllocated(startBlock, endBlock uint64) (bool, uint64)
	// IsBlockAllocated returns whether a single block is
	// allocated, or an error if the index lies outside the volume.
	IsBlockAllocated(blockIndex uint64) (bool, error)
	// ReserveBlocks provisionally claims blockCount free blocks,
	// split across as many extents as fragmentation and the
	// per extent length limit require. Either all requested blocks
	// are reserved, or no reservation is retained and an error is
	// returned.
	ReserveBlocks(blockCount uint64) ([]*ReservedExtent, error)
	// MarkBlocksAllocated durably allocates a previously reserved
	// extent in the block bitmap. The reservation itself stays
	// alive until its handle is released.
	MarkBlocksAllocated(extent format.Extent)
	// FreeBlocks deallocates an extent in the block bitmap. The
	// returned reservation pins the range, preventing its reuse
	// until the transaction performing the free is known durable.
	FreeBlocks(extent format.Extent) *ReservedExtent
	// GetAllocatedRegions returns the run length encoding of all
	// allocated blocks, ordered by offset.
	GetAllocatedRegions() []BlockRegion
	// ReservedBlockCount returns the number of blocks that are
	// currently reserved but not yet allocated.
	ReservedBlockCount() uint64
	// BlockCount returns the total number of data blocks.
	BlockCount() uint64

	// ReserveNode provisionally claims a free metadata node.
	ReserveNode() (*ReservedNode, error)
	// ReserveNodes provisionally claims nodeCount free metadata
	// nodes, all or nothing.
	ReserveNodes(nodeCount int) ([]*ReservedNode, error)
	// MarkInodeAllocated stamps a reserved node as an allocated
	// inode and consumes the reservation.
	MarkInodeAllocated(node *ReservedNode) error
	// MarkContainerNodeAllocated stamps a reserved node as an
	// allocated extent container, links it behind previousNode and
	// consumes the reservation.
	MarkContainerNodeAllocated(node *ReservedNode, previousNode uint32) error
	// FreeNode returns an allocated node to the free pool,
	// clearing its on disk flags. Extents referenced by the node
	// must be freed separately by walking them beforehand.
	FreeNode(nodeIndex uint32) error
	// ReservedNodeCount returns the number of nodes that are
	// currently reserved but not yet allocated.
	ReservedNodeCount() uint64
	// NodeCount returns the total number of metadata node slots.
	NodeCount() uint64
}

// SpaceManager grows the volume underneath the allocator. AddBlocks
// and AddNodes are invoked synchronously when a reservation request
// does not fit; implementations typically extend an underlying volume
// manager partition and may therefore block or fail. Both return the
// new total number of blocks or nodes, which the allocator uses to
// resize its bitmaps.
type SpaceManager interface {
	AddBlocks(blockCount uint64) (uint64, error)
	AddNodes() (uint64, error)
}
