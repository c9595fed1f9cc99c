package allocator_test

import (
	"testing"

	"github.com/buildbarn/bb-blobfs/internal/mock"
	"github.com/buildbarn/bb-blobfs/pkg/allocator"
	"github.com/buildbarn/bb-blobfs/pkg/bitmap"
	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newAllocator(ctrl *gomock.Controller, blockCount uint64, nodeCount uint32) (*allocator.BaseAllocator, *mock.MockSpaceManager, nodestore.NodeStore) {
	spaceManager := mock.NewMockSpaceManager(ctrl)
	store := nodestore.NewInMemoryNodeStore(nodeCount)
	a := allocator.NewBaseAllocator(spaceManager, store, bitmap.New(blockCount), bitmap.New(uint64(nodeCount)))
	return a, spaceManager, store
}

func requireExtent(t *testing.T, re *allocator.ReservedExtent, start, length uint64) {
	t.Helper()
	require.Equal(t, start, re.Extent().Start())
	require.Equal(t, length, re.Extent().Length())
}

func TestBaseAllocatorReserveBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("ExactFit", func(t *testing.T) {
		// Requesting exactly the volume's size on an empty
		// bitmap must yield a single extent covering it.
		a, _, _ := newAllocator(ctrl, 10, 1)
		reserved, err := a.ReserveBlocks(10)
		require.NoError(t, err)
		require.Len(t, reserved, 1)
		requireExtent(t, reserved[0], 0, 10)
		require.Equal(t, uint64(10), a.ReservedBlockCount())

		for _, re := range reserved {
			re.Release()
		}
		require.Equal(t, uint64(0), a.ReservedBlockCount())
	})

	t.Run("FragmentationSplit", func(t *testing.T) {
		// Requests beyond the 16 bit extent length limit must
		// be split across multiple extents that sum exactly.
		a, _, _ := newAllocator(ctrl, 70000, 1)
		reserved, err := a.ReserveBlocks(65546)
		require.NoError(t, err)
		require.Len(t, reserved, 2)
		requireExtent(t, reserved[0], 0, 65535)
		requireExtent(t, reserved[1], 65535, 11)
	})

	t.Run("NoSpaceWithoutGrowth", func(t *testing.T) {
		// When growth fails, the partial reservation obtained
		// so far must be rolled back in full.
		a, spaceManager, _ := newAllocator(ctrl, 10, 1)
		spaceManager.EXPECT().AddBlocks(uint64(1)).Return(
			uint64(0), status.Error(codes.ResourceExhausted, "Volume manager has no free slices"))

		_, err := a.ReserveBlocks(11)
		require.Equal(t, codes.ResourceExhausted, status.Code(err))
		require.Equal(t, uint64(0), a.ReservedBlockCount())
		require.Equal(t, uint64(10), a.BlockCount())

		// The rolled back blocks must be reservable again.
		reserved, err := a.ReserveBlocks(10)
		require.NoError(t, err)
		requireExtent(t, reserved[0], 0, 10)
	})

	t.Run("GrowthSucceeds", func(t *testing.T) {
		a, spaceManager, _ := newAllocator(ctrl, 10, 1)
		spaceManager.EXPECT().AddBlocks(uint64(1)).Return(uint64(11), nil)

		reserved, err := a.ReserveBlocks(11)
		require.NoError(t, err)
		require.Len(t, reserved, 2)
		requireExtent(t, reserved[0], 0, 10)
		requireExtent(t, reserved[1], 10, 1)
		require.Equal(t, uint64(11), a.BlockCount())
		require.Equal(t, uint64(11), a.ReservedBlockCount())
	})

	t.Run("SkipsReservedRanges", func(t *testing.T) {
		// Blocks freed by an uncommitted delete stay pinned by
		// the reservation returned from FreeBlocks(). A
		// concurrent reservation must be clipped around them,
		// and may only find them once the handle is dropped.
		a, _, _ := newAllocator(ctrl, 30, 1)
		a.MarkBlocksAllocated(format.NewExtent(10, 10))
		pinned := a.FreeBlocks(format.NewExtent(10, 10))

		reserved, err := a.ReserveBlocks(15)
		require.NoError(t, err)
		require.Len(t, reserved, 2)
		requireExtent(t, reserved[0], 0, 10)
		requireExtent(t, reserved[1], 20, 5)

		pinned.Release()
		reserved, err = a.ReserveBlocks(10)
		require.NoError(t, err)
		require.Len(t, reserved, 1)
		requireExtent(t, reserved[0], 10, 10)
	})
}

func TestBaseAllocatorMarkBlocksAllocated(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, _, _ := newAllocator(ctrl, 20, 1)

	reserved, err := a.ReserveBlocks(5)
	require.NoError(t, err)
	extent := reserved[0].Extent()

	allocated, _ := a.CheckBlocksAllocated(extent.Start(), extent.End())
	require.False(t, allocated)

	a.MarkBlocksAllocated(extent)
	allocated, _ = a.CheckBlocksAllocated(extent.Start(), extent.End())
	require.True(t, allocated)

	// The reservation outlives the allocation; dropping it must
	// not return the blocks to the free pool.
	reserved[0].Release()
	isAllocated, err := a.IsBlockAllocated(0)
	require.NoError(t, err)
	require.True(t, isAllocated)

	_, err = a.IsBlockAllocated(25)
	require.Equal(t, status.Error(codes.OutOfRange, "Block index 25 lies outside the volume of 20 blocks"), err)

	// Allocating the same range twice indicates corruption.
	require.Panics(t, func() { a.MarkBlocksAllocated(extent) })
}

func TestBaseAllocatorFreeBlocks(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("Conservation", func(t *testing.T) {
		// After all reservations are dropped and all blocks
		// freed, the bitmap must be empty again.
		a, _, _ := newAllocator(ctrl, 100, 1)
		reserved, err := a.ReserveBlocks(80)
		require.NoError(t, err)
		for _, re := range reserved {
			a.MarkBlocksAllocated(re.Extent())
			re.Release()
		}
		require.Equal(t, uint64(0), a.ReservedBlockCount())
		require.Equal(t, []allocator.BlockRegion{{Offset: 0, Length: 80}}, a.GetAllocatedRegions())

		pinned := a.FreeBlocks(format.NewExtent(0, 80))
		require.Empty(t, a.GetAllocatedRegions())
		require.Equal(t, uint64(80), a.ReservedBlockCount())
		pinned.Release()
		require.Equal(t, uint64(0), a.ReservedBlockCount())
	})

	t.Run("DoubleFree", func(t *testing.T) {
		a, _, _ := newAllocator(ctrl, 10, 1)
		a.MarkBlocksAllocated(format.NewExtent(0, 5))
		pinned := a.FreeBlocks(format.NewExtent(0, 5))
		require.Panics(t, func() { a.FreeBlocks(format.NewExtent(0, 5)) })
		pinned.Release()
	})
}

func TestBaseAllocatorGetAllocatedRegions(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, _, _ := newAllocator(ctrl, 20, 1)

	// Bitmap pattern 11110000111110000111.
	a.MarkBlocksAllocated(format.NewExtent(0, 4))
	a.MarkBlocksAllocated(format.NewExtent(8, 5))
	a.MarkBlocksAllocated(format.NewExtent(17, 3))
	require.Equal(t, []allocator.BlockRegion{
		{Offset: 0, Length: 4},
		{Offset: 8, Length: 5},
		{Offset: 17, Length: 3},
	}, a.GetAllocatedRegions())
}

func TestBaseAllocatorReserveNode(t *testing.T) {
	ctrl := gomock.NewController(t)

	t.Run("ExhaustionWithoutGrowth", func(t *testing.T) {
		a, spaceManager, _ := newAllocator(ctrl, 10, 3)
		for i := uint32(0); i < 3; i++ {
			node, err := a.ReserveNode()
			require.NoError(t, err)
			require.Equal(t, i, node.Index())
			require.NoError(t, a.MarkInodeAllocated(node))
		}

		spaceManager.EXPECT().AddNodes().Return(
			uint64(0), status.Error(codes.ResourceExhausted, "Volume manager has no free slices"))
		_, err := a.ReserveNode()
		require.Equal(t, codes.ResourceExhausted, status.Code(err))
		require.Equal(t, uint64(0), a.ReservedNodeCount())
	})

	t.Run("Growth", func(t *testing.T) {
		a, spaceManager, store := newAllocator(ctrl, 10, 3)
		reserved, err := a.ReserveNodes(3)
		require.NoError(t, err)

		// The space manager grows the node store; the
		// allocator resizes only its own bitmap.
		spaceManager.EXPECT().AddNodes().DoAndReturn(func() (uint64, error) {
			require.NoError(t, store.Grow(4))
			return 4, nil
		})
		node, err := a.ReserveNode()
		require.NoError(t, err)
		require.Equal(t, uint32(3), node.Index())
		require.Equal(t, uint64(4), a.NodeCount())
		require.Equal(t, uint64(4), a.ReservedNodeCount())

		node.Release()
		for _, rn := range reserved {
			rn.Release()
		}
		require.Equal(t, uint64(0), a.ReservedNodeCount())
	})
}

func TestBaseAllocatorReserveNodes(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, spaceManager, _ := newAllocator(ctrl, 10, 3)

	// All or nothing: when the fourth node cannot be obtained, the
	// first three must be returned to the free pool.
	spaceManager.EXPECT().AddNodes().Return(
		uint64(0), status.Error(codes.ResourceExhausted, "Volume manager has no free slices"))
	_, err := a.ReserveNodes(4)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
	require.Equal(t, uint64(0), a.ReservedNodeCount())

	reserved, err := a.ReserveNodes(3)
	require.NoError(t, err)
	require.Len(t, reserved, 3)
	require.Equal(t, uint64(3), a.ReservedNodeCount())
}

func TestBaseAllocatorMarkInodeAllocated(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, _, store := newAllocator(ctrl, 10, 4)

	node, err := a.ReserveNode()
	require.NoError(t, err)
	index := node.Index()
	require.Equal(t, uint64(1), a.ReservedNodeCount())

	require.NoError(t, a.MarkInodeAllocated(node))
	require.Equal(t, uint64(0), a.ReservedNodeCount())

	view, err := store.GetNode(index)
	require.NoError(t, err)
	prelude := view.Node().Prelude
	require.NoError(t, view.Close())
	require.True(t, prelude.IsAllocated())
	require.True(t, prelude.IsInode())
	require.Equal(t, uint16(format.NodeVersion), prelude.Version)
	require.Equal(t, uint32(format.InvalidNodeIndex), prelude.NextNode)

	// The handle was consumed; releasing it must not unreserve the
	// node, and its index is no longer accessible.
	node.Release()
	require.Panics(t, func() { node.Index() })

	// Marking a node that is already allocated on disk indicates
	// corruption.
	next, err := a.ReserveNode()
	require.NoError(t, err)
	view, err = store.GetNode(next.Index())
	require.NoError(t, err)
	view.Node().Prelude.Flags = format.FlagAllocated
	require.NoError(t, view.Close())
	require.Panics(t, func() { a.MarkInodeAllocated(next) })
}

func TestBaseAllocatorMarkContainerNodeAllocated(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, _, store := newAllocator(ctrl, 10, 4)

	reserved, err := a.ReserveNodes(2)
	require.NoError(t, err)
	inode, container := reserved[0], reserved[1]
	inodeIndex, containerIndex := inode.Index(), container.Index()
	require.NoError(t, a.MarkInodeAllocated(inode))

	// An unresolvable previous node must fail without consuming
	// the reservation.
	err = a.MarkContainerNodeAllocated(container, 99)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
	require.Equal(t, uint64(1), a.ReservedNodeCount())

	require.NoError(t, a.MarkContainerNodeAllocated(container, inodeIndex))
	require.Equal(t, uint64(0), a.ReservedNodeCount())

	view, err := store.GetNode(inodeIndex)
	require.NoError(t, err)
	require.Equal(t, containerIndex, view.Node().Prelude.NextNode)
	require.NoError(t, view.Close())

	view, err = store.GetNode(containerIndex)
	require.NoError(t, err)
	node := *view.Node()
	require.NoError(t, view.Close())
	require.True(t, node.Prelude.IsAllocated())
	require.True(t, node.Prelude.IsExtentContainer())
	require.Equal(t, inodeIndex, node.Container.PreviousNode)
	require.Equal(t, uint16(0), node.Container.ExtentCount)
}

func TestBaseAllocatorFreeNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	a, _, store := newAllocator(ctrl, 10, 2)

	node, err := a.ReserveNode()
	require.NoError(t, err)
	index := node.Index()
	require.NoError(t, a.MarkInodeAllocated(node))

	require.NoError(t, a.FreeNode(index))
	view, err := store.GetNode(index)
	require.NoError(t, err)
	require.False(t, view.Node().Prelude.IsAllocated())
	require.NoError(t, view.Close())

	// The slot must be handed out again by the next reservation.
	node, err = a.ReserveNode()
	require.NoError(t, err)
	require.Equal(t, index, node.Index())
	node.Release()

	// Freeing a node that is not allocated indicates corruption,
	// and freeing outside the node map is an ordinary error.
	require.Panics(t, func() { a.FreeNode(index) })
	err = a.FreeNode(17)
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}
