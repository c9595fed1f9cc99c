package nodestore_test

import (
	"testing"

	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestInMemoryNodeStore(t *testing.T) {
	store := nodestore.NewInMemoryNodeStore(3)
	require.Equal(t, uint32(3), store.NodeCount())

	// Mutations made through a view must be visible to later ones.
	view, err := store.GetNode(1)
	require.NoError(t, err)
	view.Node().Prelude.Flags = format.FlagAllocated
	view.Node().Inode.ExtentCount = 4
	require.NoError(t, view.Close())

	view, err = store.GetNode(1)
	require.NoError(t, err)
	require.True(t, view.Node().Prelude.IsAllocated())
	require.Equal(t, uint16(4), view.Node().Inode.ExtentCount)
	require.NoError(t, view.Close())

	_, err = store.GetNode(3)
	require.Equal(t, status.Error(codes.InvalidArgument, "Node index 3 lies outside the node map of size 3"), err)

	// Growth preserves existing records and zeroes new ones.
	require.NoError(t, store.Grow(5))
	require.Equal(t, uint32(5), store.NodeCount())
	view, err = store.GetNode(4)
	require.NoError(t, err)
	require.False(t, view.Node().Prelude.IsAllocated())
	require.NoError(t, view.Close())
	view, err = store.GetNode(1)
	require.NoError(t, err)
	require.True(t, view.Node().Prelude.IsAllocated())
	require.NoError(t, view.Close())

	err = store.Grow(2)
	require.Equal(t, status.Error(codes.InvalidArgument, "Cannot shrink the node map from 5 to 2 nodes"), err)
}

func TestInMemoryNodeStoreGrowWithOpenViews(t *testing.T) {
	store := nodestore.NewInMemoryNodeStore(4)

	// Growth must wait for open views without stalling readers:
	// allocating an extent container holds two views open at once,
	// so GetNode() may never block behind a pending Grow().
	view1, err := store.GetNode(0)
	require.NoError(t, err)
	view1.Node().Prelude.NextNode = 7

	grown := make(chan error, 1)
	go func() {
		grown <- store.Grow(8)
	}()

	view2, err := store.GetNode(1)
	require.NoError(t, err)
	require.NoError(t, view2.Close())
	require.NoError(t, view1.Close())

	require.NoError(t, <-grown)
	require.Equal(t, uint32(8), store.NodeCount())

	// The mutation made through the first view must have landed in
	// the grown array.
	view, err := store.GetNode(0)
	require.NoError(t, err)
	require.Equal(t, uint32(7), view.Node().Prelude.NextNode)
	require.NoError(t, view.Close())
}
