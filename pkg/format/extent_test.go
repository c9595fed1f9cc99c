package format_test

import (
	"testing"

	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/stretchr/testify/require"
)

func TestExtentPacking(t *testing.T) {
	// The start offset and length must survive packing into the
	// 48/16 bit split, including at the extremes of both fields.
	extent := format.NewExtent(0, 1)
	require.Equal(t, uint64(0), extent.Start())
	require.Equal(t, uint64(1), extent.Length())
	require.Equal(t, uint64(1), extent.End())

	extent = format.NewExtent(1<<48-1, format.ExtentBlockCountMax)
	require.Equal(t, uint64(1<<48-1), extent.Start())
	require.Equal(t, uint64(format.ExtentBlockCountMax), extent.Length())

	extent = format.NewExtent(123456789, 4321)
	require.Equal(t, uint64(123456789), extent.Start())
	require.Equal(t, uint64(4321), extent.Length())
	require.Equal(t, uint64(123461110), extent.End())
	require.Equal(t, "[123456789, 123461110)", extent.String())

	require.Panics(t, func() { format.NewExtent(1<<48, 1) })
	require.Panics(t, func() { format.NewExtent(0, format.ExtentBlockCountMax+1) })
}
