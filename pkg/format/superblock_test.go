package format_test

import (
	"testing"

	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/stretchr/testify/require"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestSuperblockCountersValidate(t *testing.T) {
	t.Run("Consistent", func(t *testing.T) {
		c := format.SuperblockCounters{
			DataBlockCount:  1024,
			InodeCount:      128,
			AllocBlockCount: 1024,
			AllocInodeCount: 0,
		}
		require.NoError(t, c.Validate())
	})

	t.Run("TooManyBlocks", func(t *testing.T) {
		c := format.SuperblockCounters{
			DataBlockCount:  1024,
			InodeCount:      128,
			AllocBlockCount: 1025,
		}
		require.Equal(
			t,
			status.Error(codes.InvalidArgument, "Superblock reports 1025 allocated blocks, which exceeds the volume's 1024 data blocks"),
			c.Validate())
	})

	t.Run("TooManyNodes", func(t *testing.T) {
		c := format.SuperblockCounters{
			DataBlockCount:  1024,
			InodeCount:      128,
			AllocInodeCount: 129,
		}
		require.Equal(
			t,
			status.Error(codes.InvalidArgument, "Superblock reports 129 allocated nodes, which exceeds the volume's 128 node slots"),
			c.Validate())
	})
}
