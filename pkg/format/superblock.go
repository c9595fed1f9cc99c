package format

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// SuperblockCounters holds the subset of superblock fields that must
// be kept in sync with the allocator after every transaction commit.
// The allocator itself never writes the superblock; the caller copies
// these values into its transactional write path.
type SuperblockCounters struct {
	// DataBlockCount is the total number of data blocks in the
	// volume, equal to the size of the block bitmap.
	DataBlockCount uint64
	// InodeCount is the total number of node map slots.
	InodeCount uint64
	// AllocBlockCount is the number of data blocks in use by
	// committed blobs.
	AllocBlockCount uint64
	// AllocInodeCount is the number of node map slots in use,
	// counting both inodes and extent containers.
	AllocInodeCount uint64
}

// Validate checks internal consistency of the counters. It is used
// when loading a superblock, before sizing the allocator's bitmaps
// from it.
func (c *SuperblockCounters) Validate() error {
	if c.AllocBlockCount > c.DataBlockCount {
		return status.Errorf(codes.InvalidArgument, "Superblock reports %d allocated blocks, which exceeds the volume's %d data blocks", c.AllocBlockCount, c.DataBlockCount)
	}
	if c.AllocInodeCount > c.InodeCount {
		return status.Errorf(codes.InvalidArgument, "Superblock reports %d allocated nodes, which exceeds the volume's %d node slots", c.AllocInodeCount, c.InodeCount)
	}
	return nil
}
