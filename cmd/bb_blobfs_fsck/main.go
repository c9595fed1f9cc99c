package main

import (
	"fmt"
	"os"

	"github.com/buildbarn/bb-blobfs/pkg/bitmap"
	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-blobfs/pkg/iterator"
	"github.com/buildbarn/bb-blobfs/pkg/nodestore"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spf13/pflag"
)

// bb_blobfs_fsck performs an offline consistency check of a volume's
// node map: it validates the node chain of every allocated inode,
// rebuilds the block allocation picture from the extents it finds, and
// prints a fragmentation report of the result. It never modifies the
// image.

var (
	imagePath       = pflag.String("image", "", "Path to the volume image to inspect")
	nodeOffsetBytes = pflag.Int64("node-offset-bytes", 0, "Byte offset of the node map within the image")
	nodeCount       = pflag.Uint32("node-count", 0, "Number of node slots in the node map")
	blockCount      = pflag.Uint64("block-count", 0, "Number of data blocks in the volume")
)

func main() {
	pflag.Parse()
	if err := check(); err != nil {
		fmt.Fprintln(os.Stderr, "bb_blobfs_fsck:", err)
		os.Exit(1)
	}
}

func check() error {
	if *imagePath == "" || *nodeCount == 0 || *blockCount == 0 {
		return status.Error(codes.InvalidArgument, "Usage: bb_blobfs_fsck --image path --node-count n --block-count n [--node-offset-bytes n]")
	}
	image, err := os.Open(*imagePath)
	if err != nil {
		return util.StatusWrapf(err, "Failed to open image %s", *imagePath)
	}
	defer image.Close()
	store := nodestore.NewBlockDeviceBackedNodeStore(image, *nodeOffsetBytes, *nodeCount, *nodeCount)

	// Rebuild the block allocation state from the node map. Every
	// block must be covered by at most one extent.
	blocks := bitmap.New(*blockCount)
	inodes, containers, corrupted := 0, 0, 0
	for index := uint32(0); index < *nodeCount; index++ {
		view, err := store.GetNode(index)
		if err != nil {
			return util.StatusWrapf(err, "Failed to read node %d", index)
		}
		prelude := view.Node().Prelude
		if err := view.Close(); err != nil {
			return util.StatusWrapf(err, "Failed to release node %d", index)
		}
		if !prelude.IsAllocated() {
			continue
		}
		if prelude.IsExtentContainer() {
			containers++
			continue
		}
		inodes++

		if err := iterator.VerifyIteration(store, index); err != nil {
			fmt.Printf("inode %d: corrupted node chain: %v\n", index, err)
			corrupted++
			continue
		}
		it, err := iterator.NewAllocatedExtentIterator(store, index)
		if err != nil {
			return util.StatusWrapf(err, "Failed to iterate extents of inode %d", index)
		}
		for !it.Done() {
			extent, err := it.Next()
			if err != nil {
				fmt.Printf("inode %d: corrupted extent list: %v\n", index, err)
				corrupted++
				break
			}
			if extent.End() > *blockCount {
				fmt.Printf("inode %d: extent %v lies outside the volume of %d blocks\n", index, extent, *blockCount)
				corrupted++
				break
			}
			if allClear, firstSet := blocks.AllClear(extent.Start(), extent.End()); !allClear {
				fmt.Printf("inode %d: extent %v overlaps another blob at block %d\n", index, extent, firstSet)
				corrupted++
				break
			}
			blocks.SetRange(extent.Start(), extent.End())
		}
	}

	// These are the counter values a correct superblock would
	// carry for this image.
	counters := format.SuperblockCounters{
		DataBlockCount:  *blockCount,
		InodeCount:      uint64(*nodeCount),
		AllocBlockCount: blocks.CountSet(),
		AllocInodeCount: uint64(inodes + containers),
	}
	if err := counters.Validate(); err != nil {
		return util.StatusWrap(err, "Reconstructed allocation state is inconsistent")
	}

	regions := blocks.Runs()
	fmt.Printf("inodes: %d, extent containers: %d, corrupted blobs: %d\n", inodes, containers, corrupted)
	fmt.Printf("allocated blocks: %d of %d, in %d regions\n", counters.AllocBlockCount, counters.DataBlockCount, len(regions))
	for _, region := range regions {
		fmt.Printf("  [%d, %d)\n", region.Start, region.Start+region.Length)
	}
	if corrupted > 0 {
		return status.Errorf(codes.DataLoss, "Image contains %d corrupted blobs", corrupted)
	}
	return nil
}
