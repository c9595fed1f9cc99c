package allocator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/buildbarn/bb-blobfs/pkg/format"
)

// ExtentReserver tracks the set of block ranges that are provisionally
// claimed by in flight operations, but not yet marked allocated in the
// block bitmap. Ranges in the set never overlap.
//
// ExtentReserver has its own lock, so that ReservedExtent handles can
// be released without holding the allocator's lock. The allocator
// consults the reserver while scanning for free space, making the
// combined state of {bitmap, reserved set} consistent under the
// allocator's lock.
type ExtentReserver struct {
	lock sync.Mutex
	// Reserved ranges, sorted by start and pairwise disjoint.
	ranges []blockRange
}

type blockRange struct {
	start uint64
	end   uint64
}

// rangeIndex returns the position of the first reserved range whose
// end lies beyond start.
func (r *ExtentReserver) rangeIndex(start uint64) int {
	return sort.Search(len(r.ranges), func(i int) bool {
		return r.ranges[i].end > start
	})
}

// Reserve inserts the extent's range into the reserved set and returns
// a handle owning it. The range must not overlap any existing
// reservation; the allocator guarantees this by construction, so a
// collision indicates a bug.
func (r *ExtentReserver) Reserve(extent format.Extent) *ReservedExtent {
	start, end := extent.Start(), extent.End()

	r.lock.Lock()
	defer r.lock.Unlock()

	i := r.rangeIndex(start)
	if i < len(r.ranges) && r.ranges[i].start < end {
		panic(fmt.Sprintf("Attempted to reserve blocks %v, which overlap reserved blocks [%d, %d)", extent, r.ranges[i].start, r.ranges[i].end))
	}
	r.ranges = append(r.ranges, blockRange{})
	copy(r.ranges[i+1:], r.ranges[i:])
	r.ranges[i] = blockRange{start: start, end: end}
	return &ReservedExtent{
		reserver: r,
		extent:   extent,
	}
}

// FirstReservationIn returns the bounds of the lowest reserved range
// overlapping [start, end), if any. The allocator uses this to clip
// candidate free runs against in flight reservations.
func (r *ExtentReserver) FirstReservationIn(start, end uint64) (uint64, uint64, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if i := r.rangeIndex(start); i < len(r.ranges) && r.ranges[i].start < end {
		return r.ranges[i].start, r.ranges[i].end, true
	}
	return 0, 0, false
}

// ReservedBlockCount returns the total number of blocks in the
// reserved set.
func (r *ExtentReserver) ReservedBlockCount() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()

	count := uint64(0)
	for _, br := range r.ranges {
		count += br.end - br.start
	}
	return count
}

// unreserve removes the exact range [start, end) from the reserved
// set. Called by ReservedExtent.Release().
func (r *ExtentReserver) unreserve(start, end uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	i := r.rangeIndex(start)
	if i >= len(r.ranges) || r.ranges[i].start != start || r.ranges[i].end != end {
		panic(fmt.Sprintf("Attempted to release reserved blocks [%d, %d), which are not present in the reserved set", start, end))
	}
	r.ranges = append(r.ranges[:i], r.ranges[i+1:]...)
}

// split replaces the range [start, end) by [start, mid) and [mid,
// end). Called by ReservedExtent.SplitAt().
func (r *ExtentReserver) split(start, mid, end uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	i := r.rangeIndex(start)
	if i >= len(r.ranges) || r.ranges[i].start != start || r.ranges[i].end != end {
		panic(fmt.Sprintf("Attempted to split reserved blocks [%d, %d), which are not present in the reserved set", start, end))
	}
	r.ranges[i].end = mid
	r.ranges = append(r.ranges, blockRange{})
	copy(r.ranges[i+2:], r.ranges[i+1:])
	r.ranges[i+1] = blockRange{start: mid, end: end}
}

// ReservedExtent is an exclusively owned handle on one reserved block
// range. Releasing the handle returns the range to the free pool; a
// handle that has been released (or emptied by SplitAt) is inert.
type ReservedExtent struct {
	reserver *ExtentReserver
	extent   format.Extent
}

// Extent returns the block range held by the handle.
func (re *ReservedExtent) Extent() format.Extent {
	if re.reserver == nil {
		panic("Attempted to access a reserved extent that has already been released")
	}
	return re.extent
}

// SplitAt shortens the handle to its first blockCount blocks and
// returns a new handle owning the remainder.
func (re *ReservedExtent) SplitAt(blockCount uint64) *ReservedExtent {
	extent := re.Extent()
	if blockCount == 0 || blockCount >= extent.Length() {
		panic(fmt.Sprintf("Attempted to split reserved extent %v at block count %d", extent, blockCount))
	}
	re.reserver.split(extent.Start(), extent.Start()+blockCount, extent.End())
	re.extent = format.NewExtent(extent.Start(), blockCount)
	return &ReservedExtent{
		reserver: re.reserver,
		extent:   format.NewExtent(extent.Start()+blockCount, extent.Length()-blockCount),
	}
}

// Release drops the reservation, permitting the blocks to be handed
// out again. Calling Release multiple times is permitted.
func (re *ReservedExtent) Release() {
	if re.reserver != nil {
		re.reserver.unreserve(re.extent.Start(), re.extent.End())
		re.reserver = nil
	}
}
