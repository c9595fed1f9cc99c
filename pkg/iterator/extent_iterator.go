// Package iterator produces the ordered sequence of extents belonging
// to a blob, either by walking its committed node chain or by walking
// an in memory list of reservations that has not been committed yet.
package iterator

import (
	"github.com/buildbarn/bb-blobfs/pkg/format"
)

// ExtentIterator yields the extents of a blob in order. Next() may
// only be called while Done() returns false; iterating past the end is
// a bug in the caller.
type ExtentIterator interface {
	// Done returns whether all extents have been yielded.
	Done() bool
	// Next yields the next extent. Walks over on disk state may
	// fail with a data integrity error when the chain of nodes
	// backing the blob is corrupted.
	Next() (format.Extent, error)
	// BlockIndex returns the number of blocks covered by the
	// extents yielded so far.
	BlockIndex() uint64
	// ExtentIndex returns the number of extents yielded so far.
	ExtentIndex() uint64
}
