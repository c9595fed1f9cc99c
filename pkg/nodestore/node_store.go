// Package nodestore provides access to the node map: the region of a
// volume holding the fixed size metadata records (inodes and extent
// containers) of all blobs.
package nodestore

import (
	"github.com/buildbarn/bb-blobfs/pkg/format"
)

// NodeView is a scoped mutable view of a single node record, handed
// out by NodeStore.GetNode(). Mutations made through Node() become
// visible to the store when Close() is called. Every view must be
// closed, also on error paths.
type NodeView interface {
	Node() *format.Node
	Close() error
}

// NodeStore resolves node map indices to node records. The allocator
// and the iterators depend on this interface for all node access, but
// do not own the storage behind it.
//
// Implementations must allow multiple views to be open at the same
// time, as iteration follows chains from one node to the next. Grow()
// may wait for open views to be closed, but GetNode() must never block
// behind a pending Grow(), as callers hold views open across calls.
type NodeStore interface {
	GetNode(index uint32) (NodeView, error)
	NodeCount() uint32
	Grow(nodeCount uint32) error
}
