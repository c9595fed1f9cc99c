package nodestore

import (
	"sync"

	"github.com/buildbarn/bb-blobfs/pkg/format"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type inMemoryNodeStore struct {
	lock      sync.Mutex
	viewsIdle sync.Cond
	openViews int
	nodes     []format.Node
}

// NewInMemoryNodeStore creates a NodeStore backed by a flat in memory
// array. This backend is used by host side tooling that constructs or
// inspects volume images without mounting them, and by tests.
func NewInMemoryNodeStore(nodeCount uint32) NodeStore {
	ns := &inMemoryNodeStore{
		nodes: make([]format.Node, nodeCount),
	}
	ns.viewsIdle.L = &ns.lock
	return ns
}

func (ns *inMemoryNodeStore) GetNode(index uint32) (NodeView, error) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if index >= uint32(len(ns.nodes)) {
		return nil, status.Errorf(codes.InvalidArgument, "Node index %d lies outside the node map of size %d", index, len(ns.nodes))
	}
	ns.openViews++
	return &inMemoryNodeView{
		store: ns,
		node:  &ns.nodes[index],
	}, nil
}

func (ns *inMemoryNodeStore) NodeCount() uint32 {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	return uint32(len(ns.nodes))
}

func (ns *inMemoryNodeStore) Grow(nodeCount uint32) error {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if nodeCount < uint32(len(ns.nodes)) {
		return status.Errorf(codes.InvalidArgument, "Cannot shrink the node map from %d to %d nodes", len(ns.nodes), nodeCount)
	}

	// Growing may reallocate the backing array, which would leave
	// open views pointing into the old one. Wait for all views to
	// be closed first. Views opened in the meantime still point
	// into the current array, so they never block on a pending
	// grow; they merely extend the wait.
	for ns.openViews > 0 {
		ns.viewsIdle.Wait()
	}
	ns.nodes = append(ns.nodes, make([]format.Node, nodeCount-uint32(len(ns.nodes)))...)
	return nil
}

// inMemoryNodeView keeps the store's open view count raised until
// closed, so that Grow() cannot reallocate the backing array while the
// node pointer is live.
type inMemoryNodeView struct {
	store *inMemoryNodeStore
	node  *format.Node
}

func (nv *inMemoryNodeView) Node() *format.Node {
	return nv.node
}

func (nv *inMemoryNodeView) Close() error {
	ns := nv.store
	nv.store = nil
	nv.node = nil

	ns.lock.Lock()
	defer ns.lock.Unlock()
	ns.openViews--
	if ns.openViews == 0 {
		ns.viewsIdle.Broadcast()
	}
	return nil
}
