package nodestore

import (
	"sync"

	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/buildbarn/bb-storage/pkg/blockdevice"
	"github.com/buildbarn/bb-storage/pkg/util"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type blockDeviceBackedNodeStore struct {
	blockDevice blockdevice.BlockDevice
	offsetBytes int64
	maxCount    uint32

	lock  sync.Mutex
	count uint32
}

// NewBlockDeviceBackedNodeStore creates a NodeStore that reads and
// writes node records directly on a (typically memory mapped) block
// device, starting at the given byte offset within it. This is the
// backend used on a mounted volume, where the node map region is part
// of the device itself.
//
// maxNodeCount bounds growth to the part of the device set aside for
// the node map; growing the device is the space manager's concern, not
// this store's.
func NewBlockDeviceBackedNodeStore(blockDevice blockdevice.BlockDevice, offsetBytes int64, nodeCount, maxNodeCount uint32) NodeStore {
	return &blockDeviceBackedNodeStore{
		blockDevice: blockDevice,
		offsetBytes: offsetBytes,
		maxCount:    maxNodeCount,
		count:       nodeCount,
	}
}

func (ns *blockDeviceBackedNodeStore) GetNode(index uint32) (NodeView, error) {
	ns.lock.Lock()
	count := ns.count
	ns.lock.Unlock()
	if index >= count {
		return nil, status.Errorf(codes.InvalidArgument, "Node index %d lies outside the node map of size %d", index, count)
	}

	var record [format.NodeSize]byte
	offset := ns.offsetBytes + int64(index)*format.NodeSize
	if _, err := ns.blockDevice.ReadAt(record[:], offset); err != nil {
		return nil, util.StatusWrapf(err, "Failed to read node %d at offset %d", index, offset)
	}
	nv := &blockDeviceBackedNodeView{
		store:    ns,
		offset:   offset,
		index:    index,
		original: record,
	}
	if err := format.UnmarshalNode(record[:], &nv.node); err != nil {
		return nil, util.StatusWrapf(err, "Failed to decode node %d", index)
	}
	return nv, nil
}

func (ns *blockDeviceBackedNodeStore) NodeCount() uint32 {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	return ns.count
}

func (ns *blockDeviceBackedNodeStore) Grow(nodeCount uint32) error {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if nodeCount < ns.count {
		return status.Errorf(codes.InvalidArgument, "Cannot shrink the node map from %d to %d nodes", ns.count, nodeCount)
	}
	if nodeCount > ns.maxCount {
		return status.Errorf(codes.ResourceExhausted, "Node map of %d nodes does not fit in the %d slots present on the device", nodeCount, ns.maxCount)
	}

	// Zero the new records, so that stale device contents cannot
	// be misread as allocated nodes. This only touches slots past
	// the current count, which no open view can refer to, so
	// growing never has to wait for views to be closed.
	zero := make([]byte, format.NodeSize)
	for index := ns.count; index < nodeCount; index++ {
		offset := ns.offsetBytes + int64(index)*format.NodeSize
		if _, err := ns.blockDevice.WriteAt(zero, offset); err != nil {
			return util.StatusWrapf(err, "Failed to zero node %d at offset %d", index, offset)
		}
	}
	ns.count = nodeCount
	return nil
}

// blockDeviceBackedNodeView holds a decoded copy of the record and
// writes it back on Close(). The copy refers to a slot below the
// store's count at the time it was opened, so views take no lock and
// cannot conflict with Grow().
type blockDeviceBackedNodeView struct {
	store    *blockDeviceBackedNodeStore
	offset   int64
	index    uint32
	original [format.NodeSize]byte
	node     format.Node
}

func (nv *blockDeviceBackedNodeView) Node() *format.Node {
	return &nv.node
}

func (nv *blockDeviceBackedNodeView) Close() error {
	ns := nv.store
	nv.store = nil

	// Only write the record back if it was actually mutated, so
	// that iteration does not dirty the node map.
	record := format.MarshalNode(nil, &nv.node)
	if [format.NodeSize]byte(record) == nv.original {
		return nil
	}
	if _, err := ns.blockDevice.WriteAt(record, nv.offset); err != nil {
		return util.StatusWrapf(err, "Failed to write node %d at offset %d", nv.index, nv.offset)
	}
	return nil
}
