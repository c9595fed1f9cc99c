package allocator

import (
	"sync"

	"github.com/buildbarn/bb-blobfs/pkg/format"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	allocatorPrometheusMetrics sync.Once

	allocatorBlocksReserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_blocks_reserved_total",
			Help:      "Number of data blocks handed out as reservations.",
		})
	allocatorBlocksAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_blocks_allocated_total",
			Help:      "Number of data blocks durably marked allocated.",
		})
	allocatorBlocksFreed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_blocks_freed_total",
			Help:      "Number of data blocks freed.",
		})
	allocatorReservationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_reservation_failures_total",
			Help:      "Number of block or node reservation requests that failed, even after attempting to grow the volume.",
		})
	allocatorNodesReserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_nodes_reserved_total",
			Help:      "Number of metadata nodes handed out as reservations.",
		})
	allocatorNodesAllocated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_nodes_allocated_total",
			Help:      "Number of metadata nodes durably marked allocated, counting both inodes and extent containers.",
		})
	allocatorNodesFreed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "buildbarn",
			Subsystem: "blobfs",
			Name:      "allocator_nodes_freed_total",
			Help:      "Number of metadata nodes freed.",
		})
)

type metricsAllocator struct {
	Allocator
}

// NewMetricsAllocator creates a decorator for Allocator that exposes
// Prometheus metrics on how many blocks and nodes are reserved,
// allocated and freed.
func NewMetricsAllocator(base Allocator) Allocator {
	allocatorPrometheusMetrics.Do(func() {
		prometheus.MustRegister(allocatorBlocksReserved)
		prometheus.MustRegister(allocatorBlocksAllocated)
		prometheus.MustRegister(allocatorBlocksFreed)
		prometheus.MustRegister(allocatorReservationFailures)
		prometheus.MustRegister(allocatorNodesReserved)
		prometheus.MustRegister(allocatorNodesAllocated)
		prometheus.MustRegister(allocatorNodesFreed)
	})

	return &metricsAllocator{
		Allocator: base,
	}
}

func (a *metricsAllocator) ReserveBlocks(blockCount uint64) ([]*ReservedExtent, error) {
	reserved, err := a.Allocator.ReserveBlocks(blockCount)
	if err != nil {
		allocatorReservationFailures.Inc()
		return nil, err
	}
	allocatorBlocksReserved.Add(float64(blockCount))
	return reserved, nil
}

func (a *metricsAllocator) MarkBlocksAllocated(extent format.Extent) {
	a.Allocator.MarkBlocksAllocated(extent)
	allocatorBlocksAllocated.Add(float64(extent.Length()))
}

func (a *metricsAllocator) FreeBlocks(extent format.Extent) *ReservedExtent {
	reserved := a.Allocator.FreeBlocks(extent)
	allocatorBlocksFreed.Add(float64(extent.Length()))
	return reserved
}

func (a *metricsAllocator) ReserveNode() (*ReservedNode, error) {
	node, err := a.Allocator.ReserveNode()
	if err != nil {
		allocatorReservationFailures.Inc()
		return nil, err
	}
	allocatorNodesReserved.Inc()
	return node, nil
}

func (a *metricsAllocator) ReserveNodes(nodeCount int) ([]*ReservedNode, error) {
	reserved, err := a.Allocator.ReserveNodes(nodeCount)
	if err != nil {
		allocatorReservationFailures.Inc()
		return nil, err
	}
	allocatorNodesReserved.Add(float64(nodeCount))
	return reserved, nil
}

func (a *metricsAllocator) MarkInodeAllocated(node *ReservedNode) error {
	if err := a.Allocator.MarkInodeAllocated(node); err != nil {
		return err
	}
	allocatorNodesAllocated.Inc()
	return nil
}

func (a *metricsAllocator) MarkContainerNodeAllocated(node *ReservedNode, previousNode uint32) error {
	if err := a.Allocator.MarkContainerNodeAllocated(node, previousNode); err != nil {
		return err
	}
	allocatorNodesAllocated.Inc()
	return nil
}

func (a *metricsAllocator) FreeNode(nodeIndex uint32) error {
	if err := a.Allocator.FreeNode(nodeIndex); err != nil {
		return err
	}
	allocatorNodesFreed.Inc()
	return nil
}
