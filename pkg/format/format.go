package format

const (
	// BlockSize is the size in bytes of a single data block. Blob
	// payloads and the allocation bitmaps are stored in units of
	// this size.
	BlockSize = 8192

	// NodeSize is the size in bytes of a single metadata node
	// record in the node map. Node records are packed back to back,
	// so BlockSize/NodeSize records fit in one block.
	NodeSize = 64

	// MerkleRootSize is the size in bytes of the Merkle tree root
	// hash that identifies a blob.
	MerkleRootSize = 32

	// InodeExtentCount is the number of extent slots stored inline
	// in an inode. Blobs with more extents chain one or more extent
	// containers behind the inode.
	InodeExtentCount = 1

	// ContainerExtentCount is the number of extent slots stored in
	// a single extent container node.
	ContainerExtentCount = 6

	// ExtentBlockCountMax is the largest number of blocks a single
	// extent can describe, as its length field is only 16 bits
	// wide. Larger allocations are split across multiple extents.
	ExtentBlockCountMax = 65535

	// InvalidNodeIndex is the sentinel stored in a node's next node
	// field when no successor exists. Following it is a bug, so the
	// value is intentionally out of range for any real node map.
	InvalidNodeIndex = ^uint32(0)
)

// NodeFlags describes the state of a metadata node, as stored in its
// prelude.
type NodeFlags uint16

const (
	// FlagAllocated is set on nodes that are in use by a committed
	// blob. Nodes that are merely reserved have their bitmap bit
	// set, but not this flag.
	FlagAllocated NodeFlags = 1 << 0

	// FlagExtentContainer is set on nodes that hold overflow
	// extents for some inode, as opposed to being an inode
	// themselves.
	FlagExtentContainer NodeFlags = 1 << 1
)

// NodePrelude is the header shared by all node records, regardless of
// whether they are an inode or an extent container.
type NodePrelude struct {
	Flags    NodeFlags
	Version  uint16
	NextNode uint32
}

// IsAllocated returns whether the node is in use by a committed blob.
func (p *NodePrelude) IsAllocated() bool {
	return p.Flags&FlagAllocated != 0
}

// IsExtentContainer returns whether the node holds overflow extents.
func (p *NodePrelude) IsExtentContainer() bool {
	return p.Flags&FlagExtentContainer != 0
}

// IsInode returns whether the node is the header record of a blob.
func (p *NodePrelude) IsInode() bool {
	return !p.IsExtentContainer()
}

// Inode is the variant of a node that forms the header record of a
// single blob. It holds the blob's identity and sizes, and the first
// extent of its data. ExtentCount is the total number of extents of
// the blob across the inode and all chained containers.
type Inode struct {
	MerkleRoot   [MerkleRootSize]byte
	BlobSize     uint64
	InlineExtent Extent
	BlockCount   uint32
	ExtentCount  uint16
}

// ExtentContainer is the variant of a node that stores extents beyond
// the inode's single inline slot. PreviousNode points back at the node
// whose NextNode field references this container.
type ExtentContainer struct {
	PreviousNode uint32
	ExtentCount  uint16
	Extents      [ContainerExtentCount]Extent
}

// Node is a single fixed-size metadata record in the node map: a
// prelude followed by either an inode or an extent container, selected
// by FlagExtentContainer. Unallocated records decode as a zeroed
// inode.
type Node struct {
	Prelude   NodePrelude
	Inode     Inode
	Container ExtentContainer
}
