package format

import (
	"encoding/binary"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Byte offsets of the fields within a 64-byte node record. All fields
// are little endian. The prelude occupies the first eight bytes; the
// remaining 56 bytes belong to the active variant.
const (
	preludeFlagsOffset    = 0
	preludeVersionOffset  = 2
	preludeNextNodeOffset = 4

	inodeMerkleRootOffset   = 8
	inodeBlobSizeOffset     = 40
	inodeInlineExtentOffset = 48
	inodeBlockCountOffset   = 56
	inodeExtentCountOffset  = 60

	containerPreviousNodeOffset = 8
	containerExtentCountOffset  = 12
	containerExtentsOffset      = 16
)

// NodeVersion is the format version stamped into newly allocated
// nodes.
const NodeVersion = 1

// MarshalNode serializes a node into a 64-byte record, appending it to
// dst. Which variant is written is selected by the prelude's flags.
func MarshalNode(dst []byte, n *Node) []byte {
	var record [NodeSize]byte
	binary.LittleEndian.PutUint16(record[preludeFlagsOffset:], uint16(n.Prelude.Flags))
	binary.LittleEndian.PutUint16(record[preludeVersionOffset:], n.Prelude.Version)
	binary.LittleEndian.PutUint32(record[preludeNextNodeOffset:], n.Prelude.NextNode)
	if n.Prelude.IsExtentContainer() {
		binary.LittleEndian.PutUint32(record[containerPreviousNodeOffset:], n.Container.PreviousNode)
		binary.LittleEndian.PutUint16(record[containerExtentCountOffset:], n.Container.ExtentCount)
		for i, extent := range n.Container.Extents {
			binary.LittleEndian.PutUint64(record[containerExtentsOffset+8*i:], uint64(extent))
		}
	} else {
		copy(record[inodeMerkleRootOffset:], n.Inode.MerkleRoot[:])
		binary.LittleEndian.PutUint64(record[inodeBlobSizeOffset:], n.Inode.BlobSize)
		binary.LittleEndian.PutUint64(record[inodeInlineExtentOffset:], uint64(n.Inode.InlineExtent))
		binary.LittleEndian.PutUint32(record[inodeBlockCountOffset:], n.Inode.BlockCount)
		binary.LittleEndian.PutUint16(record[inodeExtentCountOffset:], n.Inode.ExtentCount)
	}
	return append(dst, record[:]...)
}

// UnmarshalNode deserializes a 64-byte record into a node. As node
// records are read back from storage, malformed input is reported as
// an error instead of being treated as a programming mistake.
func UnmarshalNode(src []byte, n *Node) error {
	if len(src) != NodeSize {
		return status.Errorf(codes.InvalidArgument, "Node record is %d bytes in size, while %d bytes were expected", len(src), NodeSize)
	}
	*n = Node{
		Prelude: NodePrelude{
			Flags:    NodeFlags(binary.LittleEndian.Uint16(src[preludeFlagsOffset:])),
			Version:  binary.LittleEndian.Uint16(src[preludeVersionOffset:]),
			NextNode: binary.LittleEndian.Uint32(src[preludeNextNodeOffset:]),
		},
	}
	if n.Prelude.IsExtentContainer() {
		n.Container.PreviousNode = binary.LittleEndian.Uint32(src[containerPreviousNodeOffset:])
		n.Container.ExtentCount = binary.LittleEndian.Uint16(src[containerExtentCountOffset:])
		for i := range n.Container.Extents {
			n.Container.Extents[i] = Extent(binary.LittleEndian.Uint64(src[containerExtentsOffset+8*i:]))
		}
	} else {
		copy(n.Inode.MerkleRoot[:], src[inodeMerkleRootOffset:])
		n.Inode.BlobSize = binary.LittleEndian.Uint64(src[inodeBlobSizeOffset:])
		n.Inode.InlineExtent = Extent(binary.LittleEndian.Uint64(src[inodeInlineExtentOffset:]))
		n.Inode.BlockCount = binary.LittleEndian.Uint32(src[inodeBlockCountOffset:])
		n.Inode.ExtentCount = binary.LittleEndian.Uint16(src[inodeExtentCountOffset:])
	}
	return nil
}
