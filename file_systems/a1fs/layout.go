package a1fs

import (
	"encoding/binary"
	"fmt"
)

// All sizes are in bytes. Every multi-byte integer on disk is little-endian.
const (
	// BlockSize is the allocation and addressing granularity of the image.
	BlockSize = 4096

	// Magic identifies an A1FS superblock. Changing it is a format break.
	Magic = uint32(0xA1F5D15C)

	// SuperblockBlock is the block holding the superblock. Block 0 is
	// reserved and kept zero.
	SuperblockBlock = 1

	// BitmapStartBlock is the first block of the data bitmap.
	BitmapStartBlock = 2

	InodeSize      = 128
	InodesPerBlock = BlockSize / InodeSize

	ExtentSize      = 8
	ExtentsPerBlock = BlockSize / ExtentSize

	// NumDirectExtents is how many extents fit in the inode record itself.
	// Extents past that spill into the indirect block.
	NumDirectExtents = 10

	// MaxExtents bounds the total extent count of a single inode.
	MaxExtents = 512

	DentrySize       = 256
	DentryNameSize   = DentrySize - 4
	DentriesPerBlock = BlockSize / DentrySize

	// MaxNameLength is the longest directory entry name: the name field less
	// its NUL terminator.
	MaxNameLength = DentryNameSize - 1

	// MaxPathLength bounds the byte length of any path handed to the driver.
	MaxPathLength = 4096
)

// Extent is a contiguous run of blocks in the data region.
type Extent struct {
	// Start is the first data-region block of the run.
	Start uint32
	// Count is the length of the run in blocks. Always >= 1 on disk.
	Count uint32
}

// Superblock is the header stored in block 1. The counters are authoritative:
// the driver loads them at mount time and writes them back after every
// mutating operation.
type Superblock struct {
	Magic uint32
	// Size is the size of the whole image in bytes.
	Size uint64
	// NumInodes and FreeInodes count inode table slots. A slot is free iff
	// its link count is zero.
	NumInodes  uint32
	FreeInodes uint32
	// NumDataBlocks and FreeDataBlocks count blocks in the data region.
	NumDataBlocks  uint32
	FreeDataBlocks uint32
	// Region layout, in image block indices.
	BitmapStart     uint32
	InodeTableStart uint32
	DataStart       uint32
}

// superblockSize is the encoded size of the Superblock. The remainder of
// block 1 is reserved and kept zero.
const superblockSize = 48

func (sb *Superblock) encode(buf []byte) {
	_ = buf[superblockSize-1]
	binary.LittleEndian.PutUint32(buf[0:], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:], 0)
	binary.LittleEndian.PutUint64(buf[8:], sb.Size)
	binary.LittleEndian.PutUint32(buf[16:], sb.NumInodes)
	binary.LittleEndian.PutUint32(buf[20:], sb.FreeInodes)
	binary.LittleEndian.PutUint32(buf[24:], sb.NumDataBlocks)
	binary.LittleEndian.PutUint32(buf[28:], sb.FreeDataBlocks)
	binary.LittleEndian.PutUint32(buf[32:], sb.BitmapStart)
	binary.LittleEndian.PutUint32(buf[36:], sb.InodeTableStart)
	binary.LittleEndian.PutUint32(buf[40:], sb.DataStart)
	binary.LittleEndian.PutUint32(buf[44:], 0)
}

func decodeSuperblock(buf []byte) Superblock {
	_ = buf[superblockSize-1]
	return Superblock{
		Magic:           binary.LittleEndian.Uint32(buf[0:]),
		Size:            binary.LittleEndian.Uint64(buf[8:]),
		NumInodes:       binary.LittleEndian.Uint32(buf[16:]),
		FreeInodes:      binary.LittleEndian.Uint32(buf[20:]),
		NumDataBlocks:   binary.LittleEndian.Uint32(buf[24:]),
		FreeDataBlocks:  binary.LittleEndian.Uint32(buf[28:]),
		BitmapStart:     binary.LittleEndian.Uint32(buf[32:]),
		InodeTableStart: binary.LittleEndian.Uint32(buf[36:]),
		DataStart:       binary.LittleEndian.Uint32(buf[40:]),
	}
}

// Geometry is the region layout derived from an image size and an inode
// count. Regions appear in image order: block 0 (reserved), the superblock,
// the data bitmap, the inode table, and the data region.
type Geometry struct {
	// TotalBlocks is the image size in blocks.
	TotalBlocks uint32
	// InodeTableBlocks is the size of the inode table, in blocks.
	InodeTableBlocks uint32
	// BitmapBlocks is the size of the data bitmap, in blocks.
	BitmapBlocks uint32
	// DataBlocks is the number of blocks left for file and directory data.
	DataBlocks uint32
	// NumInodes is the requested inode slot count.
	NumInodes uint32
}

func ceilDiv(numerator, denominator uint64) uint64 {
	return (numerator + denominator - 1) / denominator
}

// ComputeGeometry derives the region layout for an image of `imageSize` bytes
// holding `numInodes` inode slots. It fails if the size is not a whole number
// of blocks, or if the metadata leaves no room for data.
func ComputeGeometry(imageSize uint64, numInodes uint32) (Geometry, error) {
	if imageSize == 0 || imageSize%BlockSize != 0 {
		return Geometry{}, fmt.Errorf(
			"image size must be a positive multiple of %d, got %d",
			BlockSize,
			imageSize,
		)
	}
	if numInodes == 0 {
		return Geometry{}, fmt.Errorf("inode count must be positive")
	}

	inodeTableBlocks := ceilDiv(uint64(numInodes)*InodeSize, BlockSize)
	totalBlocks := imageSize / BlockSize

	// The bitmap and the data region share whatever is left after block 0,
	// the superblock, and the inode table. One bitmap block covers 8*BlockSize
	// data blocks.
	if totalBlocks < inodeTableBlocks+2+1 {
		return Geometry{}, fmt.Errorf(
			"image of %d blocks is too small to hold %d inodes",
			totalBlocks,
			numInodes,
		)
	}
	remaining := totalBlocks - inodeTableBlocks - 2
	bitmapBlocks := ceilDiv(remaining, 8*BlockSize)
	if remaining <= bitmapBlocks {
		return Geometry{}, fmt.Errorf(
			"image of %d blocks is too small to hold %d inodes",
			totalBlocks,
			numInodes,
		)
	}

	return Geometry{
		TotalBlocks:      uint32(totalBlocks),
		InodeTableBlocks: uint32(inodeTableBlocks),
		BitmapBlocks:     uint32(bitmapBlocks),
		DataBlocks:       uint32(remaining - bitmapBlocks),
		NumInodes:        numInodes,
	}, nil
}

// NewSuperblock builds the superblock describing a freshly formatted image
// with this geometry. All inodes and all data blocks start out free; the
// formatter adjusts the counters once it allocates the root directory.
func (geom Geometry) NewSuperblock() Superblock {
	return Superblock{
		Magic:           Magic,
		Size:            uint64(geom.TotalBlocks) * BlockSize,
		NumInodes:       geom.NumInodes,
		FreeInodes:      geom.NumInodes,
		NumDataBlocks:   geom.DataBlocks,
		FreeDataBlocks:  geom.DataBlocks,
		BitmapStart:     BitmapStartBlock,
		InodeTableStart: BitmapStartBlock + geom.BitmapBlocks,
		DataStart:       BitmapStartBlock + geom.BitmapBlocks + geom.InodeTableBlocks,
	}
}

// matchesGeometry reports whether a decoded superblock agrees with the layout
// re-derived from its own recorded size and inode count. Disagreement means
// the block is not a trustworthy A1FS superblock.
func (sb *Superblock) matchesGeometry() bool {
	geom, err := ComputeGeometry(sb.Size, sb.NumInodes)
	if err != nil {
		return false
	}

	derived := geom.NewSuperblock()
	return sb.NumDataBlocks == derived.NumDataBlocks &&
		sb.BitmapStart == derived.BitmapStart &&
		sb.InodeTableStart == derived.InodeTableStart &&
		sb.DataStart == derived.DataStart &&
		sb.FreeInodes <= sb.NumInodes &&
		sb.FreeDataBlocks <= sb.NumDataBlocks
}
