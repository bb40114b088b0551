package a1fs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

// Check audits the on-image accounting: counter agreement, bitmap/extent
// cross-references, extent disjointness, and per-inode size bounds. It
// returns nil on a consistent image, or one error per violation found. The
// test suite runs it after every mutating scenario; the driver runs it at
// mount time and logs what it finds.
func (fs *FileSystem) Check() error {
	var result *multierror.Error

	// owners maps each claimed data block to the inode claiming it.
	owners := make(map[uint32]uint32)
	claim := func(num, block uint32) {
		if owner, taken := owners[block]; taken {
			result = multierror.Append(result, fmt.Errorf(
				"data block %d claimed by both inode %d and inode %d",
				block, owner, num,
			))
			return
		}
		owners[block] = num

		if block >= fs.sb.NumDataBlocks {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d references block %d outside the data region", num, block))
		} else if !fs.blockInUse(common.PhysicalBlock(block)) {
			result = multierror.Append(result, fmt.Errorf(
				"data block %d of inode %d is not marked in the bitmap", block, num))
		}
	}

	var freeInodes uint32
	for num := uint32(0); num < fs.sb.NumInodes; num++ {
		ino := fs.readInode(num)
		if ino.Links == 0 {
			freeInodes++
			continue
		}

		for i := uint32(0); i < ino.NumExtents; i++ {
			ext := fs.extent(&ino, i)
			if ext.Count == 0 {
				result = multierror.Append(result, fmt.Errorf(
					"inode %d has empty extent %d", num, i))
				continue
			}
			for b := ext.Start; b < ext.Start+ext.Count; b++ {
				claim(num, b)
			}
		}
		if ino.NumExtents > NumDirectExtents {
			claim(num, ino.IndirectBlock)
		}

		capacity := fs.totalBlocks(&ino) * BlockSize
		if ino.Size > capacity || capacity >= ino.Size+BlockSize {
			result = multierror.Append(result, fmt.Errorf(
				"inode %d holds %d bytes of blocks for a size of %d bytes",
				num, capacity, ino.Size,
			))
		}
		if ino.IsDir() && ino.Size != capacity {
			result = multierror.Append(result, fmt.Errorf(
				"directory inode %d has size %d but %d bytes of blocks",
				num, ino.Size, capacity,
			))
		}
		if ino.IsDir() && ino.Links < 2 {
			result = multierror.Append(result, fmt.Errorf(
				"directory inode %d has link count %d", num, ino.Links))
		}
	}

	if freeInodes != fs.sb.FreeInodes {
		result = multierror.Append(result, fmt.Errorf(
			"superblock says %d free inodes, table has %d",
			fs.sb.FreeInodes, freeInodes,
		))
	}

	var setBits uint32
	for b := uint32(0); b < fs.sb.NumDataBlocks; b++ {
		if !fs.blockInUse(common.PhysicalBlock(b)) {
			continue
		}
		setBits++
		if _, taken := owners[b]; !taken {
			result = multierror.Append(result, fmt.Errorf(
				"data block %d is marked in the bitmap but owned by no inode", b))
		}
	}
	if fs.sb.FreeDataBlocks != fs.sb.NumDataBlocks-setBits {
		result = multierror.Append(result, fmt.Errorf(
			"superblock says %d free data blocks, bitmap has %d",
			fs.sb.FreeDataBlocks, fs.sb.NumDataBlocks-setBits,
		))
	}

	return result.ErrorOrNil()
}
