package a1fs

import (
	"encoding/binary"
	"fmt"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

// allocateInode returns the lowest-indexed free inode slot. Only the link
// word is inspected; links == 0 marks a free slot.
func (fs *FileSystem) allocateInode() (uint32, bool) {
	for num := uint32(0); num < fs.sb.NumInodes; num++ {
		if binary.LittleEndian.Uint32(fs.inodeSlot(num)[4:]) == 0 {
			return num, true
		}
	}
	return 0, false
}

// initInode writes a fresh inode into slot `num`: given mode and link count,
// empty, stamped with the current time.
func (fs *FileSystem) initInode(num uint32, mode, links uint32) Inode {
	ino := Inode{Mode: mode, Links: links}
	ino.setMtime(fs.clock.Now())
	fs.writeInode(num, &ino)
	return ino
}

func zeroRange(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}

// allocateBlocks extends `ino` by enough blocks to hold `additional` more
// bytes past its current size. Slack in the last partial block absorbs the
// first BlockSize - (size % BlockSize) bytes for free.
//
// The last extent is grown in place when the blocks after it are free;
// otherwise new extents are appended from the first sufficient free run, or
// from the longest run available, splitting the request. Appending the 11th
// extent first claims a block to hold the indirect extent array.
//
// On failure partway through, everything already allocated stays charged to
// the inode; truncate or deletion releases it later. The caller must persist
// the inode afterwards regardless of the outcome.
func (fs *FileSystem) allocateBlocks(ino *Inode, additional uint64) error {
	slack := uint64(0)
	if ino.Size%BlockSize != 0 {
		slack = BlockSize - ino.Size%BlockSize
	}
	if additional <= slack {
		return nil
	}

	need := ceilDiv(additional-slack, BlockSize)
	if need > uint64(fs.sb.FreeDataBlocks) {
		return extentfs.ErrNoSpaceOnDevice.WithMessage(
			fmt.Sprintf("need %d blocks, %d free", need, fs.sb.FreeDataBlocks),
		)
	}

	// Grow the last extent in place as far as the blocks after it are free.
	if ino.NumExtents > 0 {
		last := fs.extent(ino, ino.NumExtents-1)
		grow := fs.tailLength(last.Start + last.Count)
		if uint64(grow) > need {
			grow = uint32(need)
		}
		if grow > 0 {
			for b := last.Start + last.Count; b < last.Start+last.Count+grow; b++ {
				fs.setBlock(common.PhysicalBlock(b))
			}
			last.Count += grow
			fs.setExtent(ino, ino.NumExtents-1, last)
			fs.sb.FreeDataBlocks -= grow
			need -= uint64(grow)
		}
	}

	for need > 0 {
		if ino.NumExtents >= MaxExtents {
			fs.writeSuperblock()
			return extentfs.ErrNoSpaceOnDevice.WithMessage(
				fmt.Sprintf("inode already has %d extents", MaxExtents),
			)
		}

		// The 11th extent lives in the indirect block, which must exist
		// before the extent can be stored.
		if ino.NumExtents == NumDirectExtents {
			indirect, _, ok := fs.findRun(1)
			if !ok {
				fs.writeSuperblock()
				return extentfs.ErrNoSpaceOnDevice.WithMessage(
					"no block left for the indirect extent array",
				)
			}
			fs.setBlock(common.PhysicalBlock(indirect))
			fs.sb.FreeDataBlocks--
			ino.IndirectBlock = indirect
			zeroRange(fs.dataBlock(common.PhysicalBlock(indirect)))
		}

		start, count, ok := fs.findRun(uint32(need))
		if !ok {
			fs.writeSuperblock()
			return extentfs.ErrNoSpaceOnDevice.WithMessage("data bitmap exhausted")
		}

		fs.setExtent(ino, ino.NumExtents, Extent{Start: start, Count: count})
		ino.NumExtents++
		for b := start; b < start+count; b++ {
			fs.setBlock(common.PhysicalBlock(b))
		}
		fs.sb.FreeDataBlocks -= count
		need -= uint64(count)
	}

	fs.writeSuperblock()
	return nil
}

// freeInodeBlocks releases every block an inode owns: all extents, plus the
// indirect block when one is in use. FreeDataBlocks grows by one per block,
// never by a multiple.
func (fs *FileSystem) freeInodeBlocks(ino *Inode) {
	for i := uint32(0); i < ino.NumExtents; i++ {
		ext := fs.extent(ino, i)
		for b := ext.Start; b < ext.Start+ext.Count; b++ {
			fs.clearBlock(common.PhysicalBlock(b))
			fs.sb.FreeDataBlocks++
		}
	}
	if ino.NumExtents > NumDirectExtents {
		fs.clearBlock(common.PhysicalBlock(ino.IndirectBlock))
		fs.sb.FreeDataBlocks++
	}

	ino.NumExtents = 0
	ino.IndirectBlock = 0
	ino.Size = 0
}
