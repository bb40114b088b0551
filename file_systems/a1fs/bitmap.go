package a1fs

import (
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

// The data bitmap stores one bit per data-region block, LSB-first within each
// byte: bit b lives at byte[b/8] & (1 << (b%8)). Bits at or beyond
// NumDataBlocks are treated as allocated; the scan never reads them.

func (fs *FileSystem) blockInUse(block common.PhysicalBlock) bool {
	return fs.bitmap().Get(int(block))
}

// setBlock marks a data block as allocated. The caller owns the
// FreeDataBlocks counter and must adjust it separately.
func (fs *FileSystem) setBlock(block common.PhysicalBlock) {
	fs.bitmap().Set(int(block), true)
}

// clearBlock marks a data block as free. Same counter contract as setBlock.
func (fs *FileSystem) clearBlock(block common.PhysicalBlock) {
	fs.bitmap().Set(int(block), false)
}

// findRun scans the bitmap from block 0 upward for a run of free blocks. It
// returns the first run of length >= needed, clamped to `needed`; if no such
// run exists, it returns the longest free run found, lowest start winning
// ties. ok is false when the bitmap has no free block at all.
func (fs *FileSystem) findRun(needed uint32) (start, count uint32, ok bool) {
	bm := fs.bitmap()
	total := fs.sb.NumDataBlocks

	var runStart, runLen uint32
	var bestStart, bestLen uint32

	for block := uint32(0); block < total; {
		// Between runs, whole bytes of allocated blocks can be skipped
		// without testing individual bits.
		if runLen == 0 && block%8 == 0 && block+8 <= total && bm[block/8] == 0xFF {
			block += 8
			continue
		}

		if bm.Get(int(block)) {
			if runLen > bestLen {
				bestStart, bestLen = runStart, runLen
			}
			runLen = 0
		} else {
			if runLen == 0 {
				runStart = block
			}
			runLen++
			if runLen == needed {
				return runStart, needed, true
			}
		}
		block++
	}

	if runLen > bestLen {
		bestStart, bestLen = runStart, runLen
	}
	if bestLen == 0 {
		return 0, 0, false
	}
	return bestStart, bestLen, true
}

// tailLength counts the consecutive free blocks starting at `start`, bounded
// by the end of the data region. Used to grow an inode's last extent in
// place.
func (fs *FileSystem) tailLength(start uint32) uint32 {
	bm := fs.bitmap()
	total := fs.sb.NumDataBlocks

	var n uint32
	for block := start; block < total && !bm.Get(int(block)); block++ {
		n++
	}
	return n
}
