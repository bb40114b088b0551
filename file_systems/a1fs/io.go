package a1fs

import (
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

// forEachBlockInRange walks the inode's logical blocks and hands fn the
// slice of each block that intersects [offset, offset+length), together with
// that slice's position relative to the start of the range. The walk is a
// single pass over the extent list; blocks before the range are skipped,
// blocks after it end the walk.
func (fs *FileSystem) forEachBlockInRange(
	ino *Inode,
	offset, length uint64,
	fn func(chunk []byte, pos uint64),
) {
	end := offset + length
	it := fs.newBlockIter(ino)

	pos := uint64(0)
	for pos < end {
		block, ok := it.next()
		if !ok {
			return
		}
		blockEnd := pos + BlockSize

		if blockEnd > offset {
			from := uint64(0)
			if offset > pos {
				from = offset - pos
			}
			to := uint64(BlockSize)
			if end < blockEnd {
				to = end - pos
			}
			fn(fs.dataBlock(block)[from:to], pos+from-offset)
		}
		pos = blockEnd
	}
}

// zeroFill clears the byte range [from, to) of the inode's data. Used when a
// write or truncate exposes previously unwritten bytes.
func (fs *FileSystem) zeroFill(ino *Inode, from, to uint64) {
	if to <= from {
		return
	}
	fs.forEachBlockInRange(ino, from, to-from, func(chunk []byte, pos uint64) {
		zeroRange(chunk)
	})
}

// readFile copies file data overlapping [offset, offset+len(buf)) into buf
// and returns the byte count. Reading at or past EOF returns 0; a range
// crossing EOF returns a short count. The output is pre-zeroed so holes read
// as zeros.
func (fs *FileSystem) readFile(ino *Inode, buf []byte, offset uint64) int {
	if offset >= ino.Size {
		return 0
	}

	n := uint64(len(buf))
	if offset+n > ino.Size {
		n = ino.Size - offset
	}
	out := buf[:n]
	zeroRange(out)

	fs.forEachBlockInRange(ino, offset, n, func(chunk []byte, pos uint64) {
		copy(out[pos:], chunk)
	})
	return int(n)
}

// writeFile copies buf into the file at `offset`, extending it first when the
// range reaches past the current size. A write starting beyond EOF zero-fills
// the hole [size, offset). The file size becomes max(size, offset+len(buf)).
func (fs *FileSystem) writeFile(num uint32, ino *Inode, buf []byte, offset uint64) (int, error) {
	ino.setMtime(fs.clock.Now())

	end := offset + uint64(len(buf))
	if end > ino.Size {
		if err := fs.allocateBlocks(ino, end-ino.Size); err != nil {
			fs.writeInode(num, ino)
			return 0, err
		}
		oldSize := ino.Size
		ino.Size = end
		fs.zeroFill(ino, oldSize, offset)
	}

	fs.forEachBlockInRange(ino, offset, uint64(len(buf)), func(chunk []byte, pos uint64) {
		copy(chunk, buf[pos:])
	})

	fs.writeInode(num, ino)
	fs.writeSuperblock()
	return len(buf), nil
}

// truncateInode resizes a file. Growth allocates and zero-fills; shrinking
// returns every block whose start offset is at or past the new size, so a
// truncate to an exact block multiple leaks nothing.
func (fs *FileSystem) truncateInode(num uint32, ino *Inode, newSize uint64) error {
	ino.setMtime(fs.clock.Now())

	switch {
	case newSize > ino.Size:
		if err := fs.allocateBlocks(ino, newSize-ino.Size); err != nil {
			fs.writeInode(num, ino)
			return err
		}
		oldSize := ino.Size
		ino.Size = newSize
		fs.zeroFill(ino, oldSize, newSize)

	case newSize < ino.Size:
		fs.shrink(ino, newSize)
		ino.Size = newSize
	}

	fs.writeInode(num, ino)
	fs.writeSuperblock()
	return nil
}

// shrink drops the logical blocks past ceil(newSize / BlockSize), clearing
// their bits one increment per block. Extents emptied this way are removed;
// when the extent count falls back within the direct array, the indirect
// block is released too.
func (fs *FileSystem) shrink(ino *Inode, newSize uint64) {
	keep := ceilDiv(newSize, BlockSize)
	hadIndirect := ino.NumExtents > NumDirectExtents

	var seen uint64
	kept := uint32(0)
	for i := uint32(0); i < ino.NumExtents; i++ {
		ext := fs.extent(ino, i)

		keepHere := uint64(0)
		if keep > seen {
			keepHere = keep - seen
			if keepHere > uint64(ext.Count) {
				keepHere = uint64(ext.Count)
			}
		}

		for b := ext.Start + uint32(keepHere); b < ext.Start+ext.Count; b++ {
			fs.clearBlock(common.PhysicalBlock(b))
			fs.sb.FreeDataBlocks++
		}
		seen += uint64(ext.Count)

		if keepHere > 0 {
			ext.Count = uint32(keepHere)
			fs.setExtent(ino, i, ext)
			kept++
		}
	}

	ino.NumExtents = kept
	if hadIndirect && kept <= NumDirectExtents {
		fs.clearBlock(common.PhysicalBlock(ino.IndirectBlock))
		fs.sb.FreeDataBlocks++
		ino.IndirectBlock = 0
	}
}
