package a1fs

import (
	"encoding/binary"
	"time"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

// Inode is the decoded form of one inode table record. A slot is live iff
// Links > 0; that is the only liveness predicate. Mutations happen on the
// decoded copy and are persisted with writeInode.
type Inode struct {
	Mode  uint32
	Links uint32
	Size  uint64
	// Modification time, split the way stat(2) reports it.
	MtimeSec  int64
	MtimeNsec int64
	// NumExtents counts all extents, direct and indirect together.
	NumExtents uint32
	// IndirectBlock is the data-region block holding extents 10 and up.
	// Only meaningful while NumExtents > NumDirectExtents.
	IndirectBlock uint32
	Direct        [NumDirectExtents]Extent
}

func (ino Inode) IsDir() bool {
	return ino.Mode&extentfs.S_IFDIR != 0
}

func (ino *Inode) Mtime() time.Time {
	return time.Unix(ino.MtimeSec, ino.MtimeNsec)
}

func (ino *Inode) setMtime(t time.Time) {
	ino.MtimeSec = t.Unix()
	ino.MtimeNsec = int64(t.Nanosecond())
}

// readInode decodes inode `num` from the inode table.
func (fs *FileSystem) readInode(num uint32) Inode {
	buf := fs.inodeSlot(num)

	ino := Inode{
		Mode:          binary.LittleEndian.Uint32(buf[0:]),
		Links:         binary.LittleEndian.Uint32(buf[4:]),
		Size:          binary.LittleEndian.Uint64(buf[8:]),
		MtimeSec:      int64(binary.LittleEndian.Uint64(buf[16:])),
		MtimeNsec:     int64(binary.LittleEndian.Uint64(buf[24:])),
		NumExtents:    binary.LittleEndian.Uint32(buf[32:]),
		IndirectBlock: binary.LittleEndian.Uint32(buf[36:]),
	}
	for i := range ino.Direct {
		offset := 40 + i*ExtentSize
		ino.Direct[i] = Extent{
			Start: binary.LittleEndian.Uint32(buf[offset:]),
			Count: binary.LittleEndian.Uint32(buf[offset+4:]),
		}
	}
	return ino
}

// writeInode persists a decoded inode back into its table slot.
func (fs *FileSystem) writeInode(num uint32, ino *Inode) {
	buf := fs.inodeSlot(num)

	binary.LittleEndian.PutUint32(buf[0:], ino.Mode)
	binary.LittleEndian.PutUint32(buf[4:], ino.Links)
	binary.LittleEndian.PutUint64(buf[8:], ino.Size)
	binary.LittleEndian.PutUint64(buf[16:], uint64(ino.MtimeSec))
	binary.LittleEndian.PutUint64(buf[24:], uint64(ino.MtimeNsec))
	binary.LittleEndian.PutUint32(buf[32:], ino.NumExtents)
	binary.LittleEndian.PutUint32(buf[36:], ino.IndirectBlock)
	for i := range ino.Direct {
		offset := 40 + i*ExtentSize
		binary.LittleEndian.PutUint32(buf[offset:], ino.Direct[i].Start)
		binary.LittleEndian.PutUint32(buf[offset+4:], ino.Direct[i].Count)
	}
}

// extent returns the i-th extent of an inode, reading from the direct array
// or from the indirect block as appropriate.
func (fs *FileSystem) extent(ino *Inode, i uint32) Extent {
	if i < NumDirectExtents {
		return ino.Direct[i]
	}

	buf := fs.dataBlock(common.PhysicalBlock(ino.IndirectBlock))
	offset := (i - NumDirectExtents) * ExtentSize
	return Extent{
		Start: binary.LittleEndian.Uint32(buf[offset:]),
		Count: binary.LittleEndian.Uint32(buf[offset+4:]),
	}
}

// setExtent stores the i-th extent. Direct extents land in the decoded inode
// (persisted later by writeInode); indirect extents go straight into the
// indirect block.
func (fs *FileSystem) setExtent(ino *Inode, i uint32, ext Extent) {
	if i < NumDirectExtents {
		ino.Direct[i] = ext
		return
	}

	buf := fs.dataBlock(common.PhysicalBlock(ino.IndirectBlock))
	offset := (i - NumDirectExtents) * ExtentSize
	binary.LittleEndian.PutUint32(buf[offset:], ext.Start)
	binary.LittleEndian.PutUint32(buf[offset+4:], ext.Count)
}

// blockIter walks an inode's logical blocks in extent order. It is a
// single-pass, restartable sequence: create a fresh iterator to walk again.
type blockIter struct {
	fs     *FileSystem
	ino    *Inode
	extIdx uint32
	within uint32
}

func (fs *FileSystem) newBlockIter(ino *Inode) blockIter {
	return blockIter{fs: fs, ino: ino}
}

// next yields the data-region index of the next logical block, or ok=false
// once the inode's extents are exhausted.
func (it *blockIter) next() (common.PhysicalBlock, bool) {
	for it.extIdx < it.ino.NumExtents {
		ext := it.fs.extent(it.ino, it.extIdx)
		if it.within < ext.Count {
			block := ext.Start + it.within
			it.within++
			return common.PhysicalBlock(block), true
		}
		it.extIdx++
		it.within = 0
	}
	return common.InvalidPhysicalBlock, false
}

// totalBlocks sums the extent lengths of an inode.
func (fs *FileSystem) totalBlocks(ino *Inode) uint64 {
	var n uint64
	for i := uint32(0); i < ino.NumExtents; i++ {
		n += uint64(fs.extent(ino, i).Count)
	}
	return n
}
