package a1fs

import (
	"bytes"
	"encoding/binary"

	"github.com/sirupsen/logrus"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

// A dentry is a DentrySize-byte slot in a directory's data blocks: a
// NUL-terminated name followed by the entry's inode number. A leading NUL
// byte marks the slot as free.

func dentryName(slot []byte) string {
	name := slot[:DentryNameSize]
	if idx := bytes.IndexByte(name, 0); idx >= 0 {
		name = name[:idx]
	}
	return string(name)
}

func dentryInode(slot []byte) uint32 {
	return binary.LittleEndian.Uint32(slot[DentryNameSize:])
}

func writeDentry(slot []byte, name string, inode uint32) {
	zeroRange(slot[:DentryNameSize])
	copy(slot, name)
	binary.LittleEndian.PutUint32(slot[DentryNameSize:], inode)
}

// findSlot scans a directory's blocks for the dentry holding `name` and
// returns the slot, aliasing the image. nil when the name is absent.
func (fs *FileSystem) findSlot(dir *Inode, name string) []byte {
	it := fs.newBlockIter(dir)
	for {
		block, ok := it.next()
		if !ok {
			return nil
		}

		buf := fs.dataBlock(block)
		for i := 0; i < DentriesPerBlock; i++ {
			slot := buf[i*DentrySize : (i+1)*DentrySize]
			if slot[0] != 0 && dentryName(slot) == name {
				return slot
			}
		}
	}
}

// findEntry resolves a name within a directory to an inode number.
func (fs *FileSystem) findEntry(dir *Inode, name string) (uint32, bool) {
	slot := fs.findSlot(dir, name)
	if slot == nil {
		return 0, false
	}
	return dentryInode(slot), true
}

// isEmpty reports whether a directory has no live entries.
func (fs *FileSystem) isEmpty(dir *Inode) bool {
	it := fs.newBlockIter(dir)
	for {
		block, ok := it.next()
		if !ok {
			return true
		}

		buf := fs.dataBlock(block)
		for i := 0; i < DentriesPerBlock; i++ {
			if buf[i*DentrySize] != 0 {
				return false
			}
		}
	}
}

// forEachEntry calls fn for every live entry of a directory, in block order
// within each extent and extents in stored order. A non-nil return from fn
// stops the walk and is passed through.
func (fs *FileSystem) forEachEntry(dir *Inode, fn func(name string, inode uint32) error) error {
	it := fs.newBlockIter(dir)
	for {
		block, ok := it.next()
		if !ok {
			return nil
		}

		buf := fs.dataBlock(block)
		for i := 0; i < DentriesPerBlock; i++ {
			slot := buf[i*DentrySize : (i+1)*DentrySize]
			if slot[0] == 0 {
				continue
			}
			if err := fn(dentryName(slot), dentryInode(slot)); err != nil {
				return err
			}
		}
	}
}

// freeDentrySlot finds the first free slot in the directory's existing
// blocks, or nil when every slot is taken.
func (fs *FileSystem) freeDentrySlot(dir *Inode) []byte {
	it := fs.newBlockIter(dir)
	for {
		block, ok := it.next()
		if !ok {
			return nil
		}

		buf := fs.dataBlock(block)
		for i := 0; i < DentriesPerBlock; i++ {
			slot := buf[i*DentrySize : (i+1)*DentrySize]
			if slot[0] == 0 {
				return slot
			}
		}
	}
}

// addEntry creates a named entry: it resolves the parent, finds or allocates
// a dentry slot, claims the lowest free inode, and initializes it with the
// given mode and link count. Directories additionally get their first data
// block up front, zeroed so every slot in it starts free, and bump the
// parent's link count for their back-reference.
func (fs *FileSystem) addEntry(path string, mode, links uint32) error {
	if fs.sb.FreeInodes == 0 {
		return extentfs.ErrNoSpaceOnDevice.WithMessage("inode table exhausted")
	}

	parentPath, base := splitParent(path)
	if len(base) > MaxNameLength {
		return extentfs.ErrNameTooLong.WithMessage(base)
	}

	parentNum, err := fs.lookup(parentPath)
	if err != nil {
		return err
	}
	parent := fs.readInode(parentNum)
	if !parent.IsDir() {
		return extentfs.ErrNotADirectory.WithMessage(parentPath)
	}

	isDir := mode&extentfs.S_IFDIR != 0
	if isDir {
		parent.Links++
	}

	slot := fs.freeDentrySlot(&parent)
	if slot == nil {
		// Every slot is taken; grow the directory by one block and use its
		// first slot. The rest of the block is zeroed, so its remaining
		// slots are free.
		if err := fs.allocateBlocks(&parent, BlockSize); err != nil {
			fs.writeInode(parentNum, &parent)
			return err
		}
		parent.Size += BlockSize

		last := fs.extent(&parent, parent.NumExtents-1)
		buf := fs.dataBlock(common.PhysicalBlock(last.Start + last.Count - 1))
		zeroRange(buf)
		slot = buf[:DentrySize]
	}

	num, ok := fs.allocateInode()
	if !ok {
		// Unreachable while the free-inode counter is accurate; treated the
		// same as a full table.
		fs.writeInode(parentNum, &parent)
		fs.writeSuperblock()
		return extentfs.ErrNoSpaceOnDevice.WithMessage("inode table exhausted")
	}

	writeDentry(slot, base, num)
	child := fs.initInode(num, mode, links)
	fs.sb.FreeInodes--

	if isDir {
		if err := fs.allocateBlocks(&child, BlockSize); err != nil {
			fs.writeInode(num, &child)
			fs.writeInode(parentNum, &parent)
			fs.writeSuperblock()
			return err
		}
		child.Size = BlockSize

		first := fs.extent(&child, 0)
		zeroRange(fs.dataBlock(common.PhysicalBlock(first.Start)))
		fs.writeInode(num, &child)
	}

	fs.writeInode(parentNum, &parent)
	fs.writeSuperblock()

	fs.log.WithFields(logrus.Fields{
		"path":  path,
		"inode": num,
	}).Debug("created directory entry")
	return nil
}

// removeEntry deletes the named entry from its parent. Once the target's
// link count hits zero its blocks are released and the slot is returned to
// the inode table.
func (fs *FileSystem) removeEntry(path string) error {
	parentPath, base := splitParent(path)
	parentNum, err := fs.lookup(parentPath)
	if err != nil {
		return err
	}
	parent := fs.readInode(parentNum)
	if !parent.IsDir() {
		return extentfs.ErrNotADirectory.WithMessage(parentPath)
	}

	slot := fs.findSlot(&parent, base)
	if slot == nil {
		return extentfs.ErrNotFound.WithMessage(path)
	}

	targetNum := dentryInode(slot)
	target := fs.readInode(targetNum)

	// A directory loses the links for its own "." entry and the parent's
	// edge; its removal also drops the ".." back-reference counted on the
	// parent. A file just loses the parent's edge.
	if target.IsDir() {
		target.Links -= 2
		parent.Links--
	} else {
		target.Links--
	}

	slot[0] = 0

	if target.Links == 0 {
		fs.freeInodeBlocks(&target)
		fs.sb.FreeInodes++
	}

	fs.writeInode(targetNum, &target)
	fs.writeInode(parentNum, &parent)
	fs.writeSuperblock()

	fs.log.WithFields(logrus.Fields{
		"path":  path,
		"inode": targetNum,
	}).Debug("removed directory entry")
	return nil
}
