package a1fs

import (
	"fmt"

	bitmap "github.com/boljen/go-bitmap"
	"github.com/jacobsa/timeutil"
	"github.com/sirupsen/logrus"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

// MountOptions carries the collaborators a mounted file system needs. Zero
// values select the real clock and the standard logger.
type MountOptions struct {
	Clock timeutil.Clock
	Log   logrus.FieldLogger
}

// FileSystem is the runtime descriptor for one mounted image: the mapped
// byte region plus typed views into its superblock, bitmap, inode table and
// data region. It is not safe for concurrent use; callers dispatch
// operations serially.
type FileSystem struct {
	img   *imagefile.Image
	data  []byte
	sb    Superblock
	clock timeutil.Clock
	log   logrus.FieldLogger
}

// Mount opens a formatted image. It fails if the superblock is missing, has
// the wrong magic, or disagrees with the layout derived from its own recorded
// size and inode count.
func Mount(img *imagefile.Image, opts MountOptions) (*FileSystem, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	data := img.Bytes()
	if len(data) < (SuperblockBlock+1)*BlockSize {
		return nil, extentfs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("image of %d bytes can't hold a superblock", len(data)),
		)
	}

	sb := decodeSuperblock(data[SuperblockBlock*BlockSize:])
	if sb.Magic != Magic {
		return nil, extentfs.ErrInvalidFileSystem.WithMessage(
			fmt.Sprintf("bad magic %#08x", sb.Magic),
		)
	}
	if sb.Size != uint64(len(data)) || !sb.matchesGeometry() {
		return nil, extentfs.ErrInvalidFileSystem.WithMessage(
			"superblock disagrees with image layout",
		)
	}

	fs := &FileSystem{
		img:   img,
		data:  data,
		sb:    sb,
		clock: opts.Clock,
		log:   opts.Log,
	}

	fs.log.WithFields(logrus.Fields{
		"blocks": sb.Size / BlockSize,
		"inodes": sb.NumInodes,
	}).Info("mounted a1fs image")
	return fs, nil
}

// Superblock returns a copy of the cached superblock.
func (fs *FileSystem) Superblock() Superblock {
	return fs.sb
}

// Flush forces the image's modified pages out to the backing file.
func (fs *FileSystem) Flush() error {
	return fs.img.Flush()
}

// Unmount flushes and releases the image. Every pointer into the image is
// dangling afterwards.
func (fs *FileSystem) Unmount() error {
	fs.log.Info("unmounting a1fs image")
	err := fs.img.Close()
	fs.data = nil
	return err
}

// writeSuperblock persists the cached superblock. Called at the end of every
// operation that touches its counters.
func (fs *FileSystem) writeSuperblock() {
	fs.sb.encode(fs.data[SuperblockBlock*BlockSize:])
}

// bitmap returns the data bitmap as an LSB-first bit slice aliasing the
// image. Bit b tracks data-region block b.
func (fs *FileSystem) bitmap() bitmap.Bitmap {
	start := int64(fs.sb.BitmapStart) * BlockSize
	end := int64(fs.sb.InodeTableStart) * BlockSize
	return bitmap.Bitmap(fs.data[start:end])
}

// inodeSlot returns the InodeSize-byte record of inode `num`.
func (fs *FileSystem) inodeSlot(num uint32) []byte {
	if num >= fs.sb.NumInodes {
		panic(fmt.Sprintf("inode %d out of range [0, %d)", num, fs.sb.NumInodes))
	}
	offset := int64(fs.sb.InodeTableStart)*BlockSize + int64(num)*InodeSize
	return fs.data[offset : offset+InodeSize]
}

// dataBlock returns the contents of data-region block `num`.
func (fs *FileSystem) dataBlock(num common.PhysicalBlock) []byte {
	if uint32(num) >= fs.sb.NumDataBlocks {
		panic(fmt.Sprintf(
			"data block %d out of range [0, %d)", num, fs.sb.NumDataBlocks))
	}
	offset := (int64(fs.sb.DataStart) + int64(num)) * BlockSize
	return fs.data[offset : offset+BlockSize]
}
