package a1fs

import (
	"encoding/binary"
	"fmt"

	"github.com/jacobsa/timeutil"
	"github.com/noxer/bytewriter"
	"github.com/sirupsen/logrus"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

// FormatOptions controls Format.
type FormatOptions struct {
	// NumInodes is the number of inode slots to reserve. Must be positive.
	NumInodes uint32

	// Force reformats an image that already contains an A1FS file system.
	Force bool

	// Zero wipes the entire image first instead of just the metadata
	// regions.
	Zero bool

	Clock timeutil.Clock
	Log   logrus.FieldLogger
}

// Probe reports whether the image already contains an A1FS file system: the
// magic must match and every region offset recorded in the superblock must
// agree with the layout re-derived from its recorded size and inode count.
// Anything less is treated as not-A1FS and safe to format over.
func Probe(img *imagefile.Image) bool {
	data := img.Bytes()
	if len(data) < (SuperblockBlock+1)*BlockSize {
		return false
	}

	sb := decodeSuperblock(data[SuperblockBlock*BlockSize:])
	return sb.Magic == Magic &&
		sb.Size == uint64(len(data)) &&
		sb.matchesGeometry()
}

// Format initializes an empty A1FS file system on the image: superblock,
// zeroed bitmap, an inode table with every slot free, and inode 0 as the
// root directory.
func Format(img *imagefile.Image, opts FormatOptions) error {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}

	geom, err := ComputeGeometry(uint64(img.Size()), opts.NumInodes)
	if err != nil {
		return extentfs.ErrInvalidArgument.Wrap(err)
	}

	if !opts.Force && Probe(img) {
		return fmt.Errorf(
			"image already contains an A1FS file system; pass force to overwrite")
	}

	data := img.Bytes()
	if opts.Zero {
		zeroRange(data)
	} else {
		// The metadata regions must start clean regardless: block 0 is kept
		// zero, a zeroed bitmap means all data blocks are free, and zeroed
		// inode slots have links == 0, which is what marks them free.
		zeroRange(data[:2*BlockSize])
		bitmapEnd := int64(BitmapStartBlock+geom.BitmapBlocks+geom.InodeTableBlocks) * BlockSize
		zeroRange(data[BitmapStartBlock*BlockSize : bitmapEnd])
	}

	sb := geom.NewSuperblock()
	fs := &FileSystem{
		img:   img,
		data:  data,
		sb:    sb,
		clock: opts.Clock,
		log:   opts.Log,
	}

	// Inode 0 is the root directory. It owns no blocks yet; its first block
	// is allocated by the first entry added to it. The root is the only
	// inode whose ".." refers back to itself.
	fs.initInode(0, extentfs.DefaultDirectoryPermissions, 2)
	fs.sb.FreeInodes--

	// Write the superblock through a bounded writer so an encoding mistake
	// fails loudly instead of scribbling past the reserved area.
	writer := bytewriter.New(data[SuperblockBlock*BlockSize : SuperblockBlock*BlockSize+superblockSize])
	for _, field := range []interface{}{
		fs.sb.Magic,
		uint32(0),
		fs.sb.Size,
		fs.sb.NumInodes,
		fs.sb.FreeInodes,
		fs.sb.NumDataBlocks,
		fs.sb.FreeDataBlocks,
		fs.sb.BitmapStart,
		fs.sb.InodeTableStart,
		fs.sb.DataStart,
		uint32(0),
	} {
		if err := binary.Write(writer, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write superblock: %w", err)
		}
	}

	opts.Log.WithFields(logrus.Fields{
		"blocks":      geom.TotalBlocks,
		"inodes":      geom.NumInodes,
		"data_blocks": geom.DataBlocks,
	}).Info("formatted a1fs image")
	return nil
}
