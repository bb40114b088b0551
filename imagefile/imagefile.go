// Package imagefile presents a disk image as a single writable byte region.
//
// An Image is either a file mapped into memory with mmap(2), or an anonymous
// in-memory buffer (used by tests and by tools that assemble an image before
// writing it out). Callers address the region directly through Bytes(), or
// through a seekable stream view for serialization code.
package imagefile

import (
	"fmt"
	"io"
	"os"

	"github.com/xaionaro-go/bytesextra"
	"golang.org/x/sys/unix"
)

type Image struct {
	data   []byte
	file   *os.File
	mapped bool
}

// OpenFile maps an existing image file into memory for reading and writing.
// The file's current size determines the size of the region; it is not
// resized.
func OpenFile(path string) (*Image, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		file.Close()
		return nil, fmt.Errorf("image file %q is empty", path)
	}

	data, err := unix.Mmap(
		int(file.Fd()),
		0,
		int(info.Size()),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to map %q: %w", path, err)
	}

	return &Image{data: data, file: file, mapped: true}, nil
}

// New returns an anonymous in-memory image of the given size, zero-filled.
func New(size int64) *Image {
	return &Image{data: make([]byte, size)}
}

// FromBytes wraps an existing buffer without copying it.
func FromBytes(data []byte) *Image {
	return &Image{data: data}
}

// Bytes returns the backing byte region. The slice aliases the mapped file
// (or the in-memory buffer); writes through it modify the image directly.
func (img *Image) Bytes() []byte {
	return img.data
}

func (img *Image) Size() int64 {
	return int64(len(img.data))
}

// Stream returns a seekable read/write view over the image, for code that
// serializes structures with encoding/binary.
func (img *Image) Stream() io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(img.data)
}

// Flush forces modified pages out to the backing file. In-memory images have
// nothing to sync.
func (img *Image) Flush() error {
	if !img.mapped {
		return nil
	}
	return unix.Msync(img.data, unix.MS_SYNC)
}

// Close flushes and unmaps the image. The region returned by Bytes() is
// dangling afterwards.
func (img *Image) Close() error {
	if !img.mapped {
		img.data = nil
		return nil
	}

	flushErr := img.Flush()
	unmapErr := unix.Munmap(img.data)
	img.data = nil
	img.mapped = false

	closeErr := img.file.Close()
	img.file = nil

	if flushErr != nil {
		return flushErr
	}
	if unmapErr != nil {
		return unmapErr
	}
	return closeErr
}
