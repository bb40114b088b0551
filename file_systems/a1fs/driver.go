package a1fs

import (
	"time"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
)

// The operation entry points invoked by the mount front-end. Each is a thin
// composition of the resolver, the directory manager, and the I/O layer, and
// fails only with errors from the extentfs taxonomy.

func (fs *FileSystem) StatFS() extentfs.FSStat {
	return extentfs.FSStat{
		BlockSize:       BlockSize,
		TotalBlocks:     fs.sb.Size / BlockSize,
		BlocksFree:      uint64(fs.sb.FreeDataBlocks),
		BlocksAvailable: uint64(fs.sb.FreeDataBlocks),
		Files:           uint64(fs.sb.NumInodes),
		FilesFree:       uint64(fs.sb.FreeInodes),
		MaxNameLength:   MaxNameLength,
	}
}

func (fs *FileSystem) GetAttr(path string) (extentfs.FileStat, error) {
	if len(path) >= MaxPathLength {
		return extentfs.FileStat{}, extentfs.ErrNameTooLong.WithMessage(path)
	}

	num, err := fs.lookup(path)
	if err != nil {
		return extentfs.FileStat{}, err
	}

	ino := fs.readInode(num)
	return extentfs.FileStat{
		InodeNumber:  uint64(num),
		Nlinks:       uint64(ino.Links),
		ModeFlags:    ino.Mode,
		Size:         int64(ino.Size),
		BlockSize:    BlockSize,
		NumBlocks:    int64(ino.Size / 512),
		LastModified: ino.Mtime(),
	}, nil
}

// ReadDir passes every entry name of the directory to `fill`: "." and ".."
// first, then live dentries in extent order. A fill failure is surfaced as
// out-of-memory, matching what readdir buffers mean by it.
func (fs *FileSystem) ReadDir(path string, fill func(name string) error) error {
	num, err := fs.lookup(path)
	if err != nil {
		return err
	}
	ino := fs.readInode(num)
	if !ino.IsDir() {
		return extentfs.ErrNotADirectory.WithMessage(path)
	}

	for _, dot := range []string{".", ".."} {
		if err := fill(dot); err != nil {
			return extentfs.ErrOutOfMemory.Wrap(err)
		}
	}
	return fs.forEachEntry(&ino, func(name string, _ uint32) error {
		if err := fill(name); err != nil {
			return extentfs.ErrOutOfMemory.Wrap(err)
		}
		return nil
	})
}

func (fs *FileSystem) Mkdir(path string, mode uint32) error {
	return fs.addEntry(path, mode|extentfs.S_IFDIR, 2)
}

func (fs *FileSystem) Rmdir(path string) error {
	num, err := fs.lookup(path)
	if err != nil {
		return err
	}
	ino := fs.readInode(num)
	if !ino.IsDir() {
		return extentfs.ErrNotADirectory.WithMessage(path)
	}
	if !fs.isEmpty(&ino) {
		return extentfs.ErrDirectoryNotEmpty.WithMessage(path)
	}
	return fs.removeEntry(path)
}

// Create makes a regular file. The front-end asserts the mode describes one.
func (fs *FileSystem) Create(path string, mode uint32) error {
	return fs.addEntry(path, mode, 1)
}

func (fs *FileSystem) Unlink(path string) error {
	return fs.removeEntry(path)
}

// Utimens applies a new modification time following the utimensat(2)
// conventions: a nil times pointer means "now", UTIME_OMIT leaves the stamp
// untouched, UTIME_NOW substitutes the current clock reading. Access times
// are not stored, so times[0] is ignored.
func (fs *FileSystem) Utimens(path string, times *[2]extentfs.Timespec) error {
	num, err := fs.lookup(path)
	if err != nil {
		return err
	}
	ino := fs.readInode(num)

	var mtime time.Time
	switch {
	case times == nil:
		mtime = fs.clock.Now()
	case times[1].Nsec == extentfs.UTIME_OMIT:
		return nil
	case times[1].Nsec == extentfs.UTIME_NOW:
		mtime = fs.clock.Now()
	default:
		mtime = time.Unix(times[1].Sec, times[1].Nsec)
	}

	ino.setMtime(mtime)
	fs.writeInode(num, &ino)
	return nil
}

func (fs *FileSystem) Truncate(path string, size uint64) error {
	num, err := fs.lookup(path)
	if err != nil {
		return err
	}
	ino := fs.readInode(num)
	return fs.truncateInode(num, &ino, size)
}

// Read fills buf with file data starting at `offset` and returns the byte
// count. The front-end never asks for a range spanning more than one block.
func (fs *FileSystem) Read(path string, buf []byte, offset uint64) (int, error) {
	num, err := fs.lookup(path)
	if err != nil {
		return 0, err
	}
	ino := fs.readInode(num)
	return fs.readFile(&ino, buf, offset), nil
}

// Write stores buf at `offset`, extending the file as needed, and returns
// the byte count. Same single-block contract as Read.
func (fs *FileSystem) Write(path string, buf []byte, offset uint64) (int, error) {
	num, err := fs.lookup(path)
	if err != nil {
		return 0, err
	}
	ino := fs.readInode(num)
	return fs.writeFile(num, &ino, buf, offset)
}
