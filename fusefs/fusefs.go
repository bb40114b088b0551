// Package fusefs exposes a mounted a1fs image through the kernel's FUSE
// interface, using the jacobsa/fuse dispatch loop.
//
// The a1fs core is path-keyed while FUSE speaks inode IDs, so the server
// keeps a table mapping the IDs it has handed to the kernel back to paths.
// IDs are derived from the on-image inode numbers, shifted so that the
// image's root lines up with fuseops.RootInodeID.
package fusefs

import (
	"context"
	"os"
	"path"
	"sync"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/a1fs"
)

type fileSystem struct {
	fuseutil.NotImplementedFileSystem

	// The core runs to completion between callbacks and performs no locking
	// of its own, so the server serializes every operation.
	mu   sync.Mutex
	fsys *a1fs.FileSystem

	// paths maps each inode ID handed to the kernel to the path it was
	// resolved from.
	paths map[fuseops.InodeID]string
}

// NewServer wraps a mounted file system in a FUSE server.
func NewServer(fsys *a1fs.FileSystem) fuse.Server {
	fs := &fileSystem{
		fsys:  fsys,
		paths: map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
	}
	return fuseutil.NewFileSystemServer(fs)
}

func inodeID(stat extentfs.FileStat) fuseops.InodeID {
	return fuseops.InodeID(stat.InodeNumber) + fuseops.RootInodeID
}

func attributes(stat extentfs.FileStat) fuseops.InodeAttributes {
	mode := os.FileMode(stat.ModeFlags & 0o777)
	if stat.IsDir() {
		mode |= os.ModeDir
	}
	return fuseops.InodeAttributes{
		Size:  uint64(stat.Size),
		Nlink: uint32(stat.Nlinks),
		Mode:  mode,
		Mtime: stat.LastModified,
		Ctime: stat.LastModified,
	}
}

// pathOf resolves an inode ID previously handed to the kernel.
func (fs *fileSystem) pathOf(id fuseops.InodeID) (string, error) {
	p, ok := fs.paths[id]
	if !ok {
		return "", fuse.ENOENT
	}
	return p, nil
}

// record resolves a child path, registers its ID, and fills a lookup entry.
func (fs *fileSystem) record(childPath string, entry *fuseops.ChildInodeEntry) error {
	stat, err := fs.fsys.GetAttr(childPath)
	if err != nil {
		return extentfs.Errno(err)
	}

	id := inodeID(stat)
	fs.paths[id] = childPath
	entry.Child = id
	entry.Attributes = attributes(stat)
	return nil
}

func (fs *fileSystem) StatFS(
	ctx context.Context,
	op *fuseops.StatFSOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	stat := fs.fsys.StatFS()
	op.BlockSize = uint32(stat.BlockSize)
	op.Blocks = stat.TotalBlocks
	op.BlocksFree = stat.BlocksFree
	op.BlocksAvailable = stat.BlocksAvailable
	op.IoSize = uint32(stat.BlockSize)
	op.Inodes = stat.Files
	op.InodesFree = stat.FilesFree
	return nil
}

func (fs *fileSystem) LookUpInode(
	ctx context.Context,
	op *fuseops.LookUpInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathOf(op.Parent)
	if err != nil {
		return err
	}
	return fs.record(path.Join(parentPath, op.Name), &op.Entry)
}

func (fs *fileSystem) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathOf(op.Inode)
	if err != nil {
		return err
	}

	stat, attrErr := fs.fsys.GetAttr(p)
	if attrErr != nil {
		return extentfs.Errno(attrErr)
	}
	op.Attributes = attributes(stat)
	return nil
}

func (fs *fileSystem) SetInodeAttributes(
	ctx context.Context,
	op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathOf(op.Inode)
	if err != nil {
		return err
	}

	if op.Size != nil {
		if err := fs.fsys.Truncate(p, *op.Size); err != nil {
			return extentfs.Errno(err)
		}
	}
	if op.Mtime != nil {
		times := [2]extentfs.Timespec{
			{Nsec: extentfs.UTIME_OMIT},
			{Sec: op.Mtime.Unix(), Nsec: int64(op.Mtime.Nanosecond())},
		}
		if err := fs.fsys.Utimens(p, &times); err != nil {
			return extentfs.Errno(err)
		}
	}

	stat, attrErr := fs.fsys.GetAttr(p)
	if attrErr != nil {
		return extentfs.Errno(attrErr)
	}
	op.Attributes = attributes(stat)
	return nil
}

func (fs *fileSystem) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) error {
	// Path mappings are cheap; keep them for the life of the mount.
	return nil
}

func (fs *fileSystem) MkDir(
	ctx context.Context,
	op *fuseops.MkDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathOf(op.Parent)
	if err != nil {
		return err
	}

	childPath := path.Join(parentPath, op.Name)
	if err := fs.fsys.Mkdir(childPath, uint32(op.Mode.Perm())); err != nil {
		return extentfs.Errno(err)
	}
	return fs.record(childPath, &op.Entry)
}

func (fs *fileSystem) CreateFile(
	ctx context.Context,
	op *fuseops.CreateFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathOf(op.Parent)
	if err != nil {
		return err
	}

	childPath := path.Join(parentPath, op.Name)
	mode := uint32(op.Mode.Perm()) | extentfs.S_IFREG
	if err := fs.fsys.Create(childPath, mode); err != nil {
		return extentfs.Errno(err)
	}
	return fs.record(childPath, &op.Entry)
}

func (fs *fileSystem) RmDir(
	ctx context.Context,
	op *fuseops.RmDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathOf(op.Parent)
	if err != nil {
		return err
	}
	if err := fs.fsys.Rmdir(path.Join(parentPath, op.Name)); err != nil {
		return extentfs.Errno(err)
	}
	return nil
}

func (fs *fileSystem) Unlink(
	ctx context.Context,
	op *fuseops.UnlinkOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentPath, err := fs.pathOf(op.Parent)
	if err != nil {
		return err
	}
	if err := fs.fsys.Unlink(path.Join(parentPath, op.Name)); err != nil {
		return extentfs.Errno(err)
	}
	return nil
}

func (fs *fileSystem) OpenDir(
	ctx context.Context,
	op *fuseops.OpenDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.pathOf(op.Inode)
	return err
}

func (fs *fileSystem) ReadDir(
	ctx context.Context,
	op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dirPath, err := fs.pathOf(op.Inode)
	if err != nil {
		return err
	}

	var dirents []fuseutil.Dirent
	listErr := fs.fsys.ReadDir(dirPath, func(name string) error {
		entryPath := dirPath
		if name != "." && name != ".." {
			entryPath = path.Join(dirPath, name)
		}

		stat, err := fs.fsys.GetAttr(entryPath)
		if err != nil {
			return err
		}

		direntType := fuseutil.DT_File
		if stat.IsDir() {
			direntType = fuseutil.DT_Directory
		}
		dirents = append(dirents, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(dirents) + 1),
			Inode:  inodeID(stat),
			Name:   name,
			Type:   direntType,
		})
		return nil
	})
	if listErr != nil {
		return extentfs.Errno(listErr)
	}

	if op.Offset > fuseops.DirOffset(len(dirents)) {
		return fuse.EINVAL
	}
	for _, dirent := range dirents[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], dirent)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *fileSystem) ReleaseDirHandle(
	ctx context.Context,
	op *fuseops.ReleaseDirHandleOp) error {
	return nil
}

func (fs *fileSystem) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, err := fs.pathOf(op.Inode)
	return err
}

func (fs *fileSystem) ReadFile(
	ctx context.Context,
	op *fuseops.ReadFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathOf(op.Inode)
	if err != nil {
		return err
	}

	// The core serves ranges within a single block; carve the request up
	// along block boundaries.
	offset := uint64(op.Offset)
	for op.BytesRead < len(op.Dst) {
		chunk := a1fs.BlockSize - offset%a1fs.BlockSize
		if remaining := uint64(len(op.Dst) - op.BytesRead); chunk > remaining {
			chunk = remaining
		}

		n, readErr := fs.fsys.Read(p, op.Dst[op.BytesRead:op.BytesRead+int(chunk)], offset)
		if readErr != nil {
			return extentfs.Errno(readErr)
		}
		op.BytesRead += n
		offset += uint64(n)

		if uint64(n) < chunk {
			break
		}
	}
	return nil
}

func (fs *fileSystem) WriteFile(
	ctx context.Context,
	op *fuseops.WriteFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p, err := fs.pathOf(op.Inode)
	if err != nil {
		return err
	}

	offset := uint64(op.Offset)
	written := 0
	for written < len(op.Data) {
		chunk := a1fs.BlockSize - offset%a1fs.BlockSize
		if remaining := uint64(len(op.Data) - written); chunk > remaining {
			chunk = remaining
		}

		n, writeErr := fs.fsys.Write(p, op.Data[written:written+int(chunk)], offset)
		if writeErr != nil {
			return extentfs.Errno(writeErr)
		}
		written += n
		offset += uint64(n)
	}
	return nil
}

func (fs *fileSystem) FlushFile(
	ctx context.Context,
	op *fuseops.FlushFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.fsys.Flush(); err != nil {
		return fuse.EIO
	}
	return nil
}

func (fs *fileSystem) SyncFile(
	ctx context.Context,
	op *fuseops.SyncFileOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.fsys.Flush(); err != nil {
		return fuse.EIO
	}
	return nil
}
