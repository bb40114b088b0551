package a1fs

import (
	"fmt"
	"strings"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
)

// lookup resolves an absolute path to an inode number. Paths are treated as
// immutable byte strings: components are compared by plain byte equality,
// with no normalization and no case folding. Empty components (from doubled
// or trailing slashes) are skipped.
func (fs *FileSystem) lookup(path string) (uint32, error) {
	if len(path) == 0 || path[0] != '/' {
		return 0, extentfs.ErrNotFound.WithMessage(
			fmt.Sprintf("%q is not an absolute path", path),
		)
	}

	current := uint32(0)
	for i := 0; i < len(path); {
		for i < len(path) && path[i] == '/' {
			i++
		}
		j := i
		for j < len(path) && path[j] != '/' {
			j++
		}
		if i == j {
			break
		}
		component := path[i:j]
		i = j

		ino := fs.readInode(current)
		if !ino.IsDir() {
			return 0, extentfs.ErrNotADirectory.WithMessage(
				fmt.Sprintf("%q: %q is not a directory", path, component),
			)
		}

		child, found := fs.findEntry(&ino, component)
		if !found {
			return 0, extentfs.ErrNotFound.WithMessage(path)
		}
		current = child
	}
	return current, nil
}

// splitParent splits a path into its parent directory and final component.
func splitParent(path string) (parent, base string) {
	idx := strings.LastIndexByte(path, '/')
	if idx <= 0 {
		return "/", path[idx+1:]
	}
	return path[:idx], path[idx+1:]
}
