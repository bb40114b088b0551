package a1fs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
)

func TestDentryCodec(t *testing.T) {
	var slot [DentrySize]byte

	writeDentry(slot[:], "notes.txt", 17)
	assert.Equal(t, "notes.txt", dentryName(slot[:]))
	assert.EqualValues(t, 17, dentryInode(slot[:]))

	// Re-using a slot for a shorter name must not leak the old one.
	writeDentry(slot[:], "a", 3)
	assert.Equal(t, "a", dentryName(slot[:]))
	assert.EqualValues(t, 3, dentryInode(slot[:]))
}

func TestAddEntryCreatesFile(t *testing.T) {
	fs := newTestFS(t)

	require.NoError(t, fs.addEntry("/hello", extentfs.S_IFREG|0o644, 1))

	root := fs.readInode(0)
	assert.EqualValues(t, BlockSize, root.Size, "root picked up its first block")
	assert.EqualValues(t, 2, root.Links, "files don't add a back-link")

	num, found := fs.findEntry(&root, "hello")
	require.True(t, found)

	ino := fs.readInode(num)
	assert.EqualValues(t, 1, ino.Links)
	assert.EqualValues(t, 0, ino.Size)
	assert.Equal(t, testEpoch.Unix(), ino.MtimeSec)
	assert.NoError(t, fs.Check())
}

func TestAddEntryCreatesDirectory(t *testing.T) {
	fs := newTestFS(t)

	require.NoError(t, fs.addEntry("/sub", extentfs.S_IFDIR|0o755, 2))

	root := fs.readInode(0)
	assert.EqualValues(t, 3, root.Links, "subdirectory adds a back-link")

	num, found := fs.findEntry(&root, "sub")
	require.True(t, found)

	sub := fs.readInode(num)
	assert.True(t, sub.IsDir())
	assert.EqualValues(t, 2, sub.Links)
	assert.EqualValues(t, BlockSize, sub.Size)
	assert.True(t, fs.isEmpty(&sub))
	assert.NoError(t, fs.Check())
}

func TestAddEntryRejectsLongNames(t *testing.T) {
	fs := newTestFS(t)

	name := "/" + strings.Repeat("x", MaxNameLength)
	assert.NoError(t, fs.addEntry(name, extentfs.S_IFREG|0o644, 1))

	name = "/" + strings.Repeat("x", MaxNameLength+1)
	assert.ErrorIs(
		t,
		fs.addEntry(name, extentfs.S_IFREG|0o644, 1),
		extentfs.ErrNameTooLong,
	)
}

func TestAddEntryFillsBlockBeforeGrowing(t *testing.T) {
	fs := newTestFS(t)

	// A block holds exactly DentriesPerBlock entries; filling it must not
	// grow the directory.
	for i := 0; i < DentriesPerBlock; i++ {
		path := fmt.Sprintf("/f%02d", i)
		require.NoError(t, fs.addEntry(path, extentfs.S_IFREG|0o644, 1))
	}

	root := fs.readInode(0)
	assert.EqualValues(t, BlockSize, root.Size)

	// The next entry needs a second block.
	require.NoError(t, fs.addEntry("/overflow", extentfs.S_IFREG|0o644, 1))
	root = fs.readInode(0)
	assert.EqualValues(t, 2*BlockSize, root.Size)
	assert.NoError(t, fs.Check())
}

func TestAddEntryReusesFreedSlots(t *testing.T) {
	fs := newTestFS(t)

	require.NoError(t, fs.addEntry("/a", extentfs.S_IFREG|0o644, 1))
	require.NoError(t, fs.addEntry("/b", extentfs.S_IFREG|0o644, 1))
	require.NoError(t, fs.removeEntry("/a"))
	require.NoError(t, fs.addEntry("/c", extentfs.S_IFREG|0o644, 1))

	root := fs.readInode(0)
	assert.EqualValues(t, BlockSize, root.Size, "the freed slot is reused")

	_, found := fs.findEntry(&root, "a")
	assert.False(t, found)
	_, found = fs.findEntry(&root, "c")
	assert.True(t, found)
}

func TestRemoveEntryRestoresCounters(t *testing.T) {
	fs := newTestFS(t)

	// Seed the root with its first dentry block so the round trip below
	// starts from a steady state.
	require.NoError(t, fs.addEntry("/keep", extentfs.S_IFREG|0o644, 1))

	freeInodes := fs.sb.FreeInodes
	freeBlocks := fs.sb.FreeDataBlocks
	rootLinks := fs.readInode(0).Links

	require.NoError(t, fs.addEntry("/dir", extentfs.S_IFDIR|0o755, 2))
	require.NoError(t, fs.removeEntry("/dir"))

	assert.Equal(t, freeInodes, fs.sb.FreeInodes)
	assert.Equal(t, freeBlocks, fs.sb.FreeDataBlocks)
	assert.Equal(t, rootLinks, fs.readInode(0).Links)
	assert.NoError(t, fs.Check())
}

func TestRemoveEntryMissingName(t *testing.T) {
	fs := newTestFS(t)
	assert.ErrorIs(t, fs.removeEntry("/ghost"), extentfs.ErrNotFound)
}

func TestLookupWalksComponents(t *testing.T) {
	fs := newTestFS(t)

	require.NoError(t, fs.addEntry("/a", extentfs.S_IFDIR|0o755, 2))
	require.NoError(t, fs.addEntry("/a/b", extentfs.S_IFDIR|0o755, 2))
	require.NoError(t, fs.addEntry("/a/b/c", extentfs.S_IFREG|0o644, 1))

	num, err := fs.lookup("/a/b/c")
	require.NoError(t, err)
	assert.False(t, fs.readInode(num).IsDir())

	// Doubled slashes are harmless; the root resolves to inode 0.
	num, err = fs.lookup("//a//b")
	require.NoError(t, err)
	assert.True(t, fs.readInode(num).IsDir())

	num, err = fs.lookup("/")
	require.NoError(t, err)
	assert.EqualValues(t, 0, num)
}

func TestLookupErrors(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.addEntry("/file", extentfs.S_IFREG|0o644, 1))

	_, err := fs.lookup("relative/path")
	assert.ErrorIs(t, err, extentfs.ErrNotFound)

	_, err = fs.lookup("/missing")
	assert.ErrorIs(t, err, extentfs.ErrNotFound)

	_, err = fs.lookup("/file/below")
	assert.ErrorIs(t, err, extentfs.ErrNotADirectory)
}

func TestDirectoryGrowsIndirectExtents(t *testing.T) {
	fs := newTestFS(t)

	// Interleave zero-length files with single-byte spacers so the root
	// directory's blocks can't stay contiguous: each full dentry block is
	// followed by a spacer that claims the next free block, forcing the
	// directory's next block into a new extent.
	files := 0
	for block := 0; block < 12; block++ {
		for i := 0; i < DentriesPerBlock-1; i++ {
			path := fmt.Sprintf("/e%03d", files)
			require.NoError(t, fs.addEntry(path, extentfs.S_IFREG|0o644, 1))
			files++
		}

		spacer := fmt.Sprintf("/s%03d", block)
		require.NoError(t, fs.addEntry(spacer, extentfs.S_IFREG|0o644, 1))

		num, err := fs.lookup(spacer)
		require.NoError(t, err)
		ino := fs.readInode(num)
		_, err = fs.writeFile(num, &ino, []byte{0xA5}, 0)
		require.NoError(t, err)
	}

	root := fs.readInode(0)
	require.Greater(t, root.NumExtents, uint32(NumDirectExtents),
		"the directory needs its indirect block")
	assert.NotZero(t, root.IndirectBlock)

	// Every entry is still reachable, and one more fits.
	for i := 0; i < files; i++ {
		_, found := fs.findEntry(&root, fmt.Sprintf("e%03d", i))
		require.Truef(t, found, "entry e%03d went missing", i)
	}
	require.NoError(t, fs.addEntry("/latecomer", extentfs.S_IFDIR|0o755, 2))

	root = fs.readInode(0)
	_, found := fs.findEntry(&root, "latecomer")
	assert.True(t, found)
	assert.NoError(t, fs.Check())
}
