package a1fs

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	extentfs "github.com/RyanSGoldberg/ExtentBasedFS"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

// The white-box tests run against a 256 KiB image with 256 inodes: 64 blocks
// total; block 0, the superblock, 1 bitmap block and 8 inode table blocks
// leave 53 data blocks.
const testImageSize = 256 * 1024
const testNumInodes = 256
const testDataBlocks = 53

var testEpoch = time.Date(2020, time.September, 21, 14, 30, 0, 0, time.UTC)

func newTestClock() timeutil.Clock {
	clock := &timeutil.SimulatedClock{}
	clock.SetTime(testEpoch)
	return clock
}

func newTestLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestFS(t *testing.T) *FileSystem {
	t.Helper()

	img := imagefile.New(testImageSize)
	err := Format(img, FormatOptions{
		NumInodes: testNumInodes,
		Clock:     newTestClock(),
		Log:       newTestLogger(),
	})
	require.NoError(t, err)

	fs, err := Mount(img, MountOptions{Clock: newTestClock(), Log: newTestLogger()})
	require.NoError(t, err)
	return fs
}

// claimBlock marks a data block as allocated the way the allocator would,
// keeping the free counter in step.
func claimBlock(fs *FileSystem, block uint32) {
	fs.setBlock(common.PhysicalBlock(block))
	fs.sb.FreeDataBlocks--
	fs.writeSuperblock()
}

// newTestInode claims the lowest free inode slot as a regular file.
func newTestInode(t *testing.T, fs *FileSystem) (uint32, Inode) {
	t.Helper()

	num, ok := fs.allocateInode()
	require.True(t, ok, "no free inode slot")

	ino := fs.initInode(num, extentfs.S_IFREG|0o644, 1)
	fs.sb.FreeInodes--
	fs.writeSuperblock()
	return num, ino
}
