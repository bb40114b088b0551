package a1fs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/common"
)

func TestFindRunOnEmptyBitmap(t *testing.T) {
	fs := newTestFS(t)

	start, count, ok := fs.findRun(5)
	assert.True(t, ok)
	assert.EqualValues(t, 0, start)
	assert.EqualValues(t, 5, count)
}

func TestFindRunSkipsAllocatedPrefix(t *testing.T) {
	fs := newTestFS(t)
	for block := uint32(0); block < 9; block++ {
		claimBlock(fs, block)
	}

	start, count, ok := fs.findRun(3)
	assert.True(t, ok)
	assert.EqualValues(t, 9, start)
	assert.EqualValues(t, 3, count)
}

func TestFindRunReturnsLongestRunWhenNothingFits(t *testing.T) {
	fs := newTestFS(t)

	// Leave free runs of 2, 5, and 3 blocks; everything else is claimed.
	free := map[uint32]bool{}
	for _, run := range []struct{ start, length uint32 }{
		{3, 2}, {10, 5}, {20, 3},
	} {
		for b := run.start; b < run.start+run.length; b++ {
			free[b] = true
		}
	}
	for b := uint32(0); b < fs.sb.NumDataBlocks; b++ {
		if !free[b] {
			claimBlock(fs, b)
		}
	}

	start, count, ok := fs.findRun(8)
	assert.True(t, ok)
	assert.EqualValues(t, 10, start, "longest run should win")
	assert.EqualValues(t, 5, count)

	// A tie on length goes to the lowest start: free a second 5-block run
	// after the first one.
	for b := uint32(30); b < 35; b++ {
		fs.clearBlock(common.PhysicalBlock(b))
		fs.sb.FreeDataBlocks++
	}
	start, count, ok = fs.findRun(8)
	assert.True(t, ok)
	assert.EqualValues(t, 10, start)
	assert.EqualValues(t, 5, count)

	// An exact fit is still first-fit.
	start, count, ok = fs.findRun(2)
	assert.True(t, ok)
	assert.EqualValues(t, 3, start)
	assert.EqualValues(t, 2, count)
}

func TestFindRunOnFullBitmap(t *testing.T) {
	fs := newTestFS(t)
	for b := uint32(0); b < fs.sb.NumDataBlocks; b++ {
		claimBlock(fs, b)
	}

	_, _, ok := fs.findRun(1)
	assert.False(t, ok)
}

func TestFindRunStopsAtDataRegionEnd(t *testing.T) {
	fs := newTestFS(t)

	// Asking for more than the region holds degrades to the longest run,
	// which is the whole region; bits past the end read as allocated.
	start, count, ok := fs.findRun(fs.sb.NumDataBlocks + 10)
	assert.True(t, ok)
	assert.EqualValues(t, 0, start)
	assert.EqualValues(t, fs.sb.NumDataBlocks, count)
}

func TestTailLength(t *testing.T) {
	fs := newTestFS(t)
	claimBlock(fs, 6)

	assert.EqualValues(t, 6, fs.tailLength(0))
	assert.EqualValues(t, 0, fs.tailLength(6))
	assert.EqualValues(
		t, fs.sb.NumDataBlocks-7, fs.tailLength(7),
		"tail is bounded by the end of the data region")
}

func TestSetAndClearBlock(t *testing.T) {
	fs := newTestFS(t)

	assert.False(t, fs.blockInUse(common.PhysicalBlock(12)))
	fs.setBlock(common.PhysicalBlock(12))
	assert.True(t, fs.blockInUse(common.PhysicalBlock(12)))

	// Neighbours are untouched; the bitmap is LSB-first bit addressing.
	assert.False(t, fs.blockInUse(common.PhysicalBlock(11)))
	assert.False(t, fs.blockInUse(common.PhysicalBlock(13)))
	assert.Equal(t, byte(1<<4), fs.bitmap()[1])

	fs.clearBlock(common.PhysicalBlock(12))
	assert.False(t, fs.blockInUse(common.PhysicalBlock(12)))
}
