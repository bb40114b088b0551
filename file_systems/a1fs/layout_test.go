package a1fs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeGeometry(t *testing.T) {
	geom, err := ComputeGeometry(testImageSize, testNumInodes)
	require.NoError(t, err)

	// 64 blocks: 1 reserved + 1 superblock + 1 bitmap + 8 inode table.
	assert.EqualValues(t, 64, geom.TotalBlocks)
	assert.EqualValues(t, 8, geom.InodeTableBlocks)
	assert.EqualValues(t, 1, geom.BitmapBlocks)
	assert.EqualValues(t, testDataBlocks, geom.DataBlocks)
}

func TestComputeGeometryRejectsUnalignedSize(t *testing.T) {
	_, err := ComputeGeometry(testImageSize+17, testNumInodes)
	assert.Error(t, err)

	_, err = ComputeGeometry(0, testNumInodes)
	assert.Error(t, err)
}

func TestComputeGeometryRejectsOversizedInodeTable(t *testing.T) {
	// Four blocks can hold the reserved block, the superblock, and nothing
	// else worth mounting.
	_, err := ComputeGeometry(4*BlockSize, 256)
	assert.Error(t, err)

	// The inode table alone would fill the image.
	_, err = ComputeGeometry(testImageSize, 100000)
	assert.Error(t, err)

	_, err = ComputeGeometry(testImageSize, 0)
	assert.Error(t, err)
}

func TestSuperblockRoundTrip(t *testing.T) {
	geom, err := ComputeGeometry(testImageSize, testNumInodes)
	require.NoError(t, err)

	sb := geom.NewSuperblock()
	sb.FreeInodes = 200
	sb.FreeDataBlocks = 31

	var buf [superblockSize]byte
	sb.encode(buf[:])
	decoded := decodeSuperblock(buf[:])

	assert.Equal(t, sb, decoded)
}

func TestSuperblockMatchesGeometry(t *testing.T) {
	geom, err := ComputeGeometry(testImageSize, testNumInodes)
	require.NoError(t, err)

	sb := geom.NewSuperblock()
	assert.True(t, sb.matchesGeometry())

	tampered := sb
	tampered.DataStart++
	assert.False(t, tampered.matchesGeometry())

	tampered = sb
	tampered.NumDataBlocks--
	assert.False(t, tampered.matchesGeometry())

	tampered = sb
	tampered.FreeDataBlocks = tampered.NumDataBlocks + 1
	assert.False(t, tampered.matchesGeometry())
}
