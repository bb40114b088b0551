package imagefile_test

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

func TestInMemoryImage(t *testing.T) {
	img := imagefile.New(8192)
	assert.EqualValues(t, 8192, img.Size())
	assert.Len(t, img.Bytes(), 8192)

	img.Bytes()[100] = 0x42
	assert.Equal(t, byte(0x42), img.Bytes()[100])

	require.NoError(t, img.Flush())
	require.NoError(t, img.Close())
	assert.Nil(t, img.Bytes())
}

func TestStreamAliasesBuffer(t *testing.T) {
	img := imagefile.New(4096)
	stream := img.Stream()

	_, err := stream.Seek(32, io.SeekStart)
	require.NoError(t, err)
	require.NoError(t, binary.Write(stream, binary.LittleEndian, uint32(0xDEADBEEF)))

	assert.Equal(t, uint32(0xDEADBEEF), binary.LittleEndian.Uint32(img.Bytes()[32:]))
}

func TestOpenFileMapsExistingImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.img")
	payload := make([]byte, 16384)
	payload[5000] = 0x77
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	img, err := imagefile.OpenFile(path)
	require.NoError(t, err)

	assert.EqualValues(t, 16384, img.Size())
	assert.Equal(t, byte(0x77), img.Bytes()[5000])

	// Writes through the mapping land in the file.
	img.Bytes()[0] = 0xAB
	require.NoError(t, img.Close())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), onDisk[0])
}

func TestOpenFileRejectsMissingOrEmpty(t *testing.T) {
	_, err := imagefile.OpenFile(filepath.Join(t.TempDir(), "missing.img"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.img")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err = imagefile.OpenFile(path)
	assert.Error(t, err)
}
