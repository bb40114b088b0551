// Package imagetest provides helpers for building formatted in-memory images
// in unit tests.
package imagetest

import (
	"testing"
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/a1fs"
	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

// DefaultImageSize and DefaultNumInodes describe the small volume most tests
// run against: 64 blocks of 4 KiB and 256 inode slots.
const DefaultImageSize = 256 * 1024
const DefaultNumInodes = 256

// Epoch is the timestamp simulated clocks start at.
var Epoch = time.Date(2020, time.September, 21, 14, 30, 0, 0, time.UTC)

// NewClock returns a simulated clock pinned to Epoch.
func NewClock() timeutil.Clock {
	clock := &timeutil.SimulatedClock{}
	clock.SetTime(Epoch)
	return clock
}

func quietLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// FormattedImage returns an in-memory image of the given size, freshly
// formatted with `inodes` inode slots. It fails the test on any error.
func FormattedImage(t *testing.T, size int64, inodes uint32) *imagefile.Image {
	t.Helper()

	img := imagefile.New(size)
	err := a1fs.Format(img, a1fs.FormatOptions{
		NumInodes: inodes,
		Clock:     NewClock(),
		Log:       quietLogger(),
	})
	require.NoError(t, err, "failed to format test image")
	return img
}

// Mount formats nothing; it mounts an already-formatted image with a
// simulated clock and a quiet logger.
func Mount(t *testing.T, img *imagefile.Image) *a1fs.FileSystem {
	t.Helper()

	fs, err := a1fs.Mount(img, a1fs.MountOptions{
		Clock: NewClock(),
		Log:   quietLogger(),
	})
	require.NoError(t, err, "failed to mount test image")
	return fs
}

// MountFormatted is the common case: a DefaultImageSize image with
// DefaultNumInodes slots, formatted and mounted.
func MountFormatted(t *testing.T) *a1fs.FileSystem {
	t.Helper()
	return Mount(t, FormattedImage(t, DefaultImageSize, DefaultNumInodes))
}
