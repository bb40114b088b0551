package disks_test

import (
	"testing"

	"github.com/RyanSGoldberg/ExtentBasedFS/disks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPredefinedImageProfile(t *testing.T) {
	profile, err := disks.GetPredefinedImageProfile("tiny")
	require.NoError(t, err)

	assert.Equal(t, "tiny", profile.Slug)
	assert.EqualValues(t, 262144, profile.SizeBytes)
	assert.EqualValues(t, 256, profile.Inodes)
}

func TestGetPredefinedImageProfileMissing(t *testing.T) {
	_, err := disks.GetPredefinedImageProfile("zip100")
	assert.Error(t, err)
}

func TestAllProfilesAreBlockAligned(t *testing.T) {
	for _, slug := range disks.Slugs() {
		profile, err := disks.GetPredefinedImageProfile(slug)
		require.NoError(t, err)

		assert.Zerof(
			t, profile.SizeBytes%4096, "profile %q is not a multiple of 4096", slug)
		assert.Positivef(t, profile.Inodes, "profile %q has no inodes", slug)
	}
}
