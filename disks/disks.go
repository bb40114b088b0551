// Package disks holds a small database of predefined image profiles, used by
// the formatter's -p flag to pick a sensible image size and inode count
// without doing arithmetic on the command line.
package disks

import (
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// ImageProfile describes one predefined image configuration.
type ImageProfile struct {
	Name string `csv:"name"`
	Slug string `csv:"slug"`

	// SizeBytes is the image size. Always a multiple of 4096.
	SizeBytes int64 `csv:"size_bytes"`

	// Inodes is the number of inode slots the formatter reserves.
	Inodes uint `csv:"inodes"`

	Notes string `csv:"notes"`
}

//go:embed image-profiles.csv
var imageProfilesRawCSV string

var imageProfiles = make(map[string]ImageProfile)

// GetPredefinedImageProfile looks up a profile by its slug.
func GetPredefinedImageProfile(slug string) (ImageProfile, error) {
	profile, ok := imageProfiles[slug]
	if ok {
		return profile, nil
	}

	err := fmt.Errorf("no predefined image profile exists with slug %q", slug)
	return ImageProfile{}, err
}

// Slugs returns the slugs of all predefined profiles in sorted order.
func Slugs() []string {
	slugs := make([]string, 0, len(imageProfiles))
	for slug := range imageProfiles {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

func init() {
	reader := strings.NewReader(imageProfilesRawCSV)
	err := gocsv.UnmarshalToCallback(
		reader,
		func(row ImageProfile) error {
			_, exists := imageProfiles[row.Slug]
			if exists {
				return fmt.Errorf(
					"duplicate definition for image profile %q found on row %d",
					row.Slug,
					len(imageProfiles)+1,
				)
			}
			imageProfiles[row.Slug] = row
			return nil
		},
	)
	if err != nil && err != io.EOF {
		panic(err)
	}
}
