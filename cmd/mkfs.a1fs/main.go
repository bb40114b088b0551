// mkfs.a1fs initializes a disk image file with an empty a1fs file system.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/RyanSGoldberg/ExtentBasedFS/disks"
	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/a1fs"
	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

func main() {
	app := &cli.App{
		Name:      "mkfs.a1fs",
		Usage:     "Initialize a disk image with an empty a1fs file system",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "i",
				Usage: "number of inode slots to reserve (required unless -p is given)",
			},
			&cli.BoolFlag{
				Name:  "f",
				Usage: "overwrite an image that already contains a file system",
			},
			&cli.BoolFlag{
				Name:  "z",
				Usage: "zero-fill the whole image before formatting",
			},
			&cli.StringFlag{
				Name:  "p",
				Usage: "size the image from a predefined profile (see the disks package)",
			},
		},
		Action: formatImage,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mkfs.a1fs: %s\n", err.Error())
		os.Exit(1)
	}
}

func formatImage(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("exactly one image path is required")
	}
	imagePath := ctx.Args().First()
	inodes := uint32(ctx.Uint("i"))

	if slug := ctx.String("p"); slug != "" {
		profile, err := disks.GetPredefinedImageProfile(slug)
		if err != nil {
			return err
		}
		if inodes == 0 {
			inodes = uint32(profile.Inodes)
		}

		// Profiles may be used to create the image from nothing.
		if _, err := os.Stat(imagePath); os.IsNotExist(err) {
			if err := createEmptyImage(imagePath, profile.SizeBytes); err != nil {
				return err
			}
		}
	}

	if inodes == 0 {
		return fmt.Errorf("the -i flag must be a positive inode count")
	}

	img, err := imagefile.OpenFile(imagePath)
	if err != nil {
		return err
	}
	defer img.Close()

	return a1fs.Format(img, a1fs.FormatOptions{
		NumInodes: inodes,
		Force:     ctx.Bool("f"),
		Zero:      ctx.Bool("z"),
	})
}

func createEmptyImage(path string, size int64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	truncErr := file.Truncate(size)
	closeErr := file.Close()
	if truncErr != nil {
		return truncErr
	}
	return closeErr
}
