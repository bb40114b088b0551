// a1fs mounts an a1fs disk image on a directory and serves it over FUSE
// until the mount point is unmounted.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jacobsa/fuse"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/RyanSGoldberg/ExtentBasedFS/file_systems/a1fs"
	"github.com/RyanSGoldberg/ExtentBasedFS/fusefs"
	"github.com/RyanSGoldberg/ExtentBasedFS/imagefile"
)

func main() {
	app := &cli.App{
		Name:      "a1fs",
		Usage:     "Mount an a1fs disk image",
		ArgsUsage: "IMAGE MOUNT_POINT",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "read-only",
				Usage: "mount the image read-only",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log every file system operation",
			},
		},
		Action: mountImage,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "a1fs: %s\n", err.Error())
		os.Exit(1)
	}
}

func mountImage(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("an image path and a mount point are required")
	}
	imagePath := ctx.Args().Get(0)
	mountPoint := ctx.Args().Get(1)

	logger := logrus.New()
	if ctx.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}

	img, err := imagefile.OpenFile(imagePath)
	if err != nil {
		return err
	}

	fsys, err := a1fs.Mount(img, a1fs.MountOptions{Log: logger})
	if err != nil {
		img.Close()
		return err
	}

	if auditErr := fsys.Check(); auditErr != nil {
		logger.WithError(auditErr).Warn("image failed the consistency audit")
	}

	mfs, err := fuse.Mount(mountPoint, fusefs.NewServer(fsys), &fuse.MountConfig{
		FSName:   "a1fs",
		ReadOnly: ctx.Bool("read-only"),
	})
	if err != nil {
		fsys.Unmount()
		return fmt.Errorf("failed to mount %q on %q: %w", imagePath, mountPoint, err)
	}

	if err := mfs.Join(context.Background()); err != nil {
		fsys.Unmount()
		return err
	}
	return fsys.Unmount()
}
