package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"github.com/gogpu/irradiance/envmap"
)

// Convert an image strip to the .cubeenv format.
func encodeStrip(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() != 1 {
		return errors.New("expected exactly one image strip argument")
	}
	comp, err := envmap.ParseCompression(ctx.String("compression"))
	if err != nil {
		return err
	}

	in := ctx.Args().First()
	out := ctx.String("out")
	if out == "" {
		out = cubeenvName(in)
	}
	size, err := convertStrip(in, out, ctx.Int("size"), comp)
	if err != nil {
		return err
	}

	logger.Info("strip encoded", "in", in, "out", out, "size", size, "compression", comp.String())
	return nil
}

// cubeenvName replaces the extension of path with .cubeenv.
func cubeenvName(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".cubeenv"
}

// convertStrip decodes the image strip at in and writes it to out,
// returning the encoded face size.
func convertStrip(in, out string, size int, comp envmap.Compression) (int, error) {
	cube, err := envmap.ReadFile(in, size)
	if err != nil {
		return 0, err
	}
	if err := writeCube(out, cube, comp); err != nil {
		return 0, err
	}
	return cube.Size, nil
}
