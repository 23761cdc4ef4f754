package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli"

	"github.com/gogpu/irradiance"
	"github.com/gogpu/irradiance/backend"
	"github.com/gogpu/irradiance/envmap"
	"github.com/gogpu/irradiance/gpucore"
)

// Bake one frame of irradiance into a .cubeenv file.
func bake(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.NArg() == 0 {
		return errors.New("missing source environment arguments")
	}
	comp, err := envmap.ParseCompression(ctx.String("compression"))
	if err != nil {
		return err
	}

	dev, err := openDevice(ctx.String("backend"))
	if err != nil {
		return err
	}
	defer dev.Close()
	logger.Info("device opened", "backend", dev.Name())

	start := time.Now()
	cube, stats, err := bakeCube(context.Background(), dev, []string(ctx.Args()), bakeParams{
		time:      ctx.Float64("time"),
		period:    float32(ctx.Float64("period")),
		stripSize: ctx.Int("strip-size"),
	})
	if err != nil {
		return err
	}

	out := ctx.String("out")
	if err := writeCube(out, cube, comp); err != nil {
		return err
	}

	logger.Info("irradiance baked",
		"out", out,
		"size", cube.Size,
		"index", stats.Index,
		"blend", stats.Blend,
		"dispatches", stats.Dispatches,
		"elapsed", time.Since(start))
	return nil
}

type bakeParams struct {
	time      float64
	period    float32
	stripSize int
}

// bakeCube loads paths, processes one frame at p.time and reads back
// level 0 of the irradiance pyramid. The cube has the extent of the
// largest source.
func bakeCube(c context.Context, dev gpucore.Device, paths []string, p bakeParams) (*envmap.Cube, irradiance.FrameStats, error) {
	loader := envmap.NewLoader(envmap.WithStripSize(p.stripSize))
	probe := irradiance.New(dev, loader, irradiance.WithPeriod(p.period))
	defer probe.Close()

	initCS, err := dev.NewCommandStream("bake_init")
	if err != nil {
		return nil, irradiance.FrameStats{}, err
	}
	uploads := &irradiance.Uploads{}
	defer uploads.Release(dev)
	if err := probe.Init(c, initCS, paths, uploads); err != nil {
		return nil, irradiance.FrameStats{}, err
	}
	if err := dev.Submit(c, initCS); err != nil {
		return nil, irradiance.FrameStats{}, fmt.Errorf("submit uploads: %w", err)
	}
	uploads.Release(dev)

	frameCS, err := dev.NewCommandStream("bake_frame")
	if err != nil {
		return nil, irradiance.FrameStats{}, err
	}
	probe.AdvanceTime(p.time)
	if err := probe.Process(frameCS, gpucore.StateCopySrc); err != nil {
		return nil, irradiance.FrameStats{}, err
	}
	if err := dev.Submit(c, frameCS); err != nil {
		return nil, irradiance.FrameStats{}, fmt.Errorf("submit frame: %w", err)
	}

	w, h := probe.Size()
	if w != h {
		return nil, irradiance.FrameStats{}, fmt.Errorf("irradiance faces are %dx%d, .cubeenv needs square faces", w, h)
	}
	data, err := dev.ReadTexture(c, probe.IrradianceResult(), 0)
	if err != nil {
		return nil, irradiance.FrameStats{}, fmt.Errorf("read irradiance: %w", err)
	}
	cube, err := envmap.FromTexels(data, irradiance.ResultFormat, w)
	if err != nil {
		return nil, irradiance.FrameStats{}, err
	}
	stats := probe.Stats()
	logger.Debug("frame read back", "size", w, "levels", probe.Levels(), "barriers", stats.Barriers)
	return cube, stats, nil
}

func openDevice(name string) (gpucore.Device, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Get(name)
}

func writeCube(path string, cube *envmap.Cube, comp envmap.Compression) error {
	f, err := os.Create(path) //nolint:gosec // user-provided output path
	if err != nil {
		return err
	}
	if err := envmap.Encode(f, cube, comp); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
