package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/irradiance"
	"github.com/gogpu/irradiance/envmap"
	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

var printer = message.NewPrinter(language.English)

// Record one frame on a recording device and print what it would run.
func planFrame(ctx *cli.Context) error {
	setupLogging(ctx)

	return writePlan(os.Stdout, planParams{
		size:   ctx.Int("size"),
		count:  ctx.Int("sources"),
		time:   ctx.Float64("time"),
		period: float32(ctx.Float64("period")),
	})
}

type planParams struct {
	size, count int
	time        float64
	period      float32
}

// writePlan records one frame over p.count zeroed sources of face size
// p.size and writes the level and dispatch tables to w.
func writePlan(w io.Writer, p planParams) error {
	size, count := p.size, p.count
	if size <= 0 {
		return fmt.Errorf("invalid size %d", size)
	}
	if count <= 0 {
		return errors.New("at least one source is required")
	}

	dev := recording.NewDevice()
	defer dev.Close()
	c := context.Background()

	initCS, err := dev.NewCommandStream("plan_init")
	if err != nil {
		return err
	}
	uploads := &irradiance.Uploads{}
	defer uploads.Release(dev)

	sources := make([]irradiance.Source, 0, count)
	defer func() {
		for _, src := range sources {
			dev.DestroyTexture(src.Texture)
		}
	}()
	cube := envmap.NewCube(size)
	for i := range count {
		tex, err := envmap.Upload(dev, initCS, cube, gpucore.TextureFormatRGBA16Float,
			fmt.Sprintf("source_%d", i), uploads)
		if err != nil {
			return err
		}
		sources = append(sources, irradiance.Source{
			Texture: tex,
			Width:   size,
			Height:  size,
			Levels:  1,
			Format:  gpucore.TextureFormatRGBA16Float,
			Alpha:   irradiance.AlphaOpaque,
		})
	}
	if err := dev.Submit(c, initCS); err != nil {
		return err
	}

	probe := irradiance.New(dev, nil, irradiance.WithPeriod(p.period))
	defer probe.Close()
	if err := probe.InitSources(sources); err != nil {
		return err
	}

	frameCS, err := dev.NewCommandStream("plan_frame")
	if err != nil {
		return err
	}
	probe.AdvanceTime(p.time)
	if err := probe.Process(frameCS, gpucore.StateShaderRead); err != nil {
		return err
	}
	if err := dev.Submit(c, frameCS); err != nil {
		return err
	}

	submitted := dev.Submitted()
	printLevels(w, probe)
	printDispatches(w, dev, submitted[len(submitted)-1], probe.Stats(), count)
	return nil
}

func printLevels(w io.Writer, probe *irradiance.LightProbe) {
	levels := probe.Levels()
	width, height := probe.Size()

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Level", "Face size", "Texels", "Radiance", "Irradiance"})
	total := 0
	for level := range levels {
		fw, fh := max(width>>level, 1), max(height>>level, 1)
		texels := gpucore.CubeFaces * fw * fh
		total += texels
		radiance := "-"
		if level < levels-1 {
			radiance = "yes"
		}
		table.Append([]string{
			printer.Sprintf("%d", level),
			faceSize(fw, fh),
			printer.Sprintf("%d", texels),
			radiance,
			"yes",
		})
	}
	table.SetFooter([]string{"", "", printer.Sprintf("%d", total), "", printer.Sprintf("map size %.1f", probe.MapSize())})
	table.Render()
}

func faceSize(w, h int) string {
	if w == h {
		return printer.Sprintf("%d", w)
	}
	return printer.Sprintf("%dx%d", w, h)
}

func printDispatches(w io.Writer, dev *recording.Device, rec *recording.Recording, stats irradiance.FrameStats, sources int) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"#", "Shader", "Workgroups", "Groups total"})

	shader := ""
	n := 0
	for _, cmd := range rec.Commands() {
		switch c := cmd.(type) {
		case recording.SetPipelineCommand:
			if desc, ok := dev.Pipeline(c.Pipeline); ok {
				shader = desc.Shader
			}
		case recording.DispatchCommand:
			n++
			table.Append([]string{
				printer.Sprintf("%d", n),
				shader,
				fmt.Sprintf("%dx%dx%d", c.X, c.Y, c.Z),
				printer.Sprintf("%d", c.Invocations()),
			})
		}
	}
	table.SetFooter([]string{"", "", printer.Sprintf("%d barriers", stats.Barriers), printer.Sprintf("%d dispatches", stats.Dispatches)})
	table.Render()

	printer.Fprintf(w, "blend: source %d -> %d, weight %.3f at t=%.2f\n",
		stats.Index, (stats.Index+1)%sources, stats.Blend, stats.Time)
}
