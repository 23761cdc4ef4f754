package irradiance

import (
	"context"
	"testing"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

// uploadSources creates n single-level source cubes of w x h on dev and
// submits their uploads, leaving every source in StateShaderRead.
func uploadSources(t *testing.T, dev gpucore.Device, n, w, h int) []Source {
	t.Helper()

	cs, err := dev.NewCommandStream("test_upload")
	if err != nil {
		t.Fatal(err)
	}
	uploads := &Uploads{}
	sources := make([]Source, n)
	for i := range sources {
		src, err := recordSource(dev, cs, w, h, uploads)
		if err != nil {
			t.Fatal(err)
		}
		sources[i] = src
	}
	if err := dev.Submit(context.Background(), cs); err != nil {
		t.Fatalf("submit uploads: %v", err)
	}
	uploads.Release(dev)
	return sources
}

// recordSource creates one zeroed source cube and records its upload.
func recordSource(dev gpucore.Device, cs gpucore.CommandStream, w, h int, uploads *Uploads) (Source, error) {
	desc := gpucore.TextureDesc{
		Label:  "test_source",
		Width:  w,
		Height: h,
		Levels: 1,
		Format: gpucore.TextureFormatRGBA16Float,
		Usage:  gpucore.TextureUsageTextureBinding | gpucore.TextureUsageCopyDst,
	}
	tex, err := dev.CreateTexture(&desc)
	if err != nil {
		return Source{}, err
	}
	size := recording.LevelBytes(desc, 0)
	buf, err := dev.CreateBuffer(&gpucore.BufferDesc{Label: "test_staging", Size: size, Usage: gpucore.BufferUsageCopySrc})
	if err != nil {
		dev.DestroyTexture(tex)
		return Source{}, err
	}
	if err := dev.WriteBuffer(buf, 0, make([]byte, size)); err != nil {
		dev.DestroyBuffer(buf)
		dev.DestroyTexture(tex)
		return Source{}, err
	}
	uploads.Add(buf)

	cs.Barrier(gpucore.Barrier{Texture: tex, Level: 0, Before: gpucore.StateUndefined, After: gpucore.StateCopyDst})
	cs.CopyBufferToTexture(buf, 0, tex, 0)
	cs.Barrier(gpucore.Barrier{Texture: tex, Level: 0, Before: gpucore.StateCopyDst, After: gpucore.StateShaderRead})

	return Source{
		Texture: tex,
		Width:   w,
		Height:  h,
		Levels:  1,
		Format:  desc.Format,
		Alpha:   AlphaOpaque,
	}, nil
}

// fakeLoader loads every path as a zeroed w x h cube.
type fakeLoader struct {
	w, h  int
	loads map[string]int
	err   error
}

func newFakeLoader(w, h int) *fakeLoader {
	return &fakeLoader{w: w, h: h, loads: make(map[string]int)}
}

func (l *fakeLoader) Load(_ context.Context, dev gpucore.Device, cs gpucore.CommandStream, path string, uploads *Uploads) (Source, error) {
	if l.err != nil {
		return Source{}, l.err
	}
	l.loads[path]++
	src, err := recordSource(dev, cs, l.w, l.h, uploads)
	src.Path = path
	return src, err
}

// processFrame records one frame into a fresh stream and submits it.
func processFrame(t *testing.T, dev *recording.Device, lp *LightProbe, final gpucore.ResourceState) *recording.Recording {
	t.Helper()
	cs, err := dev.NewCommandStream("test_frame")
	if err != nil {
		t.Fatal(err)
	}
	if err := lp.Process(cs, final); err != nil {
		t.Fatalf("Process() = %v", err)
	}
	if err := dev.Submit(context.Background(), cs); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	sub := dev.Submitted()
	return sub[len(sub)-1]
}

// shaderPerDispatch returns the shader of the active pipeline at every dispatch.
func shaderPerDispatch(dev *recording.Device, r *recording.Recording) []string {
	var out []string
	var active gpucore.PipelineID
	for _, cmd := range r.Commands() {
		switch c := cmd.(type) {
		case recording.SetPipelineCommand:
			active = c.Pipeline
		case recording.DispatchCommand:
			p, _ := dev.Pipeline(active)
			out = append(out, p.Shader)
		}
	}
	return out
}
