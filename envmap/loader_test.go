package envmap

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gogpu/irradiance"
	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

func memoryLoader(opens *atomic.Int32, opts ...LoaderOption) *Loader {
	l := NewLoader(opts...)
	l.open = func(path string) (*Cube, error) {
		opens.Add(1)
		if path == "missing.cubeenv" {
			return nil, errors.New("not found")
		}
		return testCube(8), nil
	}
	return l
}

func TestLoaderLoad(t *testing.T) {
	var opens atomic.Int32
	l := memoryLoader(&opens)
	dev := recording.NewDevice()
	cs, _ := dev.NewCommandStream("init")
	uploads := &irradiance.Uploads{}

	src, err := l.Load(context.Background(), dev, cs, "sky.cubeenv", uploads)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if src.Width != 8 || src.Height != 8 || src.Levels != 1 {
		t.Errorf("source = %dx%d levels %d", src.Width, src.Height, src.Levels)
	}
	if src.Format != gpucore.TextureFormatRGBA16Float || src.Alpha != irradiance.AlphaOpaque || src.Path != "sky.cubeenv" {
		t.Errorf("source = %+v", src)
	}
	if uploads.Len() != 1 {
		t.Errorf("uploads = %d, want 1", uploads.Len())
	}

	if err := dev.Submit(context.Background(), cs); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	cmds := dev.Submitted()[0].Commands()
	want := []recording.CommandType{recording.CmdBarrier, recording.CmdCopyBufferToTexture, recording.CmdBarrier}
	if len(cmds) != len(want) {
		t.Fatalf("recorded %d commands, want %d", len(cmds), len(want))
	}
	for i, c := range cmds {
		if c.Type() != want[i] {
			t.Errorf("command %d = %v, want %v", i, c.Type(), want[i])
		}
	}
	st, err := dev.LevelState(src.Texture, 0)
	if err != nil || st != gpucore.StateShaderRead {
		t.Errorf("level state = %v, %v; want ShaderRead", st, err)
	}

	uploads.Release(dev)
	if live := dev.Live(); live.Buffers != 0 {
		t.Errorf("staging buffers live after release: %d", live.Buffers)
	}
}

func TestLoaderCachesDecoded(t *testing.T) {
	var opens atomic.Int32
	l := memoryLoader(&opens)
	dev := recording.NewDevice()
	cs, _ := dev.NewCommandStream("init")
	uploads := &irradiance.Uploads{}

	a, err := l.Load(context.Background(), dev, cs, "sky.cubeenv", uploads)
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Load(context.Background(), dev, cs, "sky.cubeenv", uploads)
	if err != nil {
		t.Fatal(err)
	}
	if opens.Load() != 1 {
		t.Errorf("decoded %d times, want 1", opens.Load())
	}
	if a.Texture == b.Texture {
		t.Error("each load should create its own texture")
	}
}

func TestLoaderErrors(t *testing.T) {
	var opens atomic.Int32
	l := memoryLoader(&opens)
	dev := recording.NewDevice()
	cs, _ := dev.NewCommandStream("init")

	if _, err := l.Load(context.Background(), dev, cs, "missing.cubeenv", &irradiance.Uploads{}); err == nil {
		t.Error("missing file should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Load(ctx, dev, cs, "sky.cubeenv", &irradiance.Uploads{}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled load error = %v", err)
	}

	boom := errors.New("boom")
	dev.FailCreate = func(op, _ string) error {
		if op == "CreateBuffer" {
			return boom
		}
		return nil
	}
	if _, err := l.Load(context.Background(), dev, cs, "sky.cubeenv", &irradiance.Uploads{}); !errors.Is(err, boom) {
		t.Errorf("staging failure error = %v", err)
	}
	if live := dev.Live(); live.Textures != 0 {
		t.Errorf("texture leaked after staging failure: %d live", live.Textures)
	}
}

func TestUploadFormat(t *testing.T) {
	dev := recording.NewDevice()
	cs, _ := dev.NewCommandStream("init")
	uploads := &irradiance.Uploads{}
	tex, err := Upload(dev, cs, testCube(4), gpucore.TextureFormatRGBA32Float, "sky", uploads)
	if err != nil {
		t.Fatal(err)
	}
	ts, ok := dev.Texture(tex)
	if !ok {
		t.Fatal("texture not tracked")
	}
	if ts.Desc.Format != gpucore.TextureFormatRGBA32Float || ts.Desc.Levels != 1 {
		t.Errorf("desc = %+v", ts.Desc)
	}
	if _, err := Upload(dev, cs, testCube(4), gpucore.TextureFormatRGBA8Unorm, "sky", uploads); err == nil {
		t.Error("RGBA8 upload should fail")
	}
}
