package irradiance

import (
	"testing"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

func TestLevelCount(t *testing.T) {
	tests := []struct {
		w, h int
		want int
	}{
		{1, 1, 2},
		{2, 2, 2},
		{3, 3, 2},
		{4, 4, 3},
		{5, 3, 3},
		{256, 256, 9},
		{512, 512, 10},
		{512, 256, 10},
		{1000, 1, 10},
		{1024, 1024, 11},
		{0, 0, 2},
	}

	for _, tt := range tests {
		if got := LevelCount(tt.w, tt.h); got != tt.want {
			t.Errorf("LevelCount(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
		if got := LevelCount(tt.h, tt.w); got != tt.want {
			t.Errorf("LevelCount(%d, %d) = %d, want %d", tt.h, tt.w, got, tt.want)
		}
	}
}

func TestMapSize(t *testing.T) {
	if got := MapSize(512, 256); got != 384 {
		t.Errorf("MapSize(512, 256) = %v, want 384", got)
	}
}

func TestAllocatePyramids(t *testing.T) {
	dev := recording.NewDevice()
	radiance, irradiance, err := allocatePyramids(dev, "test", 64, 32)
	if err != nil {
		t.Fatal(err)
	}

	if radiance.levels() != 6 || irradiance.levels() != 7 {
		t.Fatalf("levels = %d/%d, want 6/7", radiance.levels(), irradiance.levels())
	}
	for _, p := range []*pyramid{radiance, irradiance} {
		ts, ok := dev.Texture(p.texture)
		if !ok {
			t.Fatalf("%s texture not created", p.label)
		}
		if ts.Desc.Format != gpucore.TextureFormatRGBA16Float {
			t.Errorf("%s format = %s, want rgba16float", p.label, ts.Desc.Format)
		}
		if ts.Desc.Usage&gpucore.TextureUsageStorageBinding == 0 || ts.Desc.Usage&gpucore.TextureUsageTextureBinding == 0 {
			t.Errorf("%s usage %b lacks storage or sampled binding", p.label, ts.Desc.Usage)
		}
		for level := range p.levels() {
			srv, _ := dev.View(p.srv[level])
			uav, _ := dev.View(p.uav[level])
			if srv.Kind != gpucore.ViewSampled || srv.Level != level {
				t.Errorf("%s srv[%d] = %+v", p.label, level, srv)
			}
			if uav.Kind != gpucore.ViewStorage || uav.Level != level {
				t.Errorf("%s uav[%d] = %+v", p.label, level, uav)
			}
		}
	}

	if w, h := irradiance.levelSize(6); w != 1 || h != 1 {
		t.Errorf("coarsest level = %dx%d, want 1x1", w, h)
	}
	if w, h := irradiance.levelSize(1); w != 32 || h != 16 {
		t.Errorf("level 1 = %dx%d, want 32x16", w, h)
	}

	radiance.destroy(dev)
	irradiance.destroy(dev)
	if live := dev.Live(); live.Total() != 0 {
		t.Errorf("resources leaked after destroy: %+v", live)
	}
}

func TestNewPyramidCleansUpOnFailure(t *testing.T) {
	dev := recording.NewDevice()
	views := 0
	dev.FailCreate = func(op, _ string) error {
		if op == "CreateView" {
			views++
			if views == 5 {
				return errTest
			}
		}
		return nil
	}

	if _, err := newPyramid(dev, "test", 16, 16, 4); err == nil {
		t.Fatal("newPyramid succeeded with failing view creation")
	}
	if live := dev.Live(); live.Total() != 0 {
		t.Errorf("resources leaked: %+v", live)
	}
}

func TestPyramidTransition(t *testing.T) {
	p := &pyramid{texture: 7, states: make([]gpucore.ResourceState, 2)}

	b, ok := p.transition(1, gpucore.StateUnorderedAccess)
	if !ok {
		t.Fatal("transition from undefined reported no barrier")
	}
	want := gpucore.Barrier{Texture: 7, Level: 1, Before: gpucore.StateUndefined, After: gpucore.StateUnorderedAccess}
	if b != want {
		t.Errorf("barrier = %v, want %v", b, want)
	}
	if _, ok := p.transition(1, gpucore.StateUnorderedAccess); ok {
		t.Error("transition to the current state produced a barrier")
	}

	saved := p.snapshot()
	p.transition(0, gpucore.StateShaderRead)
	p.restore(saved)
	if p.states[0] != gpucore.StateUndefined {
		t.Errorf("restore left level 0 in %s", p.states[0])
	}
}
