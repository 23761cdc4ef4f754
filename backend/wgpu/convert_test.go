//go:build !nogpu

package wgpu

import (
	"bytes"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/irradiance/gpucore"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, a, want uint64
	}{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{12, 4, 12},
		{13, 4, 16},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.a); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.a, got, tt.want)
		}
	}
}

func TestStateUsage(t *testing.T) {
	tests := []struct {
		state gpucore.ResourceState
		want  gputypes.TextureUsage
	}{
		{gpucore.StateUndefined, 0},
		{gpucore.StateCopyDst, gputypes.TextureUsageCopyDst},
		{gpucore.StateCopySrc, gputypes.TextureUsageCopySrc},
		{gpucore.StateShaderRead, gputypes.TextureUsageTextureBinding},
		{gpucore.StateUnorderedAccess, gputypes.TextureUsageStorageBinding},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := stateUsage(tt.state); got != tt.want {
				t.Errorf("stateUsage(%s) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestConvertFormat(t *testing.T) {
	if _, err := convertFormat(gpucore.TextureFormat(99)); err == nil {
		t.Error("convertFormat(99) should fail")
	}
	got, err := convertFormat(gpucore.TextureFormatRGBA16Float)
	if err != nil || got != gputypes.TextureFormatRGBA16Float {
		t.Errorf("convertFormat(rgba16float) = %v, %v", got, err)
	}
}

func TestConvertTextureUsage(t *testing.T) {
	in := gpucore.TextureUsageTextureBinding | gpucore.TextureUsageStorageBinding
	want := gputypes.TextureUsageTextureBinding | gputypes.TextureUsageStorageBinding
	if got := convertTextureUsage(in); got != want {
		t.Errorf("convertTextureUsage = %v, want %v", got, want)
	}
}

func TestConvertBufferUsageAlwaysCopyDst(t *testing.T) {
	got := convertBufferUsage(gpucore.BufferUsageCopySrc)
	if got&gputypes.BufferUsageCopyDst == 0 || got&gputypes.BufferUsageCopySrc == 0 {
		t.Errorf("convertBufferUsage(CopySrc) = %v", got)
	}
}

func TestGroupKey(t *testing.T) {
	sampler := gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{
		{Binding: 0, Type: gpucore.BindingTypeSampler},
	}}
	constants4 := gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{
		{Binding: 0, Type: gpucore.BindingTypeConstants, Size: 4},
	}}
	constants12 := gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{
		{Binding: 0, Type: gpucore.BindingTypeConstants, Size: 12},
	}}

	if groupKey(sampler) != groupKey(samplerCopy(sampler)) {
		t.Error("equal groups should share a key")
	}
	if groupKey(constants4) == groupKey(constants12) {
		t.Error("constants groups of different size must not share a key")
	}
	if groupKey(sampler) == groupKey(constants4) {
		t.Error("different binding types must not share a key")
	}
}

func samplerCopy(g gpucore.GroupLayout) gpucore.GroupLayout {
	return gpucore.GroupLayout{Entries: append([]gpucore.LayoutEntry(nil), g.Entries...)}
}

func TestIsConstantsGroup(t *testing.T) {
	tests := []struct {
		name string
		g    gpucore.GroupLayout
		want bool
	}{
		{"constants", gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{{Type: gpucore.BindingTypeConstants, Size: 4}}}, true},
		{"sampler", gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{{Type: gpucore.BindingTypeSampler}}}, false},
		{"mixed", gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeConstants, Size: 4},
			{Binding: 1, Type: gpucore.BindingTypeSampledTexture},
		}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConstantsGroup(tt.g); got != tt.want {
				t.Errorf("isConstantsGroup = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayoutEntries(t *testing.T) {
	g := gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{
		{Binding: 0, Type: gpucore.BindingTypeConstants, Size: 12},
		{Binding: 1, Type: gpucore.BindingTypeSampledTexture},
		{Binding: 2, Type: gpucore.BindingTypeStorageTexture},
		{Binding: 3, Type: gpucore.BindingTypeSampler},
	}}
	entries := layoutEntries(g, gputypes.TextureFormatRGBA16Float)
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	if b := entries[0].Buffer; b == nil || !b.HasDynamicOffset || b.MinBindingSize != 12 {
		t.Errorf("constants entry = %+v", entries[0].Buffer)
	}
	if tex := entries[1].Texture; tex == nil || tex.ViewDimension != gputypes.TextureViewDimensionCube {
		t.Errorf("sampled entry = %+v", entries[1].Texture)
	}
	if st := entries[2].Storage; st == nil || st.ViewDimension != gputypes.TextureViewDimension2DArray ||
		st.Format != gputypes.TextureFormatRGBA16Float {
		t.Errorf("storage entry = %+v", entries[2].Storage)
	}
	if entries[3].Sampler == nil {
		t.Error("sampler entry has no sampler layout")
	}
	for i, e := range entries {
		if e.Visibility != gputypes.ShaderStageCompute {
			t.Errorf("entry %d visibility = %v, want compute", i, e.Visibility)
		}
	}
}

func TestLevelRange(t *testing.T) {
	base, count := levelRange(gpucore.Barrier{Level: gpucore.AllLevels}, 7)
	if base != 0 || count != 7 {
		t.Errorf("AllLevels = (%d, %d), want (0, 7)", base, count)
	}
	base, count = levelRange(gpucore.Barrier{Level: 3}, 7)
	if base != 3 || count != 1 {
		t.Errorf("level 3 = (%d, %d), want (3, 1)", base, count)
	}
}

func TestRowPitch(t *testing.T) {
	desc := gpucore.TextureDesc{Width: 16, Height: 16, Levels: 5, Format: gpucore.TextureFormatRGBA16Float}

	packed, aligned := rowPitch(desc, 0)
	if packed != 128 || aligned != 256 {
		t.Errorf("level 0 = (%d, %d), want (128, 256)", packed, aligned)
	}
	packed, aligned = rowPitch(desc, 4)
	if packed != 8 || aligned != 256 {
		t.Errorf("level 4 = (%d, %d), want (8, 256)", packed, aligned)
	}

	desc.Width = 32
	packed, aligned = rowPitch(desc, 0)
	if packed != 256 || aligned != 256 {
		t.Errorf("32 wide = (%d, %d), want (256, 256)", packed, aligned)
	}
}

func TestPadStripRows(t *testing.T) {
	const rows, packed, aligned = 3, 5, 8
	src := []byte("aaaaabbbbbccccc")

	padded := padRows(src, rows, packed, aligned)
	if len(padded) != rows*aligned {
		t.Fatalf("padded length = %d, want %d", len(padded), rows*aligned)
	}
	if !bytes.Equal(padded[8:13], []byte("bbbbb")) {
		t.Errorf("row 1 = %q", padded[8:13])
	}

	if got := stripRows(padded, rows, packed, aligned); !bytes.Equal(got, src) {
		t.Errorf("stripRows = %q, want %q", got, src)
	}
}

func TestPadRowsAligned(t *testing.T) {
	src := make([]byte, 600)
	got := padRows(src, 2, 256, 256)
	if len(got) != 512 {
		t.Errorf("aligned rows length = %d, want 512", len(got))
	}
}
