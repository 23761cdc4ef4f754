package recording

import (
	"context"
	"errors"
	"testing"

	"github.com/gogpu/irradiance/gpucore"
)

// resampleFixture builds a two-level cube, a resample pipeline and a
// binding set reading level 0 and writing level 1.
type resampleFixture struct {
	dev      *Device
	tex      gpucore.TextureID
	buf      gpucore.BufferID
	layout   gpucore.LayoutID
	pipeline gpucore.PipelineID
	sampler  gpucore.BindingSetID
	levels   gpucore.BindingSetID
}

func newResampleFixture(t *testing.T) *resampleFixture {
	t.Helper()
	f := &resampleFixture{dev: NewDevice()}
	d := f.dev

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	var err error
	f.tex, err = d.CreateTexture(&gpucore.TextureDesc{
		Label: "cube", Width: 4, Height: 4, Levels: 2,
		Format: gpucore.TextureFormatRGBA16Float,
		Usage:  gpucore.TextureUsageTextureBinding | gpucore.TextureUsageStorageBinding | gpucore.TextureUsageCopyDst,
	})
	must(err)
	f.buf, err = d.CreateBuffer(&gpucore.BufferDesc{Label: "staging", Size: 4 * 4 * 6 * 8})
	must(err)
	srv, err := d.CreateView(&gpucore.ViewDesc{Texture: f.tex, Kind: gpucore.ViewSampled, Level: 0})
	must(err)
	uav, err := d.CreateView(&gpucore.ViewDesc{Texture: f.tex, Kind: gpucore.ViewStorage, Level: 1})
	must(err)
	smp, err := d.CreateSampler(&gpucore.SamplerDesc{Filter: gpucore.FilterModeLinear})
	must(err)

	f.layout, err = d.CreateLayout(&gpucore.LayoutDesc{Groups: []gpucore.GroupLayout{
		{Entries: []gpucore.LayoutEntry{{Binding: 0, Type: gpucore.BindingTypeSampler}}},
		{Entries: []gpucore.LayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeSampledTexture},
			{Binding: 1, Type: gpucore.BindingTypeStorageTexture},
		}},
	}})
	must(err)
	f.pipeline, err = d.CreatePipeline(&gpucore.PipelineDesc{Layout: f.layout, Shader: gpucore.ShaderResample, EntryPoint: "main"})
	must(err)
	f.sampler, err = d.CreateBindingSet(&gpucore.BindingSetDesc{Layout: f.layout, Group: 0,
		Entries: []gpucore.BindingSetEntry{{Binding: 0, Sampler: smp}}})
	must(err)
	f.levels, err = d.CreateBindingSet(&gpucore.BindingSetDesc{Layout: f.layout, Group: 1,
		Entries: []gpucore.BindingSetEntry{{Binding: 0, View: srv}, {Binding: 1, View: uav}}})
	must(err)
	return f
}

func (f *resampleFixture) upload(rec *Recorder) {
	rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 0, Before: gpucore.StateUndefined, After: gpucore.StateCopyDst})
	rec.CopyBufferToTexture(f.buf, 0, f.tex, 0)
	rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 0, Before: gpucore.StateCopyDst, After: gpucore.StateShaderRead})
}

func (f *resampleFixture) bind(rec *Recorder) {
	rec.SetLayout(f.layout)
	rec.SetPipeline(f.pipeline)
	rec.SetBindingSet(0, f.sampler)
	rec.SetBindingSet(1, f.levels)
}

func TestDeviceSubmitValid(t *testing.T) {
	f := newResampleFixture(t)
	rec := NewRecorder("valid")
	f.upload(rec)
	rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 1, Before: gpucore.StateUndefined, After: gpucore.StateUnorderedAccess})
	f.bind(rec)
	rec.Dispatch(1, 1, 6)
	rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 1, Before: gpucore.StateUnorderedAccess, After: gpucore.StateShaderRead})

	if err := f.dev.Submit(context.Background(), rec); err != nil {
		t.Fatalf("Submit() = %v", err)
	}

	ts, _ := f.dev.Texture(f.tex)
	for level, st := range ts.States {
		if st != gpucore.StateShaderRead || !ts.Written[level] {
			t.Errorf("level %d: state %s written %v, want shader-read written", level, st, ts.Written[level])
		}
	}
	if got := len(f.dev.Submitted()); got != 1 {
		t.Errorf("len(Submitted()) = %d, want 1", got)
	}
}

func TestDeviceSubmitHazards(t *testing.T) {
	tests := []struct {
		name   string
		record func(f *resampleFixture, rec *Recorder)
		want   error
	}{
		{
			name: "read before upload",
			record: func(f *resampleFixture, rec *Recorder) {
				rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 0, Before: gpucore.StateUndefined, After: gpucore.StateShaderRead})
				rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 1, Before: gpucore.StateUndefined, After: gpucore.StateUnorderedAccess})
				f.bind(rec)
				rec.Dispatch(1, 1, 6)
			},
			want: ErrNotReadable,
		},
		{
			name: "write without transition",
			record: func(f *resampleFixture, rec *Recorder) {
				f.upload(rec)
				f.bind(rec)
				rec.Dispatch(1, 1, 6)
			},
			want: ErrNotWritable,
		},
		{
			name: "wrong before state",
			record: func(f *resampleFixture, rec *Recorder) {
				rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 0, Before: gpucore.StateShaderRead, After: gpucore.StateCopyDst})
			},
			want: ErrStateMismatch,
		},
		{
			name: "unbound group",
			record: func(f *resampleFixture, rec *Recorder) {
				rec.SetLayout(f.layout)
				rec.SetPipeline(f.pipeline)
				rec.Dispatch(1, 1, 6)
			},
			want: ErrIncompleteBindings,
		},
		{
			name: "set layout clears bindings",
			record: func(f *resampleFixture, rec *Recorder) {
				f.bind(rec)
				rec.SetLayout(f.layout)
				rec.SetPipeline(f.pipeline)
				rec.Dispatch(1, 1, 6)
			},
			want: ErrIncompleteBindings,
		},
		{
			name: "copy into shader-read level",
			record: func(f *resampleFixture, rec *Recorder) {
				f.upload(rec)
				rec.CopyBufferToTexture(f.buf, 0, f.tex, 0)
			},
			want: ErrNotWritable,
		},
		{
			name: "copy past buffer end",
			record: func(f *resampleFixture, rec *Recorder) {
				rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 0, Before: gpucore.StateUndefined, After: gpucore.StateCopyDst})
				rec.CopyBufferToTexture(f.buf, 8, f.tex, 0)
			},
			want: ErrCopyOutOfRange,
		},
		{
			name: "constants into sampler group",
			record: func(f *resampleFixture, rec *Recorder) {
				rec.SetLayout(f.layout)
				rec.SetConstants(0, []byte{0, 0, 0, 0})
			},
			want: ErrLayoutMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResampleFixture(t)
			rec := NewRecorder(tt.name)
			tt.record(f, rec)

			err := f.dev.Submit(context.Background(), rec)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submit() = %v, want %v", err, tt.want)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Submit() error %T is not *ValidationError", err)
			}

			// A rejected stream must not change tracked states.
			ts, _ := f.dev.Texture(f.tex)
			for level, st := range ts.States {
				if st != gpucore.StateUndefined || ts.Written[level] {
					t.Errorf("level %d changed to %s after rejected submit", level, st)
				}
			}
			if len(f.dev.Submitted()) != 0 {
				t.Error("rejected stream was kept")
			}
		})
	}
}

func TestDeviceReadTexture(t *testing.T) {
	f := newResampleFixture(t)
	ctx := context.Background()

	if _, err := f.dev.ReadTexture(ctx, f.tex, 0); !errors.Is(err, ErrNotReadable) {
		t.Fatalf("ReadTexture() before transition = %v, want %v", err, ErrNotReadable)
	}

	rec := NewRecorder("readback")
	f.upload(rec)
	rec.Barrier(gpucore.Barrier{Texture: f.tex, Level: 0, Before: gpucore.StateShaderRead, After: gpucore.StateCopySrc})
	if err := f.dev.Submit(ctx, rec); err != nil {
		t.Fatal(err)
	}

	data, err := f.dev.ReadTexture(ctx, f.tex, 0)
	if err != nil {
		t.Fatalf("ReadTexture() = %v", err)
	}
	if len(data) != 4*4*6*8 {
		t.Errorf("len(data) = %d, want %d", len(data), 4*4*6*8)
	}
}

func TestDeviceCreateValidation(t *testing.T) {
	d := NewDevice()

	if _, err := d.CreateTexture(&gpucore.TextureDesc{Width: 0, Height: 4, Levels: 1, Format: gpucore.TextureFormatRGBA16Float}); err == nil {
		t.Error("CreateTexture with zero width succeeded")
	}
	tex, err := d.CreateTexture(&gpucore.TextureDesc{Width: 4, Height: 4, Levels: 1, Format: gpucore.TextureFormatRGBA8Unorm,
		Usage: gpucore.TextureUsageTextureBinding})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateView(&gpucore.ViewDesc{Texture: tex, Kind: gpucore.ViewStorage}); err == nil {
		t.Error("storage view of a non-storage texture succeeded")
	}
	if _, err := d.CreateView(&gpucore.ViewDesc{Texture: tex, Kind: gpucore.ViewSampled, Level: 1}); err == nil {
		t.Error("view of a missing level succeeded")
	}
	if _, err := d.CreatePipeline(&gpucore.PipelineDesc{Shader: "blur"}); err == nil {
		t.Error("pipeline with unknown shader succeeded")
	}
}

func TestDeviceFailCreate(t *testing.T) {
	errBoom := errors.New("boom")
	d := NewDevice()
	d.FailCreate = func(op, _ string) error {
		if op == "CreateSampler" {
			return errBoom
		}
		return nil
	}

	if _, err := d.CreateSampler(&gpucore.SamplerDesc{}); !errors.Is(err, errBoom) {
		t.Errorf("CreateSampler() = %v, want %v", err, errBoom)
	}
	if _, err := d.CreateBuffer(&gpucore.BufferDesc{Size: 16}); err != nil {
		t.Errorf("CreateBuffer() = %v", err)
	}
}

func TestDeviceLiveAndClose(t *testing.T) {
	f := newResampleFixture(t)
	live := f.dev.Live()
	want := Live{Textures: 1, Views: 2, Samplers: 1, Buffers: 1, Layouts: 1, Pipelines: 1, BindingSets: 2}
	if live != want {
		t.Errorf("Live() = %+v, want %+v", live, want)
	}

	f.dev.DestroyBindingSet(f.levels)
	if got := f.dev.Live().BindingSets; got != 1 {
		t.Errorf("BindingSets after destroy = %d, want 1", got)
	}

	f.dev.Close()
	if _, err := f.dev.NewCommandStream("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("NewCommandStream() after Close = %v, want %v", err, ErrClosed)
	}
}

func TestDeviceForeignStream(t *testing.T) {
	d := NewDevice()
	if err := d.Submit(context.Background(), foreignStream{}); !errors.Is(err, ErrForeignStream) {
		t.Errorf("Submit() = %v, want %v", err, ErrForeignStream)
	}
}

type foreignStream struct{ gpucore.CommandStream }
