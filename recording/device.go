package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/irradiance/gpucore"
)

// ErrForeignStream is returned by Submit for streams created elsewhere.
var ErrForeignStream = errors.New("recording: stream was not created by this device")

// ErrClosed is returned by a closed device.
var ErrClosed = errors.New("recording: device closed")

// Device is a gpucore.Device that executes nothing. It allocates IDs,
// tracks resource states, validates every submitted stream, and keeps the
// recordings of all successful submissions.
//
// Device is useful for planning frames and for testing code that drives a
// gpucore.Device. ReadTexture returns zeroed texels of the right size.
//
// Device is safe for concurrent use.
type Device struct {
	*Tracker

	mu        sync.Mutex
	nextID    uint64
	submitted []*Recording
	closed    bool

	// FailCreate, when set, is consulted by every Create method with the
	// method name and the descriptor label. A non-nil result fails the call.
	FailCreate func(op, label string) error
}

var _ gpucore.Device = (*Device)(nil)

// NewDevice creates a recording device.
func NewDevice() *Device {
	return &Device{Tracker: NewTracker()}
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return "recording" }

func (d *Device) alloc(op, label string) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if d.FailCreate != nil {
		if err := d.FailCreate(op, label); err != nil {
			return 0, err
		}
	}
	d.nextID++
	return d.nextID, nil
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if err := CheckTexture(desc); err != nil {
		return gpucore.InvalidID, err
	}
	id, err := d.alloc("CreateTexture", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.AddTexture(gpucore.TextureID(id), *desc)
	return gpucore.TextureID(id), nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) { d.RemoveTexture(id) }

// ReadTexture implements gpucore.Device.
func (d *Device) ReadTexture(ctx context.Context, id gpucore.TextureID, level int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := d.LevelState(id, level)
	if err != nil {
		return nil, err
	}
	if st != gpucore.StateCopySrc {
		return nil, &ValidationError{Op: CmdBarrier, Texture: id, Level: level, Want: gpucore.StateCopySrc, Got: st, Err: ErrNotReadable}
	}
	ts, _ := d.Texture(id)
	return make([]byte, LevelBytes(ts.Desc, level)), nil
}

// CreateView implements gpucore.Device.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewID, error) {
	id, err := d.alloc("CreateView", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.AddView(gpucore.ViewID(id), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.ViewID(id), nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(id gpucore.ViewID) { d.RemoveView(id) }

// CreateSampler implements gpucore.Device.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	id, err := d.alloc("CreateSampler", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.AddSampler(gpucore.SamplerID(id), *desc)
	return gpucore.SamplerID(id), nil
}

// DestroySampler implements gpucore.Device.
func (d *Device) DestroySampler(id gpucore.SamplerID) { d.RemoveSampler(id) }

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("recording: buffer %q: zero size", desc.Label)
	}
	id, err := d.alloc("CreateBuffer", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.AddBuffer(gpucore.BufferID(id), *desc)
	return gpucore.BufferID(id), nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) { d.RemoveBuffer(id) }

// WriteBuffer implements gpucore.Device. Only the range is checked.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	desc, ok := d.Buffer(id)
	if !ok {
		return fmt.Errorf("recording: %w: buf%d", ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > desc.Size {
		return fmt.Errorf("recording: buffer %q: %w", desc.Label, ErrCopyOutOfRange)
	}
	return nil
}

// CreateLayout implements gpucore.Device.
func (d *Device) CreateLayout(desc *gpucore.LayoutDesc) (gpucore.LayoutID, error) {
	id, err := d.alloc("CreateLayout", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.AddLayout(gpucore.LayoutID(id), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.LayoutID(id), nil
}

// DestroyLayout implements gpucore.Device.
func (d *Device) DestroyLayout(id gpucore.LayoutID) { d.RemoveLayout(id) }

// CreatePipeline implements gpucore.Device.
func (d *Device) CreatePipeline(desc *gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	switch desc.Shader {
	case gpucore.ShaderRadiance, gpucore.ShaderResample, gpucore.ShaderCosineUp:
	default:
		return gpucore.InvalidID, fmt.Errorf("recording: pipeline %q: unknown shader %q", desc.Label, desc.Shader)
	}
	id, err := d.alloc("CreatePipeline", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.AddPipeline(gpucore.PipelineID(id), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.PipelineID(id), nil
}

// DestroyPipeline implements gpucore.Device.
func (d *Device) DestroyPipeline(id gpucore.PipelineID) { d.RemovePipeline(id) }

// CreateBindingSet implements gpucore.Device.
func (d *Device) CreateBindingSet(desc *gpucore.BindingSetDesc) (gpucore.BindingSetID, error) {
	id, err := d.alloc("CreateBindingSet", desc.Label)
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.AddBindingSet(gpucore.BindingSetID(id), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.BindingSetID(id), nil
}

// DestroyBindingSet implements gpucore.Device.
func (d *Device) DestroyBindingSet(id gpucore.BindingSetID) { d.RemoveBindingSet(id) }

// NewCommandStream implements gpucore.Device. The stream is a *Recorder.
func (d *Device) NewCommandStream(label string) (gpucore.CommandStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return NewRecorder(label), nil
}

// Submit implements gpucore.Device. The stream is validated against the
// tracked states; a valid stream updates them and is kept.
func (d *Device) Submit(ctx context.Context, cs gpucore.CommandStream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := cs.(*Recorder)
	if !ok {
		return ErrForeignStream
	}
	r := rec.Finish()
	if err := d.Check(r); err != nil {
		return err
	}

	d.mu.Lock()
	d.submitted = append(d.submitted, r)
	d.mu.Unlock()
	return nil
}

// Submitted returns every successfully submitted recording in order.
func (d *Device) Submitted() []*Recording {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Recording(nil), d.submitted...)
}

// Close implements gpucore.Device.
func (d *Device) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
}
