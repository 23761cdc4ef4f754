package software

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/irradiance/backend"
	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/internal/parallel"
	"github.com/gogpu/irradiance/recording"
)

// ErrClosed is returned by a closed device.
var ErrClosed = errors.New("software: device closed")

func init() {
	backend.Register(backend.BackendSoftware, func() (gpucore.Device, error) {
		return New(), nil
	})
}

// Device is a CPU implementation of gpucore.Device.
//
// Streams are recorded by a recording.Recorder and executed at Submit.
// Every stream is first checked against the tracked resource states; a
// stream that would read a level that is not readable, write a level that
// is not writable, or bind one level for both is rejected with a
// *recording.ValidationError and nothing is executed.
//
// Device is safe for concurrent use. Submissions are serialized.
type Device struct {
	tracker *recording.Tracker
	pool    *parallel.WorkerPool
	nextID  atomic.Uint64

	submitMu sync.Mutex

	mu      sync.RWMutex
	images  map[gpucore.TextureID]*cubeImage
	buffers map[gpucore.BufferID][]byte
	closed  bool
}

var _ gpucore.Device = (*Device)(nil)

// New creates a software device.
func New(opts ...Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Device{
		tracker: recording.NewTracker(),
		pool:    parallel.NewWorkerPool(o.workers),
		images:  make(map[gpucore.TextureID]*cubeImage),
		buffers: make(map[gpucore.BufferID][]byte),
	}
	slogger().Debug("software: device created", "workers", d.pool.Workers())
	return d
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return backend.BackendSoftware }

// SetLogger sets the logger for the software backend.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Live returns the number of live resources of each kind.
func (d *Device) Live() recording.Live { return d.tracker.Live() }

func (d *Device) alloc() (uint64, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return 0, ErrClosed
	}
	return d.nextID.Add(1), nil
}

// CreateTexture implements gpucore.Device.
func (d *Device) CreateTexture(desc *gpucore.TextureDesc) (gpucore.TextureID, error) {
	if err := recording.CheckTexture(desc); err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(raw)

	img := newCubeImage(desc)
	d.mu.Lock()
	d.images[id] = img
	d.mu.Unlock()
	d.tracker.AddTexture(id, *desc)

	slogger().Debug("software: texture created",
		"label", desc.Label,
		"size", fmt.Sprintf("%dx%d", desc.Width, desc.Height),
		"levels", desc.Levels,
		"format", desc.Format.String())
	return id, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	delete(d.images, id)
	d.mu.Unlock()
	d.tracker.RemoveTexture(id)
}

// ReadTexture implements gpucore.Device.
func (d *Device) ReadTexture(ctx context.Context, id gpucore.TextureID, level int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := d.tracker.LevelState(id, level)
	if err != nil {
		return nil, err
	}
	if st != gpucore.StateCopySrc {
		return nil, &recording.ValidationError{
			Op: recording.CmdBarrier, Texture: id, Level: level,
			Want: gpucore.StateCopySrc, Got: st, Err: recording.ErrNotReadable,
		}
	}

	d.mu.RLock()
	img := d.images[id]
	d.mu.RUnlock()
	return img.encode(level), nil
}

// CreateView implements gpucore.Device.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.tracker.AddView(gpucore.ViewID(raw), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.ViewID(raw), nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(id gpucore.ViewID) { d.tracker.RemoveView(id) }

// CreateSampler implements gpucore.Device.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	d.tracker.AddSampler(gpucore.SamplerID(raw), *desc)
	return gpucore.SamplerID(raw), nil
}

// DestroySampler implements gpucore.Device.
func (d *Device) DestroySampler(id gpucore.SamplerID) { d.tracker.RemoveSampler(id) }

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer %q: zero size", desc.Label)
	}
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(raw)

	d.mu.Lock()
	d.buffers[id] = make([]byte, desc.Size)
	d.mu.Unlock()
	d.tracker.AddBuffer(id, *desc)
	return id, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
	d.tracker.RemoveBuffer(id)
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("software: %w: buf%d", recording.ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return fmt.Errorf("software: write buf%d: %w", id, recording.ErrCopyOutOfRange)
	}
	copy(buf[offset:], data)
	return nil
}

// CreateLayout implements gpucore.Device.
func (d *Device) CreateLayout(desc *gpucore.LayoutDesc) (gpucore.LayoutID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.tracker.AddLayout(gpucore.LayoutID(raw), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.LayoutID(raw), nil
}

// DestroyLayout implements gpucore.Device.
func (d *Device) DestroyLayout(id gpucore.LayoutID) { d.tracker.RemoveLayout(id) }

// CreatePipeline implements gpucore.Device. The shader must be one of the
// gpucore Shader* names; the entry point is ignored.
func (d *Device) CreatePipeline(desc *gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	switch desc.Shader {
	case gpucore.ShaderRadiance, gpucore.ShaderResample, gpucore.ShaderCosineUp:
	default:
		return gpucore.InvalidID, fmt.Errorf("software: pipeline %q: unknown shader %q", desc.Label, desc.Shader)
	}
	if desc.WorkgroupSize[0] == 0 || desc.WorkgroupSize[1] == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: pipeline %q: empty workgroup size", desc.Label)
	}
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.tracker.AddPipeline(gpucore.PipelineID(raw), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.PipelineID(raw), nil
}

// DestroyPipeline implements gpucore.Device.
func (d *Device) DestroyPipeline(id gpucore.PipelineID) { d.tracker.RemovePipeline(id) }

// CreateBindingSet implements gpucore.Device.
func (d *Device) CreateBindingSet(desc *gpucore.BindingSetDesc) (gpucore.BindingSetID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	if err := d.tracker.AddBindingSet(gpucore.BindingSetID(raw), *desc); err != nil {
		return gpucore.InvalidID, err
	}
	return gpucore.BindingSetID(raw), nil
}

// DestroyBindingSet implements gpucore.Device.
func (d *Device) DestroyBindingSet(id gpucore.BindingSetID) { d.tracker.RemoveBindingSet(id) }

// NewCommandStream implements gpucore.Device. The stream is a
// *recording.Recorder.
func (d *Device) NewCommandStream(label string) (gpucore.CommandStream, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	return recording.NewRecorder(label), nil
}

// Submit implements gpucore.Device. The stream is validated, then executed
// on the calling goroutine and the worker pool.
func (d *Device) Submit(ctx context.Context, cs gpucore.CommandStream) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := cs.(*recording.Recorder)
	if !ok {
		return recording.ErrForeignStream
	}

	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	r := rec.Finish()
	if err := d.tracker.Check(r); err != nil {
		return err
	}

	ex := &executor{dev: d}
	if err := ex.run(ctx, r); err != nil {
		return fmt.Errorf("software: execute %q: %w", r.Label(), err)
	}

	slogger().Debug("software: stream executed",
		"label", r.Label(),
		"commands", len(r.Commands()),
		"dispatches", ex.dispatches)
	return nil
}

// Close implements gpucore.Device. It stops the worker pool.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.pool.Close()
	if live := d.tracker.Live(); live.Total() > 0 {
		slogger().Warn("software: device closed with live resources",
			"textures", live.Textures,
			"views", live.Views,
			"buffers", live.Buffers,
			"binding_sets", live.BindingSets)
	}
}
