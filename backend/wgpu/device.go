//go:build !nogpu

package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/irradiance/backend"
	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

// Errors returned by the wgpu device.
var (
	// ErrClosed is returned by a closed device.
	ErrClosed = errors.New("wgpu: device closed")

	// ErrNoAdapter is returned by New when no GPU adapter is available.
	ErrNoAdapter = errors.New("wgpu: no GPU adapter found")

	// ErrFenceTimeout is returned when the GPU does not finish a stream in time.
	ErrFenceTimeout = errors.New("wgpu: fence wait timed out")
)

// layoutObject is a pipeline layout and the bind group layouts of its groups.
type layoutObject struct {
	desc   gpucore.LayoutDesc
	keys   []string
	groups []hal.BindGroupLayout
	hal    hal.PipelineLayout
}

// sharedGroupLayout is a bind group layout shared by equal groups.
type sharedGroupLayout struct {
	bgl  hal.BindGroupLayout
	refs int
}

type pipelineObject struct {
	module hal.ShaderModule
	hal    hal.ComputePipeline
}

// bufferObject is a GPU buffer and its host copy. Copies whose rows are
// not pitch-aligned are staged from the host copy.
type bufferObject struct {
	hal  hal.Buffer
	host []byte
}

// Device is a GPU implementation of gpucore.Device on the gogpu/wgpu HAL.
//
// Create it with New for a standalone device or NewFromProvider to share a
// device with the host application.
type Device struct {
	opts options

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string
	external bool

	tracker *recording.Tracker
	nextID  atomic.Uint64

	submitMu sync.Mutex

	mu        sync.RWMutex
	textures  map[gpucore.TextureID]hal.Texture
	views     map[gpucore.ViewID]hal.TextureView
	samplers  map[gpucore.SamplerID]hal.Sampler
	buffers   map[gpucore.BufferID]*bufferObject
	layouts   map[gpucore.LayoutID]*layoutObject
	pipelines map[gpucore.PipelineID]*pipelineObject
	sets      map[gpucore.BindingSetID]hal.BindGroup
	shared    map[string]*sharedGroupLayout
	closed    bool
}

var _ gpucore.Device = (*Device)(nil)

func newDevice(device hal.Device, queue hal.Queue, opts []Option) *Device {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Device{
		opts:      o,
		device:    device,
		queue:     queue,
		tracker:   recording.NewTracker(),
		textures:  make(map[gpucore.TextureID]hal.Texture),
		views:     make(map[gpucore.ViewID]hal.TextureView),
		samplers:  make(map[gpucore.SamplerID]hal.Sampler),
		buffers:   make(map[gpucore.BufferID]*bufferObject),
		layouts:   make(map[gpucore.LayoutID]*layoutObject),
		pipelines: make(map[gpucore.PipelineID]*pipelineObject),
		sets:      make(map[gpucore.BindingSetID]hal.BindGroup),
		shared:    make(map[string]*sharedGroupLayout),
	}
}

// Name implements gpucore.Device.
func (d *Device) Name() string { return backend.BackendWGPU }

// Adapter returns the name of the adapter the device was opened on, or ""
// for a shared device.
func (d *Device) Adapter() string { return d.adapter }

// SetLogger sets the logger for the wgpu backend.
func (d *Device) SetLogger(l *slog.Logger) { setLogger(l) }

// Live returns the number of live resources of each kind.
func (d *Device) Live() recording.Live { return d.tracker.Live() }

func (d *Device) fenceTimeout() time.Duration { return d.opts.fenceTimeout }

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
	format, err := convertFormat(desc.Format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.TextureID(raw)

	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),  //nolint:gosec // validated by CheckTexture
			Height:             uint32(desc.Height), //nolint:gosec // validated by CheckTexture
			DepthOrArrayLayers: gpucore.CubeFaces,
		},
		MipLevelCount: uint32(desc.Levels), //nolint:gosec // validated by CheckTexture
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         convertTextureUsage(desc.Usage) | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create texture %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	d.textures[id] = tex
	d.mu.Unlock()
	d.tracker.AddTexture(id, *desc)

	slogger().Debug("wgpu: texture created",
		"label", desc.Label,
		"size", fmt.Sprintf("%dx%d", desc.Width, desc.Height),
		"levels", desc.Levels,
		"format", desc.Format.String())
	return id, nil
}

// DestroyTexture implements gpucore.Device.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	tex, ok := d.textures[id]
	delete(d.textures, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyTexture(tex)
	}
	d.tracker.RemoveTexture(id)
}

// CreateView implements gpucore.Device.
func (d *Device) CreateView(desc *gpucore.ViewDesc) (gpucore.ViewID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.ViewID(raw)
	if err := d.tracker.AddView(id, *desc); err != nil {
		return gpucore.InvalidID, err
	}

	ts, _ := d.tracker.Texture(desc.Texture)
	format, err := convertFormat(ts.Desc.Format)
	if err != nil {
		d.tracker.RemoveView(id)
		return gpucore.InvalidID, err
	}
	dim := gputypes.TextureViewDimensionCube
	if desc.Kind == gpucore.ViewStorage {
		if ts.Desc.Format != d.opts.storageFormat {
			d.tracker.RemoveView(id)
			return gpucore.InvalidID, fmt.Errorf("wgpu: view %q: storage format %s, device binds %s",
				desc.Label, ts.Desc.Format, d.opts.storageFormat)
		}
		dim = gputypes.TextureViewDimension2DArray
	}

	d.mu.RLock()
	tex := d.textures[desc.Texture]
	d.mu.RUnlock()

	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          format,
		Dimension:       dim,
		Aspect:          gputypes.TextureAspectAll,
		BaseMipLevel:    uint32(desc.Level), //nolint:gosec // validated by the tracker
		MipLevelCount:   1,
		BaseArrayLayer:  0,
		ArrayLayerCount: gpucore.CubeFaces,
	})
	if err != nil {
		d.tracker.RemoveView(id)
		return gpucore.InvalidID, fmt.Errorf("wgpu: create view %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	d.views[id] = view
	d.mu.Unlock()
	return id, nil
}

// DestroyView implements gpucore.Device.
func (d *Device) DestroyView(id gpucore.ViewID) {
	d.mu.Lock()
	view, ok := d.views[id]
	delete(d.views, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyTextureView(view)
	}
	d.tracker.RemoveView(id)
}

// CreateSampler implements gpucore.Device.
func (d *Device) CreateSampler(desc *gpucore.SamplerDesc) (gpucore.SamplerID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.SamplerID(raw)

	address := convertAddress(desc.Address)
	filter := convertFilter(desc.Filter)
	s, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create sampler %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	d.samplers[id] = s
	d.mu.Unlock()
	d.tracker.AddSampler(id, *desc)
	return id, nil
}

// DestroySampler implements gpucore.Device.
func (d *Device) DestroySampler(id gpucore.SamplerID) {
	d.mu.Lock()
	s, ok := d.samplers[id]
	delete(d.samplers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroySampler(s)
	}
	d.tracker.RemoveSampler(id)
}

// CreateBuffer implements gpucore.Device.
func (d *Device) CreateBuffer(desc *gpucore.BufferDesc) (gpucore.BufferID, error) {
	if desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("wgpu: buffer %q: zero size", desc.Label)
	}
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BufferID(raw)

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  alignUp(desc.Size, 4),
		Usage: convertBufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: create buffer %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	d.buffers[id] = &bufferObject{hal: buf, host: make([]byte, desc.Size)}
	d.mu.Unlock()
	d.tracker.AddBuffer(id, *desc)
	return id, nil
}

// DestroyBuffer implements gpucore.Device.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	b, ok := d.buffers[id]
	delete(d.buffers, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBuffer(b.hal)
	}
	d.tracker.RemoveBuffer(id)
}

// WriteBuffer implements gpucore.Device.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: %w: buf%d", recording.ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > uint64(len(b.host)) {
		return fmt.Errorf("wgpu: write buf%d: %w", id, recording.ErrCopyOutOfRange)
	}
	copy(b.host[offset:], data)

	// Queue writes cover whole words.
	lo := offset &^ 3
	chunk := make([]byte, alignUp(offset+uint64(len(data)), 4)-lo)
	copy(chunk, b.host[lo:])
	d.queue.WriteBuffer(b.hal, lo, chunk)
	return nil
}

// CreateLayout implements gpucore.Device. Groups with the same entries
// share one bind group layout.
func (d *Device) CreateLayout(desc *gpucore.LayoutDesc) (gpucore.LayoutID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.LayoutID(raw)
	if err := d.tracker.AddLayout(id, *desc); err != nil {
		return gpucore.InvalidID, err
	}

	storage, err := convertFormat(d.opts.storageFormat)
	if err != nil {
		d.tracker.RemoveLayout(id)
		return gpucore.InvalidID, err
	}

	obj := &layoutObject{desc: *desc}
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, g := range desc.Groups {
		key := groupKey(g)
		sh, ok := d.shared[key]
		if !ok {
			bgl, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
				Label:   fmt.Sprintf("%s_group%d", desc.Label, i),
				Entries: layoutEntries(g, storage),
			})
			if err != nil {
				d.releaseGroupsLocked(obj.keys)
				d.tracker.RemoveLayout(id)
				return gpucore.InvalidID, fmt.Errorf("wgpu: layout %q group %d: %w", desc.Label, i, err)
			}
			sh = &sharedGroupLayout{bgl: bgl}
			d.shared[key] = sh
		}
		sh.refs++
		obj.keys = append(obj.keys, key)
		obj.groups = append(obj.groups, sh.bgl)
	}

	pl, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: obj.groups,
	})
	if err != nil {
		d.releaseGroupsLocked(obj.keys)
		d.tracker.RemoveLayout(id)
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline layout %q: %w", desc.Label, err)
	}
	obj.hal = pl
	d.layouts[id] = obj

	slogger().Debug("wgpu: layout created",
		"label", desc.Label,
		"groups", len(desc.Groups),
		"shared_group_layouts", len(d.shared))
	return id, nil
}

// releaseGroupsLocked drops one reference to each shared group layout and
// destroys layouts nothing references. d.mu must be held.
func (d *Device) releaseGroupsLocked(keys []string) {
	for _, key := range keys {
		sh, ok := d.shared[key]
		if !ok {
			continue
		}
		sh.refs--
		if sh.refs <= 0 {
			d.device.DestroyBindGroupLayout(sh.bgl)
			delete(d.shared, key)
		}
	}
}

// DestroyLayout implements gpucore.Device.
func (d *Device) DestroyLayout(id gpucore.LayoutID) {
	d.mu.Lock()
	obj, ok := d.layouts[id]
	delete(d.layouts, id)
	if ok {
		d.device.DestroyPipelineLayout(obj.hal)
		d.releaseGroupsLocked(obj.keys)
	}
	d.mu.Unlock()
	d.tracker.RemoveLayout(id)
}

// CreatePipeline implements gpucore.Device. The WGSL of the named shader
// is instantiated for the workgroup size and compiled to SPIR-V.
func (d *Device) CreatePipeline(desc *gpucore.PipelineDesc) (gpucore.PipelineID, error) {
	source, err := shaderSource(desc.Shader, desc.EntryPoint, desc.WorkgroupSize, d.opts.storageFormat)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline %q: %w", desc.Label, err)
	}
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.PipelineID(raw)
	if err := d.tracker.AddPipeline(id, *desc); err != nil {
		return gpucore.InvalidID, err
	}

	d.mu.RLock()
	layout := d.layouts[desc.Layout]
	d.mu.RUnlock()

	words, err := compileShader(source)
	if err != nil {
		d.tracker.RemovePipeline(id)
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline %q: %w", desc.Label, err)
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		d.tracker.RemovePipeline(id)
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline %q: create shader module: %w", desc.Label, err)
	}

	entry := desc.EntryPoint
	if entry == "" {
		entry = "main"
	}
	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.hal,
		Compute: hal.ComputeState{
			Module:     module,
			EntryPoint: entry,
		},
	})
	if err != nil {
		d.device.DestroyShaderModule(module)
		d.tracker.RemovePipeline(id)
		return gpucore.InvalidID, fmt.Errorf("wgpu: pipeline %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	d.pipelines[id] = &pipelineObject{module: module, hal: pipeline}
	d.mu.Unlock()

	slogger().Debug("wgpu: pipeline created",
		"label", desc.Label,
		"shader", desc.Shader,
		"workgroup", fmt.Sprintf("%dx%d", desc.WorkgroupSize[0], desc.WorkgroupSize[1]),
		"spirv_words", len(words))
	return id, nil
}

// DestroyPipeline implements gpucore.Device.
func (d *Device) DestroyPipeline(id gpucore.PipelineID) {
	d.mu.Lock()
	p, ok := d.pipelines[id]
	delete(d.pipelines, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyComputePipeline(p.hal)
		d.device.DestroyShaderModule(p.module)
	}
	d.tracker.RemovePipeline(id)
}

// CreateBindingSet implements gpucore.Device.
func (d *Device) CreateBindingSet(desc *gpucore.BindingSetDesc) (gpucore.BindingSetID, error) {
	raw, err := d.alloc()
	if err != nil {
		return gpucore.InvalidID, err
	}
	id := gpucore.BindingSetID(raw)
	if err := d.tracker.AddBindingSet(id, *desc); err != nil {
		return gpucore.InvalidID, err
	}

	d.mu.RLock()
	layout := d.layouts[desc.Layout]
	entries := make([]gputypes.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := gputypes.BindGroupEntry{Binding: e.Binding}
		if e.Sampler != gpucore.InvalidID {
			entry.Resource = gputypes.SamplerBinding{Sampler: d.samplers[e.Sampler].NativeHandle()}
		} else {
			entry.Resource = gputypes.TextureViewBinding{TextureView: d.views[e.View].NativeHandle()}
		}
		entries = append(entries, entry)
	}
	d.mu.RUnlock()

	bg, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.groups[desc.Group],
		Entries: entries,
	})
	if err != nil {
		d.tracker.RemoveBindingSet(id)
		return gpucore.InvalidID, fmt.Errorf("wgpu: create binding set %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	d.sets[id] = bg
	d.mu.Unlock()
	return id, nil
}

// DestroyBindingSet implements gpucore.Device.
func (d *Device) DestroyBindingSet(id gpucore.BindingSetID) {
	d.mu.Lock()
	bg, ok := d.sets[id]
	delete(d.sets, id)
	d.mu.Unlock()
	if ok {
		d.device.DestroyBindGroup(bg)
	}
	d.tracker.RemoveBindingSet(id)
}

// NewCommandStream implements gpucore.Device. The stream is a
// *recording.Recorder; it is encoded at Submit.
func (d *Device) NewCommandStream(label string) (gpucore.CommandStream, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	return recording.NewRecorder(label), nil
}

// Close implements gpucore.Device. A shared device is left open.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	if live := d.tracker.Live(); live.Total() > 0 {
		slogger().Warn("wgpu: device closed with live resources",
			"textures", live.Textures,
			"views", live.Views,
			"buffers", live.Buffers,
			"binding_sets", live.BindingSets)
	}

	if d.external {
		d.device = nil
		d.queue = nil
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}
