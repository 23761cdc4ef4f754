//go:build !nogpu

package wgpu

import (
	"context"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

// Submit implements gpucore.Device. The stream is validated, encoded into
// one command buffer and executed; Submit returns when the GPU is done.
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

	enc := &streamEncoder{dev: d, label: r.Label()}
	defer enc.release()

	encoder, err := enc.encode(r)
	if err != nil {
		return fmt.Errorf("wgpu: encode %q: %w", r.Label(), err)
	}
	if err := d.execute(ctx, encoder); err != nil {
		return fmt.Errorf("wgpu: submit %q: %w", r.Label(), err)
	}

	slogger().Debug("wgpu: stream executed",
		"label", r.Label(),
		"commands", len(r.Commands()),
		"dispatches", enc.dispatches,
		"constants_bytes", len(enc.arena))
	return nil
}

// ReadTexture implements gpucore.Device. The level is copied into a staging
// buffer with copy-aligned rows and returned tightly packed.
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

	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	ts, _ := d.tracker.Texture(id)
	d.mu.RLock()
	tex := d.textures[id]
	d.mu.RUnlock()

	packed, aligned := rowPitch(ts.Desc, level)
	w := uint32(gpucore.MipSize(ts.Desc.Width, level))  //nolint:gosec // extents are positive
	h := uint32(gpucore.MipSize(ts.Desc.Height, level)) //nolint:gosec // extents are positive
	rows := int(h) * gpucore.CubeFaces
	size := aligned * uint64(rows) //nolint:gosec // rows is positive

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "readback_staging",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	encoder, err := d.beginEncoder("readback")
	if err != nil {
		return nil, err
	}
	encoder.CopyTextureToBuffer(tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(aligned), RowsPerImage: h}, //nolint:gosec // row pitch fits
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: uint32(level)},                  //nolint:gosec // validated above
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: gpucore.CubeFaces},
	}})
	if err := d.execute(ctx, encoder); err != nil {
		return nil, fmt.Errorf("wgpu: readback tex%d level %d: %w", id, level, err)
	}

	raw := make([]byte, size)
	if err := d.queue.ReadBuffer(staging, 0, raw); err != nil {
		return nil, fmt.Errorf("wgpu: readback: %w", err)
	}
	return stripRows(raw, rows, packed, aligned), nil
}

func (d *Device) beginEncoder(label string) (hal.CommandEncoder, error) {
	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("begin encoding: %w", err)
	}
	return encoder, nil
}

// execute finishes encoder, submits it and waits on a fence.
func (d *Device) execute(ctx context.Context, encoder hal.CommandEncoder) error {
	if err := ctx.Err(); err != nil {
		encoder.DiscardEncoding()
		return err
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := d.device.Wait(fence, 1, d.fenceTimeout())
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !fenceOK {
		return ErrFenceTimeout
	}
	return nil
}

// streamEncoder translates one validated recording into HAL commands.
// Resources it creates live until release, after the GPU is done.
type streamEncoder struct {
	dev   *Device
	label string

	// arena holds every SetConstants block at a uniform-aligned offset.
	arena     []byte
	offsets   []uint32
	arenaBuf  hal.Buffer
	constSets map[string]hal.BindGroup
	temps     []hal.Buffer

	layout   *layoutObject
	pipeline hal.ComputePipeline
	bound    map[uint32]hal.BindGroup
	dynamic  map[uint32]uint32

	constIndex int
	dispatches int
}

// packConstants lays out the constants of every SetConstants command.
func (e *streamEncoder) packConstants(r *recording.Recording) {
	for _, cmd := range r.Commands() {
		c, ok := cmd.(recording.SetConstantsCommand)
		if !ok {
			continue
		}
		off := uint64(len(e.arena))
		e.offsets = append(e.offsets, uint32(off)) //nolint:gosec // arena is small
		e.arena = append(e.arena, c.Data...)
		e.arena = append(e.arena, make([]byte, alignUp(uint64(len(e.arena)), uniformOffsetAlignment)-uint64(len(e.arena)))...)
	}
}

func (e *streamEncoder) encode(r *recording.Recording) (hal.CommandEncoder, error) {
	d := e.dev
	e.packConstants(r)
	if len(e.arena) > 0 {
		buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: e.label + "_constants",
			Size:  uint64(len(e.arena)),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("create constants buffer: %w", err)
		}
		e.arenaBuf = buf
		d.queue.WriteBuffer(buf, 0, e.arena)
	}

	encoder, err := d.beginEncoder(e.label)
	if err != nil {
		return nil, err
	}
	e.bound = make(map[uint32]hal.BindGroup)
	e.dynamic = make(map[uint32]uint32)

	for i, cmd := range r.Commands() {
		if err := e.apply(encoder, cmd); err != nil {
			encoder.DiscardEncoding()
			return nil, fmt.Errorf("%s #%d: %w", cmd.Type(), i, err)
		}
	}
	return encoder, nil
}

func (e *streamEncoder) apply(encoder hal.CommandEncoder, cmd recording.Command) error {
	d := e.dev
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch c := cmd.(type) {
	case recording.SetLayoutCommand:
		e.layout = d.layouts[c.Layout]
		e.pipeline = nil
		clear(e.bound)
		clear(e.dynamic)
	case recording.SetPipelineCommand:
		e.pipeline = d.pipelines[c.Pipeline].hal
	case recording.SetBindingSetCommand:
		e.bound[c.Group] = d.sets[c.Set]
	case recording.SetConstantsCommand:
		e.dynamic[c.Group] = e.offsets[e.constIndex]
		e.constIndex++
	case recording.BarrierCommand:
		encoder.TransitionTextures(e.barriers(c.Barriers))
	case recording.DispatchCommand:
		return e.dispatch(encoder, c)
	case recording.CopyBufferToTextureCommand:
		return e.copy(encoder, c)
	}
	return nil
}

// barriers maps level transitions to HAL texture barriers. d.mu must be held.
func (e *streamEncoder) barriers(bs []gpucore.Barrier) []hal.TextureBarrier {
	d := e.dev
	out := make([]hal.TextureBarrier, 0, len(bs))
	for _, b := range bs {
		ts, _ := d.tracker.Texture(b.Texture)
		base, count := levelRange(b, ts.Desc.Levels)
		out = append(out, hal.TextureBarrier{
			Texture: d.textures[b.Texture],
			Range: hal.TextureRange{
				Aspect:          gputypes.TextureAspectAll,
				BaseMipLevel:    base,
				MipLevelCount:   count,
				BaseArrayLayer:  0,
				ArrayLayerCount: gpucore.CubeFaces,
			},
			Usage: hal.TextureUsageTransition{
				OldUsage: stateUsage(b.Before),
				NewUsage: stateUsage(b.After),
			},
		})
	}
	return out
}

// dispatch records one compute pass. d.mu must be held.
func (e *streamEncoder) dispatch(encoder hal.CommandEncoder, c recording.DispatchCommand) error {
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{
		Label: fmt.Sprintf("%s_dispatch%d", e.label, e.dispatches),
	})
	pass.SetPipeline(e.pipeline)
	for g, group := range e.layout.desc.Groups {
		gi := uint32(g) //nolint:gosec // group count is small
		if isConstantsGroup(group) {
			bg, err := e.constSet(e.layout, g)
			if err != nil {
				pass.End()
				return err
			}
			pass.SetBindGroup(gi, bg, []uint32{e.dynamic[gi]})
			continue
		}
		pass.SetBindGroup(gi, e.bound[gi], nil)
	}
	pass.Dispatch(c.X, c.Y, c.Z)
	pass.End()
	e.dispatches++
	return nil
}

// constSet returns the bind group exposing the constants arena to a
// constants group. Groups sharing a bind group layout share the set.
func (e *streamEncoder) constSet(layout *layoutObject, g int) (hal.BindGroup, error) {
	key := layout.keys[g]
	if bg, ok := e.constSets[key]; ok {
		return bg, nil
	}
	entry := layout.desc.Groups[g].Entries[0]
	bg, err := e.dev.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  fmt.Sprintf("%s_constants_%s", e.label, key),
		Layout: layout.groups[g],
		Entries: []gputypes.BindGroupEntry{
			{Binding: entry.Binding, Resource: gputypes.BufferBinding{
				Buffer: e.arenaBuf.NativeHandle(), Offset: 0, Size: uint64(entry.Size),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create constants binding: %w", err)
	}
	if e.constSets == nil {
		e.constSets = make(map[string]hal.BindGroup)
	}
	e.constSets[key] = bg
	return bg, nil
}

// copy records an upload of all six faces of one level. Sources whose rows
// are not copy-aligned are restaged with padded rows. d.mu must be held.
func (e *streamEncoder) copy(encoder hal.CommandEncoder, c recording.CopyBufferToTextureCommand) error {
	d := e.dev
	ts, _ := d.tracker.Texture(c.Texture)
	src := d.buffers[c.Buffer]
	tex := d.textures[c.Texture]

	packed, aligned := rowPitch(ts.Desc, c.Level)
	w := uint32(gpucore.MipSize(ts.Desc.Width, c.Level))  //nolint:gosec // extents are positive
	h := uint32(gpucore.MipSize(ts.Desc.Height, c.Level)) //nolint:gosec // extents are positive
	rows := int(h) * gpucore.CubeFaces

	buf, offset := src.hal, c.Offset
	if packed != aligned || offset%uint64(ts.Desc.Format.BytesPerTexel()) != 0 { //nolint:gosec // known formats
		data := padRows(src.host[c.Offset:], rows, packed, aligned)
		tmp, err := d.device.CreateBuffer(&hal.BufferDescriptor{
			Label: e.label + "_upload",
			Size:  alignUp(uint64(len(data)), 4),
			Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create upload buffer: %w", err)
		}
		e.temps = append(e.temps, tmp)
		d.queue.WriteBuffer(tmp, 0, data)
		buf, offset = tmp, 0
	}

	encoder.CopyBufferToTexture(buf, tex, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: offset, BytesPerRow: uint32(aligned), RowsPerImage: h}, //nolint:gosec // row pitch fits
		TextureBase:  hal.ImageCopyTexture{Texture: tex, MipLevel: uint32(c.Level)},                     //nolint:gosec // validated by the tracker
		Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: gpucore.CubeFaces},
	}})
	return nil
}

// release destroys the per-submit resources.
func (e *streamEncoder) release() {
	d := e.dev.device
	for _, bg := range e.constSets {
		d.DestroyBindGroup(bg)
	}
	if e.arenaBuf != nil {
		d.DestroyBuffer(e.arenaBuf)
	}
	for _, b := range e.temps {
		d.DestroyBuffer(b)
	}
}
