package software

import (
	"context"
	"fmt"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/recording"
)

// executor replays a validated recording against the device images.
type executor struct {
	dev *Device

	layout   gpucore.LayoutDesc
	pipeline gpucore.PipelineDesc
	bound    map[uint32]gpucore.BindingSetID
	consts   map[uint32][]byte

	dispatches int
}

func (ex *executor) run(ctx context.Context, r *recording.Recording) error {
	ex.bound = make(map[uint32]gpucore.BindingSetID)
	ex.consts = make(map[uint32][]byte)

	for i, cmd := range r.Commands() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ex.apply(cmd); err != nil {
			return fmt.Errorf("%s #%d: %w", cmd.Type(), i, err)
		}
	}
	return nil
}

func (ex *executor) apply(cmd recording.Command) error {
	t := ex.dev.tracker

	switch c := cmd.(type) {
	case recording.SetLayoutCommand:
		ex.layout, _ = t.Layout(c.Layout)
		ex.pipeline = gpucore.PipelineDesc{}
		clear(ex.bound)
		clear(ex.consts)
	case recording.SetPipelineCommand:
		ex.pipeline, _ = t.Pipeline(c.Pipeline)
	case recording.SetBindingSetCommand:
		ex.bound[c.Group] = c.Set
	case recording.SetConstantsCommand:
		ex.consts[c.Group] = c.Data
	case recording.BarrierCommand:
		// States are tracked by the validation pass; execution is in order.
	case recording.DispatchCommand:
		d, err := ex.resolve(c)
		if err != nil {
			return err
		}
		if err := d.run(ex.dev.pool); err != nil {
			return err
		}
		ex.dispatches++
	case recording.CopyBufferToTextureCommand:
		return ex.copy(c)
	}
	return nil
}

// resolve gathers the arguments of a dispatch from the active layout.
func (ex *executor) resolve(c recording.DispatchCommand) (*dispatch, error) {
	t := ex.dev.tracker
	d := &dispatch{
		shader:    ex.pipeline.Shader,
		workgroup: ex.pipeline.WorkgroupSize,
		grid:      [3]uint32{c.X, c.Y, c.Z},
		filter:    gpucore.FilterModeLinear,
	}

	for g, group := range ex.layout.Groups {
		gi := uint32(g) //nolint:gosec // group count is small
		if len(group.Entries) == 1 && group.Entries[0].Type == gpucore.BindingTypeConstants {
			d.consts = append(d.consts, ex.consts[gi]...)
			continue
		}
		set, _ := t.BindingSet(ex.bound[gi])
		for _, le := range group.Entries {
			e := entryFor(set.Entries, le.Binding)
			switch le.Type {
			case gpucore.BindingTypeSampler:
				if s, ok := t.Sampler(e.Sampler); ok {
					d.filter = s.Filter
				}
			case gpucore.BindingTypeSampledTexture:
				ref, err := ex.level(e.View)
				if err != nil {
					return nil, err
				}
				d.inputs = append(d.inputs, ref)
			case gpucore.BindingTypeStorageTexture:
				ref, err := ex.level(e.View)
				if err != nil {
					return nil, err
				}
				d.outputs = append(d.outputs, ref)
			}
		}
	}
	return d, nil
}

func entryFor(entries []gpucore.BindingSetEntry, binding uint32) gpucore.BindingSetEntry {
	for _, e := range entries {
		if e.Binding == binding {
			return e
		}
	}
	return gpucore.BindingSetEntry{}
}

func (ex *executor) level(view gpucore.ViewID) (levelRef, error) {
	v, ok := ex.dev.tracker.View(view)
	if !ok {
		return levelRef{}, fmt.Errorf("%w: view%d", recording.ErrUnknownResource, view)
	}
	ex.dev.mu.RLock()
	img, ok := ex.dev.images[v.Texture]
	ex.dev.mu.RUnlock()
	if !ok {
		return levelRef{}, fmt.Errorf("%w: tex%d", recording.ErrUnknownResource, v.Texture)
	}
	return levelRef{img: img, level: v.Level}, nil
}

func (ex *executor) copy(c recording.CopyBufferToTextureCommand) error {
	ex.dev.mu.RLock()
	img, okImg := ex.dev.images[c.Texture]
	buf, okBuf := ex.dev.buffers[c.Buffer]
	ex.dev.mu.RUnlock()
	if !okImg || !okBuf {
		return recording.ErrUnknownResource
	}
	return img.decode(c.Level, buf[c.Offset:])
}
