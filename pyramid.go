package irradiance

import (
	"fmt"
	"math/bits"

	"github.com/gogpu/irradiance/gpucore"
)

// pyramidFormat is the texel format of both pyramids.
const pyramidFormat = gpucore.TextureFormatRGBA16Float

// ResultFormat is the texel format of IrradianceResult and RadianceResult.
const ResultFormat = pyramidFormat

// LevelCount returns the number of irradiance pyramid levels for sources
// of the given extent: floor(log2(max(w, h))), clamped to at least 1, plus one.
// The radiance pyramid has one level less.
func LevelCount(w, h int) int {
	m := max(w, h)
	if m < 1 {
		m = 1
	}
	log2 := bits.Len(uint(m)) - 1
	return max(log2, 1) + 1
}

// MapSize returns the nominal map size used to scale the cosine weights:
// the average of width and height.
func MapSize(w, h int) float32 {
	return float32(w+h) / 2
}

// pyramid is one multi-level cube texture together with a sampled and a
// storage view per level and the tracked state of every level.
type pyramid struct {
	label   string
	texture gpucore.TextureID
	width   int
	height  int
	srv     []gpucore.ViewID
	uav     []gpucore.ViewID
	states  []gpucore.ResourceState
}

// newPyramid allocates a cube texture with the given number of levels and
// creates its views. There is no partial result: on failure everything
// created so far is destroyed.
func newPyramid(dev gpucore.Device, label string, w, h, levels int) (*pyramid, error) {
	tex, err := dev.CreateTexture(&gpucore.TextureDesc{
		Label:  label,
		Width:  w,
		Height: h,
		Levels: levels,
		Format: pyramidFormat,
		Usage: gpucore.TextureUsageTextureBinding | gpucore.TextureUsageStorageBinding |
			gpucore.TextureUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s texture: %w", label, err)
	}

	p := &pyramid{
		label:   label,
		texture: tex,
		width:   w,
		height:  h,
		srv:     make([]gpucore.ViewID, levels),
		uav:     make([]gpucore.ViewID, levels),
		states:  make([]gpucore.ResourceState, levels),
	}

	for level := range levels {
		srv, err := dev.CreateView(&gpucore.ViewDesc{
			Label:   fmt.Sprintf("%s_srv_%d", label, level),
			Texture: tex,
			Kind:    gpucore.ViewSampled,
			Level:   level,
		})
		if err != nil {
			p.destroy(dev)
			return nil, fmt.Errorf("create %s level %d sampled view: %w", label, level, err)
		}
		p.srv[level] = srv

		uav, err := dev.CreateView(&gpucore.ViewDesc{
			Label:   fmt.Sprintf("%s_uav_%d", label, level),
			Texture: tex,
			Kind:    gpucore.ViewStorage,
			Level:   level,
		})
		if err != nil {
			p.destroy(dev)
			return nil, fmt.Errorf("create %s level %d storage view: %w", label, level, err)
		}
		p.uav[level] = uav
	}

	return p, nil
}

// levels returns the number of mip levels.
func (p *pyramid) levels() int { return len(p.states) }

// levelSize returns the face extent of a level.
func (p *pyramid) levelSize(level int) (w, h int) {
	return gpucore.MipSize(p.width, level), gpucore.MipSize(p.height, level)
}

// transition moves a level to a new state and returns the barrier to
// record. ok is false when the level is already in that state.
func (p *pyramid) transition(level int, to gpucore.ResourceState) (b gpucore.Barrier, ok bool) {
	from := p.states[level]
	if from == to {
		return gpucore.Barrier{}, false
	}
	p.states[level] = to
	return gpucore.Barrier{Texture: p.texture, Level: level, Before: from, After: to}, true
}

// snapshot returns a copy of the tracked level states.
func (p *pyramid) snapshot() []gpucore.ResourceState {
	return append([]gpucore.ResourceState(nil), p.states...)
}

// restore resets the tracked level states to a snapshot.
func (p *pyramid) restore(states []gpucore.ResourceState) {
	copy(p.states, states)
}

// destroy releases the views and the texture. Safe on a partially built pyramid.
func (p *pyramid) destroy(dev gpucore.Device) {
	for i := range p.srv {
		if p.srv[i] != gpucore.InvalidID {
			dev.DestroyView(p.srv[i])
			p.srv[i] = gpucore.InvalidID
		}
		if p.uav[i] != gpucore.InvalidID {
			dev.DestroyView(p.uav[i])
			p.uav[i] = gpucore.InvalidID
		}
	}
	if p.texture != gpucore.InvalidID {
		dev.DestroyTexture(p.texture)
		p.texture = gpucore.InvalidID
	}
}

// allocatePyramids sizes and allocates the radiance pyramid (N-1 levels) and the
// irradiance pyramid (N levels) from the largest source extent.
func allocatePyramids(dev gpucore.Device, label string, w, h int) (radiance, irradiance *pyramid, err error) {
	n := LevelCount(w, h)

	radiance, err = newPyramid(dev, label+"_radiance", w, h, n-1)
	if err != nil {
		return nil, nil, err
	}
	irradiance, err = newPyramid(dev, label+"_irradiance", w, h, n)
	if err != nil {
		radiance.destroy(dev)
		return nil, nil, err
	}

	Logger().Debug("irradiance: pyramids allocated",
		"width", w,
		"height", h,
		"levels", n,
		"map_size", MapSize(w, h))
	return radiance, irradiance, nil
}
