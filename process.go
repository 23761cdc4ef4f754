package irradiance

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/irradiance/gpucore"
)

// seedGroups is the fixed dispatch grid of the seed pass. The coarsest
// level is always 1x1 per face.
var seedGroups = [3]uint32{1, 1, gpucore.CubeFaces}

// FrameStats describes the last frame recorded by Process.
type FrameStats struct {
	// Dispatches is the number of compute dispatches recorded.
	Dispatches int

	// Barriers is the number of level transitions recorded.
	Barriers int

	// Index is the first source of the blended pair.
	Index int

	// Blend is the weight of source (Index+1) mod n.
	Blend float32

	// Time is the blend time the frame was recorded at.
	Time float64
}

// frame records one Process call into a command stream and tracks the
// level states of both pyramids while doing so.
type frame struct {
	cs    gpucore.CommandStream
	stats FrameStats
}

// transition records the barriers that move levels of p to state to.
// Levels already in that state produce no barrier.
func (f *frame) transition(p *pyramid, to gpucore.ResourceState, levels ...int) {
	barriers := make([]gpucore.Barrier, 0, len(levels))
	for _, level := range levels {
		if b, ok := p.transition(level, to); ok {
			barriers = append(barriers, b)
		}
	}
	if len(barriers) == 0 {
		return
	}
	f.cs.Barrier(barriers...)
	f.stats.Barriers += len(barriers)
}

// bind activates a stage and its shared sampler group.
func (f *frame) bind(stages *stagePipelines, stage Stage, sampler gpucore.BindingSetID) {
	f.cs.SetLayout(stages.layouts[stage])
	f.cs.SetPipeline(stages.pipelines[stage])
	f.cs.SetBindingSet(groupSampler, sampler)
}

func (f *frame) dispatch(x, y, z uint32) {
	f.cs.Dispatch(x, y, z)
	f.stats.Dispatches++
}

// phase reports the sticky stream error, if any, tagged with the phase name.
func (f *frame) phase(name string) error {
	if err := f.cs.Err(); err != nil {
		return fmt.Errorf("irradiance: %s: %w", name, err)
	}
	return nil
}

// Process records one frame into cs:
//
//  1. radiance: blend the current source pair into radiance level 0
//  2. downsample: box-filter radiance level i into level i+1, i = 0..N-3
//  3. seed: box-filter the coarsest radiance level into irradiance level N-1
//  4. upsample: for c = N-1..1, reconstruct irradiance level c-1 from
//     irradiance level c and radiance level c-1
//
// Every level is written with a storage view and read with a sampled view,
// with a barrier in between. When the frame ends every irradiance level is
// in state final, which must not be StateUndefined.
//
// Process never waits on the device.
func (lp *LightProbe) Process(cs gpucore.CommandStream, final gpucore.ResourceState) error {
	if cs == nil {
		return ErrNilStream
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.initialized {
		return ErrNotInitialized
	}
	if len(lp.sources) == 0 {
		return ErrNoSources
	}
	if final == gpucore.StateUndefined {
		return fmt.Errorf("%w: %s", ErrInvalidState, final)
	}

	// A stream that fails to record is never executed, so the tracked
	// states must not advance.
	radianceStates, irradianceStates := lp.radiance.snapshot(), lp.irradiance.snapshot()
	restore := func() {
		lp.radiance.restore(radianceStates)
		lp.irradiance.restore(irradianceStates)
	}

	f := &frame{cs: cs}
	f.stats.Time = lp.time
	f.stats.Index, f.stats.Blend = Blend(lp.time, lp.opts.period, len(lp.sources))

	phases := []func(*frame) error{
		lp.recordRadiance,
		lp.recordDownsample,
		lp.recordSeed,
		lp.recordUpsample,
		func(f *frame) error { return lp.recordFinal(f, final) },
	}
	for _, record := range phases {
		if err := record(f); err != nil {
			restore()
			return err
		}
	}

	lp.stats = f.stats
	Logger().Debug("irradiance: frame recorded",
		"time", f.stats.Time,
		"index", f.stats.Index,
		"blend", f.stats.Blend,
		"dispatches", f.stats.Dispatches,
		"barriers", f.stats.Barriers)
	return nil
}

func (lp *LightProbe) recordRadiance(f *frame) error {
	f.transition(lp.radiance, gpucore.StateUnorderedAccess, 0)

	f.bind(&lp.stages, StageRadiance, lp.sets.sampler)
	f.cs.SetConstants(groupRadianceBlend, blendConstants(f.stats.Blend))
	f.cs.SetBindingSet(groupRadianceOutput, lp.sets.radianceOut)
	f.cs.SetBindingSet(groupRadianceSources, lp.sets.sources[f.stats.Index])
	f.dispatch(lp.opts.workgroups(lp.radiance.levelSize(0)))

	f.transition(lp.radiance, gpucore.StateShaderRead, 0)
	return f.phase("radiance")
}

func (lp *LightProbe) recordDownsample(f *frame) error {
	if len(lp.sets.down) == 0 {
		return nil
	}

	f.bind(&lp.stages, StageResample, lp.sets.sampler)
	for i, set := range lp.sets.down {
		dst := i + 1
		f.transition(lp.radiance, gpucore.StateShaderRead, i)
		f.transition(lp.radiance, gpucore.StateUnorderedAccess, dst)

		f.cs.SetBindingSet(groupResampleLevels, set)
		f.dispatch(lp.opts.workgroups(lp.radiance.levelSize(dst)))

		f.transition(lp.radiance, gpucore.StateShaderRead, dst)
	}
	return f.phase("downsample")
}

func (lp *LightProbe) recordSeed(f *frame) error {
	src := lp.radiance.levels() - 1
	dst := lp.irradiance.levels() - 1

	f.transition(lp.radiance, gpucore.StateShaderRead, src)
	f.transition(lp.irradiance, gpucore.StateUnorderedAccess, dst)

	f.bind(&lp.stages, StageResample, lp.sets.sampler)
	f.cs.SetBindingSet(groupResampleLevels, lp.sets.seed)
	f.dispatch(seedGroups[0], seedGroups[1], seedGroups[2])

	f.transition(lp.irradiance, gpucore.StateShaderRead, dst)
	return f.phase("seed")
}

func (lp *LightProbe) recordUpsample(f *frame) error {
	n := lp.irradiance.levels()
	consts := cosineConstants{
		MapSize:   MapSize(lp.width, lp.height),
		NumLevels: uint32(n), //nolint:gosec // level count is small
	}

	f.bind(&lp.stages, StageCosineUp, lp.sets.sampler)
	for i, set := range lp.sets.up {
		c := n - 1 - i
		dst := c - 1

		f.transition(lp.irradiance, gpucore.StateShaderRead, c)
		f.transition(lp.irradiance, gpucore.StateUnorderedAccess, dst)

		consts.Level = uint32(dst) //nolint:gosec // level index is small
		f.cs.SetConstants(groupCosineConstants, consts.bytes())
		f.cs.SetBindingSet(groupCosineLevels, set)
		f.dispatch(lp.opts.workgroups(lp.irradiance.levelSize(dst)))

		f.transition(lp.irradiance, gpucore.StateShaderRead, dst)
	}
	return f.phase("upsample")
}

// recordFinal hands every irradiance level to the consumer in state final.
func (lp *LightProbe) recordFinal(f *frame, final gpucore.ResourceState) error {
	all := make([]int, lp.irradiance.levels())
	for i := range all {
		all[i] = i
	}
	f.transition(lp.irradiance, final, all...)
	return f.phase("final transition")
}

// blendConstants encodes the radiance stage constants.
func blendConstants(blend float32) []byte {
	b := make([]byte, blendConstantsSize)
	binary.LittleEndian.PutUint32(b, math.Float32bits(blend))
	return b
}

// bytes encodes the constants in shader layout: three little-endian words.
func (c cosineConstants) bytes() []byte {
	b := make([]byte, cosineConstantsSize)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(c.MapSize))
	binary.LittleEndian.PutUint32(b[4:], c.NumLevels)
	binary.LittleEndian.PutUint32(b[8:], c.Level)
	return b
}
