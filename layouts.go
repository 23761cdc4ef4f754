package irradiance

import (
	"fmt"

	"github.com/gogpu/irradiance/gpucore"
)

// Stage identifies one of the three compute stages.
type Stage int

// Compute stages in pipeline order.
const (
	// StageRadiance blends two sources into radiance level 0.
	StageRadiance Stage = iota

	// StageResample box-filters a level into the next coarser one. It
	// runs the downsample cascade and the irradiance seed.
	StageResample

	// StageCosineUp reconstructs an irradiance level from the coarser
	// irradiance level and the matching radiance level.
	StageCosineUp

	// StageCount is the total number of stages.
	StageCount
)

var stageNames = [StageCount]string{
	StageRadiance: "radiance",
	StageResample: "resample",
	StageCosineUp: "cosine_up",
}

// String returns the stage name.
func (s Stage) String() string {
	if s >= 0 && s < StageCount {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// shader returns the device shader name for the stage.
func (s Stage) shader() string {
	switch s {
	case StageRadiance:
		return gpucore.ShaderRadiance
	case StageResample:
		return gpucore.ShaderResample
	default:
		return gpucore.ShaderCosineUp
	}
}

// Group indices. The sampler group is group 0 in every stage so one
// sampler binding set serves all of them.
const (
	groupSampler uint32 = 0

	// Radiance stage.
	groupRadianceBlend   uint32 = 1
	groupRadianceOutput  uint32 = 2
	groupRadianceSources uint32 = 3

	// Resample stage.
	groupResampleLevels uint32 = 1

	// Cosine upsample stage.
	groupCosineConstants uint32 = 1
	groupCosineLevels    uint32 = 2
)

// blendConstantsSize is the byte size of the radiance stage constants: one float32.
const blendConstantsSize = 4

// cosineConstantsSize is the byte size of cosineConstants.
const cosineConstantsSize = 12

// cosineConstants are the inline constants of the cosine upsample stage.
type cosineConstants struct {
	MapSize   float32
	NumLevels uint32
	Level     uint32 // destination (finer) irradiance level
}

func samplerGroup() gpucore.GroupLayout {
	return gpucore.GroupLayout{Entries: []gpucore.LayoutEntry{
		{Binding: 0, Type: gpucore.BindingTypeSampler},
	}}
}

// stageLayout returns the binding groups of a stage.
//
//	radiance:  sampler | blend:f32 | out:storage | srcA, srcB:sampled
//	resample:  sampler | in:sampled, out:storage
//	cosine_up: sampler | {mapSize, numLevels, level} | radiance, coarser:sampled, out:storage
func stageLayout(stage Stage) []gpucore.GroupLayout {
	switch stage {
	case StageRadiance:
		return []gpucore.GroupLayout{
			samplerGroup(),
			{Entries: []gpucore.LayoutEntry{
				{Binding: 0, Type: gpucore.BindingTypeConstants, Size: blendConstantsSize},
			}},
			{Entries: []gpucore.LayoutEntry{
				{Binding: 0, Type: gpucore.BindingTypeStorageTexture},
			}},
			{Entries: []gpucore.LayoutEntry{
				{Binding: 0, Type: gpucore.BindingTypeSampledTexture},
				{Binding: 1, Type: gpucore.BindingTypeSampledTexture},
			}},
		}
	case StageResample:
		return []gpucore.GroupLayout{
			samplerGroup(),
			{Entries: []gpucore.LayoutEntry{
				{Binding: 0, Type: gpucore.BindingTypeSampledTexture},
				{Binding: 1, Type: gpucore.BindingTypeStorageTexture},
			}},
		}
	case StageCosineUp:
		return []gpucore.GroupLayout{
			samplerGroup(),
			{Entries: []gpucore.LayoutEntry{
				{Binding: 0, Type: gpucore.BindingTypeConstants, Size: cosineConstantsSize},
			}},
			{Entries: []gpucore.LayoutEntry{
				{Binding: 0, Type: gpucore.BindingTypeSampledTexture},
				{Binding: 1, Type: gpucore.BindingTypeSampledTexture},
				{Binding: 2, Type: gpucore.BindingTypeStorageTexture},
			}},
		}
	default:
		return nil
	}
}

// stagePipelines is the per-stage dispatch table: layout and pipeline.
type stagePipelines struct {
	layouts   [StageCount]gpucore.LayoutID
	pipelines [StageCount]gpucore.PipelineID
}

// build creates the layout and pipeline of every stage. On failure the
// resources of all stages are destroyed.
func (sp *stagePipelines) build(dev gpucore.Device, label string, workgroup [2]uint32) error {
	for i := Stage(0); i < StageCount; i++ {
		stageName := fmt.Sprintf("%s_%s", label, i)
		groups := stageLayout(i)

		layout, err := dev.CreateLayout(&gpucore.LayoutDesc{
			Label:  stageName + "_layout",
			Groups: groups,
		})
		if err != nil {
			sp.destroy(dev)
			return fmt.Errorf("create layout for %s: %w", i, err)
		}
		sp.layouts[i] = layout

		pipeline, err := dev.CreatePipeline(&gpucore.PipelineDesc{
			Label:         stageName,
			Layout:        layout,
			Shader:        i.shader(),
			EntryPoint:    "main",
			WorkgroupSize: workgroup,
		})
		if err != nil {
			sp.destroy(dev)
			return fmt.Errorf("create pipeline for %s: %w", i, err)
		}
		sp.pipelines[i] = pipeline

		Logger().Debug("irradiance: stage pipeline created",
			"stage", i.String(),
			"groups", len(groups))
	}
	return nil
}

// destroy releases every created pipeline and layout.
func (sp *stagePipelines) destroy(dev gpucore.Device) {
	for i := Stage(0); i < StageCount; i++ {
		if sp.pipelines[i] != gpucore.InvalidID {
			dev.DestroyPipeline(sp.pipelines[i])
			sp.pipelines[i] = gpucore.InvalidID
		}
		if sp.layouts[i] != gpucore.InvalidID {
			dev.DestroyLayout(sp.layouts[i])
			sp.layouts[i] = gpucore.InvalidID
		}
	}
}
