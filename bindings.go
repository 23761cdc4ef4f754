package irradiance

import (
	"fmt"

	"github.com/gogpu/irradiance/gpucore"
)

// bindingSets is the arena of binding sets built once after the pyramids
// are allocated and reused by every frame.
type bindingSets struct {
	// sampler is the linear/wrap sampler set, group 0 of every stage.
	sampler gpucore.BindingSetID

	// radianceOut is the storage view of radiance level 0.
	radianceOut gpucore.BindingSetID

	// sources[i] binds the i-th source pair.
	sources []gpucore.BindingSetID

	// down[i] reads radiance level i and writes radiance level i+1.
	down []gpucore.BindingSetID

	// seed reads the coarsest radiance level and writes the coarsest
	// irradiance level.
	seed gpucore.BindingSetID

	// up is ordered coarsest first: up[i] serves coarse level c = N-1-i
	// and reads radiance c-1 and irradiance c, writing irradiance c-1.
	up []gpucore.BindingSetID

	// created lists every set in creation order for release.
	created []gpucore.BindingSetID
}

// bindingBuilder creates binding sets and remembers them for release.
type bindingBuilder struct {
	dev   gpucore.Device
	label string
	sets  *bindingSets
}

func (b *bindingBuilder) create(name string, layout gpucore.LayoutID, group uint32, entries ...gpucore.BindingSetEntry) (gpucore.BindingSetID, error) {
	id, err := b.dev.CreateBindingSet(&gpucore.BindingSetDesc{
		Label:   b.label + "_" + name,
		Layout:  layout,
		Group:   group,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("create binding set %s: %w", name, err)
	}
	b.sets.created = append(b.sets.created, id)
	return id, nil
}

func viewEntry(binding uint32, view gpucore.ViewID) gpucore.BindingSetEntry {
	return gpucore.BindingSetEntry{Binding: binding, View: view}
}

// buildBindingSets resolves every binding set a frame needs. On failure the
// sets created so far are destroyed.
func buildBindingSets(
	dev gpucore.Device,
	label string,
	stages *stagePipelines,
	sampler gpucore.SamplerID,
	sourcePairs [][2]gpucore.ViewID,
	radiance, irradiance *pyramid,
) (*bindingSets, error) {
	sets := &bindingSets{}
	b := &bindingBuilder{dev: dev, label: label, sets: sets}

	if err := sets.build(b, stages, sampler, sourcePairs, radiance, irradiance); err != nil {
		sets.destroy(dev)
		return nil, err
	}

	Logger().Debug("irradiance: binding sets built",
		"sources", len(sets.sources),
		"down", len(sets.down),
		"up", len(sets.up),
		"total", len(sets.created))
	return sets, nil
}

func (s *bindingSets) build(
	b *bindingBuilder,
	stages *stagePipelines,
	sampler gpucore.SamplerID,
	sourcePairs [][2]gpucore.ViewID,
	radiance, irradiance *pyramid,
) error {
	var err error
	n := irradiance.levels()

	// Shared sampler.
	s.sampler, err = b.create("sampler", stages.layouts[StageRadiance], groupSampler,
		gpucore.BindingSetEntry{Binding: 0, Sampler: sampler})
	if err != nil {
		return err
	}

	// Radiance generation.
	s.radianceOut, err = b.create("radiance_out", stages.layouts[StageRadiance], groupRadianceOutput,
		viewEntry(0, radiance.uav[0]))
	if err != nil {
		return err
	}

	s.sources = make([]gpucore.BindingSetID, len(sourcePairs))
	for i, pair := range sourcePairs {
		s.sources[i], err = b.create(fmt.Sprintf("source_%d", i), stages.layouts[StageRadiance], groupRadianceSources,
			viewEntry(0, pair[0]),
			viewEntry(1, pair[1]))
		if err != nil {
			return err
		}
	}

	// Downsample cascade: level i -> level i+1 for i = 0..N-3.
	resample := stages.layouts[StageResample]
	s.down = make([]gpucore.BindingSetID, 0, max(n-2, 0))
	for i := 0; i+1 < n-1; i++ {
		id, err := b.create(fmt.Sprintf("down_%d", i), resample, groupResampleLevels,
			viewEntry(0, radiance.srv[i]),
			viewEntry(1, radiance.uav[i+1]))
		if err != nil {
			return err
		}
		s.down = append(s.down, id)
	}

	// Seed: coarsest radiance level (N-2) -> coarsest irradiance level (N-1).
	s.seed, err = b.create("seed", resample, groupResampleLevels,
		viewEntry(0, radiance.srv[n-2]),
		viewEntry(1, irradiance.uav[n-1]))
	if err != nil {
		return err
	}

	// Upsample cascade, coarsest first.
	cosine := stages.layouts[StageCosineUp]
	s.up = make([]gpucore.BindingSetID, 0, n-1)
	for i := 0; i < n-1; i++ {
		c := n - 1 - i
		id, err := b.create(fmt.Sprintf("up_%d", c-1), cosine, groupCosineLevels,
			viewEntry(0, radiance.srv[c-1]),
			viewEntry(1, irradiance.srv[c]),
			viewEntry(2, irradiance.uav[c-1]))
		if err != nil {
			return err
		}
		s.up = append(s.up, id)
	}

	return nil
}

// destroy releases every set in reverse creation order.
func (s *bindingSets) destroy(dev gpucore.Device) {
	for i := len(s.created) - 1; i >= 0; i-- {
		dev.DestroyBindingSet(s.created[i])
	}
	s.created = nil
}
