package irradiance

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/internal/cache"
)

// LightProbe generates a diffuse irradiance cube from a set of source
// environment cubes blended over time.
//
// A LightProbe owns two pyramids: a radiance pyramid that holds the
// blended environment and its box-filtered reductions, and an irradiance
// pyramid reconstructed from the coarsest level back to level 0 with
// cosine weighting. Both are created by Init and live until Close.
//
// LightProbe is safe for concurrent use; calls are serialized.
type LightProbe struct {
	mu     sync.Mutex
	dev    gpucore.Device
	loader Loader
	opts   options

	sources     []Source
	ownsSources bool
	sourceViews []gpucore.ViewID

	width, height int
	radiance      *pyramid
	irradiance    *pyramid
	sampler       gpucore.SamplerID
	stages        stagePipelines
	sets          *bindingSets

	time        float64
	stats       FrameStats
	groundTruth *cache.Cache[string, gpucore.TextureID]
	pending     *Uploads
	initialized bool
}

// New creates an uninitialized LightProbe on dev. loader is used by Init
// and GroundTruth and may be nil when only InitSources is used.
//
// The package logger is handed to dev if it accepts one.
func New(dev gpucore.Device, loader Loader, opts ...Option) *LightProbe {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lp := &LightProbe{
		dev:     dev,
		loader:  loader,
		opts:    o,
		pending: &Uploads{},
	}
	lp.groundTruth = cache.New(o.truthLimit, func(path string, id gpucore.TextureID) {
		Logger().Debug("irradiance: ground truth released", "path", path)
		if lp.dev != nil {
			lp.dev.DestroyTexture(id)
		}
	})

	if dev != nil {
		propagateLogger(dev, Logger())
	}
	return lp
}

// Init loads every path through the loader and builds the pyramids,
// pipelines and binding sets.
//
// Uploads are recorded into cs and their staging buffers are added to
// uploads; the caller releases them once cs has executed. When uploads is
// nil the probe holds the staging buffers until Close. The loaded textures
// belong to the probe and are destroyed by Close.
//
// On failure nothing created by Init survives and cs must be discarded.
func (lp *LightProbe) Init(ctx context.Context, cs gpucore.CommandStream, paths []string, uploads *Uploads) error {
	if cs == nil {
		return ErrNilStream
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()

	if err := lp.checkInit(len(paths)); err != nil {
		return err
	}
	if lp.loader == nil {
		return ErrNilLoader
	}
	if uploads == nil {
		uploads = lp.pending
	}

	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			lp.destroySources(sources)
			return err
		}
		src, err := lp.loader.Load(ctx, lp.dev, cs, path, uploads)
		if err != nil {
			lp.destroySources(sources)
			return fmt.Errorf("irradiance: load %q: %w", path, err)
		}
		if src.Path == "" {
			src.Path = path
		}
		sources = append(sources, src)
	}
	if err := cs.Err(); err != nil {
		lp.destroySources(sources)
		return fmt.Errorf("irradiance: record uploads: %w", err)
	}

	if err := lp.build(sources); err != nil {
		lp.destroySources(sources)
		return err
	}
	lp.ownsSources = true
	return nil
}

// InitSources builds the probe from sources already resident on the
// device. The source textures remain owned by the caller and must outlive
// the probe.
func (lp *LightProbe) InitSources(sources []Source) error {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if err := lp.checkInit(len(sources)); err != nil {
		return err
	}
	return lp.build(append([]Source(nil), sources...))
}

func (lp *LightProbe) checkInit(count int) error {
	if lp.dev == nil {
		return ErrNilDevice
	}
	if lp.initialized {
		return ErrAlreadyInitialized
	}
	if count == 0 {
		return ErrNoSources
	}
	if lp.opts.maxSources > 0 && count > lp.opts.maxSources {
		return fmt.Errorf("%w: %d > %d", ErrTooManySources, count, lp.opts.maxSources)
	}
	return nil
}

// build validates the sources and creates every per-probe resource.
// Caller must hold lp.mu.
func (lp *LightProbe) build(sources []Source) error {
	w, h, err := sourceExtent(sources)
	if err != nil {
		return err
	}

	lp.sources = sources
	lp.width, lp.height = w, h

	if err := lp.createResources(); err != nil {
		lp.destroyPartialInit()
		return err
	}

	lp.initialized = true
	Logger().Info("irradiance: probe initialized",
		"sources", len(sources),
		"width", w,
		"height", h,
		"levels", lp.irradiance.levels(),
		"binding_sets", len(lp.sets.created))
	return nil
}

func (lp *LightProbe) createResources() error {
	var err error
	label := lp.opts.label

	lp.radiance, lp.irradiance, err = allocatePyramids(lp.dev, label, lp.width, lp.height)
	if err != nil {
		return fmt.Errorf("irradiance: allocate pyramids: %w", err)
	}

	lp.sampler, err = lp.dev.CreateSampler(&gpucore.SamplerDesc{
		Label:   label + "_sampler",
		Address: gpucore.AddressModeRepeat,
		Filter:  gpucore.FilterModeLinear,
	})
	if err != nil {
		return fmt.Errorf("irradiance: create sampler: %w", err)
	}

	if err := lp.stages.build(lp.dev, label, lp.opts.workgroupSize); err != nil {
		return fmt.Errorf("irradiance: %w", err)
	}

	lp.sourceViews = make([]gpucore.ViewID, 0, len(lp.sources))
	for i, src := range lp.sources {
		view, err := lp.dev.CreateView(&gpucore.ViewDesc{
			Label:   fmt.Sprintf("%s_source_%d", label, i),
			Texture: src.Texture,
			Kind:    gpucore.ViewSampled,
			Level:   0,
		})
		if err != nil {
			return fmt.Errorf("irradiance: create source %d view: %w", i, err)
		}
		lp.sourceViews = append(lp.sourceViews, view)
	}

	pairs := make([][2]gpucore.ViewID, len(lp.sourceViews))
	for i := range pairs {
		a, b := SourcePair(i, len(lp.sourceViews))
		pairs[i] = [2]gpucore.ViewID{lp.sourceViews[a], lp.sourceViews[b]}
	}

	lp.sets, err = buildBindingSets(lp.dev, label, &lp.stages, lp.sampler, pairs, lp.radiance, lp.irradiance)
	if err != nil {
		return fmt.Errorf("irradiance: %w", err)
	}
	return nil
}

// sourceExtent checks that every source has a positive extent and shares
// the format of the first, and returns the largest extent.
func sourceExtent(sources []Source) (w, h int, err error) {
	format := sources[0].Format
	for i, src := range sources {
		if src.Width <= 0 || src.Height <= 0 {
			return 0, 0, fmt.Errorf("%w: source %d is %dx%d", ErrInvalidSize, i, src.Width, src.Height)
		}
		if src.Format != format {
			return 0, 0, fmt.Errorf("%w: source %d is %s, source 0 is %s", ErrSourceMismatch, i, src.Format, format)
		}
		w = max(w, src.Width)
		h = max(h, src.Height)
	}
	return w, h, nil
}

// destroyPartialInit releases everything createResources may have created.
// Sources are not touched. Caller must hold lp.mu.
func (lp *LightProbe) destroyPartialInit() {
	if lp.sets != nil {
		lp.sets.destroy(lp.dev)
		lp.sets = nil
	}
	for _, view := range lp.sourceViews {
		lp.dev.DestroyView(view)
	}
	lp.sourceViews = nil
	lp.stages.destroy(lp.dev)
	if lp.sampler != gpucore.InvalidID {
		lp.dev.DestroySampler(lp.sampler)
		lp.sampler = gpucore.InvalidID
	}
	if lp.irradiance != nil {
		lp.irradiance.destroy(lp.dev)
		lp.irradiance = nil
	}
	if lp.radiance != nil {
		lp.radiance.destroy(lp.dev)
		lp.radiance = nil
	}
	lp.sources = nil
	lp.width, lp.height = 0, 0
}

func (lp *LightProbe) destroySources(sources []Source) {
	for _, src := range sources {
		lp.dev.DestroyTexture(src.Texture)
	}
}

// AdvanceTime sets the blend clock used by the next Process call.
// NaN and infinite times are ignored and the clock keeps its value.
func (lp *LightProbe) AdvanceTime(t float64) {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		Logger().Warn("irradiance: non-finite time ignored", "time", t)
		return
	}
	lp.mu.Lock()
	lp.time = t
	lp.mu.Unlock()
}

// IrradianceResult returns the irradiance pyramid texture. Level 0 is the
// finished irradiance cube. It is InvalidID before Init.
func (lp *LightProbe) IrradianceResult() gpucore.TextureID {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.irradiance == nil {
		return gpucore.InvalidID
	}
	return lp.irradiance.texture
}

// RadianceResult returns the radiance pyramid texture. Level 0 is the
// blended environment. It is InvalidID before Init.
func (lp *LightProbe) RadianceResult() gpucore.TextureID {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.radiance == nil {
		return gpucore.InvalidID
	}
	return lp.radiance.texture
}

// GroundTruth returns a reference cube for path, loading it through the
// loader on first use. Loads are recorded into cs and staging buffers
// handled like Init does. The texture is owned by the probe.
func (lp *LightProbe) GroundTruth(ctx context.Context, cs gpucore.CommandStream, path string, uploads *Uploads) (gpucore.TextureID, error) {
	if cs == nil {
		return gpucore.InvalidID, ErrNilStream
	}
	if lp.dev == nil {
		return gpucore.InvalidID, ErrNilDevice
	}
	if lp.loader == nil {
		return gpucore.InvalidID, ErrNilLoader
	}
	if uploads == nil {
		uploads = lp.pending
	}

	return lp.groundTruth.GetOrLoad(path, func() (gpucore.TextureID, error) {
		src, err := lp.loader.Load(ctx, lp.dev, cs, path, uploads)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("irradiance: load ground truth %q: %w", path, err)
		}
		Logger().Debug("irradiance: ground truth loaded",
			"path", path,
			"width", src.Width,
			"height", src.Height)
		return src.Texture, nil
	})
}

// Levels returns the number of irradiance levels, or 0 before Init.
func (lp *LightProbe) Levels() int {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if lp.irradiance == nil {
		return 0
	}
	return lp.irradiance.levels()
}

// Size returns the level 0 face extent of both pyramids, the largest
// source extent, or zeros before Init.
func (lp *LightProbe) Size() (w, h int) {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.width, lp.height
}

// MapSize returns the map size the cosine weights are scaled by, or 0 before Init.
func (lp *LightProbe) MapSize() float32 {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	if !lp.initialized {
		return 0
	}
	return MapSize(lp.width, lp.height)
}

// Sources returns a copy of the sources the probe was initialized with.
func (lp *LightProbe) Sources() []Source {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return append([]Source(nil), lp.sources...)
}

// Stats returns statistics of the last successful Process call.
func (lp *LightProbe) Stats() FrameStats {
	lp.mu.Lock()
	defer lp.mu.Unlock()
	return lp.stats
}

// Close releases every resource the probe created, including sources
// loaded by Init and ground truth cubes. The device is not closed.
// Close is idempotent; the probe may be initialized again afterwards.
func (lp *LightProbe) Close() {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	lp.groundTruth.Clear()
	if lp.dev != nil {
		lp.pending.Release(lp.dev)
	}
	if !lp.initialized {
		return
	}

	sources := lp.sources
	lp.destroyPartialInit()
	if lp.ownsSources {
		lp.destroySources(sources)
		lp.ownsSources = false
	}
	lp.initialized = false
	lp.stats = FrameStats{}
	Logger().Info("irradiance: probe closed")
}
