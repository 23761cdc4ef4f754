package irradiance

import "github.com/gogpu/irradiance/gpucore"

// DefaultPeriod is the time, in the units passed to AdvanceTime, spent
// blending from one source environment to the next.
const DefaultPeriod float32 = 3.0

// DefaultWorkgroupSize is the compute workgroup extent in X and Y.
const DefaultWorkgroupSize = 8

// Option configures a LightProbe during creation.
// Use functional options to customize LightProbe behavior.
//
// Example:
//
//	// Defaults: period 3, 8x8 workgroups, unlimited sources
//	lp := irradiance.New(dev, loader)
//
//	// Slower blend cycle, at most four probes
//	lp := irradiance.New(dev, loader, irradiance.WithPeriod(10), irradiance.WithMaxSources(4))
type Option func(*options)

// options holds optional configuration for LightProbe creation.
type options struct {
	period        float32
	maxSources    int
	workgroupSize [2]uint32
	label         string
	truthLimit    int
}

// defaultOptions returns the default probe options.
func defaultOptions() options {
	return options{
		period:        DefaultPeriod,
		maxSources:    0, // unlimited
		workgroupSize: [2]uint32{DefaultWorkgroupSize, DefaultWorkgroupSize},
		label:         "light_probe",
		truthLimit:    0, // unlimited
	}
}

// WithPeriod sets the blend period. Non-positive values keep the default.
func WithPeriod(period float32) Option {
	return func(o *options) {
		if period > 0 {
			o.period = period
		}
	}
}

// WithMaxSources limits how many source paths Init accepts.
// Zero or a negative value means no limit.
func WithMaxSources(n int) Option {
	return func(o *options) {
		o.maxSources = n
	}
}

// WithWorkgroupSize sets the compute workgroup extent used for every stage.
// Zero components keep the default.
func WithWorkgroupSize(x, y uint32) Option {
	return func(o *options) {
		if x > 0 {
			o.workgroupSize[0] = x
		}
		if y > 0 {
			o.workgroupSize[1] = y
		}
	}
}

// WithLabel sets the prefix used for debug labels of every GPU resource.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithGroundTruthLimit bounds how many ground truth cubes stay loaded.
// The least recently requested cube is destroyed when the limit is
// exceeded. Zero means no limit.
func WithGroundTruthLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.truthLimit = n
		}
	}
}

// workgroups returns the dispatch grid covering a w x h level on all six faces.
func (o *options) workgroups(w, h int) (x, y, z uint32) {
	x = (uint32(w) + o.workgroupSize[0] - 1) / o.workgroupSize[0] //nolint:gosec // level extents are positive
	y = (uint32(h) + o.workgroupSize[1] - 1) / o.workgroupSize[1] //nolint:gosec // level extents are positive
	return x, y, gpucore.CubeFaces
}
