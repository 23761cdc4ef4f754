//go:build !nogpu

package wgpu

import (
	"time"

	"github.com/gogpu/irradiance/gpucore"
)

// defaultFenceTimeout bounds the wait for a submitted stream.
const defaultFenceTimeout = 5 * time.Second

type options struct {
	fenceTimeout  time.Duration
	storageFormat gpucore.TextureFormat
}

func defaultOptions() options {
	return options{
		fenceTimeout:  defaultFenceTimeout,
		storageFormat: gpucore.TextureFormatRGBA16Float,
	}
}

// Option configures a Device.
type Option func(*options)

// WithFenceTimeout sets how long Submit and ReadTexture wait for the GPU.
// Non-positive values keep the default of five seconds.
func WithFenceTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fenceTimeout = d
		}
	}
}

// WithStorageFormat sets the texel format of storage texture bindings.
// Storage views of textures in any other format cannot be bound.
// The default is gpucore.TextureFormatRGBA16Float.
func WithStorageFormat(f gpucore.TextureFormat) Option {
	return func(o *options) {
		if f.BytesPerTexel() != 0 {
			o.storageFormat = f
		}
	}
}
