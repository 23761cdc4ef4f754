package irradiance

import "errors"

// Sentinel errors returned by LightProbe. Failures from the device or the
// command stream are wrapped with the phase that produced them, so callers
// test with errors.Is.
var (
	// ErrNotInitialized is returned when Process or a result accessor is
	// used before a successful Init.
	ErrNotInitialized = errors.New("irradiance: probe not initialized")

	// ErrAlreadyInitialized is returned when Init is called twice without Close.
	ErrAlreadyInitialized = errors.New("irradiance: probe already initialized")

	// ErrNoSources is returned when a probe is initialized or processed
	// without any source environment.
	ErrNoSources = errors.New("irradiance: no source environments")

	// ErrTooManySources is returned when more paths are given than the
	// configured maximum source count.
	ErrTooManySources = errors.New("irradiance: too many source environments")

	// ErrSourceMismatch is returned when sources do not share a texel format.
	ErrSourceMismatch = errors.New("irradiance: source format mismatch")

	// ErrInvalidSize is returned for sources with a non-positive extent.
	ErrInvalidSize = errors.New("irradiance: invalid source size")

	// ErrInvalidState is returned when Process is asked to leave the
	// irradiance pyramid in a state no consumer can use.
	ErrInvalidState = errors.New("irradiance: invalid final resource state")

	// ErrNilDevice is returned when a probe is used without a device.
	ErrNilDevice = errors.New("irradiance: device is nil")

	// ErrNilStream is returned when a nil command stream is passed.
	ErrNilStream = errors.New("irradiance: command stream is nil")

	// ErrNilLoader is returned when paths are given to a probe without a loader.
	ErrNilLoader = errors.New("irradiance: loader is nil")
)
