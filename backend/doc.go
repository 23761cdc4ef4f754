// Package backend provides a pluggable device registry.
//
// A backend is a named factory for gpucore.Device. The irradiance probe
// itself never chooses a backend; applications and the irradiance CLI pick
// one here and hand the device to irradiance.New.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// Import the backend packages you want to make available:
//
//	import (
//		_ "github.com/gogpu/irradiance/backend/software"
//		_ "github.com/gogpu/irradiance/backend/wgpu"
//	)
//
// # Backend Selection
//
// Use Default() to get the best available device, or Get() to request
// a specific backend by name:
//
//	// Get the default (best available) device
//	dev, err := backend.Default()
//
//	// Or request a specific backend
//	dev, err := backend.Get("software")
//
// # Logging
//
// SetLogger sets the logger every device created through Get or Default
// receives, if the device accepts one.
//
// # Available Backends
//
// - "software": CPU reference device (always available)
// - "wgpu": GPU compute via gogpu/wgpu HAL
package backend
