// Package software provides a CPU implementation of gpucore.Device.
//
// The software device is the reference for the three irradiance stages and
// the fallback backend when no GPU is available. It registers itself as
// "software" with package backend on import:
//
//	import _ "github.com/gogpu/irradiance/backend/software"
//
// # Storage
//
// Cube textures are stored as float32 RGBA per level. Writes are rounded to
// the texture format, so an RGBA16Float level holds exactly the values a
// GPU storage texture of that format would. Buffers are plain byte slices.
//
// # Execution
//
// Command streams are recorded with a recording.Recorder and run at Submit.
// A stream is validated against the tracked level states before anything
// executes (see recording.Tracker). Dispatches are split into row bands
// and run on a worker pool sized by WithWorkers.
//
// # Kernels
//
//   - radiance: out = mix(a(d), b(d), blend) for the texel direction d
//   - resample: 2×2 box filter, clamped at face edges
//   - cosine_up: out = mix(coarser(d), radiance(d), CosineWeight(mapSize, level))
//
// Sampling selects a face by the major axis of the direction and filters
// within that face; there is no filtering across face seams.
package software
