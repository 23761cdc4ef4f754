// Package gpucore provides the backend-neutral GPU contract used by the
// irradiance generator.
//
// This package defines the [Device] and [CommandStream] interfaces, which
// abstract over different GPU backend implementations so the same pyramid
// algorithm runs on:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), see backend/wgpu
//   - a CPU reference device, see backend/software
//   - a command recorder for inspection, see recording
//
// # Architecture
//
//	               +-------------------+
//	               |    irradiance     |
//	               |   (LightProbe)    |
//	               +---------+---------+
//	                         |
//	               +---------v---------+
//	               |      gpucore      |
//	               | Device / Stream   |
//	               +---------+---------+
//	                         |
//	      +------------------+------------------+
//	      |                  |                  |
//	+-----v------+    +------v-----+    +-------v------+
//	|    wgpu    |    |  software  |    |  recording   |
//	| (hal.Device)|   | (CPU ref)  |    | (inspection) |
//	+------------+    +------------+    +--------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([TextureID], [ViewID], etc.).
// The [Device] interface provides creation and destruction methods for
// each resource type. Devices are responsible for tracking the mapping
// between IDs and actual backend resources.
//
// All textures are six-layer cube images. Views always address exactly one
// mip level: [ViewSampled] views are cubes read through a sampler,
// [ViewStorage] views are 2D arrays of six layers written by compute shaders.
//
// # Resource States
//
// Every (texture, level) pair is in exactly one [ResourceState]. State
// changes are requested explicitly through [CommandStream.Barrier]; devices
// do not infer transitions. A level must be [StateUnorderedAccess] while a
// dispatch writes it and readable ([StateShaderRead]) while a dispatch
// samples it.
//
// # Thread Safety
//
// Device implementations must be safe for concurrent resource creation.
// A CommandStream is owned by one goroutine at a time.
package gpucore
