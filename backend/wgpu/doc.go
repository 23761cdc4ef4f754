// Package wgpu provides a GPU implementation of gpucore.Device using the
// gogpu/wgpu HAL.
//
// The device runs the three irradiance stages as WGSL compute shaders,
// compiled to SPIR-V with gogpu/naga when a pipeline is created. It supports
// Vulkan today; Metal and DX12 follow the HAL.
//
// # Registration and Selection
//
// The backend registers itself as "wgpu" with package backend on import:
//
//	import _ "github.com/gogpu/irradiance/backend/wgpu"
//
// backend.Default prefers it over the software device. The factory fails,
// and Default falls back, when no adapter can be opened.
//
// # Sharing a Device
//
// An application that already owns a GPU device (for example through
// gogpu) passes it with NewFromProvider. The provider must expose
// HalDevice() and HalQueue(). A shared device is not destroyed by Close.
//
// # Resource Mapping
//
//   - Cube textures are 2D textures with six array layers.
//   - Sampled views are cube views of one level.
//   - Storage views are six-layer 2D array views of one level.
//   - Each layout group becomes a bind group layout. Identical groups share
//     one layout.
//   - Constants groups become uniform buffers bound with a dynamic offset
//     into a per-submit arena.
//
// # Submission
//
// Streams are recorded by a recording.Recorder. Submit validates the stream
// against the tracked level states (see recording.Tracker), encodes it into
// one command buffer and waits on a fence. Each dispatch gets its own
// compute pass. Barriers become HAL texture transitions of the named levels.
//
// # Thread Safety
//
// Device is safe for concurrent use. Submissions are serialized.
package wgpu
