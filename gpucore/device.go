package gpucore

import "context"

// Device abstracts over different GPU backend implementations.
//
// This interface is the core abstraction that allows the irradiance
// pipeline to run on multiple backends (gogpu/wgpu HAL, the CPU reference
// device). Implementations must be safe for concurrent resource creation.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
type Device interface {
	// Name returns the backend identifier (e.g., "software", "wgpu").
	Name() string

	// === Texture Management ===

	// CreateTexture creates a six-face cube texture. All levels start in
	// StateUndefined.
	CreateTexture(desc *TextureDesc) (TextureID, error)

	// DestroyTexture releases a texture.
	DestroyTexture(id TextureID)

	// ReadTexture reads back one level of a texture as tightly packed texels,
	// face after face. The level must have been transitioned to StateCopySrc
	// by a submitted stream. This may cause a GPU-CPU synchronization stall.
	ReadTexture(ctx context.Context, id TextureID, level int) ([]byte, error)

	// CreateView creates a single-level view of a texture.
	CreateView(desc *ViewDesc) (ViewID, error)

	// DestroyView releases a view.
	DestroyView(id ViewID)

	// CreateSampler creates a sampler.
	CreateSampler(desc *SamplerDesc) (SamplerID, error)

	// DestroySampler releases a sampler.
	DestroySampler(id SamplerID)

	// === Buffer Management ===

	// CreateBuffer creates a buffer, typically an upload staging buffer.
	CreateBuffer(desc *BufferDesc) (BufferID, error)

	// DestroyBuffer releases a buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at the given byte offset.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// === Pipeline Management ===

	// CreateLayout creates a pipeline layout from an ordered list of groups.
	CreateLayout(desc *LayoutDesc) (LayoutID, error)

	// DestroyLayout releases a pipeline layout.
	DestroyLayout(id LayoutID)

	// CreatePipeline compiles the named shader and links it against a layout.
	CreatePipeline(desc *PipelineDesc) (PipelineID, error)

	// DestroyPipeline releases a compute pipeline.
	DestroyPipeline(id PipelineID)

	// CreateBindingSet binds concrete views and samplers to one group of a layout.
	CreateBindingSet(desc *BindingSetDesc) (BindingSetID, error)

	// DestroyBindingSet releases a binding set.
	DestroyBindingSet(id BindingSetID)

	// === Command Recording and Execution ===

	// NewCommandStream begins recording a new command stream.
	NewCommandStream(label string) (CommandStream, error)

	// Submit executes a stream created by this device and waits for it to
	// complete. A stream whose Err is non-nil is not executed.
	Submit(ctx context.Context, cs CommandStream) error

	// Close releases the device. Resources must be destroyed first.
	Close()
}

// CommandStream is a single ordered stream of GPU commands.
//
// Commands execute in the order they are recorded. Recording methods do not
// return errors; the first failure is kept and reported by Err, and every
// later call is ignored. This keeps frame recording linear while still
// surfacing failures to the owner of the frame.
type CommandStream interface {
	// Barrier inserts state transitions. Writes made before the barrier are
	// visible to reads recorded after it.
	Barrier(barriers ...Barrier)

	// SetLayout activates a pipeline layout. Binding sets and constants are
	// interpreted against the active layout.
	SetLayout(layout LayoutID)

	// SetPipeline activates a compute pipeline.
	SetPipeline(pipeline PipelineID)

	// SetBindingSet binds a binding set to a group of the active layout.
	SetBindingSet(group uint32, set BindingSetID)

	// SetConstants sets the inline constants of a constants group. data
	// must match the size declared in the layout.
	SetConstants(group uint32, data []byte)

	// Dispatch runs the active pipeline over a grid of workgroups.
	Dispatch(x, y, z uint32)

	// CopyBufferToTexture copies tightly packed texels of all six faces of
	// one level, starting at offset in src. The level must be in StateCopyDst.
	CopyBufferToTexture(src BufferID, offset uint64, dst TextureID, level int)

	// Err returns the first recording error, or nil.
	Err() error
}
