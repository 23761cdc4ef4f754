package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent GPU resources. Each device implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// TextureID is an opaque handle to a cube texture.
type TextureID uint64

// ViewID is an opaque handle to a single-level view of a cube texture.
type ViewID uint64

// SamplerID is an opaque handle to a sampler.
type SamplerID uint64

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// LayoutID is an opaque handle to a pipeline layout.
type LayoutID uint64

// PipelineID is an opaque handle to a compute pipeline.
type PipelineID uint64

// BindingSetID is an opaque handle to a binding set (bind group).
type BindingSetID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// CubeFaces is the number of array layers of every cube texture.
const CubeFaces = 6

// TextureFormat specifies the format of texture data.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA16Float is 16-bit RGBA, floating point.
	TextureFormatRGBA16Float TextureFormat = iota + 1

	// TextureFormatRGBA32Float is 32-bit RGBA, floating point.
	TextureFormatRGBA32Float

	// TextureFormatRGBA8Unorm is 8-bit RGBA, normalized unsigned integer.
	TextureFormatRGBA8Unorm
)

// BytesPerTexel returns the size of one texel in bytes, or 0 for unknown formats.
func (f TextureFormat) BytesPerTexel() int {
	switch f {
	case TextureFormatRGBA16Float:
		return 8
	case TextureFormatRGBA32Float:
		return 16
	case TextureFormatRGBA8Unorm:
		return 4
	default:
		return 0
	}
}

// String returns the format name.
func (f TextureFormat) String() string {
	switch f {
	case TextureFormatRGBA16Float:
		return "rgba16float"
	case TextureFormatRGBA32Float:
		return "rgba32float"
	case TextureFormatRGBA8Unorm:
		return "rgba8unorm"
	default:
		return fmt.Sprintf("TextureFormat(%d)", uint32(f))
	}
}

// TextureUsage is a bitmask specifying how a texture will be used.
type TextureUsage uint32

// Texture usage flags.
const (
	// TextureUsageCopySrc indicates the texture can be used as a copy source.
	TextureUsageCopySrc TextureUsage = 1 << 0

	// TextureUsageCopyDst indicates the texture can be used as a copy destination.
	TextureUsageCopyDst TextureUsage = 1 << 1

	// TextureUsageTextureBinding indicates the texture can be bound as a sampled texture.
	TextureUsageTextureBinding TextureUsage = 1 << 2

	// TextureUsageStorageBinding indicates the texture can be bound as a storage texture.
	TextureUsageStorageBinding TextureUsage = 1 << 3
)

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 0

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 1

	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 2
)

// ResourceState is the access state of one mip level of a texture.
type ResourceState uint32

// Resource states.
const (
	// StateUndefined is the state of freshly created levels. Contents are undefined.
	StateUndefined ResourceState = iota

	// StateCopyDst allows the level to receive buffer copies.
	StateCopyDst

	// StateCopySrc allows the level to be copied out (readback).
	StateCopySrc

	// StateShaderRead allows the level to be sampled by any shader stage.
	StateShaderRead

	// StateUnorderedAccess allows compute shaders to write the level.
	StateUnorderedAccess
)

var resourceStateNames = [...]string{
	StateUndefined:       "undefined",
	StateCopyDst:         "copy-dst",
	StateCopySrc:         "copy-src",
	StateShaderRead:      "shader-read",
	StateUnorderedAccess: "unordered-access",
}

// String returns the state name.
func (s ResourceState) String() string {
	if int(s) < len(resourceStateNames) {
		return resourceStateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", uint32(s))
}

// Readable reports whether a dispatch may sample a level in this state.
func (s ResourceState) Readable() bool {
	return s == StateShaderRead
}

// BindingType specifies the type of a shader binding.
type BindingType uint32

// Binding types.
const (
	// BindingTypeSampler is a filtering sampler binding.
	BindingTypeSampler BindingType = iota + 1

	// BindingTypeConstants is a small block of inline constants, set per
	// dispatch through CommandStream.SetConstants.
	BindingTypeConstants

	// BindingTypeSampledTexture is a read-only cube texture binding.
	BindingTypeSampledTexture

	// BindingTypeStorageTexture is a write-only 2D array storage texture binding.
	BindingTypeStorageTexture
)

var bindingTypeNames = [...]string{
	BindingTypeSampler:        "sampler",
	BindingTypeConstants:      "constants",
	BindingTypeSampledTexture: "sampled-texture",
	BindingTypeStorageTexture: "storage-texture",
}

// String returns the binding type name.
func (b BindingType) String() string {
	if int(b) < len(bindingTypeNames) && bindingTypeNames[b] != "" {
		return bindingTypeNames[b]
	}
	return fmt.Sprintf("BindingType(%d)", uint32(b))
}

// ViewKind selects how a view exposes its level.
type ViewKind uint32

// View kinds.
const (
	// ViewSampled is a cube view for sampling.
	ViewSampled ViewKind = iota + 1

	// ViewStorage is a six-layer 2D array view for storage writes.
	ViewStorage
)

// AddressMode selects how out-of-range coordinates are resolved.
type AddressMode uint32

// Address modes.
const (
	AddressModeClampToEdge AddressMode = iota
	AddressModeRepeat
)

// FilterMode selects texel filtering.
type FilterMode uint32

// Filter modes.
const (
	FilterModeNearest FilterMode = iota
	FilterModeLinear
)

// Shader names understood by every device.
const (
	// ShaderRadiance blends two source cubes into the finest radiance level.
	ShaderRadiance = "radiance"

	// ShaderResample box-filters one level into the next coarser one.
	ShaderResample = "resample"

	// ShaderCosineUp combines a coarser irradiance level with the matching
	// radiance level into the next finer irradiance level.
	ShaderCosineUp = "cosine_up"
)

// TextureDesc describes a six-face cube texture.
type TextureDesc struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the dimensions of level 0 of each face.
	Width  int
	Height int

	// Levels is the number of mip levels.
	Levels int

	// Format is the texel format.
	Format TextureFormat

	// Usage is a bitmask of TextureUsage* flags.
	Usage TextureUsage
}

// ViewDesc describes a single-level view.
type ViewDesc struct {
	// Label is an optional debug label.
	Label string

	// Texture is the viewed texture.
	Texture TextureID

	// Kind selects a sampled cube or a storage array view.
	Kind ViewKind

	// Level is the mip level exposed by the view.
	Level int
}

// SamplerDesc describes a sampler.
type SamplerDesc struct {
	// Label is an optional debug label.
	Label string

	// Address applies to all three axes.
	Address AddressMode

	// Filter applies to magnification, minification and mip selection.
	Filter FilterMode
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	// Label is an optional debug label.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage is a bitmask of BufferUsage* flags.
	Usage BufferUsage
}

// LayoutEntry describes a single binding slot.
type LayoutEntry struct {
	// Binding is the binding index within its group.
	Binding uint32

	// Type is the type of resource bound at this index.
	Type BindingType

	// Size is the byte size of a BindingTypeConstants block.
	// Set to 0 for other binding types.
	Size uint32
}

// GroupLayout is one group of binding slots. Each group is bound by one
// binding set (or, for constants, by SetConstants).
type GroupLayout struct {
	Entries []LayoutEntry
}

// LayoutDesc describes a pipeline layout as an ordered list of groups.
type LayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Groups are indexed by group number.
	Groups []GroupLayout
}

// PipelineDesc describes a compute pipeline.
type PipelineDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the pipeline layout the shader is linked against.
	Layout LayoutID

	// Shader is one of the Shader* names.
	Shader string

	// EntryPoint is the name of the shader entry point function.
	EntryPoint string

	// WorkgroupSize is the shader's local size in X and Y. Z is always 1.
	WorkgroupSize [2]uint32
}

// BindingSetEntry binds one resource to one slot.
// Exactly one of View and Sampler is set.
type BindingSetEntry struct {
	// Binding is the binding index.
	Binding uint32

	// View is the view to bind (texture bindings).
	View ViewID

	// Sampler is the sampler to bind (sampler bindings).
	Sampler SamplerID
}

// BindingSetDesc describes a binding set for one group of a layout.
type BindingSetDesc struct {
	// Label is an optional debug label.
	Label string

	// Layout is the pipeline layout.
	Layout LayoutID

	// Group is the group index within Layout.
	Group uint32

	// Entries are the resource bindings.
	Entries []BindingSetEntry
}

// AllLevels in a Barrier selects every mip level of the texture.
const AllLevels = -1

// Barrier is a state transition of one level (or all levels) of a texture.
type Barrier struct {
	Texture TextureID
	Level   int
	Before  ResourceState
	After   ResourceState
}

// String formats the barrier for logs and test failures.
func (b Barrier) String() string {
	level := fmt.Sprint(b.Level)
	if b.Level == AllLevels {
		level = "*"
	}
	return fmt.Sprintf("tex%d[%s] %s->%s", b.Texture, level, b.Before, b.After)
}

// MipSize returns the extent of a mip level for a level-0 extent, never less than 1.
func MipSize(size, level int) int {
	s := size >> level
	if s < 1 {
		return 1
	}
	return s
}
