//go:build !nogpu

package wgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/irradiance/gpucore"
)

// copyPitchAlignment is the required alignment of BytesPerRow in
// buffer-texture copies.
const copyPitchAlignment = 256

// uniformOffsetAlignment is the required alignment of dynamic uniform offsets.
const uniformOffsetAlignment = 256

// alignUp rounds n up to a multiple of a, which must be a power of two.
func alignUp(n, a uint64) uint64 {
	return (n + a - 1) &^ (a - 1)
}

func convertFormat(f gpucore.TextureFormat) (gputypes.TextureFormat, error) {
	switch f {
	case gpucore.TextureFormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float, nil
	case gpucore.TextureFormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float, nil
	case gpucore.TextureFormatRGBA8Unorm:
		return gputypes.TextureFormatRGBA8Unorm, nil
	default:
		return gputypes.TextureFormatUndefined, fmt.Errorf("wgpu: unsupported texture format %s", f)
	}
}

// wgslFormat returns the WGSL storage texel format name.
func wgslFormat(f gpucore.TextureFormat) string {
	return f.String()
}

func convertTextureUsage(u gpucore.TextureUsage) gputypes.TextureUsage {
	var out gputypes.TextureUsage
	if u&gpucore.TextureUsageCopySrc != 0 {
		out |= gputypes.TextureUsageCopySrc
	}
	if u&gpucore.TextureUsageCopyDst != 0 {
		out |= gputypes.TextureUsageCopyDst
	}
	if u&gpucore.TextureUsageTextureBinding != 0 {
		out |= gputypes.TextureUsageTextureBinding
	}
	if u&gpucore.TextureUsageStorageBinding != 0 {
		out |= gputypes.TextureUsageStorageBinding
	}
	return out
}

// convertBufferUsage maps buffer usages. Every buffer can be written from
// the host, so CopyDst is always set.
func convertBufferUsage(u gpucore.BufferUsage) gputypes.BufferUsage {
	out := gputypes.BufferUsageCopyDst
	if u&gpucore.BufferUsageCopySrc != 0 {
		out |= gputypes.BufferUsageCopySrc
	}
	if u&gpucore.BufferUsageMapRead != 0 {
		out |= gputypes.BufferUsageMapRead
	}
	return out
}

// stateUsage maps a level state to the HAL usage it is transitioned to.
// StateUndefined maps to no usage, so contents are discarded.
func stateUsage(s gpucore.ResourceState) gputypes.TextureUsage {
	switch s {
	case gpucore.StateCopyDst:
		return gputypes.TextureUsageCopyDst
	case gpucore.StateCopySrc:
		return gputypes.TextureUsageCopySrc
	case gpucore.StateShaderRead:
		return gputypes.TextureUsageTextureBinding
	case gpucore.StateUnorderedAccess:
		return gputypes.TextureUsageStorageBinding
	default:
		return 0
	}
}

func convertAddress(a gpucore.AddressMode) gputypes.AddressMode {
	if a == gpucore.AddressModeRepeat {
		return gputypes.AddressModeRepeat
	}
	return gputypes.AddressModeClampToEdge
}

func convertFilter(f gpucore.FilterMode) gputypes.FilterMode {
	if f == gpucore.FilterModeNearest {
		return gputypes.FilterModeNearest
	}
	return gputypes.FilterModeLinear
}

// isConstantsGroup reports whether a group holds a single constants block.
func isConstantsGroup(g gpucore.GroupLayout) bool {
	return len(g.Entries) == 1 && g.Entries[0].Type == gpucore.BindingTypeConstants
}

// groupKey identifies a group layout for bind group layout sharing.
// Groups with equal keys produce identical bind group layouts.
func groupKey(g gpucore.GroupLayout) string {
	var sb strings.Builder
	for i, e := range g.Entries {
		if i > 0 {
			sb.WriteByte(';')
		}
		fmt.Fprintf(&sb, "%d:%s", e.Binding, e.Type)
		if e.Type == gpucore.BindingTypeConstants {
			fmt.Fprintf(&sb, "/%d", e.Size)
		}
	}
	return sb.String()
}

// layoutEntries builds the bind group layout entries of a group.
func layoutEntries(g gpucore.GroupLayout, storage gputypes.TextureFormat) []gputypes.BindGroupLayoutEntry {
	out := make([]gputypes.BindGroupLayoutEntry, 0, len(g.Entries))
	for _, e := range g.Entries {
		entry := gputypes.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: gputypes.ShaderStageCompute,
		}
		switch e.Type {
		case gpucore.BindingTypeSampler:
			entry.Sampler = &gputypes.SamplerBindingLayout{
				Type: gputypes.SamplerBindingTypeFiltering,
			}
		case gpucore.BindingTypeConstants:
			entry.Buffer = &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(e.Size),
			}
		case gpucore.BindingTypeSampledTexture:
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimensionCube,
			}
		case gpucore.BindingTypeStorageTexture:
			entry.StorageTexture = &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessWriteOnly,
				Format:        storage,
				ViewDimension: gputypes.TextureViewDimension2DArray,
			}
		}
		out = append(out, entry)
	}
	return out
}

// levelRange returns the first level and level count a barrier covers.
func levelRange(b gpucore.Barrier, levels int) (base, count uint32) {
	if b.Level == gpucore.AllLevels {
		return 0, uint32(levels) //nolint:gosec // level counts are small
	}
	return uint32(b.Level), 1 //nolint:gosec // validated by the tracker
}

// rowPitch returns the tightly packed and the copy-aligned row size of a level.
func rowPitch(desc gpucore.TextureDesc, level int) (packed, aligned uint64) {
	//nolint:gosec // extents and texel sizes are positive
	packed = uint64(gpucore.MipSize(desc.Width, level)) * uint64(desc.Format.BytesPerTexel())
	return packed, alignUp(packed, copyPitchAlignment)
}

// padRows copies rows of packed bytes into rows of aligned bytes.
func padRows(src []byte, rows int, packed, aligned uint64) []byte {
	if packed == aligned {
		return src[:uint64(rows)*packed]
	}
	dst := make([]byte, uint64(rows)*aligned)
	for r := range uint64(rows) { //nolint:gosec // rows is positive
		copy(dst[r*aligned:r*aligned+packed], src[r*packed:(r+1)*packed])
	}
	return dst
}

// stripRows is the inverse of padRows.
func stripRows(src []byte, rows int, packed, aligned uint64) []byte {
	if packed == aligned {
		return src[:uint64(rows)*packed]
	}
	dst := make([]byte, uint64(rows)*packed)
	for r := range uint64(rows) { //nolint:gosec // rows is positive
		copy(dst[r*packed:(r+1)*packed], src[r*aligned:r*aligned+packed])
	}
	return dst
}
