//go:build !nogpu

package wgpu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gogpu/naga"

	"github.com/gogpu/irradiance/gpucore"
)

// cubeCommonWGSL maps a storage texel to its cube direction. Faces are
// ordered +X, -X, +Y, -Y, +Z, -Z.
const cubeCommonWGSL = `
fn texel_dir(face: u32, xy: vec2<u32>, size: vec2<u32>) -> vec3<f32> {
    let uv = (vec2<f32>(xy) + vec2<f32>(0.5, 0.5)) / vec2<f32>(size) * 2.0 - vec2<f32>(1.0, 1.0);
    var d: vec3<f32>;
    if (face == 0u) {
        d = vec3<f32>(1.0, -uv.y, -uv.x);
    } else if (face == 1u) {
        d = vec3<f32>(-1.0, -uv.y, uv.x);
    } else if (face == 2u) {
        d = vec3<f32>(uv.x, 1.0, uv.y);
    } else if (face == 3u) {
        d = vec3<f32>(uv.x, -1.0, -uv.y);
    } else if (face == 4u) {
        d = vec3<f32>(uv.x, -uv.y, 1.0);
    } else {
        d = vec3<f32>(-uv.x, -uv.y, -1.0);
    }
    return normalize(d);
}
`

// radianceWGSL blends two source cubes into one storage level.
const radianceWGSL = `
struct BlendParams {
    blend: f32,
}

@group(0) @binding(0) var samp: sampler;
@group(1) @binding(0) var<uniform> params: BlendParams;
@group(2) @binding(0) var dst: texture_storage_2d_array<{{FORMAT}}, write>;
@group(3) @binding(0) var src_a: texture_cube<f32>;
@group(3) @binding(1) var src_b: texture_cube<f32>;

@compute @workgroup_size({{WX}}, {{WY}}, 1)
fn {{ENTRY}}(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = textureDimensions(dst);
    if (id.x >= size.x || id.y >= size.y || id.z >= 6u) {
        return;
    }
    let d = texel_dir(id.z, id.xy, size);
    let a = textureSampleLevel(src_a, samp, d, 0.0);
    let b = textureSampleLevel(src_b, samp, d, 0.0);
    textureStore(dst, vec2<i32>(id.xy), i32(id.z), mix(a, b, params.blend));
}
`

// resampleWGSL halves a level. A linear sample at the centre of each
// destination texel averages the 2×2 source texels under it.
const resampleWGSL = `
@group(0) @binding(0) var samp: sampler;
@group(1) @binding(0) var src: texture_cube<f32>;
@group(1) @binding(1) var dst: texture_storage_2d_array<{{FORMAT}}, write>;

@compute @workgroup_size({{WX}}, {{WY}}, 1)
fn {{ENTRY}}(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = textureDimensions(dst);
    if (id.x >= size.x || id.y >= size.y || id.z >= 6u) {
        return;
    }
    let d = texel_dir(id.z, id.xy, size);
    textureStore(dst, vec2<i32>(id.xy), i32(id.z), textureSampleLevel(src, samp, d, 0.0));
}
`

// cosineUpWGSL reconstructs one irradiance level from the next coarser
// irradiance level and the radiance level of the same size.
const cosineUpWGSL = `
const PI: f32 = 3.14159265358979;

struct CosineParams {
    map_size: f32,
    num_levels: u32,
    level: u32,
}

@group(0) @binding(0) var samp: sampler;
@group(1) @binding(0) var<uniform> params: CosineParams;
@group(2) @binding(0) var radiance: texture_cube<f32>;
@group(2) @binding(1) var coarser: texture_cube<f32>;
@group(2) @binding(2) var dst: texture_storage_2d_array<{{FORMAT}}, write>;

fn cosine_weight(map_size: f32, level: u32) -> f32 {
    let s = max(map_size / exp2(f32(level)), 1.0);
    let omega = 4.0 * PI / (6.0 * s * s);
    return omega / (omega + PI);
}

@compute @workgroup_size({{WX}}, {{WY}}, 1)
fn {{ENTRY}}(@builtin(global_invocation_id) id: vec3<u32>) {
    let size = textureDimensions(dst);
    if (id.x >= size.x || id.y >= size.y || id.z >= 6u) {
        return;
    }
    let d = texel_dir(id.z, id.xy, size);
    let w = cosine_weight(params.map_size, params.level);
    let c = textureSampleLevel(coarser, samp, d, 0.0);
    let r = textureSampleLevel(radiance, samp, d, 0.0);
    textureStore(dst, vec2<i32>(id.xy), i32(id.z), mix(c, r, w));
}
`

var shaderTemplates = map[string]string{
	gpucore.ShaderRadiance: radianceWGSL,
	gpucore.ShaderResample: resampleWGSL,
	gpucore.ShaderCosineUp: cosineUpWGSL,
}

// shaderSource instantiates the WGSL of a named shader for a workgroup
// size, storage format and entry point.
func shaderSource(name, entry string, workgroup [2]uint32, format gpucore.TextureFormat) (string, error) {
	tmpl, ok := shaderTemplates[name]
	if !ok {
		return "", fmt.Errorf("wgpu: unknown shader %q", name)
	}
	if workgroup[0] == 0 || workgroup[1] == 0 {
		return "", fmt.Errorf("wgpu: shader %q: empty workgroup size", name)
	}
	if entry == "" {
		entry = "main"
	}
	r := strings.NewReplacer(
		"{{FORMAT}}", wgslFormat(format),
		"{{WX}}", strconv.FormatUint(uint64(workgroup[0]), 10),
		"{{WY}}", strconv.FormatUint(uint64(workgroup[1]), 10),
		"{{ENTRY}}", entry,
	)
	return cubeCommonWGSL + r.Replace(tmpl), nil
}

// compileShader compiles WGSL to SPIR-V words.
func compileShader(source string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("compile shader: %w", err)
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return words, nil
}
