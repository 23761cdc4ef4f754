package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/x448/float16"
	"honnef.co/go/safeish"

	"github.com/gogpu/irradiance/gpucore"
)

// plane is one mip level of a cube: six faces of w×h RGBA texels stored
// as float32, face-major then row-major.
type plane struct {
	w, h   int
	texels []float32
}

func newPlane(w, h int) *plane {
	return &plane{w: w, h: h, texels: make([]float32, w*h*gpucore.CubeFaces*4)}
}

func (p *plane) offset(face, x, y int) int {
	return ((face*p.h+y)*p.w + x) * 4
}

// at returns the texel at (x, y) of a face. Coordinates must be in range.
func (p *plane) at(face, x, y int) mgl32.Vec4 {
	i := p.offset(face, x, y)
	return mgl32.Vec4{p.texels[i], p.texels[i+1], p.texels[i+2], p.texels[i+3]}
}

func (p *plane) set(face, x, y int, c mgl32.Vec4) {
	i := p.offset(face, x, y)
	copy(p.texels[i:i+4], c[:])
}

// cubeImage is the storage of a cube texture.
type cubeImage struct {
	format gpucore.TextureFormat
	levels []*plane
}

func newCubeImage(desc *gpucore.TextureDesc) *cubeImage {
	img := &cubeImage{
		format: desc.Format,
		levels: make([]*plane, desc.Levels),
	}
	for l := range img.levels {
		img.levels[l] = newPlane(gpucore.MipSize(desc.Width, l), gpucore.MipSize(desc.Height, l))
	}
	return img
}

// quantize rounds c to the precision of the image format, as a store to a
// storage texture of that format would.
func (img *cubeImage) quantize(c mgl32.Vec4) mgl32.Vec4 {
	switch img.format {
	case gpucore.TextureFormatRGBA16Float:
		for i := range c {
			c[i] = float16.Fromfloat32(c[i]).Float32()
		}
	case gpucore.TextureFormatRGBA8Unorm:
		for i := range c {
			c[i] = math32.Floor(mgl32.Clamp(c[i], 0, 1)*255+0.5) / 255
		}
	}
	return c
}

// store writes a quantized texel.
func (img *cubeImage) store(level, face, x, y int, c mgl32.Vec4) {
	img.levels[level].set(face, x, y, img.quantize(c))
}

// decode fills one level from tightly packed texels in the image format.
func (img *cubeImage) decode(level int, data []byte) error {
	p := img.levels[level]
	bpt := img.format.BytesPerTexel()
	if want := len(p.texels) / 4 * bpt; len(data) < want {
		return fmt.Errorf("software: level %d needs %d bytes, got %d", level, want, len(data))
	}

	switch img.format {
	case gpucore.TextureFormatRGBA16Float:
		for i := range p.texels {
			p.texels[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
	case gpucore.TextureFormatRGBA32Float:
		for i := range p.texels {
			p.texels[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case gpucore.TextureFormatRGBA8Unorm:
		for i := range p.texels {
			p.texels[i] = float32(data[i]) / 255
		}
	default:
		return fmt.Errorf("software: unsupported format %s", img.format)
	}
	return nil
}

// encode returns one level as tightly packed texels in the image format.
// Multi-byte texels are reinterpreted in host order, which is little-endian
// on every platform the device runs on.
func (img *cubeImage) encode(level int) []byte {
	p := img.levels[level]

	switch img.format {
	case gpucore.TextureFormatRGBA16Float:
		bits := make([]uint16, len(p.texels))
		for i, v := range p.texels {
			bits[i] = float16.Fromfloat32(v).Bits()
		}
		return safeish.SliceCast[[]byte](bits)
	case gpucore.TextureFormatRGBA32Float:
		return safeish.SliceCast[[]byte](append([]float32(nil), p.texels...))
	case gpucore.TextureFormatRGBA8Unorm:
		out := make([]byte, len(p.texels))
		for i, v := range p.texels {
			out[i] = uint8(mgl32.Clamp(v, 0, 1)*255 + 0.5)
		}
		return out
	default:
		return nil
	}
}
