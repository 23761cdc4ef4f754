package envmap

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
	"honnef.co/go/safeish"

	"github.com/gogpu/irradiance/gpucore"
)

// Cube is a square cube environment with linear RGB float texels.
// Faces are ordered +X, -X, +Y, -Y, +Z, -Z; rows run top to bottom.
type Cube struct {
	// Size is the face extent in texels.
	Size int

	// Faces hold Size*Size*3 floats each.
	Faces [gpucore.CubeFaces][]float32
}

// NewCube allocates a black cube of the given face size.
func NewCube(size int) *Cube {
	c := &Cube{Size: size}
	data := make([]float32, gpucore.CubeFaces*size*size*3)
	n := size * size * 3
	for f := range c.Faces {
		c.Faces[f] = data[f*n : (f+1)*n : (f+1)*n]
	}
	return c
}

// At returns the texel (x, y) of face f.
func (c *Cube) At(f, x, y int) (r, g, b float32) {
	i := (y*c.Size + x) * 3
	p := c.Faces[f]
	return p[i], p[i+1], p[i+2]
}

// Set stores the texel (x, y) of face f.
func (c *Cube) Set(f, x, y int, r, g, b float32) {
	i := (y*c.Size + x) * 3
	p := c.Faces[f]
	p[i], p[i+1], p[i+2] = r, g, b
}

// Fill sets every texel to one color.
func (c *Cube) Fill(r, g, b float32) {
	for f := range c.Faces {
		p := c.Faces[f]
		for i := 0; i < len(p); i += 3 {
			p[i], p[i+1], p[i+2] = r, g, b
		}
	}
}

// Texels returns the cube as tightly packed texels of format, face after
// face, with alpha set to one. This is the layout of a level upload.
func (c *Cube) Texels(format gpucore.TextureFormat) ([]byte, error) {
	n := c.Size * c.Size
	switch format {
	case gpucore.TextureFormatRGBA16Float:
		bits := make([]uint16, 0, gpucore.CubeFaces*n*4)
		one := float16.Fromfloat32(1).Bits()
		for _, p := range c.Faces {
			for i := 0; i < len(p); i += 3 {
				bits = append(bits,
					float16.Fromfloat32(p[i]).Bits(),
					float16.Fromfloat32(p[i+1]).Bits(),
					float16.Fromfloat32(p[i+2]).Bits(),
					one)
			}
		}
		// Texel bytes are little-endian; so is every supported host.
		return safeish.SliceCast[[]byte](bits), nil
	case gpucore.TextureFormatRGBA32Float:
		vals := make([]float32, 0, gpucore.CubeFaces*n*4)
		for _, p := range c.Faces {
			for i := 0; i < len(p); i += 3 {
				vals = append(vals, p[i], p[i+1], p[i+2], 1)
			}
		}
		return safeish.SliceCast[[]byte](vals), nil
	default:
		return nil, fmt.Errorf("envmap: unsupported texel format %s", format)
	}
}

// FromTexels builds a cube from tightly packed texels of a square level, as
// returned by gpucore.Device.ReadTexture. Alpha is dropped.
func FromTexels(data []byte, format gpucore.TextureFormat, size int) (*Cube, error) {
	bpt := format.BytesPerTexel()
	if format != gpucore.TextureFormatRGBA16Float && format != gpucore.TextureFormatRGBA32Float {
		return nil, fmt.Errorf("envmap: unsupported texel format %s", format)
	}
	if want := gpucore.CubeFaces * size * size * bpt; len(data) != want {
		return nil, fmt.Errorf("envmap: %d texel bytes, want %d for size %d", len(data), want, size)
	}

	c := NewCube(size)
	comp := bpt / 4
	for f := range c.Faces {
		p := c.Faces[f]
		base := f * size * size * bpt
		for t := range size * size {
			o := base + t*bpt
			for k := range 3 {
				p[t*3+k] = component(data[o+k*comp:], format)
			}
		}
	}
	return c, nil
}

func component(b []byte, format gpucore.TextureFormat) float32 {
	if format == gpucore.TextureFormatRGBA16Float {
		return float16.Frombits(binary.LittleEndian.Uint16(b)).Float32()
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
