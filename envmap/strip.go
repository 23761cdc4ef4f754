package envmap

import (
	"fmt"
	"image"
	_ "image/png" // register PNG
	"io"

	_ "golang.org/x/image/bmp" // register BMP
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF

	"github.com/gogpu/irradiance/gpucore"
)

// DecodeStrip decodes a horizontal strip of six square faces in +X, -X,
// +Y, -Y, +Z, -Z order (PNG, TIFF or BMP) and resamples each face to
// size×size. A size of zero keeps the strip's face size.
//
// Texels are the stored values scaled to [0, 1]; no transfer function is
// applied.
func DecodeStrip(r io.Reader, size int) (*Cube, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("envmap: decode strip: %w", err)
	}
	return StripCube(img, size, format)
}

// StripCube converts a decoded strip image into a cube. format names the
// source encoding in errors.
func StripCube(img image.Image, size int, format string) (*Cube, error) {
	b := img.Bounds()
	face := b.Dy()
	if face == 0 || b.Dx() != gpucore.CubeFaces*face {
		return nil, fmt.Errorf("envmap: %s strip is %dx%d, want 6:1", format, b.Dx(), b.Dy())
	}
	if size <= 0 {
		size = face
	}

	c := NewCube(size)
	dst := image.NewRGBA64(image.Rect(0, 0, size, size))
	for f := range gpucore.CubeFaces {
		src := image.Rect(b.Min.X+f*face, b.Min.Y, b.Min.X+(f+1)*face, b.Max.Y)
		if size == face {
			draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Src)
		} else {
			draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
		}
		for y := range size {
			for x := range size {
				px := dst.RGBA64At(x, y)
				c.Set(f, x, y, float32(px.R)/0xffff, float32(px.G)/0xffff, float32(px.B)/0xffff)
			}
		}
	}
	return c, nil
}
