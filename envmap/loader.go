package envmap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/irradiance"
	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/internal/cache"
	"github.com/gogpu/irradiance/recording"
)

// Loader loads .cubeenv files and image strips into device cube textures.
// It implements irradiance.Loader.
//
// Decoded cubes are kept in a small LRU so a path shared by several probes,
// or loaded again as ground truth, is decoded once.
//
// Loader is safe for concurrent use.
type Loader struct {
	format    gpucore.TextureFormat
	stripSize int
	decoded   *cache.Cache[string, *Cube]
	open      func(path string) (*Cube, error)
}

var _ irradiance.Loader = (*Loader)(nil)

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFormat sets the texel format of loaded textures.
// The default is gpucore.TextureFormatRGBA16Float.
func WithFormat(f gpucore.TextureFormat) LoaderOption {
	return func(l *Loader) { l.format = f }
}

// WithStripSize sets the face size image strips are resampled to.
// Zero keeps the strip's own face size.
func WithStripSize(n int) LoaderOption {
	return func(l *Loader) { l.stripSize = n }
}

// WithDecodedLimit sets how many decoded cubes are kept. Zero keeps all.
func WithDecodedLimit(n int) LoaderOption {
	return func(l *Loader) { l.decoded = cache.New[string, *Cube](n, nil) }
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		format:  gpucore.TextureFormatRGBA16Float,
		decoded: cache.New[string, *Cube](8, nil),
	}
	l.open = l.readFile
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ReadFile decodes a .cubeenv file, or a PNG, TIFF or BMP strip by extension.
func ReadFile(path string, stripSize int) (*Cube, error) {
	f, err := os.Open(path) //nolint:gosec // caller-provided path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".tif", ".tiff", ".bmp":
		return DecodeStrip(f, stripSize)
	default:
		return Decode(f)
	}
}

func (l *Loader) readFile(path string) (*Cube, error) {
	return ReadFile(path, l.stripSize)
}

// Load implements irradiance.Loader. It creates a one-level cube texture,
// records the upload into cs and leaves the level in StateShaderRead once
// cs has executed. The staging buffer is added to uploads.
func (l *Loader) Load(ctx context.Context, dev gpucore.Device, cs gpucore.CommandStream,
	path string, uploads *irradiance.Uploads,
) (irradiance.Source, error) {
	if err := ctx.Err(); err != nil {
		return irradiance.Source{}, err
	}

	c, err := l.decoded.GetOrLoad(path, func() (*Cube, error) { return l.open(path) })
	if err != nil {
		return irradiance.Source{}, fmt.Errorf("envmap: load %s: %w", path, err)
	}

	tex, err := Upload(dev, cs, c, l.format, filepath.Base(path), uploads)
	if err != nil {
		return irradiance.Source{}, fmt.Errorf("envmap: load %s: %w", path, err)
	}

	irradiance.Logger().Debug("envmap: source loaded",
		slog.String("path", path),
		slog.Int("size", c.Size),
		slog.String("format", l.format.String()))

	return irradiance.Source{
		Texture: tex,
		Width:   c.Size,
		Height:  c.Size,
		Levels:  1,
		Format:  l.format,
		Alpha:   irradiance.AlphaOpaque,
		Path:    path,
	}, nil
}

// Upload creates a one-level cube texture holding c and records its upload
// into cs: Undefined to CopyDst, the copy, then CopyDst to ShaderRead. The
// staging buffer is added to uploads and must outlive cs.
func Upload(dev gpucore.Device, cs gpucore.CommandStream, c *Cube, format gpucore.TextureFormat,
	label string, uploads *irradiance.Uploads,
) (gpucore.TextureID, error) {
	texels, err := c.Texels(format)
	if err != nil {
		return gpucore.InvalidID, err
	}

	desc := gpucore.TextureDesc{
		Label:  label,
		Width:  c.Size,
		Height: c.Size,
		Levels: 1,
		Format: format,
		Usage:  gpucore.TextureUsageTextureBinding | gpucore.TextureUsageCopyDst,
	}
	if want := recording.LevelBytes(desc, 0); uint64(len(texels)) != want {
		return gpucore.InvalidID, fmt.Errorf("envmap: %d texel bytes, level needs %d", len(texels), want)
	}

	tex, err := dev.CreateTexture(&desc)
	if err != nil {
		return gpucore.InvalidID, err
	}
	buf, err := dev.CreateBuffer(&gpucore.BufferDesc{
		Label: label + "_staging",
		Size:  uint64(len(texels)),
		Usage: gpucore.BufferUsageCopySrc,
	})
	if err != nil {
		dev.DestroyTexture(tex)
		return gpucore.InvalidID, err
	}
	if err := dev.WriteBuffer(buf, 0, texels); err != nil {
		dev.DestroyBuffer(buf)
		dev.DestroyTexture(tex)
		return gpucore.InvalidID, err
	}
	uploads.Add(buf)

	cs.Barrier(gpucore.Barrier{Texture: tex, Level: 0, Before: gpucore.StateUndefined, After: gpucore.StateCopyDst})
	cs.CopyBufferToTexture(buf, 0, tex, 0)
	cs.Barrier(gpucore.Barrier{Texture: tex, Level: 0, Before: gpucore.StateCopyDst, After: gpucore.StateShaderRead})
	return tex, nil
}
