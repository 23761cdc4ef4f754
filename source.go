package irradiance

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/irradiance/gpucore"
)

// AlphaMode describes how the alpha channel of a source should be interpreted.
type AlphaMode uint8

// Alpha modes reported by loaders.
const (
	AlphaUnknown AlphaMode = iota
	AlphaStraight
	AlphaPremultiplied
	AlphaOpaque
	AlphaCustom
)

var alphaModeNames = [...]string{
	AlphaUnknown:       "unknown",
	AlphaStraight:      "straight",
	AlphaPremultiplied: "premultiplied",
	AlphaOpaque:        "opaque",
	AlphaCustom:        "custom",
}

// String returns the alpha mode name.
func (m AlphaMode) String() string {
	if int(m) < len(alphaModeNames) {
		return alphaModeNames[m]
	}
	return fmt.Sprintf("AlphaMode(%d)", uint8(m))
}

// Source is one GPU-resident source environment cube.
// The probe only references the texture; its lifetime belongs to the caller.
type Source struct {
	// Texture is a cube texture with at least one level in StateShaderRead.
	Texture gpucore.TextureID

	// Width and Height are the level-0 face extent.
	Width  int
	Height int

	// Levels is the number of mip levels of Texture.
	Levels int

	// Format is the texel format of Texture.
	Format gpucore.TextureFormat

	// Alpha is the alpha interpretation reported by the loader.
	Alpha AlphaMode

	// Path is the file the source was loaded from, if any.
	Path string
}

// Loader loads a cube environment from a file into a device texture.
//
// Load records the upload into cs and appends every staging buffer it
// creates to uploads. The returned texture's levels are left in
// StateShaderRead once cs has executed.
type Loader interface {
	Load(ctx context.Context, dev gpucore.Device, cs gpucore.CommandStream, path string, uploads *Uploads) (Source, error)
}

// Uploads collects staging buffers that must outlive the command stream
// that reads them. The caller owns the collection and calls Release after
// the stream has completed on the device.
//
// Uploads is safe for concurrent use.
type Uploads struct {
	mu      sync.Mutex
	buffers []gpucore.BufferID
}

// Add records a staging buffer.
func (u *Uploads) Add(id gpucore.BufferID) {
	u.mu.Lock()
	u.buffers = append(u.buffers, id)
	u.mu.Unlock()
}

// Len returns the number of buffers currently held.
func (u *Uploads) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.buffers)
}

// Release destroys every held buffer on dev and empties the collection.
func (u *Uploads) Release(dev gpucore.Device) {
	u.mu.Lock()
	buffers := u.buffers
	u.buffers = nil
	u.mu.Unlock()

	for _, id := range buffers {
		dev.DestroyBuffer(id)
	}
}
