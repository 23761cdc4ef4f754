package envmap

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/gogpu/irradiance/gpucore"
)

// Magic identifies a .cubeenv stream.
const Magic uint32 = 0x43424531

// Version is the only supported .cubeenv version.
const Version uint32 = 1

// maxSize bounds the face size read from a header.
const maxSize = 1 << 13

// faceGrowth is the initial float capacity of a face being decoded.
const faceGrowth = 1 << 16

// Compression selects how the texel payload is stored.
type Compression uint32

// Compression modes.
const (
	CompressionNone Compression = iota
	CompressionLZ4Fast
	CompressionLZ4High
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4Fast:
		return "lz4-fast"
	case CompressionLZ4High:
		return "lz4-high"
	default:
		return fmt.Sprintf("Compression(%d)", uint32(c))
	}
}

// ParseCompression parses the name returned by Compression.String.
func ParseCompression(name string) (Compression, error) {
	for c := CompressionNone; c <= CompressionLZ4High; c++ {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
}

// Header is the fixed little-endian header of a .cubeenv stream.
type Header struct {
	Magic       uint32
	Version     uint32
	Compression Compression
	Size        uint32
}

// Errors returned by the codec.
var (
	ErrBadMagic           = errors.New("envmap: not a cubeenv stream")
	ErrUnsupportedVersion = errors.New("envmap: unsupported cubeenv version")
	ErrUnsupportedCodec   = errors.New("envmap: unsupported cubeenv compression")
)

// Encode writes c as a .cubeenv stream.
func Encode(w io.Writer, c *Cube, comp Compression) error {
	if c.Size <= 0 || c.Size > maxSize {
		return fmt.Errorf("envmap: encode: invalid size %d", c.Size)
	}
	h := Header{Magic: Magic, Version: Version, Compression: comp, Size: uint32(c.Size)} //nolint:gosec // bounded above
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("envmap: write header: %w", err)
	}

	var payload io.Writer
	var lzw *lz4.Writer
	switch comp {
	case CompressionNone:
		payload = w
	case CompressionLZ4Fast, CompressionLZ4High:
		lzw = lz4.NewWriter(w)
		level := lz4.Fast
		if comp == CompressionLZ4High {
			level = lz4.Level9
		}
		if err := lzw.Apply(lz4.CompressionLevelOption(level)); err != nil {
			return fmt.Errorf("envmap: configure lz4: %w", err)
		}
		payload = lzw
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCodec, comp)
	}

	bw := bufio.NewWriter(payload)
	for _, p := range c.Faces {
		for i := 0; i < len(p); i += 3 {
			t := encodeRGBE(p[i], p[i+1], p[i+2])
			if _, err := bw.Write(t[:]); err != nil {
				return fmt.Errorf("envmap: write texels: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("envmap: write texels: %w", err)
	}
	if lzw != nil {
		if err := lzw.Close(); err != nil {
			return fmt.Errorf("envmap: close lz4: %w", err)
		}
	}
	return nil
}

// DecodeHeader reads and checks the header of a .cubeenv stream.
func DecodeHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("envmap: read header: %w", err)
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: magic 0x%08x", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}
	if h.Compression > CompressionLZ4High {
		return h, fmt.Errorf("%w: %s", ErrUnsupportedCodec, h.Compression)
	}
	if h.Size == 0 || h.Size > maxSize {
		return h, fmt.Errorf("envmap: invalid size %d", h.Size)
	}
	return h, nil
}

// Decode reads a .cubeenv stream.
func Decode(r io.Reader) (*Cube, error) {
	h, err := DecodeHeader(r)
	if err != nil {
		return nil, err
	}

	payload := r
	if h.Compression != CompressionNone {
		payload = lz4.NewReader(r)
	}

	// Faces grow as rows arrive so a truncated stream never costs more
	// than the texels it actually carries.
	size := int(h.Size)
	row := make([]byte, size*4)
	br := bufio.NewReader(payload)
	var faces [gpucore.CubeFaces][]float32
	for f := range faces {
		p := make([]float32, 0, min(size*size*3, faceGrowth))
		for y := range size {
			if _, err := io.ReadFull(br, row); err != nil {
				return nil, fmt.Errorf("envmap: face %d row %d of %d texels: %w", f, y, size, err)
			}
			for o := 0; o < len(row); o += 4 {
				r, g, b := decodeRGBE([4]byte{row[o], row[o+1], row[o+2], row[o+3]})
				p = append(p, r, g, b)
			}
		}
		faces[f] = p
	}
	return &Cube{Size: size, Faces: faces}, nil
}
