// Package envmap reads and writes cube environments and uploads them to a
// gpucore.Device.
//
// # The .cubeenv format
//
// A .cubeenv stream is a little-endian Header followed by 6·Size·Size RGBE
// texels of four bytes each. Faces are stored +X, -X, +Y, -Y, +Z, -Z, rows
// top to bottom. The texel payload is optionally an LZ4 frame:
//
//	cube, err := envmap.Decode(r)
//	err = envmap.Encode(w, cube, envmap.CompressionLZ4Fast)
//
// # Strips
//
// DecodeStrip reads a PNG, TIFF or BMP image holding the six faces side by
// side, in the same order, and can resample the faces to a new size.
//
// # Loading
//
// Loader implements irradiance.Loader. It decodes a file by extension,
// creates a one-level cube texture and records the upload into the init
// command stream:
//
//	probe := irradiance.New(dev, envmap.NewLoader())
package envmap
