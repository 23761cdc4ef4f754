package envmap

import "github.com/chewxy/math32"

// rgbeMin is the smallest channel maximum encoded as non-black.
const rgbeMin = 1e-32

// encodeRGBE packs a linear color into a shared-exponent texel.
func encodeRGBE(r, g, b float32) [4]byte {
	v := math32.Max(r, math32.Max(g, b))
	if v < rgbeMin {
		return [4]byte{}
	}
	m, e := math32.Frexp(v)
	scale := m * 256 / v
	return [4]byte{
		rgbeChannel(r * scale),
		rgbeChannel(g * scale),
		rgbeChannel(b * scale),
		byte(e + 128), //nolint:gosec // float32 exponents fit
	}
}

func rgbeChannel(v float32) byte {
	if v <= 0 {
		return 0
	}
	return byte(math32.Min(v, 255))
}

// decodeRGBE unpacks a shared-exponent texel. Channels decode to the centre
// of their quantization step.
func decodeRGBE(t [4]byte) (r, g, b float32) {
	if t[3] == 0 {
		return 0, 0, 0
	}
	f := math32.Ldexp(1, int(t[3])-(128+8))
	return (float32(t[0]) + 0.5) * f, (float32(t[1]) + 0.5) * f, (float32(t[2]) + 0.5) * f
}
