package software

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/irradiance/gpucore"
)

// faceBasis holds, per face, the direction of the face centre and the
// directions of increasing u (texel x) and v (texel y).
// Faces are ordered +X, -X, +Y, -Y, +Z, -Z.
var faceBasis = [gpucore.CubeFaces]struct{ n, u, v mgl32.Vec3 }{
	{n: mgl32.Vec3{1, 0, 0}, u: mgl32.Vec3{0, 0, -1}, v: mgl32.Vec3{0, -1, 0}},
	{n: mgl32.Vec3{-1, 0, 0}, u: mgl32.Vec3{0, 0, 1}, v: mgl32.Vec3{0, -1, 0}},
	{n: mgl32.Vec3{0, 1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, 1}},
	{n: mgl32.Vec3{0, -1, 0}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, 0, -1}},
	{n: mgl32.Vec3{0, 0, 1}, u: mgl32.Vec3{1, 0, 0}, v: mgl32.Vec3{0, -1, 0}},
	{n: mgl32.Vec3{0, 0, -1}, u: mgl32.Vec3{-1, 0, 0}, v: mgl32.Vec3{0, -1, 0}},
}

// texelDir returns the unit direction through the centre of texel (x, y)
// of a w×h face.
func texelDir(face, x, y, w, h int) mgl32.Vec3 {
	u := (float32(x)+0.5)/float32(w)*2 - 1
	v := (float32(y)+0.5)/float32(h)*2 - 1
	b := &faceBasis[face]
	return b.n.Add(b.u.Mul(u)).Add(b.v.Mul(v)).Normalize()
}

// faceCoords maps a direction to a face and normalized face coordinates
// s, t in [0, 1]. It is the inverse of texelDir.
func faceCoords(d mgl32.Vec3) (face int, s, t float32) {
	ax, ay, az := math32.Abs(d[0]), math32.Abs(d[1]), math32.Abs(d[2])

	var sc, tc, ma float32
	switch {
	case ax >= ay && ax >= az:
		ma = ax
		if d[0] >= 0 {
			face, sc, tc = 0, -d[2], -d[1]
		} else {
			face, sc, tc = 1, d[2], -d[1]
		}
	case ay >= az:
		ma = ay
		if d[1] >= 0 {
			face, sc, tc = 2, d[0], d[2]
		} else {
			face, sc, tc = 3, d[0], -d[2]
		}
	default:
		ma = az
		if d[2] >= 0 {
			face, sc, tc = 4, d[0], -d[1]
		} else {
			face, sc, tc = 5, -d[0], -d[1]
		}
	}

	if ma == 0 {
		return 4, 0.5, 0.5
	}
	return face, (sc/ma + 1) / 2, (tc/ma + 1) / 2
}

func clampIndex(i, n int) int {
	return min(max(i, 0), n-1)
}

func mix(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

// sampleCube samples a plane in direction d. Filtering stays within the
// selected face; coordinates are clamped at face edges.
func sampleCube(p *plane, d mgl32.Vec3, filter gpucore.FilterMode) mgl32.Vec4 {
	face, s, t := faceCoords(d)

	if filter == gpucore.FilterModeNearest {
		x := clampIndex(int(s*float32(p.w)), p.w)
		y := clampIndex(int(t*float32(p.h)), p.h)
		return p.at(face, x, y)
	}

	px := s*float32(p.w) - 0.5
	py := t*float32(p.h) - 0.5
	fx0, fy0 := math32.Floor(px), math32.Floor(py)
	fx, fy := px-fx0, py-fy0
	x0, y0 := int(fx0), int(fy0)

	xa, xb := clampIndex(x0, p.w), clampIndex(x0+1, p.w)
	ya, yb := clampIndex(y0, p.h), clampIndex(y0+1, p.h)

	top := mix(p.at(face, xa, ya), p.at(face, xb, ya), fx)
	bottom := mix(p.at(face, xa, yb), p.at(face, xb, yb), fx)
	return mix(top, bottom, fy)
}
