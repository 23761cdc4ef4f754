package software

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/irradiance/gpucore"
	"github.com/gogpu/irradiance/internal/parallel"
)

// levelRef is one bound level of one image.
type levelRef struct {
	img   *cubeImage
	level int
}

func (r levelRef) plane() *plane { return r.img.levels[r.level] }

// dispatch is one resolved compute dispatch.
//
// Kernel arguments are gathered from the active layout in group order and,
// within a group, in binding order: constants are concatenated, sampled
// views become inputs and storage views become outputs.
type dispatch struct {
	shader    string
	workgroup [2]uint32
	grid      [3]uint32
	filter    gpucore.FilterMode
	consts    []byte
	inputs    []levelRef
	outputs   []levelRef
}

// kernel computes the texel of a dispatch at (face, x, y) of its output.
type kernel func(face, x, y int) mgl32.Vec4

// run executes d on pool.
func (d *dispatch) run(pool *parallel.WorkerPool) error {
	k, err := d.kernel()
	if err != nil {
		return err
	}

	out := d.outputs[0]
	p := out.plane()

	// Texels outside the grid are not written, as on a GPU where
	// invocations past the grid never run.
	w := min(p.w, int(d.grid[0]*d.workgroup[0]))
	h := min(p.h, int(d.grid[1]*d.workgroup[1]))
	faces := min(gpucore.CubeFaces, int(d.grid[2]))

	pool.For(faces*h, func(lo, hi int) {
		for row := lo; row < hi; row++ {
			face, y := row/h, row%h
			for x := range w {
				out.img.store(out.level, face, x, y, k(face, x, y))
			}
		}
	})
	return nil
}

func (d *dispatch) kernel() (kernel, error) {
	switch d.shader {
	case gpucore.ShaderRadiance:
		return d.radiance()
	case gpucore.ShaderResample:
		return d.resample()
	case gpucore.ShaderCosineUp:
		return d.cosineUp()
	default:
		return nil, fmt.Errorf("software: unknown shader %q", d.shader)
	}
}

func (d *dispatch) expect(inputs, outputs, consts int) error {
	if len(d.inputs) != inputs || len(d.outputs) != outputs || len(d.consts) != consts {
		return fmt.Errorf("software: %s expects %d inputs, %d outputs and %d constant bytes, layout provides %d, %d and %d",
			d.shader, inputs, outputs, consts, len(d.inputs), len(d.outputs), len(d.consts))
	}
	return nil
}

// radiance blends two source cubes: out = mix(a(d), b(d), blend).
func (d *dispatch) radiance() (kernel, error) {
	if err := d.expect(2, 1, 4); err != nil {
		return nil, err
	}
	blend := math.Float32frombits(binary.LittleEndian.Uint32(d.consts))
	a, b := d.inputs[0].plane(), d.inputs[1].plane()
	out := d.outputs[0].plane()

	return func(face, x, y int) mgl32.Vec4 {
		dir := texelDir(face, x, y, out.w, out.h)
		return mix(sampleCube(a, dir, d.filter), sampleCube(b, dir, d.filter), blend)
	}, nil
}

// resample box-filters the 2×2 input texels under each output texel,
// clamped at the input edges.
func (d *dispatch) resample() (kernel, error) {
	if err := d.expect(1, 1, 0); err != nil {
		return nil, err
	}
	in := d.inputs[0].plane()

	return func(face, x, y int) mgl32.Vec4 {
		x0, x1 := clampIndex(2*x, in.w), clampIndex(2*x+1, in.w)
		y0, y1 := clampIndex(2*y, in.h), clampIndex(2*y+1, in.h)
		sum := in.at(face, x0, y0).
			Add(in.at(face, x1, y0)).
			Add(in.at(face, x0, y1)).
			Add(in.at(face, x1, y1))
		return sum.Mul(0.25)
	}, nil
}

// CosineWeight returns the weight of the radiance term when reconstructing
// irradiance level from the next coarser level of a pyramid built for a
// map of mapSize texels.
//
// A texel of the level spans Ω = 4π/(6s²) steradians with s the level
// extent; the weight is Ω/(Ω+π).
func CosineWeight(mapSize float32, level uint32) float32 {
	s := mapSize
	if level < 32 {
		s /= float32(uint64(1) << level)
	} else {
		s = 0
	}
	s = math32.Max(s, 1)
	omega := 4 * math32.Pi / (6 * s * s)
	return omega / (omega + math32.Pi)
}

// cosineUp reconstructs one irradiance level:
// out = mix(coarser(d), radiance(d), CosineWeight(mapSize, level)).
func (d *dispatch) cosineUp() (kernel, error) {
	if err := d.expect(2, 1, 12); err != nil {
		return nil, err
	}
	mapSize := math.Float32frombits(binary.LittleEndian.Uint32(d.consts[0:]))
	level := binary.LittleEndian.Uint32(d.consts[8:])
	w := CosineWeight(mapSize, level)

	rad, coarser := d.inputs[0].plane(), d.inputs[1].plane()
	out := d.outputs[0].plane()

	return func(face, x, y int) mgl32.Vec4 {
		dir := texelDir(face, x, y, out.w, out.h)
		return mix(sampleCube(coarser, dir, d.filter), sampleCube(rad, dir, d.filter), w)
	}, nil
}
