// Package irradiance generates diffuse irradiance cubes on the GPU.
//
// # Overview
//
// A LightProbe blends a set of source environment cubes over time, reduces
// the blended radiance through a mip pyramid with a box filter, and
// reconstructs a cosine-weighted irradiance cube by upsampling that pyramid
// from the coarsest level back to level 0. The result is suitable for
// diffuse image-based lighting.
//
// # Quick Start
//
//	dev, err := backend.Default()
//	...
//	lp := irradiance.New(dev, envmap.NewLoader())
//	defer lp.Close()
//
//	uploads := &irradiance.Uploads{}
//	cs, _ := dev.NewCommandStream("init")
//	if err := lp.Init(ctx, cs, []string{"day.cubeenv", "night.cubeenv"}, uploads); err != nil {
//	    return err
//	}
//	err = dev.Submit(ctx, cs)
//	uploads.Release(dev)
//
//	// Every frame
//	lp.AdvanceTime(t)
//	cs, _ = dev.NewCommandStream("frame")
//	if err := lp.Process(cs, gpucore.StateShaderRead); err != nil {
//	    return err
//	}
//	err = dev.Submit(ctx, cs)
//
// # Frame Structure
//
// For sources of extent w x h the irradiance pyramid has
// N = max(floor(log2(max(w, h))), 1) + 1 levels and the radiance pyramid
// N-1. Process records, in order:
//
//	radiance     1 dispatch   sources -> radiance[0]
//	downsample   N-2          radiance[i] -> radiance[i+1]
//	seed         1            radiance[N-2] -> irradiance[N-1]
//	upsample     N-1          irradiance[c], radiance[c-1] -> irradiance[c-1]
//
// A 512x512 source therefore produces 19 dispatches per frame.
//
// # Resource States
//
// The probe tracks the state of every pyramid level and records a barrier
// only when a level changes state. Levels are written in
// StateUnorderedAccess and read in StateShaderRead. After Process every
// irradiance level is in the state passed as final.
//
// # Backends
//
// The probe talks to the GPU through gpucore.Device. Package backend/wgpu
// implements it on gogpu/wgpu, package backend/software on the CPU, and
// package recording captures streams for inspection.
package irradiance

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)
