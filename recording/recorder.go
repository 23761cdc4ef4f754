package recording

import (
	"errors"
	"fmt"

	"github.com/gogpu/irradiance/gpucore"
)

// Errors reported by Recorder.Err.
var (
	// ErrEmptyDispatch is recorded for a dispatch with a zero extent.
	ErrEmptyDispatch = errors.New("recording: dispatch with zero workgroups")

	// ErrNoopBarrier is recorded for a barrier whose before and after states match.
	ErrNoopBarrier = errors.New("recording: barrier does not change state")

	// ErrFinished is recorded when a finished recorder is used again.
	ErrFinished = errors.New("recording: recorder already finished")
)

// Recorder captures commands. It implements gpucore.CommandStream.
//
// Example:
//
//	rec := recording.NewRecorder("frame")
//	rec.Barrier(gpucore.Barrier{Texture: tex, Level: 0, After: gpucore.StateUnorderedAccess})
//	rec.Dispatch(64, 64, 6)
//	r := rec.Finish()
//
// The Recorder is not safe for concurrent use.
type Recorder struct {
	label    string
	commands []Command
	err      error
	finished bool
}

var _ gpucore.CommandStream = (*Recorder)(nil)

// NewRecorder creates an empty recorder.
func NewRecorder(label string) *Recorder {
	return &Recorder{
		label:    label,
		commands: make([]Command, 0, 64),
	}
}

// Label returns the debug label.
func (r *Recorder) Label() string { return r.label }

// Len returns the number of commands recorded so far.
func (r *Recorder) Len() int { return len(r.commands) }

// Fail marks the stream failed with err unless it already failed.
func (r *Recorder) Fail(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Err returns the first recording error, or nil.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) record(cmd Command) {
	if r.err != nil {
		return
	}
	if r.finished {
		r.err = ErrFinished
		return
	}
	r.commands = append(r.commands, cmd)
}

// Barrier implements gpucore.CommandStream.
func (r *Recorder) Barrier(barriers ...gpucore.Barrier) {
	if len(barriers) == 0 {
		return
	}
	for _, b := range barriers {
		if b.Before == b.After {
			r.Fail(fmt.Errorf("%w: %s", ErrNoopBarrier, b))
			return
		}
	}
	r.record(BarrierCommand{Barriers: append([]gpucore.Barrier(nil), barriers...)})
}

// SetLayout implements gpucore.CommandStream.
func (r *Recorder) SetLayout(layout gpucore.LayoutID) {
	r.record(SetLayoutCommand{Layout: layout})
}

// SetPipeline implements gpucore.CommandStream.
func (r *Recorder) SetPipeline(pipeline gpucore.PipelineID) {
	r.record(SetPipelineCommand{Pipeline: pipeline})
}

// SetBindingSet implements gpucore.CommandStream.
func (r *Recorder) SetBindingSet(group uint32, set gpucore.BindingSetID) {
	r.record(SetBindingSetCommand{Group: group, Set: set})
}

// SetConstants implements gpucore.CommandStream.
func (r *Recorder) SetConstants(group uint32, data []byte) {
	r.record(SetConstantsCommand{Group: group, Data: append([]byte(nil), data...)})
}

// Dispatch implements gpucore.CommandStream.
func (r *Recorder) Dispatch(x, y, z uint32) {
	if x == 0 || y == 0 || z == 0 {
		r.Fail(fmt.Errorf("%w: %dx%dx%d", ErrEmptyDispatch, x, y, z))
		return
	}
	r.record(DispatchCommand{X: x, Y: y, Z: z})
}

// CopyBufferToTexture implements gpucore.CommandStream.
func (r *Recorder) CopyBufferToTexture(src gpucore.BufferID, offset uint64, dst gpucore.TextureID, level int) {
	r.record(CopyBufferToTextureCommand{Buffer: src, Offset: offset, Texture: dst, Level: level})
}

// Finish returns an immutable Recording of every command captured so far.
// After Finish, further recording fails the stream.
func (r *Recorder) Finish() *Recording {
	r.finished = true
	return &Recording{
		label:    r.label,
		commands: r.commands,
		err:      r.err,
	}
}

// Recording is an immutable list of recorded commands.
type Recording struct {
	label    string
	commands []Command
	err      error
}

// Label returns the debug label of the recorder.
func (r *Recording) Label() string { return r.label }

// Commands returns the recorded commands.
func (r *Recording) Commands() []Command { return r.commands }

// Err returns the recording error captured at Finish time.
func (r *Recording) Err() error { return r.err }

// Dispatches returns every dispatch in order.
func (r *Recording) Dispatches() []DispatchCommand {
	var out []DispatchCommand
	for _, cmd := range r.commands {
		if c, ok := cmd.(DispatchCommand); ok {
			out = append(out, c)
		}
	}
	return out
}

// Barriers returns every barrier in order, flattened.
func (r *Recording) Barriers() []gpucore.Barrier {
	var out []gpucore.Barrier
	for _, cmd := range r.commands {
		if c, ok := cmd.(BarrierCommand); ok {
			out = append(out, c.Barriers...)
		}
	}
	return out
}

// Count returns the number of commands of type t.
func (r *Recording) Count(t CommandType) int {
	n := 0
	for _, cmd := range r.commands {
		if cmd.Type() == t {
			n++
		}
	}
	return n
}

// Playback replays the recording into cs and returns cs.Err.
// A recording that failed is not replayed.
func (r *Recording) Playback(cs gpucore.CommandStream) error {
	if r.err != nil {
		return r.err
	}

	for _, cmd := range r.commands {
		switch c := cmd.(type) {
		case SetLayoutCommand:
			cs.SetLayout(c.Layout)
		case SetPipelineCommand:
			cs.SetPipeline(c.Pipeline)
		case SetBindingSetCommand:
			cs.SetBindingSet(c.Group, c.Set)
		case SetConstantsCommand:
			cs.SetConstants(c.Group, c.Data)
		case BarrierCommand:
			cs.Barrier(c.Barriers...)
		case DispatchCommand:
			cs.Dispatch(c.X, c.Y, c.Z)
		case CopyBufferToTextureCommand:
			cs.CopyBufferToTexture(c.Buffer, c.Offset, c.Texture, c.Level)
		}
	}

	return cs.Err()
}
