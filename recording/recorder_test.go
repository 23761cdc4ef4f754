package recording

import (
	"errors"
	"testing"

	"github.com/gogpu/irradiance/gpucore"
)

func TestRecorderCapturesInOrder(t *testing.T) {
	rec := NewRecorder("frame")
	rec.SetLayout(1)
	rec.SetPipeline(2)
	rec.SetBindingSet(0, 3)
	rec.SetConstants(1, []byte{1, 2, 3, 4})
	rec.Barrier(gpucore.Barrier{Texture: 5, Level: 0, Before: gpucore.StateUndefined, After: gpucore.StateUnorderedAccess})
	rec.Dispatch(8, 8, 6)

	r := rec.Finish()
	if r.Err() != nil {
		t.Fatalf("Err() = %v", r.Err())
	}
	if r.Label() != "frame" {
		t.Errorf("Label() = %q, want frame", r.Label())
	}

	want := []CommandType{CmdSetLayout, CmdSetPipeline, CmdSetBindingSet, CmdSetConstants, CmdBarrier, CmdDispatch}
	cmds := r.Commands()
	if len(cmds) != len(want) {
		t.Fatalf("len(Commands()) = %d, want %d", len(cmds), len(want))
	}
	for i, cmd := range cmds {
		if cmd.Type() != want[i] {
			t.Errorf("Commands()[%d] = %v, want %v", i, cmd.Type(), want[i])
		}
	}
	if got := len(r.Dispatches()); got != 1 {
		t.Errorf("len(Dispatches()) = %d, want 1", got)
	}
	if got := len(r.Barriers()); got != 1 {
		t.Errorf("len(Barriers()) = %d, want 1", got)
	}
	if got := r.Count(CmdSetBindingSet); got != 1 {
		t.Errorf("Count(SetBindingSet) = %d, want 1", got)
	}
}

func TestRecorderCopiesConstants(t *testing.T) {
	rec := NewRecorder("")
	data := []byte{1, 2, 3, 4}
	rec.SetConstants(1, data)
	data[0] = 9

	c := rec.Finish().Commands()[0].(SetConstantsCommand)
	if c.Data[0] != 1 {
		t.Errorf("recorded constants changed with caller buffer: %v", c.Data)
	}
}

func TestRecorderStickyError(t *testing.T) {
	tests := []struct {
		name   string
		record func(*Recorder)
		want   error
	}{
		{"empty dispatch", func(r *Recorder) { r.Dispatch(0, 1, 6) }, ErrEmptyDispatch},
		{"noop barrier", func(r *Recorder) {
			r.Barrier(gpucore.Barrier{Texture: 1, Before: gpucore.StateShaderRead, After: gpucore.StateShaderRead})
		}, ErrNoopBarrier},
		{"after finish", func(r *Recorder) {
			r.Finish()
			r.Dispatch(1, 1, 1)
		}, ErrFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecorder("")
			tt.record(rec)
			if !errors.Is(rec.Err(), tt.want) {
				t.Fatalf("Err() = %v, want %v", rec.Err(), tt.want)
			}

			n := rec.Len()
			rec.Dispatch(1, 1, 1)
			if rec.Len() != n {
				t.Error("commands recorded after failure")
			}
		})
	}
}

func TestRecorderFailKeepsFirst(t *testing.T) {
	first := errors.New("first")
	rec := NewRecorder("")
	rec.Fail(first)
	rec.Fail(errors.New("second"))
	if !errors.Is(rec.Err(), first) {
		t.Errorf("Err() = %v, want %v", rec.Err(), first)
	}
}

func TestRecordingPlayback(t *testing.T) {
	src := NewRecorder("src")
	src.SetLayout(1)
	src.SetPipeline(2)
	src.SetBindingSet(0, 3)
	src.SetConstants(1, []byte{0, 0, 128, 63})
	src.Barrier(gpucore.Barrier{Texture: 5, Level: 2, Before: gpucore.StateShaderRead, After: gpucore.StateUnorderedAccess})
	src.Dispatch(4, 4, 6)
	src.CopyBufferToTexture(7, 16, 5, 0)
	r := src.Finish()

	dst := NewRecorder("dst")
	if err := r.Playback(dst); err != nil {
		t.Fatalf("Playback() = %v", err)
	}

	got := dst.Finish().Commands()
	if len(got) != len(r.Commands()) {
		t.Fatalf("played %d commands, want %d", len(got), len(r.Commands()))
	}
	for i := range got {
		if Describe(got[i]) != Describe(r.Commands()[i]) {
			t.Errorf("command %d = %s, want %s", i, Describe(got[i]), Describe(r.Commands()[i]))
		}
	}
}

func TestRecordingPlaybackFailed(t *testing.T) {
	src := NewRecorder("")
	src.Dispatch(0, 0, 0)
	r := src.Finish()

	dst := NewRecorder("")
	if err := r.Playback(dst); !errors.Is(err, ErrEmptyDispatch) {
		t.Errorf("Playback() = %v, want %v", err, ErrEmptyDispatch)
	}
	if dst.Len() != 0 {
		t.Errorf("failed recording replayed %d commands", dst.Len())
	}
}
