package recording

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/irradiance/gpucore"
)

// Hazard classes reported through ValidationError.
var (
	// ErrUnknownResource is reported for IDs the tracker has never seen.
	ErrUnknownResource = errors.New("unknown resource")

	// ErrStateMismatch is reported for a barrier whose Before does not
	// match the tracked state of the level.
	ErrStateMismatch = errors.New("barrier state mismatch")

	// ErrNotReadable is reported for a sampled level that is not in
	// StateShaderRead or has never been written.
	ErrNotReadable = errors.New("level not readable")

	// ErrNotWritable is reported for a storage level not in StateUnorderedAccess.
	ErrNotWritable = errors.New("level not writable")

	// ErrReadWriteAlias is reported when one dispatch reads and writes the same level.
	ErrReadWriteAlias = errors.New("level read and written by one dispatch")

	// ErrIncompleteBindings is reported for a dispatch with an unbound group,
	// no pipeline, or a pipeline linked against another layout.
	ErrIncompleteBindings = errors.New("incomplete bindings")

	// ErrLayoutMismatch is reported when a binding set or constants block
	// does not fit the active layout.
	ErrLayoutMismatch = errors.New("layout mismatch")

	// ErrCopyOutOfRange is reported for a copy reading past the end of its buffer.
	ErrCopyOutOfRange = errors.New("copy out of range")
)

// ValidationError describes a command that breaks the resource-state rules.
type ValidationError struct {
	// Op is the command type.
	Op CommandType

	// Index is the position of the command in its recording.
	Index int

	// Texture and Level identify the offending level, if any.
	Texture gpucore.TextureID
	Level   int

	// Want and Got are the expected and tracked states, if relevant.
	Want gpucore.ResourceState
	Got  gpucore.ResourceState

	// Err is the hazard class.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Texture == gpucore.InvalidID {
		return fmt.Sprintf("recording: %s #%d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("recording: %s #%d: tex%d[%d]: %v (want %s, got %s)",
		e.Op, e.Index, e.Texture, e.Level, e.Err, e.Want, e.Got)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// TextureState is the tracked state of a texture.
type TextureState struct {
	Desc    gpucore.TextureDesc
	States  []gpucore.ResourceState
	Written []bool
}

// Tracker keeps the descriptors of every live resource and the state of
// every texture level, and checks recordings against them.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	textures  map[gpucore.TextureID]*TextureState
	views     map[gpucore.ViewID]gpucore.ViewDesc
	samplers  map[gpucore.SamplerID]gpucore.SamplerDesc
	buffers   map[gpucore.BufferID]gpucore.BufferDesc
	layouts   map[gpucore.LayoutID]gpucore.LayoutDesc
	pipelines map[gpucore.PipelineID]gpucore.PipelineDesc
	sets      map[gpucore.BindingSetID]gpucore.BindingSetDesc
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		textures:  make(map[gpucore.TextureID]*TextureState),
		views:     make(map[gpucore.ViewID]gpucore.ViewDesc),
		samplers:  make(map[gpucore.SamplerID]gpucore.SamplerDesc),
		buffers:   make(map[gpucore.BufferID]gpucore.BufferDesc),
		layouts:   make(map[gpucore.LayoutID]gpucore.LayoutDesc),
		pipelines: make(map[gpucore.PipelineID]gpucore.PipelineDesc),
		sets:      make(map[gpucore.BindingSetID]gpucore.BindingSetDesc),
	}
}

// Live counts the resources a tracker currently knows about.
type Live struct {
	Textures, Views, Samplers, Buffers, Layouts, Pipelines, BindingSets int
}

// Total returns the sum of all counts.
func (l Live) Total() int {
	return l.Textures + l.Views + l.Samplers + l.Buffers + l.Layouts + l.Pipelines + l.BindingSets
}

// Live returns the number of live resources of each kind.
func (t *Tracker) Live() Live {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Live{
		Textures:    len(t.textures),
		Views:       len(t.views),
		Samplers:    len(t.samplers),
		Buffers:     len(t.buffers),
		Layouts:     len(t.layouts),
		Pipelines:   len(t.pipelines),
		BindingSets: len(t.sets),
	}
}

// AddTexture registers a texture with every level undefined.
func (t *Tracker) AddTexture(id gpucore.TextureID, desc gpucore.TextureDesc) {
	t.mu.Lock()
	t.textures[id] = &TextureState{
		Desc:    desc,
		States:  make([]gpucore.ResourceState, desc.Levels),
		Written: make([]bool, desc.Levels),
	}
	t.mu.Unlock()
}

// RemoveTexture forgets a texture.
func (t *Tracker) RemoveTexture(id gpucore.TextureID) {
	t.mu.Lock()
	delete(t.textures, id)
	t.mu.Unlock()
}

// Texture returns a copy of the tracked state of a texture.
func (t *Tracker) Texture(id gpucore.TextureID) (TextureState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.textures[id]
	if !ok {
		return TextureState{}, false
	}
	return TextureState{
		Desc:    ts.Desc,
		States:  slices.Clone(ts.States),
		Written: slices.Clone(ts.Written),
	}, true
}

// CheckTexture validates a texture descriptor.
func CheckTexture(desc *gpucore.TextureDesc) error {
	switch {
	case desc.Width <= 0 || desc.Height <= 0:
		return fmt.Errorf("recording: texture %q: invalid extent %dx%d", desc.Label, desc.Width, desc.Height)
	case desc.Levels <= 0:
		return fmt.Errorf("recording: texture %q: invalid level count %d", desc.Label, desc.Levels)
	case desc.Format.BytesPerTexel() == 0:
		return fmt.Errorf("recording: texture %q: unsupported format %s", desc.Label, desc.Format)
	}
	return nil
}

// AddView registers a view after checking it against its texture.
func (t *Tracker) AddView(id gpucore.ViewID, desc gpucore.ViewDesc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.textures[desc.Texture]
	if !ok {
		return fmt.Errorf("recording: view %q: %w: tex%d", desc.Label, ErrUnknownResource, desc.Texture)
	}
	if desc.Level < 0 || desc.Level >= ts.Desc.Levels {
		return fmt.Errorf("recording: view %q: level %d out of range [0,%d)", desc.Label, desc.Level, ts.Desc.Levels)
	}
	if desc.Kind == gpucore.ViewStorage && ts.Desc.Usage&gpucore.TextureUsageStorageBinding == 0 {
		return fmt.Errorf("recording: view %q: texture lacks storage usage", desc.Label)
	}
	t.views[id] = desc
	return nil
}

// RemoveView forgets a view.
func (t *Tracker) RemoveView(id gpucore.ViewID) {
	t.mu.Lock()
	delete(t.views, id)
	t.mu.Unlock()
}

// View returns a view descriptor.
func (t *Tracker) View(id gpucore.ViewID) (gpucore.ViewDesc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.views[id]
	return v, ok
}

// AddSampler registers a sampler.
func (t *Tracker) AddSampler(id gpucore.SamplerID, desc gpucore.SamplerDesc) {
	t.mu.Lock()
	t.samplers[id] = desc
	t.mu.Unlock()
}

// RemoveSampler forgets a sampler.
func (t *Tracker) RemoveSampler(id gpucore.SamplerID) {
	t.mu.Lock()
	delete(t.samplers, id)
	t.mu.Unlock()
}

// Sampler returns a sampler descriptor.
func (t *Tracker) Sampler(id gpucore.SamplerID) (gpucore.SamplerDesc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.samplers[id]
	return s, ok
}

// AddBuffer registers a buffer.
func (t *Tracker) AddBuffer(id gpucore.BufferID, desc gpucore.BufferDesc) {
	t.mu.Lock()
	t.buffers[id] = desc
	t.mu.Unlock()
}

// RemoveBuffer forgets a buffer.
func (t *Tracker) RemoveBuffer(id gpucore.BufferID) {
	t.mu.Lock()
	delete(t.buffers, id)
	t.mu.Unlock()
}

// Buffer returns a buffer descriptor.
func (t *Tracker) Buffer(id gpucore.BufferID) (gpucore.BufferDesc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.buffers[id]
	return b, ok
}

// AddLayout registers a pipeline layout after checking it.
func (t *Tracker) AddLayout(id gpucore.LayoutID, desc gpucore.LayoutDesc) error {
	for g, group := range desc.Groups {
		for _, e := range group.Entries {
			if e.Type == gpucore.BindingTypeConstants && e.Size == 0 {
				return fmt.Errorf("recording: layout %q group %d: constants without size", desc.Label, g)
			}
		}
	}
	t.mu.Lock()
	t.layouts[id] = desc
	t.mu.Unlock()
	return nil
}

// RemoveLayout forgets a layout.
func (t *Tracker) RemoveLayout(id gpucore.LayoutID) {
	t.mu.Lock()
	delete(t.layouts, id)
	t.mu.Unlock()
}

// Layout returns a layout descriptor.
func (t *Tracker) Layout(id gpucore.LayoutID) (gpucore.LayoutDesc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.layouts[id]
	return l, ok
}

// AddPipeline registers a pipeline after checking its layout exists.
func (t *Tracker) AddPipeline(id gpucore.PipelineID, desc gpucore.PipelineDesc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.layouts[desc.Layout]; !ok {
		return fmt.Errorf("recording: pipeline %q: %w: layout%d", desc.Label, ErrUnknownResource, desc.Layout)
	}
	t.pipelines[id] = desc
	return nil
}

// RemovePipeline forgets a pipeline.
func (t *Tracker) RemovePipeline(id gpucore.PipelineID) {
	t.mu.Lock()
	delete(t.pipelines, id)
	t.mu.Unlock()
}

// Pipeline returns a pipeline descriptor.
func (t *Tracker) Pipeline(id gpucore.PipelineID) (gpucore.PipelineDesc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pipelines[id]
	return p, ok
}

// AddBindingSet registers a binding set after checking every entry
// against the group layout it is built for.
func (t *Tracker) AddBindingSet(id gpucore.BindingSetID, desc gpucore.BindingSetDesc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	layout, ok := t.layouts[desc.Layout]
	if !ok {
		return fmt.Errorf("recording: binding set %q: %w: layout%d", desc.Label, ErrUnknownResource, desc.Layout)
	}
	if int(desc.Group) >= len(layout.Groups) {
		return fmt.Errorf("recording: binding set %q: group %d out of range", desc.Label, desc.Group)
	}
	group := layout.Groups[desc.Group]
	if len(group.Entries) != len(desc.Entries) {
		return fmt.Errorf("recording: binding set %q: %d entries, layout has %d", desc.Label, len(desc.Entries), len(group.Entries))
	}
	for _, le := range group.Entries {
		e, ok := findEntry(desc.Entries, le.Binding)
		if !ok {
			return fmt.Errorf("recording: binding set %q: binding %d missing", desc.Label, le.Binding)
		}
		if err := t.checkEntry(le, e); err != nil {
			return fmt.Errorf("recording: binding set %q: binding %d: %w", desc.Label, le.Binding, err)
		}
	}

	t.sets[id] = desc
	return nil
}

func findEntry(entries []gpucore.BindingSetEntry, binding uint32) (gpucore.BindingSetEntry, bool) {
	for _, e := range entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return gpucore.BindingSetEntry{}, false
}

// checkEntry validates one binding. Caller must hold t.mu.
func (t *Tracker) checkEntry(le gpucore.LayoutEntry, e gpucore.BindingSetEntry) error {
	switch le.Type {
	case gpucore.BindingTypeSampler:
		if _, ok := t.samplers[e.Sampler]; !ok {
			return fmt.Errorf("%w: sampler%d", ErrUnknownResource, e.Sampler)
		}
	case gpucore.BindingTypeSampledTexture, gpucore.BindingTypeStorageTexture:
		v, ok := t.views[e.View]
		if !ok {
			return fmt.Errorf("%w: view%d", ErrUnknownResource, e.View)
		}
		want := gpucore.ViewSampled
		if le.Type == gpucore.BindingTypeStorageTexture {
			want = gpucore.ViewStorage
		}
		if v.Kind != want {
			return fmt.Errorf("%w: view %q has the wrong kind for %s", ErrLayoutMismatch, v.Label, le.Type)
		}
	default:
		return fmt.Errorf("%w: %s cannot be bound by a binding set", ErrLayoutMismatch, le.Type)
	}
	return nil
}

// RemoveBindingSet forgets a binding set.
func (t *Tracker) RemoveBindingSet(id gpucore.BindingSetID) {
	t.mu.Lock()
	delete(t.sets, id)
	t.mu.Unlock()
}

// BindingSet returns a binding set descriptor.
func (t *Tracker) BindingSet(id gpucore.BindingSetID) (gpucore.BindingSetDesc, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sets[id]
	return s, ok
}

// LevelState returns the tracked state of one level.
func (t *Tracker) LevelState(id gpucore.TextureID, level int) (gpucore.ResourceState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.textures[id]
	if !ok {
		return 0, fmt.Errorf("recording: %w: tex%d", ErrUnknownResource, id)
	}
	if level < 0 || level >= len(ts.States) {
		return 0, fmt.Errorf("recording: tex%d: level %d out of range", id, level)
	}
	return ts.States[level], nil
}

// Check validates a recording against the tracked states and, when it is
// valid, commits the state changes it makes. An invalid recording leaves
// the tracker unchanged and returns a *ValidationError.
func (t *Tracker) Check(r *Recording) error {
	if err := r.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sim := newSimulation(t)
	for i, cmd := range r.Commands() {
		if err := sim.apply(i, cmd); err != nil {
			return err
		}
	}
	sim.commit()
	return nil
}

// levelKey identifies one level of one texture.
type levelKey struct {
	tex   gpucore.TextureID
	level int
}

// simulation replays a recording over a copy of the tracked states.
type simulation struct {
	t        *Tracker
	states   map[levelKey]gpucore.ResourceState
	written  map[levelKey]bool
	layout   gpucore.LayoutID
	pipeline gpucore.PipelineID
	bound    map[uint32]gpucore.BindingSetID
	consts   map[uint32][]byte
}

func newSimulation(t *Tracker) *simulation {
	return &simulation{
		t:       t,
		states:  make(map[levelKey]gpucore.ResourceState),
		written: make(map[levelKey]bool),
		bound:   make(map[uint32]gpucore.BindingSetID),
		consts:  make(map[uint32][]byte),
	}
}

func (s *simulation) state(k levelKey) gpucore.ResourceState {
	if st, ok := s.states[k]; ok {
		return st
	}
	return s.t.textures[k.tex].States[k.level]
}

func (s *simulation) isWritten(k levelKey) bool {
	if w, ok := s.written[k]; ok {
		return w
	}
	return s.t.textures[k.tex].Written[k.level]
}

func (s *simulation) apply(i int, cmd Command) error {
	switch c := cmd.(type) {
	case SetLayoutCommand:
		if _, ok := s.t.layouts[c.Layout]; !ok {
			return &ValidationError{Op: CmdSetLayout, Index: i, Err: fmt.Errorf("%w: layout%d", ErrUnknownResource, c.Layout)}
		}
		s.layout = c.Layout
		s.pipeline = gpucore.InvalidID
		clear(s.bound)
		clear(s.consts)
	case SetPipelineCommand:
		if _, ok := s.t.pipelines[c.Pipeline]; !ok {
			return &ValidationError{Op: CmdSetPipeline, Index: i, Err: fmt.Errorf("%w: pipeline%d", ErrUnknownResource, c.Pipeline)}
		}
		s.pipeline = c.Pipeline
	case SetBindingSetCommand:
		return s.setBindingSet(i, c)
	case SetConstantsCommand:
		return s.setConstants(i, c)
	case BarrierCommand:
		return s.barrier(i, c)
	case DispatchCommand:
		return s.dispatch(i)
	case CopyBufferToTextureCommand:
		return s.copy(i, c)
	}
	return nil
}

func (s *simulation) activeGroup(i int, op CommandType, group uint32) (gpucore.GroupLayout, error) {
	layout, ok := s.t.layouts[s.layout]
	if !ok {
		return gpucore.GroupLayout{}, &ValidationError{Op: op, Index: i, Err: fmt.Errorf("%w: no active layout", ErrIncompleteBindings)}
	}
	if int(group) >= len(layout.Groups) {
		return gpucore.GroupLayout{}, &ValidationError{Op: op, Index: i, Err: fmt.Errorf("%w: group %d out of range", ErrLayoutMismatch, group)}
	}
	return layout.Groups[group], nil
}

func (s *simulation) setBindingSet(i int, c SetBindingSetCommand) error {
	active, err := s.activeGroup(i, CmdSetBindingSet, c.Group)
	if err != nil {
		return err
	}
	set, ok := s.t.sets[c.Set]
	if !ok {
		return &ValidationError{Op: CmdSetBindingSet, Index: i, Err: fmt.Errorf("%w: set%d", ErrUnknownResource, c.Set)}
	}
	// Sets built for another layout are accepted when their group is
	// identical to the active one.
	ownLayout, ok := s.t.layouts[set.Layout]
	if !ok || int(set.Group) >= len(ownLayout.Groups) ||
		!slices.Equal(ownLayout.Groups[set.Group].Entries, active.Entries) {
		return &ValidationError{Op: CmdSetBindingSet, Index: i, Err: fmt.Errorf("%w: set %q does not fit group %d", ErrLayoutMismatch, set.Label, c.Group)}
	}
	s.bound[c.Group] = c.Set
	return nil
}

func (s *simulation) setConstants(i int, c SetConstantsCommand) error {
	active, err := s.activeGroup(i, CmdSetConstants, c.Group)
	if err != nil {
		return err
	}
	if len(active.Entries) != 1 || active.Entries[0].Type != gpucore.BindingTypeConstants {
		return &ValidationError{Op: CmdSetConstants, Index: i, Err: fmt.Errorf("%w: group %d is not a constants group", ErrLayoutMismatch, c.Group)}
	}
	if int(active.Entries[0].Size) != len(c.Data) {
		return &ValidationError{Op: CmdSetConstants, Index: i, Err: fmt.Errorf("%w: %d bytes, layout declares %d", ErrLayoutMismatch, len(c.Data), active.Entries[0].Size)}
	}
	s.consts[c.Group] = bytes.Clone(c.Data)
	return nil
}

func (s *simulation) levels(tex gpucore.TextureID, level int) ([]levelKey, bool) {
	ts, ok := s.t.textures[tex]
	if !ok {
		return nil, false
	}
	if level == gpucore.AllLevels {
		keys := make([]levelKey, ts.Desc.Levels)
		for l := range keys {
			keys[l] = levelKey{tex, l}
		}
		return keys, true
	}
	if level < 0 || level >= ts.Desc.Levels {
		return nil, false
	}
	return []levelKey{{tex, level}}, true
}

func (s *simulation) barrier(i int, c BarrierCommand) error {
	for _, b := range c.Barriers {
		keys, ok := s.levels(b.Texture, b.Level)
		if !ok {
			return &ValidationError{Op: CmdBarrier, Index: i, Texture: b.Texture, Level: b.Level, Err: ErrUnknownResource}
		}
		for _, k := range keys {
			if got := s.state(k); got != b.Before {
				return &ValidationError{Op: CmdBarrier, Index: i, Texture: k.tex, Level: k.level, Want: b.Before, Got: got, Err: ErrStateMismatch}
			}
			s.states[k] = b.After
		}
	}
	return nil
}

func (s *simulation) dispatch(i int) error {
	layout, ok := s.t.layouts[s.layout]
	if !ok {
		return &ValidationError{Op: CmdDispatch, Index: i, Err: fmt.Errorf("%w: no active layout", ErrIncompleteBindings)}
	}
	p, ok := s.t.pipelines[s.pipeline]
	if !ok || p.Layout != s.layout {
		return &ValidationError{Op: CmdDispatch, Index: i, Err: fmt.Errorf("%w: no pipeline for the active layout", ErrIncompleteBindings)}
	}

	var reads, writes []levelKey
	for g, group := range layout.Groups {
		if len(group.Entries) == 1 && group.Entries[0].Type == gpucore.BindingTypeConstants {
			if _, ok := s.consts[uint32(g)]; !ok { //nolint:gosec // group count is small
				return &ValidationError{Op: CmdDispatch, Index: i, Err: fmt.Errorf("%w: constants group %d not set", ErrIncompleteBindings, g)}
			}
			continue
		}
		id, ok := s.bound[uint32(g)] //nolint:gosec // group count is small
		if !ok {
			return &ValidationError{Op: CmdDispatch, Index: i, Err: fmt.Errorf("%w: group %d not bound", ErrIncompleteBindings, g)}
		}
		set := s.t.sets[id]
		for _, le := range group.Entries {
			e, _ := findEntry(set.Entries, le.Binding)
			view, ok := s.t.views[e.View]
			switch le.Type {
			case gpucore.BindingTypeSampledTexture:
				if !ok {
					return &ValidationError{Op: CmdDispatch, Index: i, Err: fmt.Errorf("%w: view%d", ErrUnknownResource, e.View)}
				}
				reads = append(reads, levelKey{view.Texture, view.Level})
			case gpucore.BindingTypeStorageTexture:
				if !ok {
					return &ValidationError{Op: CmdDispatch, Index: i, Err: fmt.Errorf("%w: view%d", ErrUnknownResource, e.View)}
				}
				writes = append(writes, levelKey{view.Texture, view.Level})
			}
		}
	}

	for _, k := range reads {
		if _, ok := s.t.textures[k.tex]; !ok {
			return &ValidationError{Op: CmdDispatch, Index: i, Texture: k.tex, Level: k.level, Err: ErrUnknownResource}
		}
		if got := s.state(k); !got.Readable() || !s.isWritten(k) {
			return &ValidationError{Op: CmdDispatch, Index: i, Texture: k.tex, Level: k.level, Want: gpucore.StateShaderRead, Got: got, Err: ErrNotReadable}
		}
		if slices.Contains(writes, k) {
			return &ValidationError{Op: CmdDispatch, Index: i, Texture: k.tex, Level: k.level, Want: gpucore.StateShaderRead, Got: s.state(k), Err: ErrReadWriteAlias}
		}
	}
	for _, k := range writes {
		if _, ok := s.t.textures[k.tex]; !ok {
			return &ValidationError{Op: CmdDispatch, Index: i, Texture: k.tex, Level: k.level, Err: ErrUnknownResource}
		}
		if got := s.state(k); got != gpucore.StateUnorderedAccess {
			return &ValidationError{Op: CmdDispatch, Index: i, Texture: k.tex, Level: k.level, Want: gpucore.StateUnorderedAccess, Got: got, Err: ErrNotWritable}
		}
		s.written[k] = true
	}
	return nil
}

func (s *simulation) copy(i int, c CopyBufferToTextureCommand) error {
	keys, ok := s.levels(c.Texture, c.Level)
	if !ok || len(keys) != 1 {
		return &ValidationError{Op: CmdCopyBufferToTexture, Index: i, Texture: c.Texture, Level: c.Level, Err: ErrUnknownResource}
	}
	k := keys[0]
	if got := s.state(k); got != gpucore.StateCopyDst {
		return &ValidationError{Op: CmdCopyBufferToTexture, Index: i, Texture: k.tex, Level: k.level, Want: gpucore.StateCopyDst, Got: got, Err: ErrNotWritable}
	}
	buf, ok := s.t.buffers[c.Buffer]
	if !ok {
		return &ValidationError{Op: CmdCopyBufferToTexture, Index: i, Err: fmt.Errorf("%w: buf%d", ErrUnknownResource, c.Buffer)}
	}
	desc := s.t.textures[k.tex].Desc
	if need := c.Offset + LevelBytes(desc, k.level); need > buf.Size {
		return &ValidationError{Op: CmdCopyBufferToTexture, Index: i, Texture: k.tex, Level: k.level, Err: fmt.Errorf("%w: need %d bytes, buffer has %d", ErrCopyOutOfRange, need, buf.Size)}
	}
	s.written[k] = true
	return nil
}

// commit writes the simulated states back. Caller must hold t.mu.
func (s *simulation) commit() {
	for k, st := range s.states {
		s.t.textures[k.tex].States[k.level] = st
	}
	for k, w := range s.written {
		s.t.textures[k.tex].Written[k.level] = w
	}
}

// LevelBytes returns the size of one tightly packed level, all six faces.
func LevelBytes(desc gpucore.TextureDesc, level int) uint64 {
	w := gpucore.MipSize(desc.Width, level)
	h := gpucore.MipSize(desc.Height, level)
	return uint64(w) * uint64(h) * gpucore.CubeFaces * uint64(desc.Format.BytesPerTexel()) //nolint:gosec // extents are positive
}
