// Package recording captures command streams as typed commands.
//
// A Recorder implements gpucore.CommandStream without executing anything.
// The commands it captures can be inspected, printed, checked against the
// resource-state rules of a Device, or replayed into a real stream.
//
// Design follows Cairo's approach of typed command structs for
// inspectability and debuggability.
//
// # Example
//
//	dev := recording.NewDevice()
//	lp := irradiance.New(dev, nil)
//	...
//	cs, _ := dev.NewCommandStream("frame")
//	_ = lp.Process(cs, gpucore.StateShaderRead)
//	rec := cs.(*recording.Recorder).Finish()
//	fmt.Println(rec.Dispatches())
//
//	// Replay to a GPU backend
//	err := rec.Playback(gpuStream)
package recording

import (
	"fmt"

	"github.com/gogpu/irradiance/gpucore"
)

// CommandType identifies the type of a command.
type CommandType uint8

const (
	// State commands
	CmdSetLayout     CommandType = iota // Activate a pipeline layout
	CmdSetPipeline                      // Activate a compute pipeline
	CmdSetBindingSet                    // Bind a binding set to a group
	CmdSetConstants                     // Set inline constants of a group

	// Work commands
	CmdBarrier             // Transition texture levels
	CmdDispatch            // Run the active pipeline
	CmdCopyBufferToTexture // Upload one level from a buffer
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdSetLayout:           "SetLayout",
	CmdSetPipeline:         "SetPipeline",
	CmdSetBindingSet:       "SetBindingSet",
	CmdSetConstants:        "SetConstants",
	CmdBarrier:             "Barrier",
	CmdDispatch:            "Dispatch",
	CmdCopyBufferToTexture: "CopyBufferToTexture",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// --------------------------------------------------------------------------
// State Commands
// --------------------------------------------------------------------------

// SetLayoutCommand activates a pipeline layout.
type SetLayoutCommand struct {
	Layout gpucore.LayoutID
}

// Type implements Command.
func (SetLayoutCommand) Type() CommandType { return CmdSetLayout }

// SetPipelineCommand activates a compute pipeline.
type SetPipelineCommand struct {
	Pipeline gpucore.PipelineID
}

// Type implements Command.
func (SetPipelineCommand) Type() CommandType { return CmdSetPipeline }

// SetBindingSetCommand binds a binding set to a group of the active layout.
type SetBindingSetCommand struct {
	Group uint32
	Set   gpucore.BindingSetID
}

// Type implements Command.
func (SetBindingSetCommand) Type() CommandType { return CmdSetBindingSet }

// SetConstantsCommand sets the inline constants of a group.
type SetConstantsCommand struct {
	Group uint32
	// Data is a private copy of the constant bytes.
	Data []byte
}

// Type implements Command.
func (SetConstantsCommand) Type() CommandType { return CmdSetConstants }

// --------------------------------------------------------------------------
// Work Commands
// --------------------------------------------------------------------------

// BarrierCommand transitions texture levels.
type BarrierCommand struct {
	Barriers []gpucore.Barrier
}

// Type implements Command.
func (BarrierCommand) Type() CommandType { return CmdBarrier }

// DispatchCommand runs the active pipeline over a grid of workgroups.
type DispatchCommand struct {
	X, Y, Z uint32
}

// Type implements Command.
func (DispatchCommand) Type() CommandType { return CmdDispatch }

// Invocations returns the number of workgroups dispatched.
func (c DispatchCommand) Invocations() uint64 {
	return uint64(c.X) * uint64(c.Y) * uint64(c.Z)
}

// CopyBufferToTextureCommand uploads all six faces of one level.
type CopyBufferToTextureCommand struct {
	Buffer  gpucore.BufferID
	Offset  uint64
	Texture gpucore.TextureID
	Level   int
}

// Type implements Command.
func (CopyBufferToTextureCommand) Type() CommandType { return CmdCopyBufferToTexture }

// Describe formats a command on one line for logs and plans.
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case SetLayoutCommand:
		return fmt.Sprintf("SetLayout layout%d", c.Layout)
	case SetPipelineCommand:
		return fmt.Sprintf("SetPipeline pipeline%d", c.Pipeline)
	case SetBindingSetCommand:
		return fmt.Sprintf("SetBindingSet group=%d set%d", c.Group, c.Set)
	case SetConstantsCommand:
		return fmt.Sprintf("SetConstants group=%d %d bytes", c.Group, len(c.Data))
	case BarrierCommand:
		return fmt.Sprintf("Barrier %v", c.Barriers)
	case DispatchCommand:
		return fmt.Sprintf("Dispatch %dx%dx%d", c.X, c.Y, c.Z)
	case CopyBufferToTextureCommand:
		return fmt.Sprintf("CopyBufferToTexture buf%d+%d -> tex%d[%d]", c.Buffer, c.Offset, c.Texture, c.Level)
	default:
		return cmd.Type().String()
	}
}
