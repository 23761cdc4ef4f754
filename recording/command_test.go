package recording

import (
	"strings"
	"testing"

	"github.com/gogpu/irradiance/gpucore"
)

func TestCommandType_String(t *testing.T) {
	tests := []struct {
		ct   CommandType
		want string
	}{
		{CmdSetLayout, "SetLayout"},
		{CmdSetPipeline, "SetPipeline"},
		{CmdSetBindingSet, "SetBindingSet"},
		{CmdSetConstants, "SetConstants"},
		{CmdBarrier, "Barrier"},
		{CmdDispatch, "Dispatch"},
		{CmdCopyBufferToTexture, "CopyBufferToTexture"},
		{CommandType(254), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ct.String(); got != tt.want {
				t.Errorf("CommandType.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandInterface(t *testing.T) {
	commands := []Command{
		SetLayoutCommand{Layout: 1},
		SetPipelineCommand{Pipeline: 2},
		SetBindingSetCommand{Group: 0, Set: 3},
		SetConstantsCommand{Group: 1, Data: []byte{0, 0, 0, 0}},
		BarrierCommand{Barriers: []gpucore.Barrier{{Texture: 4, Level: 0, After: gpucore.StateShaderRead}}},
		DispatchCommand{X: 1, Y: 1, Z: 6},
		CopyBufferToTextureCommand{Buffer: 5, Texture: 4},
	}

	for i, cmd := range commands {
		if got := cmd.Type(); got != CommandType(i) {
			t.Errorf("commands[%d].Type() = %v, want %v", i, got, CommandType(i))
		}
		if !strings.HasPrefix(Describe(cmd), cmd.Type().String()) {
			t.Errorf("Describe(%T) = %q, want prefix %q", cmd, Describe(cmd), cmd.Type())
		}
	}
}

func TestDispatchInvocations(t *testing.T) {
	c := DispatchCommand{X: 64, Y: 64, Z: 6}
	if got := c.Invocations(); got != 64*64*6 {
		t.Errorf("Invocations() = %d, want %d", got, 64*64*6)
	}
}
