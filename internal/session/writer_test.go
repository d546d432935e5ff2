package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/displayhal/composerconf/internal/hal"
)

func TestCommandWriter_Append(t *testing.T) {
	w := NewCommandWriter()
	assert.True(t, w.Empty())

	w.SetLayerLifecycleBatchCommandType(5, 1, hal.LayerLifecycleCreate)
	w.SetNewBufferSlotCount(5, 1, 3)
	w.SetLayerLifecycleBatchCommandType(5, 2, hal.LayerLifecycleCreate)
	w.SetLayerLifecycleBatchCommandType(6, 1, hal.LayerLifecycleDestroy)

	commands := w.Commands()
	require.Len(t, commands, 2)

	assert.Equal(t, hal.DisplayID(5), commands[0].Display)
	require.Len(t, commands[0].LayerCommands, 2)
	assert.Equal(t, hal.LayerID(1), commands[0].LayerCommands[0].Layer)
	assert.Equal(t, hal.LayerLifecycleCreate, commands[0].LayerCommands[0].LifecycleBatchType)
	assert.Equal(t, int32(3), commands[0].LayerCommands[0].NewBufferSlotCount)
	assert.Equal(t, hal.LayerID(2), commands[0].LayerCommands[1].Layer)

	assert.Equal(t, hal.DisplayID(6), commands[1].Display)
	require.Len(t, commands[1].LayerCommands, 1)
	assert.Equal(t, hal.LayerLifecycleDestroy, commands[1].LayerCommands[0].LifecycleBatchType)
}

func TestCommandWriter_MergesSameLayer(t *testing.T) {
	w := NewCommandWriter()
	w.SetLayerLifecycleBatchCommandType(1, 1, hal.LayerLifecycleCreate)
	w.SetLayerLifecycleBatchCommandType(1, 1, hal.LayerLifecycleDestroy)

	commands := w.Commands()
	require.Len(t, commands, 1)
	require.Len(t, commands[0].LayerCommands, 1)
	// Last lifecycle record wins.
	assert.Equal(t, hal.LayerLifecycleDestroy, commands[0].LayerCommands[0].LifecycleBatchType)
}

func TestCommandWriter_DropLayerCommand(t *testing.T) {
	w := NewCommandWriter()
	w.SetLayerLifecycleBatchCommandType(1, 1, hal.LayerLifecycleCreate)
	w.SetNewBufferSlotCount(1, 1, 3)
	w.SetLayerLifecycleBatchCommandType(1, 2, hal.LayerLifecycleCreate)

	w.DropLayerCommand(1, 1)
	commands := w.Commands()
	require.Len(t, commands, 1)
	require.Len(t, commands[0].LayerCommands, 1)
	assert.Equal(t, hal.LayerID(2), commands[0].LayerCommands[0].Layer)

	// Dropping the last layer record removes the display command too.
	w.DropLayerCommand(1, 2)
	assert.True(t, w.Empty())

	// Unknown records are a no-op.
	w.DropLayerCommand(9, 9)
	assert.True(t, w.Empty())
}

func TestCommandWriter_Clear(t *testing.T) {
	w := NewCommandWriter()
	w.SetLayerLifecycleBatchCommandType(1, 1, hal.LayerLifecycleCreate)
	require.False(t, w.Empty())

	w.Clear()
	assert.True(t, w.Empty())
	assert.Empty(t, w.Commands())
}
