package session

import "github.com/displayhal/composerconf/internal/hal"

// CommandWriter accumulates batched lifecycle records keyed by
// (display, layer) until the caller flushes them with ExecuteCommands. The
// session only appends; it never decides flush timing. Records for the same
// (display, layer) pair merge into one command, with the last lifecycle type
// winning. Not safe for concurrent use.
type CommandWriter struct {
	commands []hal.DisplayCommand
}

// NewCommandWriter returns an empty pending command buffer.
func NewCommandWriter() *CommandWriter {
	return &CommandWriter{}
}

func (w *CommandWriter) layerCommand(display hal.DisplayID, layer hal.LayerID) *hal.LayerCommand {
	var dc *hal.DisplayCommand
	for i := range w.commands {
		if w.commands[i].Display == display {
			dc = &w.commands[i]
			break
		}
	}
	if dc == nil {
		w.commands = append(w.commands, hal.DisplayCommand{Display: display})
		dc = &w.commands[len(w.commands)-1]
	}
	for i := range dc.LayerCommands {
		if dc.LayerCommands[i].Layer == layer {
			return &dc.LayerCommands[i]
		}
	}
	dc.LayerCommands = append(dc.LayerCommands, hal.LayerCommand{Layer: layer})
	return &dc.LayerCommands[len(dc.LayerCommands)-1]
}

// SetLayerLifecycleBatchCommandType appends a lifecycle record for the layer.
func (w *CommandWriter) SetLayerLifecycleBatchCommandType(display hal.DisplayID, layer hal.LayerID, t hal.LayerLifecycleBatchCommandType) {
	w.layerCommand(display, layer).LifecycleBatchType = t
}

// SetNewBufferSlotCount appends a buffer-slot-count record for the layer.
func (w *CommandWriter) SetNewBufferSlotCount(display hal.DisplayID, layer hal.LayerID, count int32) {
	w.layerCommand(display, layer).NewBufferSlotCount = count
}

// DropLayerCommand removes the pending record for the layer, if any. Display
// commands left without layer records are removed too.
func (w *CommandWriter) DropLayerCommand(display hal.DisplayID, layer hal.LayerID) {
	for i := range w.commands {
		if w.commands[i].Display != display {
			continue
		}
		lcs := w.commands[i].LayerCommands
		for j := range lcs {
			if lcs[j].Layer == layer {
				w.commands[i].LayerCommands = append(lcs[:j], lcs[j+1:]...)
				break
			}
		}
		if len(w.commands[i].LayerCommands) == 0 {
			w.commands = append(w.commands[:i], w.commands[i+1:]...)
		}
		return
	}
}

// Commands returns the pending commands in append order. The returned slice
// aliases the buffer; call Clear after a successful flush.
func (w *CommandWriter) Commands() []hal.DisplayCommand {
	return w.commands
}

// Empty reports whether no records are pending.
func (w *CommandWriter) Empty() bool {
	return len(w.commands) == 0
}

// Clear drops all pending records.
func (w *CommandWriter) Clear() {
	w.commands = nil
}
