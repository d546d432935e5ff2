// Package session implements the client-side bookkeeping a conformance
// harness needs to create, exercise and tear down remote display and layer
// resources: capability negotiation, resource ownership tracking, command
// batching, display discovery and ordered teardown.
package session

import (
	"fmt"
	"sort"

	"github.com/displayhal/composerconf/internal/hal"
)

// Duplicate-resource errors signal a bookkeeping violation: the same id was
// inserted twice. They wrap the matching service sentinel so callers can
// classify them alongside remote failures.
var (
	ErrDuplicateDisplay = fmt.Errorf("duplicate display: %w", hal.ErrBadDisplay)
	ErrDuplicateLayer   = fmt.Errorf("duplicate layer: %w", hal.ErrBadLayer)
)

// LayerState distinguishes ownership that the service has confirmed from
// ownership registered optimistically ahead of a batch flush.
type LayerState int

const (
	// LayerConfirmed means the service acknowledged the layer synchronously.
	LayerConfirmed LayerState = iota
	// LayerPending means the create record sits in the pending command
	// buffer; the service has not seen it yet.
	LayerPending
)

func (s LayerState) String() string {
	if s == LayerPending {
		return "pending"
	}
	return "confirmed"
}

type displayResource struct {
	isVirtual bool
	layers    map[hal.LayerID]LayerState
}

// Registry is the ownership table for displays and their layers. It is the
// single source of truth for what the session owns; it never consults the
// service. Not safe for concurrent use: the session drives all mutation from
// one thread.
type Registry struct {
	displays map[hal.DisplayID]*displayResource
}

// NewRegistry returns an empty ownership table.
func NewRegistry() *Registry {
	return &Registry{displays: make(map[hal.DisplayID]*displayResource)}
}

// AddDisplay inserts a display entry with no layers. Inserting an id that is
// already present fails with ErrDuplicateDisplay.
func (r *Registry) AddDisplay(display hal.DisplayID, isVirtual bool) error {
	if _, ok := r.displays[display]; ok {
		return fmt.Errorf("display %d: %w", display, ErrDuplicateDisplay)
	}
	r.displays[display] = &displayResource{
		isVirtual: isVirtual,
		layers:    make(map[hal.LayerID]LayerState),
	}
	return nil
}

// RemoveDisplay drops a display entry and all layer ownership under it.
// Removing an absent id is a no-op.
func (r *Registry) RemoveDisplay(display hal.DisplayID) {
	delete(r.displays, display)
}

// AddLayer records layer ownership under a display. If the display is
// unknown a non-virtual placeholder entry is created first, since discovery
// order is not guaranteed relative to layer creation. A layer id already
// present under the display fails with ErrDuplicateLayer.
func (r *Registry) AddLayer(display hal.DisplayID, layer hal.LayerID, state LayerState) error {
	resource, ok := r.displays[display]
	if !ok {
		resource = &displayResource{layers: make(map[hal.LayerID]LayerState)}
		r.displays[display] = resource
	}
	if _, ok := resource.layers[layer]; ok {
		return fmt.Errorf("layer %d on display %d: %w", layer, display, ErrDuplicateLayer)
	}
	resource.layers[layer] = state
	return nil
}

// RemoveLayer drops layer ownership. A no-op if the display or layer is
// absent.
func (r *Registry) RemoveLayer(display hal.DisplayID, layer hal.LayerID) {
	if resource, ok := r.displays[display]; ok {
		delete(resource.layers, layer)
	}
}

// ConfirmLayer promotes a pending layer to confirmed. A no-op if the display
// or layer is absent.
func (r *Registry) ConfirmLayer(display hal.DisplayID, layer hal.LayerID) {
	if resource, ok := r.displays[display]; ok {
		if _, ok := resource.layers[layer]; ok {
			resource.layers[layer] = LayerConfirmed
		}
	}
}

// HasDisplay reports whether the display id is tracked.
func (r *Registry) HasDisplay(display hal.DisplayID) bool {
	_, ok := r.displays[display]
	return ok
}

// IsVirtual reports whether a tracked display was registered as virtual.
// False for unknown displays.
func (r *Registry) IsVirtual(display hal.DisplayID) bool {
	resource, ok := r.displays[display]
	return ok && resource.isVirtual
}

// LayerState returns the ownership state of a layer.
func (r *Registry) LayerState(display hal.DisplayID, layer hal.LayerID) (LayerState, bool) {
	resource, ok := r.displays[display]
	if !ok {
		return 0, false
	}
	state, ok := resource.layers[layer]
	return state, ok
}

// Displays returns the tracked display ids in ascending order.
func (r *Registry) Displays() []hal.DisplayID {
	ids := make([]hal.DisplayID, 0, len(r.displays))
	for id := range r.displays {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Layers returns the layer ids owned by a display in ascending order. Nil
// for an unknown display.
func (r *Registry) Layers(display hal.DisplayID) []hal.LayerID {
	resource, ok := r.displays[display]
	if !ok {
		return nil
	}
	ids := make([]hal.LayerID, 0, len(resource.layers))
	for id := range resource.layers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PendingLayers returns every (display, layer) pair currently in the pending
// state, grouped by display in ascending order.
func (r *Registry) PendingLayers() map[hal.DisplayID][]hal.LayerID {
	pending := make(map[hal.DisplayID][]hal.LayerID)
	for display, resource := range r.displays {
		for layer, state := range resource.layers {
			if state == LayerPending {
				pending[display] = append(pending[display], layer)
			}
		}
	}
	for _, layers := range pending {
		sort.Slice(layers, func(i, j int) bool { return layers[i] < layers[j] })
	}
	return pending
}

// LayerCount returns the total number of owned layers across all displays.
func (r *Registry) LayerCount() int {
	n := 0
	for _, resource := range r.displays {
		n += len(resource.layers)
	}
	return n
}
