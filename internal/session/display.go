package session

import "github.com/displayhal/composerconf/internal/hal"

// DisplayConfig is the timing description of one display config as the
// harness tracks it. Width and height are resolved separately and copied
// onto the Display when the config becomes active.
type DisplayConfig struct {
	VsyncPeriodNs int32
	ConfigGroup   int32
	Vrr           *hal.VrrConfig
}

// Display aggregates a display id with its resolved dimensions and config
// set. The active config's width and height are mirrored onto the Display
// whenever the active config changes.
type Display struct {
	id      hal.DisplayID
	width   int32
	height  int32
	configs map[hal.ConfigID]DisplayConfig
}

// NewDisplay returns a Display with no configs and zero dimensions.
func NewDisplay(id hal.DisplayID) *Display {
	return &Display{id: id, configs: make(map[hal.ConfigID]DisplayConfig)}
}

// ID returns the display id.
func (d *Display) ID() hal.DisplayID {
	return d.id
}

// Dimensions returns the width and height of the active config.
func (d *Display) Dimensions() (width, height int32) {
	return d.width, d.height
}

// SetDimensions records the dimensions of the active config.
func (d *Display) SetDimensions(width, height int32) {
	d.width = width
	d.height = height
}

// AddConfig records one config. A later add with the same id overwrites.
func (d *Display) AddConfig(config hal.ConfigID, dc DisplayConfig) {
	d.configs[config] = dc
}

// Config returns one config by id.
func (d *Display) Config(config hal.ConfigID) (DisplayConfig, bool) {
	dc, ok := d.configs[config]
	return dc, ok
}

// Configs returns a copy of the config map.
func (d *Display) Configs() map[hal.ConfigID]DisplayConfig {
	configs := make(map[hal.ConfigID]DisplayConfig, len(d.configs))
	for id, dc := range d.configs {
		configs[id] = dc
	}
	return configs
}
