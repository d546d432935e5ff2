// Package halsim provides an in-process composition service used by the CLI
// self-check mode and the test suite. It implements the full service
// interface with deterministic canned data and enforces the same id
// bookkeeping rules a real service would.
package halsim

import (
	"fmt"
	"io"
	"sync"

	"github.com/displayhal/composerconf/internal/hal"
)

// Options shapes the simulated device.
type Options struct {
	DisplayCount       int
	ConfigsPerDisplay  int
	InterfaceVersion   int32
	BatchedLifecycle   bool
	MaxVirtualDisplays int
}

// DefaultOptions is a single 2-config display on a version 3 service with
// batched layer lifecycle.
var DefaultOptions = Options{
	DisplayCount:       1,
	ConfigsPerDisplay:  2,
	InterfaceVersion:   3,
	BatchedLifecycle:   true,
	MaxVirtualDisplays: 2,
}

type simDisplay struct {
	virtual     bool
	name        string
	configs     map[hal.ConfigID]hal.DisplayConfiguration
	active      hal.ConfigID
	layers      map[hal.LayerID]int32 // slot count per layer
	powerMode        hal.PowerMode
	vsync            bool
	colorMode        hal.ColorMode
	intent           hal.RenderIntent
	contentType      hal.ContentType
	bootConfig       *hal.ConfigID
	sampling         bool
	idleTimerMs      int32
	refreshRateDebug bool
}

// Service is the simulated composition service. Safe for concurrent use.
type Service struct {
	mu       sync.Mutex
	opts     Options
	displays map[hal.DisplayID]*simDisplay
	handler  hal.EventHandler

	nextVirtualDisplay hal.DisplayID
	nextLayer          hal.LayerID
	virtualCount       int
}

// New builds a service with the given shape. Built-in displays get ids
// starting at 1; virtual displays are assigned ids from 1000 up.
func New(opts Options) *Service {
	if opts.DisplayCount <= 0 {
		opts.DisplayCount = DefaultOptions.DisplayCount
	}
	if opts.ConfigsPerDisplay <= 0 {
		opts.ConfigsPerDisplay = DefaultOptions.ConfigsPerDisplay
	}
	if opts.InterfaceVersion <= 0 {
		opts.InterfaceVersion = DefaultOptions.InterfaceVersion
	}
	if opts.MaxVirtualDisplays <= 0 {
		opts.MaxVirtualDisplays = DefaultOptions.MaxVirtualDisplays
	}

	s := &Service{
		opts:               opts,
		displays:           make(map[hal.DisplayID]*simDisplay),
		nextVirtualDisplay: 1000,
		nextLayer:          1,
	}
	for i := 0; i < opts.DisplayCount; i++ {
		id := hal.DisplayID(i + 1)
		s.displays[id] = builtinDisplay(i, opts.ConfigsPerDisplay)
	}
	return s
}

func builtinDisplay(index, configCount int) *simDisplay {
	d := &simDisplay{
		name:      fmt.Sprintf("builtin-%d", index),
		configs:   make(map[hal.ConfigID]hal.DisplayConfiguration),
		layers:    make(map[hal.LayerID]int32),
		powerMode: hal.PowerModeOn,
		colorMode: hal.ColorModeNative,
	}
	for j := 0; j < configCount; j++ {
		config := hal.DisplayConfiguration{
			ConfigID:      hal.ConfigID(j),
			Width:         1920,
			Height:        1080,
			DpiX:          320,
			DpiY:          320,
			ConfigGroup:   0,
			VsyncPeriodNs: int32(16_666_666 / (j + 1)),
		}
		if j >= 2 {
			// Later configs model a lower resolution in a separate group.
			config.Width = 1280
			config.Height = 720
			config.ConfigGroup = 1
			config.VsyncPeriodNs = 16_666_666
		}
		d.configs[config.ConfigID] = config
	}
	return d
}

// Capabilities implements hal.Service.
func (s *Service) Capabilities() ([]hal.Capability, error) {
	caps := []hal.Capability{hal.CapabilityBootDisplayConfig}
	if s.opts.BatchedLifecycle {
		caps = append(caps, hal.CapabilityLayerLifecycleBatch)
	}
	return caps, nil
}

// CreateClient implements hal.Service. The simulator supports any number of
// sessions but they all share the one device state.
func (s *Service) CreateClient() (hal.Client, error) {
	return &Client{service: s}, nil
}

// Dump implements hal.Service.
func (s *Service) Dump(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(w, "simulated composition service, version %d\n", s.opts.InterfaceVersion)
	for id, d := range s.displays {
		kind := "physical"
		if d.virtual {
			kind = "virtual"
		}
		fmt.Fprintf(w, "display %d (%s, %s): %d configs, %d layers, active config %d\n",
			id, d.name, kind, len(d.configs), len(d.layers), d.active)
	}
	return nil
}

// Hotplug delivers a hotplug notification to the registered handler.
func (s *Service) Hotplug(display hal.DisplayID, connected bool) {
	if h := s.currentHandler(); h != nil {
		h.OnHotplug(display, connected)
	}
}

// Vsync delivers a vsync tick to the registered handler.
func (s *Service) Vsync(display hal.DisplayID, timestampNs int64, periodNs int32) {
	if h := s.currentHandler(); h != nil {
		h.OnVsync(display, timestampNs, periodNs)
	}
}

// Refresh delivers a refresh request to the registered handler.
func (s *Service) Refresh(display hal.DisplayID) {
	if h := s.currentHandler(); h != nil {
		h.OnRefresh(display)
	}
}

// SeamlessPossible delivers a seamless-possible hint.
func (s *Service) SeamlessPossible(display hal.DisplayID) {
	if h := s.currentHandler(); h != nil {
		h.OnSeamlessPossible(display)
	}
}

// VsyncIdle delivers a vsync-idle notification.
func (s *Service) VsyncIdle(display hal.DisplayID) {
	if h := s.currentHandler(); h != nil {
		h.OnVsyncIdle(display)
	}
}

// RefreshRateDebug delivers refresh-rate debug data.
func (s *Service) RefreshRateDebug(data hal.RefreshRateChangedDebugData) {
	if h := s.currentHandler(); h != nil {
		h.OnRefreshRateChangedDebug(data)
	}
}

func (s *Service) currentHandler() hal.EventHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

func (s *Service) display(id hal.DisplayID) (*simDisplay, error) {
	d, ok := s.displays[id]
	if !ok {
		return nil, fmt.Errorf("display %d: %w", id, hal.ErrBadDisplay)
	}
	return d, nil
}
