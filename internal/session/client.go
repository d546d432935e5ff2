package session

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/displayhal/composerconf/internal/hal"
	"github.com/displayhal/composerconf/internal/logger"
)

// extendedConfigQueryMinVersion is the first service version exposing the
// one-shot display configuration query. Protocol constant.
const extendedConfigQueryMinVersion = 3

// defaultInterfaceVersion is assumed before the service could be asked.
const defaultInterfaceVersion = 1

// Options tunes a session. Zero values select the defaults below.
type Options struct {
	// PollInterval is the delay between polls of the hotplug record during
	// discovery. Default 5ms.
	PollInterval time.Duration
	// DiscoveryTimeout bounds how long discovery waits for the first
	// display. Zero means no bound beyond the caller's context.
	DiscoveryTimeout time.Duration
	// MaxFrameIntervalNs is passed to the extended configuration query.
	MaxFrameIntervalNs int32
}

const defaultPollInterval = 5 * time.Millisecond

// Session is one conformance-test session against a composition service.
// All registry mutation and remote calls run on the caller's goroutine; the
// only concurrent activity is event delivery into the Collector.
type Session struct {
	service  hal.Service
	client   hal.Client
	events   *Collector
	registry *Registry
	writer   *CommandWriter

	// Negotiated once at construction, immutable afterward.
	version          int32
	batchedLifecycle bool
	configQuery      configQuerier

	nextLayer hal.LayerID

	pollInterval     time.Duration
	discoveryTimeout time.Duration
}

// New negotiates capabilities with the service and returns a ready session.
// Any failure here is a setup failure: there is nothing to retry.
func New(service hal.Service, opts Options) (*Session, error) {
	capabilities, err := service.Capabilities()
	if err != nil {
		return nil, fmt.Errorf("capability query failed: %w", err)
	}
	batched := false
	for _, capability := range capabilities {
		if capability == hal.CapabilityLayerLifecycleBatch {
			batched = true
			break
		}
	}

	client, err := service.CreateClient()
	if err != nil {
		return nil, fmt.Errorf("failed to create service client: %w", err)
	}

	events := NewCollector()
	if err := client.RegisterCallback(events); err != nil {
		return nil, fmt.Errorf("failed to register callback: %w", err)
	}

	// Services predating the version query are treated as version 1.
	version := int32(defaultInterfaceVersion)
	if v, err := client.InterfaceVersion(); err == nil {
		version = v
	} else {
		logger.Warnf("interface version query failed, assuming version %d: %v", defaultInterfaceVersion, err)
	}

	s := &Session{
		service:          service,
		client:           client,
		events:           events,
		registry:         NewRegistry(),
		writer:           NewCommandWriter(),
		version:          version,
		batchedLifecycle: batched,
		nextLayer:        1,
		pollInterval:     opts.PollInterval,
		discoveryTimeout: opts.DiscoveryTimeout,
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if version >= extendedConfigQueryMinVersion {
		s.configQuery = extendedQuery{maxFrameIntervalNs: opts.MaxFrameIntervalNs}
	} else {
		s.configQuery = legacyQuery{}
	}

	logger.Debugf("session ready: version=%d batched-lifecycle=%v", version, batched)
	return s, nil
}

// InterfaceVersion returns the negotiated service version.
func (s *Session) InterfaceVersion() int32 {
	return s.version
}

// SupportsBatchedLayerLifecycle reports whether layer lifecycle operations
// go through the pending command buffer.
func (s *Session) SupportsBatchedLayerLifecycle() bool {
	return s.batchedLifecycle
}

// Events returns the session's event collector.
func (s *Session) Events() *Collector {
	return s.events
}

// Writer returns the pending command buffer.
func (s *Session) Writer() *CommandWriter {
	return s.writer
}

// Registry returns the ownership table. Exposed for inspection; mutation
// belongs to the session.
func (s *Session) Registry() *Registry {
	return s.registry
}

// CreateVirtualDisplay creates a virtual display remotely and registers
// ownership.
func (s *Session) CreateVirtualDisplay(width, height int32, format hal.PixelFormat, bufferSlotCount int32) (hal.VirtualDisplay, error) {
	vd, err := s.client.CreateVirtualDisplay(width, height, format, bufferSlotCount)
	if err != nil {
		return vd, err
	}
	if err := s.registry.AddDisplay(vd.Display, true); err != nil {
		return vd, err
	}
	return vd, nil
}

// DestroyVirtualDisplay destroys a virtual display remotely; ownership is
// dropped only after the remote call succeeds.
func (s *Session) DestroyVirtualDisplay(display hal.DisplayID) error {
	if err := s.client.DestroyVirtualDisplay(display); err != nil {
		return err
	}
	s.registry.RemoveDisplay(display)
	return nil
}

// CreateLayer creates a layer and records ownership. In batched mode the id
// comes from the session's monotonic counter, create and slot-count records
// go to the pending buffer, and ownership is registered as pending; the
// remote side sees nothing until the caller flushes. In unbatched mode the
// remote call runs synchronously and a failure registers nothing.
func (s *Session) CreateLayer(display hal.DisplayID, bufferSlotCount int32) (hal.LayerID, error) {
	if s.batchedLifecycle {
		layer := s.nextLayer
		s.nextLayer++
		s.writer.SetLayerLifecycleBatchCommandType(display, layer, hal.LayerLifecycleCreate)
		s.writer.SetNewBufferSlotCount(display, layer, bufferSlotCount)
		if err := s.registry.AddLayer(display, layer, LayerPending); err != nil {
			return layer, err
		}
		return layer, nil
	}

	layer, err := s.client.CreateLayer(display, bufferSlotCount)
	if err != nil {
		return 0, err
	}
	if err := s.registry.AddLayer(display, layer, LayerConfirmed); err != nil {
		return layer, err
	}
	return layer, nil
}

// DestroyLayer destroys a layer. Batched mode appends a destroy record and
// drops ownership immediately; destroying a layer whose create record was
// never flushed cancels the create instead, since the remote side has not
// seen the layer. Unbatched mode leaves the registry untouched if the remote
// call fails, so the caller can retry or inspect.
func (s *Session) DestroyLayer(display hal.DisplayID, layer hal.LayerID) error {
	if s.batchedLifecycle {
		if state, ok := s.registry.LayerState(display, layer); ok && state == LayerPending {
			s.writer.DropLayerCommand(display, layer)
		} else {
			s.writer.SetLayerLifecycleBatchCommandType(display, layer, hal.LayerLifecycleDestroy)
		}
	} else {
		if err := s.client.DestroyLayer(display, layer); err != nil {
			return err
		}
	}
	s.registry.RemoveLayer(display, layer)
	return nil
}

// Flush submits the pending command buffer. The buffer is cleared only when
// the transport call succeeds; per-command failures are reported in the
// result payloads for the caller to inspect, together with ConfirmPending
// or EvictPending.
func (s *Session) Flush() ([]hal.CommandResultPayload, error) {
	if s.writer.Empty() {
		return nil, nil
	}
	results, err := s.client.ExecuteCommands(s.writer.Commands())
	if err != nil {
		return results, err
	}
	s.writer.Clear()
	return results, nil
}

// ConfirmPending promotes every pending layer to confirmed. The caller
// invokes this after inspecting a successful flush.
func (s *Session) ConfirmPending() {
	for display, layers := range s.registry.PendingLayers() {
		for _, layer := range layers {
			s.registry.ConfirmLayer(display, layer)
		}
	}
}

// EvictPending drops every pending layer from the registry. The caller
// invokes this when flush results show the batch was rejected.
func (s *Session) EvictPending() {
	for display, layers := range s.registry.PendingLayers() {
		for _, layer := range layers {
			s.registry.RemoveLayer(display, layer)
		}
	}
}

// Displays polls the hotplug record until at least one display is reported,
// then resolves each display's config set and active config through the
// version-appropriate query path. Partial results are returned alongside the
// error when resolution fails mid-way. Each resolved display registers as
// physical.
func (s *Session) Displays(ctx context.Context) ([]*Display, error) {
	var deadline <-chan time.Time
	if s.discoveryTimeout > 0 {
		timer := time.NewTimer(s.discoveryTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		// A short pause lets late hotplug notifications for built-in
		// displays arrive before the first poll.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("no display reported within %v", s.discoveryTimeout)
		case <-time.After(s.pollInterval):
		}

		ids := s.events.Displays()
		if len(ids) == 0 {
			continue
		}

		displays := make([]*Display, 0, len(ids))
		for _, id := range ids {
			display := NewDisplay(id)
			if err := s.configQuery.populate(s, display); err != nil {
				return displays, fmt.Errorf("display %d: resolving configs: %w", id, err)
			}
			active, err := s.client.ActiveConfig(id)
			if err != nil {
				return displays, fmt.Errorf("display %d: resolving active config: %w", id, err)
			}
			if err := s.updateDisplayProperties(display, active); err != nil {
				return displays, fmt.Errorf("display %d: %w", id, err)
			}
			displays = append(displays, display)
			if err := s.registry.AddDisplay(id, false); err != nil {
				logger.Debugf("display %d already tracked", id)
			}
		}
		return displays, nil
	}
}

// ActiveConfig returns the display's currently active config id.
func (s *Session) ActiveConfig(display hal.DisplayID) (hal.ConfigID, error) {
	return s.client.ActiveConfig(display)
}

// SetActiveConfig switches the active config and refreshes the display's
// dimensions from the new config.
func (s *Session) SetActiveConfig(display *Display, config hal.ConfigID) error {
	if err := s.client.SetActiveConfig(display.ID(), config); err != nil {
		return err
	}
	return s.updateDisplayProperties(display, config)
}

// SetActiveConfigWithConstraints switches the active config under timing
// constraints, returning the change timeline. The vsync-period-change event
// window opens before the call so the resulting notification is not counted
// as anomalous.
func (s *Session) SetActiveConfigWithConstraints(display *Display, config hal.ConfigID, constraints hal.VsyncPeriodChangeConstraints) (hal.VsyncPeriodChangeTimeline, error) {
	s.events.ExpectVsyncPeriodChange()
	timeline, err := s.client.SetActiveConfigWithConstraints(display.ID(), config, constraints)
	if err != nil {
		// A failed change request owes no timeline.
		s.events.CancelVsyncPeriodChange()
		return timeline, err
	}
	return timeline, s.updateDisplayProperties(display, config)
}

// SetPeakRefreshRateConfig switches to the fastest config in the active
// config's group.
func (s *Session) SetPeakRefreshRateConfig(display *Display) error {
	active, err := s.client.ActiveConfig(display.ID())
	if err != nil {
		return err
	}
	peakConfig := active
	peak, ok := display.Config(active)
	if !ok {
		return fmt.Errorf("active config %d unknown on display %d: %w", active, display.ID(), hal.ErrBadConfig)
	}
	for config, dc := range display.Configs() {
		if dc.ConfigGroup == peak.ConfigGroup && dc.VsyncPeriodNs < peak.VsyncPeriodNs {
			peak = dc
			peakConfig = config
		}
	}
	return s.SetActiveConfig(display, peakConfig)
}

// updateDisplayProperties copies the width and height of the given config
// onto the display record, using the version-appropriate query path.
func (s *Session) updateDisplayProperties(display *Display, config hal.ConfigID) error {
	width, height, err := s.configQuery.dimensions(s, display.ID(), config)
	if err != nil {
		return fmt.Errorf("resolving dimensions of config %d: %w", config, err)
	}
	display.SetDimensions(width, height)
	return nil
}

// InvalidDisplayID returns an id no display currently uses, counting down
// from the maximum. The display set is assumed to be nowhere near full.
func (s *Session) InvalidDisplayID() hal.DisplayID {
	known := s.events.Displays()
	inUse := func(id hal.DisplayID) bool {
		for _, d := range known {
			if d == id {
				return true
			}
		}
		return false
	}
	for id := hal.DisplayID(math.MaxInt64); id > 0; id-- {
		if !inUse(id) {
			return id
		}
	}
	return 0
}

// TearDown validates that no anomalous events arrived and then drains the
// registry: all layers and virtual displays are destroyed, physical displays
// survive with empty layer sets. The anomaly check is diagnostic and never
// blocks the drain; a failed destroy aborts the drain and is fatal.
func (s *Session) TearDown() error {
	anomalies := s.events.Anomalies()
	if !anomalies.Zero() {
		logger.Errorf("unexpected events observed: %+v", anomalies)
	}

	if err := s.destroyAllResources(); err != nil {
		return err
	}
	if !anomalies.Zero() {
		return fmt.Errorf("unexpected events observed during session: %+v", anomalies)
	}
	return nil
}

func (s *Session) destroyAllResources() error {
	var physical []hal.DisplayID
	for {
		displays := s.registry.Displays()
		if len(displays) == 0 {
			break
		}
		display := displays[0]

		// Layers go first: destroying a display that still owns layers is
		// not a supported order.
		for _, layer := range s.registry.Layers(display) {
			if err := s.DestroyLayer(display, layer); err != nil {
				return fmt.Errorf("teardown: destroying layer %d on display %d: %w", layer, display, err)
			}
		}

		if s.registry.IsVirtual(display) {
			// Recorded layer destroys must reach the service before the
			// display itself goes away; destroying the display first would
			// orphan them.
			if err := s.flushDestroys(); err != nil {
				return err
			}
			if err := s.DestroyVirtualDisplay(display); err != nil {
				return fmt.Errorf("teardown: destroying virtual display %d: %w", display, err)
			}
			continue
		}

		// Physical displays are owned by the platform, not the test: set
		// them aside and restore them once the virtual ones are gone.
		s.registry.RemoveDisplay(display)
		physical = append(physical, display)
	}

	for _, display := range physical {
		if err := s.registry.AddDisplay(display, false); err != nil {
			return err
		}
	}

	// Destroys recorded for physical displays' layers are still pending.
	return s.flushDestroys()
}

// flushDestroys submits any recorded destroy records and treats a rejected
// command as a drain failure.
func (s *Session) flushDestroys() error {
	if s.writer.Empty() {
		return nil
	}
	results, err := s.Flush()
	if err != nil {
		return fmt.Errorf("teardown: submitting batched destroys: %w", err)
	}
	for _, result := range results {
		if result.Error != nil {
			return fmt.Errorf("teardown: batched destroy rejected: %w", result.Error.Err)
		}
	}
	return nil
}

// DumpDebug streams the service's debug dump into w.
func (s *Session) DumpDebug(w io.Writer) error {
	return s.service.Dump(w)
}

// SetVsyncAllowed opens or closes the collector's vsync window.
func (s *Session) SetVsyncAllowed(allowed bool) {
	s.events.SetVsyncAllowed(allowed)
}

// SetVsyncEnabled toggles vsync delivery on the service side.
func (s *Session) SetVsyncEnabled(display hal.DisplayID, enabled bool) error {
	return s.client.SetVsyncEnabled(display, enabled)
}

// SetPowerMode sets the display power state.
func (s *Session) SetPowerMode(display hal.DisplayID, mode hal.PowerMode) error {
	return s.client.SetPowerMode(display, mode)
}

// SetRefreshRateChangedCallbackDebugEnabled toggles the refresh-rate debug
// callback on the service and opens the matching collector window.
func (s *Session) SetRefreshRateChangedCallbackDebugEnabled(display hal.DisplayID, enabled bool) error {
	s.events.SetRefreshRateDebugAllowed(enabled)
	return s.client.SetRefreshRateChangedCallbackDebugEnabled(display, enabled)
}

// TakeLastVsyncPeriodChangeTimeline returns and clears the last recorded
// config-switch timeline.
func (s *Session) TakeLastVsyncPeriodChangeTimeline() *hal.VsyncPeriodChangeTimeline {
	return s.events.TakeLastVsyncPeriodChangeTimeline()
}

// TakeRefreshRateChangedDebugData returns and clears the recorded
// refresh-rate debug payloads.
func (s *Session) TakeRefreshRateChangedDebugData() []hal.RefreshRateChangedDebugData {
	return s.events.TakeRefreshRateChangedDebugData()
}

// VsyncIdleCount returns how many vsync-idle notifications arrived.
func (s *Session) VsyncIdleCount() int32 {
	return s.events.VsyncIdleCount()
}

// VsyncIdleTime returns the arrival time of the last vsync-idle
// notification.
func (s *Session) VsyncIdleTime() int64 {
	return s.events.VsyncIdleTime()
}

// configQuerier is the version-gated strategy for resolving display configs,
// chosen once at construction and never re-evaluated.
type configQuerier interface {
	// configIDs lists the display's config ids.
	configIDs(s *Session, display hal.DisplayID) ([]hal.ConfigID, error)
	// populate adds the display's full config set to the record.
	populate(s *Session, display *Display) error
	// dimensions resolves the width and height of one config.
	dimensions(s *Session, display hal.DisplayID, config hal.ConfigID) (width, height int32, err error)
}

// legacyQuery fetches bare config ids, then one attribute query per
// attribute per config. O(configs x attributes) remote calls.
type legacyQuery struct{}

func (legacyQuery) configIDs(s *Session, display hal.DisplayID) ([]hal.ConfigID, error) {
	return s.client.DisplayConfigs(display)
}

func (legacyQuery) populate(s *Session, display *Display) error {
	configs, err := s.client.DisplayConfigs(display.ID())
	if err != nil {
		return err
	}
	for _, config := range configs {
		vsyncPeriod, err := s.client.DisplayAttribute(display.ID(), config, hal.AttributeVsyncPeriod)
		if err != nil {
			return fmt.Errorf("config %d vsync period: %w", config, err)
		}
		configGroup, err := s.client.DisplayAttribute(display.ID(), config, hal.AttributeConfigGroup)
		if err != nil {
			return fmt.Errorf("config %d config group: %w", config, err)
		}
		display.AddConfig(config, DisplayConfig{
			VsyncPeriodNs: vsyncPeriod,
			ConfigGroup:   configGroup,
		})
	}
	return nil
}

func (legacyQuery) dimensions(s *Session, display hal.DisplayID, config hal.ConfigID) (int32, int32, error) {
	width, err := s.client.DisplayAttribute(display, config, hal.AttributeWidth)
	if err != nil {
		return 0, 0, err
	}
	height, err := s.client.DisplayAttribute(display, config, hal.AttributeHeight)
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

// extendedQuery fetches full configuration records in one call.
type extendedQuery struct {
	maxFrameIntervalNs int32
}

func (q extendedQuery) configIDs(s *Session, display hal.DisplayID) ([]hal.ConfigID, error) {
	configs, err := s.client.DisplayConfigurations(display, q.maxFrameIntervalNs)
	if err != nil {
		return nil, err
	}
	ids := make([]hal.ConfigID, 0, len(configs))
	for _, config := range configs {
		ids = append(ids, config.ConfigID)
	}
	return ids, nil
}

func (q extendedQuery) populate(s *Session, display *Display) error {
	configs, err := s.client.DisplayConfigurations(display.ID(), q.maxFrameIntervalNs)
	if err != nil {
		return err
	}
	for _, config := range configs {
		display.AddConfig(config.ConfigID, DisplayConfig{
			VsyncPeriodNs: config.VsyncPeriodNs,
			ConfigGroup:   config.ConfigGroup,
			Vrr:           config.VrrConfig,
		})
	}
	return nil
}

func (q extendedQuery) dimensions(s *Session, display hal.DisplayID, config hal.ConfigID) (int32, int32, error) {
	configs, err := s.client.DisplayConfigurations(display, q.maxFrameIntervalNs)
	if err != nil {
		return 0, 0, err
	}
	for _, dc := range configs {
		if dc.ConfigID == config {
			return dc.Width, dc.Height, nil
		}
	}
	return 0, 0, fmt.Errorf("config %d not reported by display %d: %w", config, display, hal.ErrBadConfig)
}
