package halsim

import (
	"fmt"
	"sort"

	"github.com/displayhal/composerconf/internal/hal"
)

// Client is one session handle against the simulated service. All state
// lives on the Service so multiple handles observe one device.
type Client struct {
	service *Service
}

var _ hal.Client = (*Client)(nil)

// RegisterCallback stores the handler and synchronously delivers a hotplug
// connect for every built-in display, the way a real service announces its
// panels right after callback registration.
func (c *Client) RegisterCallback(handler hal.EventHandler) error {
	c.service.mu.Lock()
	c.service.handler = handler
	var builtin []hal.DisplayID
	for id, d := range c.service.displays {
		if !d.virtual {
			builtin = append(builtin, id)
		}
	}
	c.service.mu.Unlock()

	for _, id := range builtin {
		handler.OnHotplug(id, true)
	}
	return nil
}

// InterfaceVersion reports the configured protocol version.
func (c *Client) InterfaceVersion() (int32, error) {
	return c.service.opts.InterfaceVersion, nil
}

func (c *Client) CreateVirtualDisplay(width, height int32, format hal.PixelFormat, outputBufferSlotCount int32) (hal.VirtualDisplay, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	if width <= 0 || height <= 0 {
		return hal.VirtualDisplay{}, fmt.Errorf("virtual display %dx%d: %w", width, height, hal.ErrBadParameter)
	}
	if s.virtualCount >= s.opts.MaxVirtualDisplays {
		return hal.VirtualDisplay{}, fmt.Errorf("virtual display limit %d: %w", s.opts.MaxVirtualDisplays, hal.ErrNoResources)
	}

	id := s.nextVirtualDisplay
	s.nextVirtualDisplay++
	s.virtualCount++
	s.displays[id] = &simDisplay{
		virtual: true,
		name:    fmt.Sprintf("virtual-%d", id),
		configs: map[hal.ConfigID]hal.DisplayConfiguration{
			0: {ConfigID: 0, Width: width, Height: height, VsyncPeriodNs: 16_666_666},
		},
		layers:    make(map[hal.LayerID]int32),
		powerMode: hal.PowerModeOn,
	}
	return hal.VirtualDisplay{Display: id, Format: format}, nil
}

func (c *Client) DestroyVirtualDisplay(display hal.DisplayID) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	if !d.virtual {
		return fmt.Errorf("display %d is not virtual: %w", display, hal.ErrBadParameter)
	}
	delete(s.displays, display)
	s.virtualCount--
	return nil
}

func (c *Client) MaxVirtualDisplayCount() (int32, error) {
	return int32(c.service.opts.MaxVirtualDisplays), nil
}

func (c *Client) CreateLayer(display hal.DisplayID, bufferSlotCount int32) (hal.LayerID, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return 0, err
	}
	layer := s.nextLayer
	s.nextLayer++
	d.layers[layer] = bufferSlotCount
	return layer, nil
}

func (c *Client) DestroyLayer(display hal.DisplayID, layer hal.LayerID) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	if _, ok := d.layers[layer]; !ok {
		return fmt.Errorf("layer %d on display %d: %w", layer, display, hal.ErrBadLayer)
	}
	delete(d.layers, layer)
	return nil
}

func (c *Client) ActiveConfig(display hal.DisplayID) (hal.ConfigID, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return 0, err
	}
	return d.active, nil
}

func (c *Client) SetActiveConfig(display hal.DisplayID, config hal.ConfigID) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	if _, ok := d.configs[config]; !ok {
		return fmt.Errorf("config %d on display %d: %w", config, display, hal.ErrBadConfig)
	}
	d.active = config
	return nil
}

func (c *Client) SetActiveConfigWithConstraints(display hal.DisplayID, config hal.ConfigID, constraints hal.VsyncPeriodChangeConstraints) (hal.VsyncPeriodChangeTimeline, error) {
	if err := c.SetActiveConfig(display, config); err != nil {
		return hal.VsyncPeriodChangeTimeline{}, err
	}
	timeline := hal.VsyncPeriodChangeTimeline{
		NewVsyncAppliedTimeNanos: constraints.DesiredTimeNanos,
	}
	if h := c.service.currentHandler(); h != nil {
		h.OnVsyncPeriodTimingChanged(display, timeline)
	}
	return timeline, nil
}

func (c *Client) DisplayConfigs(display hal.DisplayID) ([]hal.ConfigID, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return nil, err
	}
	configs := make([]hal.ConfigID, 0, len(d.configs))
	for id := range d.configs {
		configs = append(configs, id)
	}
	sortConfigs(configs)
	return configs, nil
}

func (c *Client) DisplayConfigurations(display hal.DisplayID, maxFrameIntervalNs int32) ([]hal.DisplayConfiguration, error) {
	if c.service.opts.InterfaceVersion < 3 {
		return nil, fmt.Errorf("display configurations query: %w", hal.ErrUnsupported)
	}

	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return nil, err
	}
	ids := make([]hal.ConfigID, 0, len(d.configs))
	for id := range d.configs {
		ids = append(ids, id)
	}
	sortConfigs(ids)
	configs := make([]hal.DisplayConfiguration, 0, len(ids))
	for _, id := range ids {
		configs = append(configs, d.configs[id])
	}
	return configs, nil
}

func (c *Client) DisplayAttribute(display hal.DisplayID, config hal.ConfigID, attribute hal.DisplayAttribute) (int32, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return 0, err
	}
	dc, ok := d.configs[config]
	if !ok {
		return 0, fmt.Errorf("config %d on display %d: %w", config, display, hal.ErrBadConfig)
	}
	switch attribute {
	case hal.AttributeWidth:
		return dc.Width, nil
	case hal.AttributeHeight:
		return dc.Height, nil
	case hal.AttributeVsyncPeriod:
		return dc.VsyncPeriodNs, nil
	case hal.AttributeConfigGroup:
		return dc.ConfigGroup, nil
	default:
		return 0, fmt.Errorf("attribute %d: %w", attribute, hal.ErrBadParameter)
	}
}

func (c *Client) DisplayVsyncPeriod(display hal.DisplayID) (int32, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return 0, err
	}
	return d.configs[d.active].VsyncPeriodNs, nil
}

func (c *Client) DisplayName(display hal.DisplayID) (string, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return "", err
	}
	return d.name, nil
}

func (c *Client) DisplayCapabilities(display hal.DisplayID) ([]hal.DisplayCapability, error) {
	if _, err := c.DisplayName(display); err != nil {
		return nil, err
	}
	return []hal.DisplayCapability{
		hal.DisplayCapabilityBrightness,
		hal.DisplayCapabilityDisplayIdleTimer,
	}, nil
}

func (c *Client) DisplayConnectionType(display hal.DisplayID) (hal.DisplayConnectionType, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return 0, err
	}
	if d.virtual {
		return 0, fmt.Errorf("display %d is virtual: %w", display, hal.ErrBadDisplay)
	}
	return hal.ConnectionInternal, nil
}

func (c *Client) DisplayIdentificationData(display hal.DisplayID) (hal.DisplayIdentification, error) {
	if _, err := c.DisplayName(display); err != nil {
		return hal.DisplayIdentification{}, err
	}
	return hal.DisplayIdentification{Port: int8(display), Data: []byte("simedid")}, nil
}

func (c *Client) DisplayPhysicalOrientation(display hal.DisplayID) (hal.Transform, error) {
	if _, err := c.DisplayName(display); err != nil {
		return 0, err
	}
	return hal.TransformNone, nil
}

func (c *Client) DisplayDecorationSupport(display hal.DisplayID) (*hal.DisplayDecorationSupport, error) {
	if _, err := c.DisplayName(display); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *Client) SetPowerMode(display hal.DisplayID, mode hal.PowerMode) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.powerMode = mode
	return nil
}

func (c *Client) SetVsyncEnabled(display hal.DisplayID, enabled bool) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.vsync = enabled
	return nil
}

func (c *Client) SetAutoLowLatencyMode(display hal.DisplayID, enabled bool) error {
	if _, err := c.DisplayName(display); err != nil {
		return err
	}
	return nil
}

func (c *Client) SetIdleTimerEnabled(display hal.DisplayID, timeoutMs int32) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.idleTimerMs = timeoutMs
	return nil
}

func (c *Client) SetRefreshRateChangedCallbackDebugEnabled(display hal.DisplayID, enabled bool) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.refreshRateDebug = enabled
	return nil
}

func (c *Client) NotifyExpectedPresent(display hal.DisplayID, expectedPresentTimeNs int64, frameIntervalNs int32) error {
	if _, err := c.DisplayName(display); err != nil {
		return err
	}
	return nil
}

func (c *Client) ColorModes(display hal.DisplayID) ([]hal.ColorMode, error) {
	if _, err := c.DisplayName(display); err != nil {
		return nil, err
	}
	return []hal.ColorMode{hal.ColorModeNative, hal.ColorModeSRGB}, nil
}

func (c *Client) RenderIntents(display hal.DisplayID, mode hal.ColorMode) ([]hal.RenderIntent, error) {
	if _, err := c.DisplayName(display); err != nil {
		return nil, err
	}
	return []hal.RenderIntent{hal.RenderIntentColorimetric}, nil
}

func (c *Client) SetColorMode(display hal.DisplayID, mode hal.ColorMode, intent hal.RenderIntent) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	if mode != hal.ColorModeNative && mode != hal.ColorModeSRGB {
		return fmt.Errorf("color mode %d: %w", mode, hal.ErrUnsupported)
	}
	d.colorMode = mode
	d.intent = intent
	return nil
}

func (c *Client) DataspaceSaturationMatrix(dataspace hal.Dataspace) ([]float32, error) {
	if dataspace != hal.DataspaceSRGB {
		return nil, fmt.Errorf("dataspace %d: %w", dataspace, hal.ErrBadParameter)
	}
	// Identity matrix.
	return []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}, nil
}

func (c *Client) SupportedContentTypes(display hal.DisplayID) ([]hal.ContentType, error) {
	if _, err := c.DisplayName(display); err != nil {
		return nil, err
	}
	return []hal.ContentType{hal.ContentTypeGraphics, hal.ContentTypeGame}, nil
}

func (c *Client) SetContentType(display hal.DisplayID, contentType hal.ContentType) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.contentType = contentType
	return nil
}

func (c *Client) HdrCapabilities(display hal.DisplayID) (hal.HdrCapabilities, error) {
	if _, err := c.DisplayName(display); err != nil {
		return hal.HdrCapabilities{}, err
	}
	return hal.HdrCapabilities{
		Types:               []hal.Hdr{hal.Hdr10},
		MaxLuminance:        500,
		MaxAverageLuminance: 350,
		MinLuminance:        0.05,
	}, nil
}

func (c *Client) HdrConversionCapabilities() ([]hal.HdrConversionCapability, error) {
	return []hal.HdrConversionCapability{
		{SourceType: hal.HdrHLG, OutputType: hal.Hdr10},
	}, nil
}

func (c *Client) SetHdrConversionStrategy(strategy hal.HdrConversionStrategy) (hal.Hdr, error) {
	if strategy.ForceOutputType != nil {
		return *strategy.ForceOutputType, nil
	}
	return hal.Hdr10, nil
}

func (c *Client) PerFrameMetadataKeys(display hal.DisplayID) ([]hal.PerFrameMetadataKey, error) {
	if _, err := c.DisplayName(display); err != nil {
		return nil, err
	}
	return []hal.PerFrameMetadataKey{
		hal.MetadataMaxLuminance,
		hal.MetadataMinLuminance,
	}, nil
}

func (c *Client) ReadbackBufferAttributes(display hal.DisplayID) (hal.ReadbackBufferAttributes, error) {
	if _, err := c.DisplayName(display); err != nil {
		return hal.ReadbackBufferAttributes{}, err
	}
	return hal.ReadbackBufferAttributes{Format: hal.PixelFormatRGBA8888, Dataspace: hal.DataspaceSRGB}, nil
}

func (c *Client) SetReadbackBuffer(display hal.DisplayID, buffer []byte, releaseFence int32) error {
	if _, err := c.DisplayName(display); err != nil {
		return err
	}
	if len(buffer) == 0 {
		return fmt.Errorf("empty readback buffer: %w", hal.ErrBadParameter)
	}
	return nil
}

func (c *Client) ReadbackBufferFence(display hal.DisplayID) (int32, error) {
	if _, err := c.DisplayName(display); err != nil {
		return -1, err
	}
	return -1, nil
}

func (c *Client) DisplayedContentSamplingAttributes(display hal.DisplayID) (hal.DisplayContentSamplingAttributes, error) {
	if _, err := c.DisplayName(display); err != nil {
		return hal.DisplayContentSamplingAttributes{}, err
	}
	return hal.DisplayContentSamplingAttributes{
		Format:        hal.PixelFormatRGBA8888,
		Dataspace:     hal.DataspaceSRGB,
		ComponentMask: hal.ComponentR | hal.ComponentG | hal.ComponentB,
	}, nil
}

func (c *Client) SetDisplayedContentSamplingEnabled(display hal.DisplayID, enabled bool, mask hal.FormatColorComponent, maxFrames int64) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.sampling = enabled
	return nil
}

func (c *Client) DisplayedContentSample(display hal.DisplayID, maxFrames, timestamp int64) (hal.DisplayContentSample, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return hal.DisplayContentSample{}, err
	}
	if !d.sampling {
		return hal.DisplayContentSample{}, fmt.Errorf("sampling disabled on display %d: %w", display, hal.ErrBadParameter)
	}
	return hal.DisplayContentSample{FrameCount: 1}, nil
}

func (c *Client) SetBootDisplayConfig(display hal.DisplayID, config hal.ConfigID) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	if _, ok := d.configs[config]; !ok {
		return fmt.Errorf("config %d on display %d: %w", config, display, hal.ErrBadConfig)
	}
	d.bootConfig = &config
	return nil
}

func (c *Client) ClearBootDisplayConfig(display hal.DisplayID) error {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return err
	}
	d.bootConfig = nil
	return nil
}

func (c *Client) PreferredBootDisplayConfig(display hal.DisplayID) (hal.ConfigID, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.display(display)
	if err != nil {
		return 0, err
	}
	if d.bootConfig != nil {
		return *d.bootConfig, nil
	}
	return d.active, nil
}

func (c *Client) SetClientTargetSlotCount(display hal.DisplayID, bufferSlotCount int32) error {
	if _, err := c.DisplayName(display); err != nil {
		return err
	}
	return nil
}

func (c *Client) OverlaySupport() (hal.OverlayProperties, error) {
	return hal.OverlayProperties{
		SupportMixedColorSpaces: true,
		SupportedBufferCombinations: []hal.OverlayBufferCombination{
			{
				PixelFormats: []hal.PixelFormat{hal.PixelFormatRGBA8888},
				Dataspaces:   []hal.Dataspace{hal.DataspaceSRGB},
			},
		},
	}, nil
}

// ExecuteCommands applies batched layer lifecycle records to the device
// state. Per-command failures are reported as result payloads, not as a
// transport error.
func (c *Client) ExecuteCommands(commands []hal.DisplayCommand) ([]hal.CommandResultPayload, error) {
	s := c.service
	s.mu.Lock()
	defer s.mu.Unlock()

	var results []hal.CommandResultPayload
	for i, dc := range commands {
		d, ok := s.displays[dc.Display]
		if !ok {
			results = append(results, hal.CommandResultPayload{Error: &hal.CommandError{
				CommandIndex: i,
				Err:          fmt.Errorf("display %d: %w", dc.Display, hal.ErrBadDisplay),
			}})
			continue
		}
		for _, lc := range dc.LayerCommands {
			switch lc.LifecycleBatchType {
			case hal.LayerLifecycleCreate:
				if _, exists := d.layers[lc.Layer]; exists {
					results = append(results, hal.CommandResultPayload{Error: &hal.CommandError{
						CommandIndex: i,
						Err:          fmt.Errorf("layer %d: %w", lc.Layer, hal.ErrBadLayer),
					}})
					continue
				}
				d.layers[lc.Layer] = lc.NewBufferSlotCount
			case hal.LayerLifecycleDestroy:
				if _, exists := d.layers[lc.Layer]; !exists {
					results = append(results, hal.CommandResultPayload{Error: &hal.CommandError{
						CommandIndex: i,
						Err:          fmt.Errorf("layer %d: %w", lc.Layer, hal.ErrBadLayer),
					}})
					continue
				}
				delete(d.layers, lc.Layer)
			}
		}
	}
	return results, nil
}

func sortConfigs(configs []hal.ConfigID) {
	sort.Slice(configs, func(i, j int) bool { return configs[i] < configs[j] })
}
