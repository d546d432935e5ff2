package session

import "github.com/displayhal/composerconf/internal/hal"

// Thin wrappers over the service client. These carry no session state; they
// exist so the harness drives every remote operation through one handle and
// so version gating stays in one place.

// DisplayConfigs returns the display's config ids, derived from the extended
// query when the negotiated version supports it.
func (s *Session) DisplayConfigs(display hal.DisplayID) ([]hal.ConfigID, error) {
	return s.configQuery.configIDs(s, display)
}

// DisplayConfigurations performs the extended configuration query. Callers
// on a pre-extended service receive the unsupported error verbatim.
func (s *Session) DisplayConfigurations(display hal.DisplayID) ([]hal.DisplayConfiguration, error) {
	return s.client.DisplayConfigurations(display, s.maxFrameIntervalNs())
}

func (s *Session) maxFrameIntervalNs() int32 {
	if q, ok := s.configQuery.(extendedQuery); ok {
		return q.maxFrameIntervalNs
	}
	return 0
}

// DisplayAttribute queries one scalar config attribute.
func (s *Session) DisplayAttribute(display hal.DisplayID, config hal.ConfigID, attribute hal.DisplayAttribute) (int32, error) {
	return s.client.DisplayAttribute(display, config, attribute)
}

// DisplayVsyncPeriod returns the current vsync period of the display.
func (s *Session) DisplayVsyncPeriod(display hal.DisplayID) (int32, error) {
	return s.client.DisplayVsyncPeriod(display)
}

// DisplayName returns the human-readable display name.
func (s *Session) DisplayName(display hal.DisplayID) (string, error) {
	return s.client.DisplayName(display)
}

// DisplayCapabilities returns the per-display feature flags.
func (s *Session) DisplayCapabilities(display hal.DisplayID) ([]hal.DisplayCapability, error) {
	return s.client.DisplayCapabilities(display)
}

// DisplayConnectionType reports whether the display is internal or external.
func (s *Session) DisplayConnectionType(display hal.DisplayID) (hal.DisplayConnectionType, error) {
	return s.client.DisplayConnectionType(display)
}

// DisplayIdentificationData returns the display's identification blob.
func (s *Session) DisplayIdentificationData(display hal.DisplayID) (hal.DisplayIdentification, error) {
	return s.client.DisplayIdentificationData(display)
}

// DisplayPhysicalOrientation returns the panel orientation.
func (s *Session) DisplayPhysicalOrientation(display hal.DisplayID) (hal.Transform, error) {
	return s.client.DisplayPhysicalOrientation(display)
}

// DisplayDecorationSupport returns the screen-decoration support record, or
// nil when the display has none.
func (s *Session) DisplayDecorationSupport(display hal.DisplayID) (*hal.DisplayDecorationSupport, error) {
	return s.client.DisplayDecorationSupport(display)
}

// MaxVirtualDisplayCount returns how many virtual displays the service
// supports concurrently.
func (s *Session) MaxVirtualDisplayCount() (int32, error) {
	return s.client.MaxVirtualDisplayCount()
}

// SetAutoLowLatencyMode toggles automatic low-latency mode.
func (s *Session) SetAutoLowLatencyMode(display hal.DisplayID, enabled bool) error {
	return s.client.SetAutoLowLatencyMode(display, enabled)
}

// SetIdleTimerEnabled arms or disarms the display idle timer.
func (s *Session) SetIdleTimerEnabled(display hal.DisplayID, timeoutMs int32) error {
	return s.client.SetIdleTimerEnabled(display, timeoutMs)
}

// NotifyExpectedPresent tells the service when the next present is expected.
func (s *Session) NotifyExpectedPresent(display hal.DisplayID, expectedPresentTimeNs int64, frameIntervalNs int32) error {
	return s.client.NotifyExpectedPresent(display, expectedPresentTimeNs, frameIntervalNs)
}

// ColorModes returns the display's supported color modes.
func (s *Session) ColorModes(display hal.DisplayID) ([]hal.ColorMode, error) {
	return s.client.ColorModes(display)
}

// RenderIntents returns the render intents supported for a color mode.
func (s *Session) RenderIntents(display hal.DisplayID, mode hal.ColorMode) ([]hal.RenderIntent, error) {
	return s.client.RenderIntents(display, mode)
}

// SetColorMode selects a color mode and render intent.
func (s *Session) SetColorMode(display hal.DisplayID, mode hal.ColorMode, intent hal.RenderIntent) error {
	return s.client.SetColorMode(display, mode, intent)
}

// DataspaceSaturationMatrix returns the saturation matrix for a dataspace.
func (s *Session) DataspaceSaturationMatrix(dataspace hal.Dataspace) ([]float32, error) {
	return s.client.DataspaceSaturationMatrix(dataspace)
}

// SupportedContentTypes returns the content-type hints the display accepts.
func (s *Session) SupportedContentTypes(display hal.DisplayID) ([]hal.ContentType, error) {
	return s.client.SupportedContentTypes(display)
}

// SetContentType applies a content-type hint.
func (s *Session) SetContentType(display hal.DisplayID, contentType hal.ContentType) error {
	return s.client.SetContentType(display, contentType)
}

// HdrCapabilities returns the display's HDR formats and luminance range.
func (s *Session) HdrCapabilities(display hal.DisplayID) (hal.HdrCapabilities, error) {
	return s.client.HdrCapabilities(display)
}

// HdrConversionCapabilities returns the supported HDR conversions.
func (s *Session) HdrConversionCapabilities() ([]hal.HdrConversionCapability, error) {
	return s.client.HdrConversionCapabilities()
}

// SetHdrConversionStrategy applies an HDR conversion strategy and returns
// the preferred output type.
func (s *Session) SetHdrConversionStrategy(strategy hal.HdrConversionStrategy) (hal.Hdr, error) {
	return s.client.SetHdrConversionStrategy(strategy)
}

// PerFrameMetadataKeys returns the per-frame HDR metadata keys supported.
func (s *Session) PerFrameMetadataKeys(display hal.DisplayID) ([]hal.PerFrameMetadataKey, error) {
	return s.client.PerFrameMetadataKeys(display)
}

// ReadbackBufferAttributes returns the format to allocate for readback.
func (s *Session) ReadbackBufferAttributes(display hal.DisplayID) (hal.ReadbackBufferAttributes, error) {
	return s.client.ReadbackBufferAttributes(display)
}

// SetReadbackBuffer hands a readback buffer to the service.
func (s *Session) SetReadbackBuffer(display hal.DisplayID, buffer []byte, releaseFence int32) error {
	return s.client.SetReadbackBuffer(display, buffer, releaseFence)
}

// ReadbackBufferFence returns the fence guarding the readback buffer.
func (s *Session) ReadbackBufferFence(display hal.DisplayID) (int32, error) {
	return s.client.ReadbackBufferFence(display)
}

// DisplayedContentSamplingAttributes returns what sampling the display
// supports.
func (s *Session) DisplayedContentSamplingAttributes(display hal.DisplayID) (hal.DisplayContentSamplingAttributes, error) {
	return s.client.DisplayedContentSamplingAttributes(display)
}

// SetDisplayedContentSamplingEnabled toggles content sampling.
func (s *Session) SetDisplayedContentSamplingEnabled(display hal.DisplayID, enabled bool, mask hal.FormatColorComponent, maxFrames int64) error {
	return s.client.SetDisplayedContentSamplingEnabled(display, enabled, mask, maxFrames)
}

// DisplayedContentSample fetches a collected content sample.
func (s *Session) DisplayedContentSample(display hal.DisplayID, maxFrames, timestamp int64) (hal.DisplayContentSample, error) {
	return s.client.DisplayedContentSample(display, maxFrames, timestamp)
}

// SetBootDisplayConfig pins the config used at boot.
func (s *Session) SetBootDisplayConfig(display hal.DisplayID, config hal.ConfigID) error {
	return s.client.SetBootDisplayConfig(display, config)
}

// ClearBootDisplayConfig restores the service's own boot config choice.
func (s *Session) ClearBootDisplayConfig(display hal.DisplayID) error {
	return s.client.ClearBootDisplayConfig(display)
}

// PreferredBootDisplayConfig returns the service's preferred boot config.
func (s *Session) PreferredBootDisplayConfig(display hal.DisplayID) (hal.ConfigID, error) {
	return s.client.PreferredBootDisplayConfig(display)
}

// SetClientTargetSlotCount sizes the client target buffer cache.
func (s *Session) SetClientTargetSlotCount(display hal.DisplayID, bufferSlotCount int32) error {
	return s.client.SetClientTargetSlotCount(display, bufferSlotCount)
}

// OverlaySupport returns the device's overlay format combinations.
func (s *Session) OverlaySupport() (hal.OverlayProperties, error) {
	return s.client.OverlaySupport()
}
