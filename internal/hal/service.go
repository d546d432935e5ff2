package hal

import "io"

// LayerLifecycleBatchCommandType tags a batched layer lifecycle record.
type LayerLifecycleBatchCommandType int32

const (
	LayerLifecycleModify LayerLifecycleBatchCommandType = iota
	LayerLifecycleCreate
	LayerLifecycleDestroy
)

func (t LayerLifecycleBatchCommandType) String() string {
	switch t {
	case LayerLifecycleCreate:
		return "create"
	case LayerLifecycleDestroy:
		return "destroy"
	default:
		return "modify"
	}
}

// LayerCommand is the per-layer slice of a batched display command. Only the
// fields the conformance client exercises are modeled; the real command
// stream carries many more.
type LayerCommand struct {
	Layer              LayerID
	LifecycleBatchType LayerLifecycleBatchCommandType
	NewBufferSlotCount int32
}

// DisplayCommand groups the layer commands destined for one display within a
// single batch execution.
type DisplayCommand struct {
	Display       DisplayID
	LayerCommands []LayerCommand
}

// CommandError reports a failed command within a batch, by its index in the
// submitted command list.
type CommandError struct {
	CommandIndex int
	Err          error
}

// CommandResultPayload is one result record returned by ExecuteCommands.
type CommandResultPayload struct {
	Error *CommandError
}

// EventHandler receives asynchronous notifications from the service. The
// service invokes these on its own delivery thread, concurrently with the
// client's main thread; implementations must synchronize internally.
type EventHandler interface {
	OnHotplug(display DisplayID, connected bool)
	OnRefresh(display DisplayID)
	OnVsync(display DisplayID, timestampNs int64, vsyncPeriodNs int32)
	OnVsyncPeriodTimingChanged(display DisplayID, timeline VsyncPeriodChangeTimeline)
	OnSeamlessPossible(display DisplayID)
	OnVsyncIdle(display DisplayID)
	OnRefreshRateChangedDebug(data RefreshRateChangedDebugData)
}

// Service is the top-level composition service handle: capability discovery,
// client session creation and debug dump.
type Service interface {
	Capabilities() ([]Capability, error)
	CreateClient() (Client, error)
	Dump(w io.Writer) error
}

// Client is one session against the composition service. All calls are
// synchronous; asynchronous activity arrives through the registered
// EventHandler. Transport and service lookup are owned by the binding that
// produces a Client, not by this package.
type Client interface {
	RegisterCallback(handler EventHandler) error
	InterfaceVersion() (int32, error)

	CreateVirtualDisplay(width, height int32, format PixelFormat, outputBufferSlotCount int32) (VirtualDisplay, error)
	DestroyVirtualDisplay(display DisplayID) error
	MaxVirtualDisplayCount() (int32, error)

	CreateLayer(display DisplayID, bufferSlotCount int32) (LayerID, error)
	DestroyLayer(display DisplayID, layer LayerID) error

	ActiveConfig(display DisplayID) (ConfigID, error)
	SetActiveConfig(display DisplayID, config ConfigID) error
	SetActiveConfigWithConstraints(display DisplayID, config ConfigID, constraints VsyncPeriodChangeConstraints) (VsyncPeriodChangeTimeline, error)
	DisplayConfigs(display DisplayID) ([]ConfigID, error)
	DisplayConfigurations(display DisplayID, maxFrameIntervalNs int32) ([]DisplayConfiguration, error)
	DisplayAttribute(display DisplayID, config ConfigID, attribute DisplayAttribute) (int32, error)
	DisplayVsyncPeriod(display DisplayID) (int32, error)

	DisplayName(display DisplayID) (string, error)
	DisplayCapabilities(display DisplayID) ([]DisplayCapability, error)
	DisplayConnectionType(display DisplayID) (DisplayConnectionType, error)
	DisplayIdentificationData(display DisplayID) (DisplayIdentification, error)
	DisplayPhysicalOrientation(display DisplayID) (Transform, error)
	DisplayDecorationSupport(display DisplayID) (*DisplayDecorationSupport, error)

	SetPowerMode(display DisplayID, mode PowerMode) error
	SetVsyncEnabled(display DisplayID, enabled bool) error
	SetAutoLowLatencyMode(display DisplayID, enabled bool) error
	SetIdleTimerEnabled(display DisplayID, timeoutMs int32) error
	SetRefreshRateChangedCallbackDebugEnabled(display DisplayID, enabled bool) error
	NotifyExpectedPresent(display DisplayID, expectedPresentTimeNs int64, frameIntervalNs int32) error

	ColorModes(display DisplayID) ([]ColorMode, error)
	RenderIntents(display DisplayID, mode ColorMode) ([]RenderIntent, error)
	SetColorMode(display DisplayID, mode ColorMode, intent RenderIntent) error
	DataspaceSaturationMatrix(dataspace Dataspace) ([]float32, error)

	SupportedContentTypes(display DisplayID) ([]ContentType, error)
	SetContentType(display DisplayID, contentType ContentType) error

	HdrCapabilities(display DisplayID) (HdrCapabilities, error)
	HdrConversionCapabilities() ([]HdrConversionCapability, error)
	SetHdrConversionStrategy(strategy HdrConversionStrategy) (Hdr, error)
	PerFrameMetadataKeys(display DisplayID) ([]PerFrameMetadataKey, error)

	ReadbackBufferAttributes(display DisplayID) (ReadbackBufferAttributes, error)
	SetReadbackBuffer(display DisplayID, buffer []byte, releaseFence int32) error
	ReadbackBufferFence(display DisplayID) (int32, error)

	DisplayedContentSamplingAttributes(display DisplayID) (DisplayContentSamplingAttributes, error)
	SetDisplayedContentSamplingEnabled(display DisplayID, enabled bool, mask FormatColorComponent, maxFrames int64) error
	DisplayedContentSample(display DisplayID, maxFrames, timestamp int64) (DisplayContentSample, error)

	SetBootDisplayConfig(display DisplayID, config ConfigID) error
	ClearBootDisplayConfig(display DisplayID) error
	PreferredBootDisplayConfig(display DisplayID) (ConfigID, error)

	SetClientTargetSlotCount(display DisplayID, bufferSlotCount int32) error
	OverlaySupport() (OverlayProperties, error)

	ExecuteCommands(commands []DisplayCommand) ([]CommandResultPayload, error)
}
