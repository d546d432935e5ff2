// Package hal declares the interface surface of the remote display
// composition service. The conformance client consumes these types; it never
// implements the service itself.
package hal

// DisplayID identifies a physical or virtual display surface.
type DisplayID int64

// LayerID identifies a composable surface instance owned by a display.
// Ids are either assigned by the service or, when batched layer lifecycle is
// supported, generated locally by the client ahead of batch execution.
type LayerID int64

// ConfigID identifies one timing/resolution mode of a display.
type ConfigID int32

// Capability is a feature flag declared by the service at startup.
type Capability int32

const (
	CapabilityInvalid Capability = iota
	CapabilitySidebandStream
	CapabilitySkipClientColorTransform
	CapabilityPresentFenceIsNotReliable
	CapabilitySkipValidate
	CapabilityBootDisplayConfig
	CapabilityHdrOutputConversionConfig
	// CapabilityLayerLifecycleBatch allows layer create/destroy to be
	// expressed as command-buffer records instead of synchronous calls.
	CapabilityLayerLifecycleBatch
)

func (c Capability) String() string {
	switch c {
	case CapabilitySidebandStream:
		return "sideband-stream"
	case CapabilitySkipClientColorTransform:
		return "skip-client-color-transform"
	case CapabilityPresentFenceIsNotReliable:
		return "present-fence-not-reliable"
	case CapabilitySkipValidate:
		return "skip-validate"
	case CapabilityBootDisplayConfig:
		return "boot-display-config"
	case CapabilityHdrOutputConversionConfig:
		return "hdr-output-conversion-config"
	case CapabilityLayerLifecycleBatch:
		return "layer-lifecycle-batch"
	default:
		return "invalid"
	}
}

// DisplayAttribute selects one scalar property in a per-config attribute
// query. Only used on the legacy query path; newer service versions return
// the full DisplayConfiguration record in one call.
type DisplayAttribute int32

const (
	AttributeInvalid DisplayAttribute = iota
	AttributeWidth
	AttributeHeight
	AttributeVsyncPeriod
	AttributeConfigGroup
)

func (a DisplayAttribute) String() string {
	switch a {
	case AttributeWidth:
		return "width"
	case AttributeHeight:
		return "height"
	case AttributeVsyncPeriod:
		return "vsync-period"
	case AttributeConfigGroup:
		return "config-group"
	default:
		return "invalid"
	}
}

// PowerMode selects the power state of a display.
type PowerMode int32

const (
	PowerModeOff PowerMode = iota
	PowerModeDoze
	PowerModeDozeSuspend
	PowerModeOn
	PowerModeOnSuspend
)

// PixelFormat is the buffer format requested for a virtual display.
type PixelFormat int32

const (
	PixelFormatRGBA8888 PixelFormat = 1
	PixelFormatRGBX8888 PixelFormat = 2
	PixelFormatRGB888   PixelFormat = 3
	PixelFormatRGBAFP16 PixelFormat = 22
	PixelFormatRGBA1010102 PixelFormat = 43
)

// ColorMode identifies a color space/gamut configuration of a display.
type ColorMode int32

const (
	ColorModeNative ColorMode = iota
	ColorModeStandardBT601_625
	ColorModeStandardBT601_525
	ColorModeStandardBT709
	ColorModeDCIP3
	ColorModeSRGB
	ColorModeAdobeRGB
	ColorModeDisplayP3
	ColorModeBT2020
	ColorModeBT2100PQ
	ColorModeBT2100HLG
	ColorModeDisplayBT2020
)

// RenderIntent describes how colors outside the display gamut are handled.
type RenderIntent int32

const (
	RenderIntentColorimetric RenderIntent = iota
	RenderIntentEnhance
	RenderIntentToneMapColorimetric
	RenderIntentToneMapEnhance
)

// ContentType is a hint about the kind of content shown on a display.
type ContentType int32

const (
	ContentTypeNone ContentType = iota
	ContentTypeGraphics
	ContentTypePhoto
	ContentTypeCinema
	ContentTypeGame
)

// Dataspace identifies an encoding/range/transfer combination for pixel data.
type Dataspace int32

const (
	DataspaceUnknown Dataspace = 0
	DataspaceSRGB    Dataspace = 142671872
	DataspaceDisplayP3 Dataspace = 143261696
	DataspaceBT2020  Dataspace = 147193856
)

// Transform is the physical orientation of a display panel.
type Transform int32

const (
	TransformNone Transform = 0
	TransformFlipH Transform = 1
	TransformFlipV Transform = 2
	TransformRot90 Transform = 4
	TransformRot180 Transform = 3
	TransformRot270 Transform = 7
)

// DisplayConnectionType distinguishes built-in panels from external ones.
type DisplayConnectionType int32

const (
	ConnectionInternal DisplayConnectionType = iota
	ConnectionExternal
)

// Hdr identifies an HDR capability/format of a display.
type Hdr int32

const (
	HdrInvalid Hdr = iota
	HdrDolbyVision
	Hdr10
	HdrHLG
	Hdr10Plus
	HdrDolbyVision4K30
)

// PerFrameMetadataKey names one piece of HDR per-frame metadata supported by
// a display.
type PerFrameMetadataKey int32

const (
	MetadataDisplayRedPrimaryX PerFrameMetadataKey = iota
	MetadataDisplayRedPrimaryY
	MetadataDisplayGreenPrimaryX
	MetadataDisplayGreenPrimaryY
	MetadataDisplayBluePrimaryX
	MetadataDisplayBluePrimaryY
	MetadataWhitePointX
	MetadataWhitePointY
	MetadataMaxLuminance
	MetadataMinLuminance
	MetadataMaxContentLightLevel
	MetadataMaxFrameAverageLightLevel
)

// FormatColorComponent selects color channels for content sampling.
type FormatColorComponent uint8

const (
	ComponentR FormatColorComponent = 1 << iota
	ComponentG
	ComponentB
	ComponentA
)

// VrrConfig describes the variable-refresh-rate behavior of a config.
type VrrConfig struct {
	MinFrameIntervalNs int32
	// FrameIntervalPowerHints and NotifyExpectedPresentConfig are carried
	// opaquely; the conformance client records but never interprets them.
	FrameIntervalPowerHints []FrameIntervalPowerHint
	NotifyExpectedPresentConfig *NotifyExpectedPresentConfig
}

// FrameIntervalPowerHint maps a frame interval to an average power draw.
type FrameIntervalPowerHint struct {
	FrameIntervalNs int32
	AverageRefreshPeriodNs int32
}

// NotifyExpectedPresentConfig carries the timing windows for expected-present
// notifications on VRR displays.
type NotifyExpectedPresentConfig struct {
	HeadsUpNs  int32
	TimeoutNs  int32
}

// DisplayConfiguration is the full description of one display config, as
// returned by the extended query path (service version 3 and later).
type DisplayConfiguration struct {
	ConfigID      ConfigID
	Width         int32
	Height        int32
	DpiX          float32
	DpiY          float32
	ConfigGroup   int32
	VsyncPeriodNs int32
	VrrConfig     *VrrConfig
}

// VirtualDisplay is the result of creating a virtual display: the assigned
// display id and the format the service actually chose.
type VirtualDisplay struct {
	Display DisplayID
	Format  PixelFormat
}

// VsyncPeriodChangeConstraints bound when a config switch may take effect.
type VsyncPeriodChangeConstraints struct {
	DesiredTimeNanos     int64
	SeamlessRequired     bool
}

// VsyncPeriodChangeTimeline reports when a requested config switch will
// actually land.
type VsyncPeriodChangeTimeline struct {
	NewVsyncAppliedTimeNanos int64
	RefreshRequired          bool
	RefreshTimeNanos         int64
}

// RefreshRateChangedDebugData is the payload of the refresh-rate debug
// callback.
type RefreshRateChangedDebugData struct {
	Display             DisplayID
	VsyncPeriodNanos    int32
	RefreshPeriodNanos  int32
}

// DisplayIdentification is the raw EDID-style identity blob of a display.
type DisplayIdentification struct {
	Port int8
	Data []byte
}

// HdrCapabilities lists the HDR formats and luminance range of a display.
type HdrCapabilities struct {
	Types                       []Hdr
	MaxLuminance                float32
	MaxAverageLuminance         float32
	MinLuminance                float32
}

// HdrConversionCapability describes one supported HDR-to-HDR conversion.
type HdrConversionCapability struct {
	SourceType      Hdr
	OutputType      Hdr
	AddsLatency     bool
}

// HdrConversionStrategy selects how the service converts HDR content.
// Exactly one field is meaningful, mirroring a union on the wire.
type HdrConversionStrategy struct {
	PassthroughEnabled bool
	AutoAllowedTypes   []Hdr
	ForceOutputType    *Hdr
}

// OverlayProperties reports the overlay format combinations the device
// supports.
type OverlayProperties struct {
	SupportMixedColorSpaces bool
	SupportedBufferCombinations []OverlayBufferCombination
}

// OverlayBufferCombination is one (formats, dataspaces) set usable together.
type OverlayBufferCombination struct {
	PixelFormats []PixelFormat
	Dataspaces   []Dataspace
}

// ReadbackBufferAttributes tells the client what format to allocate for
// display readback.
type ReadbackBufferAttributes struct {
	Format    PixelFormat
	Dataspace Dataspace
}

// DisplayContentSamplingAttributes reports what content sampling the display
// supports.
type DisplayContentSamplingAttributes struct {
	Format             PixelFormat
	Dataspace          Dataspace
	ComponentMask      FormatColorComponent
}

// DisplayContentSample is a collected luma/color histogram sample.
type DisplayContentSample struct {
	FrameCount       int64
	SampleComponent0 []int64
	SampleComponent1 []int64
	SampleComponent2 []int64
	SampleComponent3 []int64
}

// DisplayDecorationSupport describes the screen-decoration (rounded corner)
// buffer support of a display.
type DisplayDecorationSupport struct {
	Format        PixelFormat
	AlphaInterpretation int32
}

// DisplayCapability is a per-display feature flag, distinct from the global
// service Capability set.
type DisplayCapability int32

const (
	DisplayCapabilityInvalid DisplayCapability = iota
	DisplayCapabilitySkipClientColorTransform
	DisplayCapabilityDoze
	DisplayCapabilityBrightness
	DisplayCapabilityProtectedContents
	DisplayCapabilityAutoLowLatencyMode
	DisplayCapabilitySuspend
	DisplayCapabilityDisplayIdleTimer
	DisplayCapabilityMultiThreadedPresent
)
