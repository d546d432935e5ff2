package session

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/displayhal/composerconf/internal/hal"
	"github.com/displayhal/composerconf/internal/halsim"
)

// wrappedService lets tests interpose an instrumented client between the
// session and the simulator.
type wrappedService struct {
	hal.Service
	wrap func(hal.Client) hal.Client
}

func (w *wrappedService) CreateClient() (hal.Client, error) {
	client, err := w.Service.CreateClient()
	if err != nil {
		return nil, err
	}
	if w.wrap != nil {
		client = w.wrap(client)
	}
	return client, nil
}

// instrumentedClient counts selected remote calls and can inject failures.
type instrumentedClient struct {
	hal.Client

	mu               sync.Mutex
	attributeCalls   map[hal.DisplayAttribute]int
	createLayerCalls int
	executeCalls     int

	destroyLayerErr   error
	constrainedSetErr error
	suppressEvents    bool
}

func (c *instrumentedClient) RegisterCallback(handler hal.EventHandler) error {
	if c.suppressEvents {
		return nil
	}
	return c.Client.RegisterCallback(handler)
}

func (c *instrumentedClient) DisplayAttribute(display hal.DisplayID, config hal.ConfigID, attribute hal.DisplayAttribute) (int32, error) {
	c.mu.Lock()
	if c.attributeCalls == nil {
		c.attributeCalls = make(map[hal.DisplayAttribute]int)
	}
	c.attributeCalls[attribute]++
	c.mu.Unlock()
	return c.Client.DisplayAttribute(display, config, attribute)
}

func (c *instrumentedClient) CreateLayer(display hal.DisplayID, bufferSlotCount int32) (hal.LayerID, error) {
	c.mu.Lock()
	c.createLayerCalls++
	c.mu.Unlock()
	return c.Client.CreateLayer(display, bufferSlotCount)
}

func (c *instrumentedClient) DestroyLayer(display hal.DisplayID, layer hal.LayerID) error {
	if c.destroyLayerErr != nil {
		return c.destroyLayerErr
	}
	return c.Client.DestroyLayer(display, layer)
}

func (c *instrumentedClient) SetActiveConfigWithConstraints(display hal.DisplayID, config hal.ConfigID, constraints hal.VsyncPeriodChangeConstraints) (hal.VsyncPeriodChangeTimeline, error) {
	if c.constrainedSetErr != nil {
		return hal.VsyncPeriodChangeTimeline{}, c.constrainedSetErr
	}
	return c.Client.SetActiveConfigWithConstraints(display, config, constraints)
}

func (c *instrumentedClient) ExecuteCommands(commands []hal.DisplayCommand) ([]hal.CommandResultPayload, error) {
	c.mu.Lock()
	c.executeCalls++
	c.mu.Unlock()
	return c.Client.ExecuteCommands(commands)
}

func testOptions() Options {
	return Options{
		PollInterval:     time.Millisecond,
		DiscoveryTimeout: 2 * time.Second,
	}
}

func newTestSession(t *testing.T, simOpts halsim.Options, wrap func(hal.Client) hal.Client) *Session {
	t.Helper()
	var service hal.Service = halsim.New(simOpts)
	if wrap != nil {
		service = &wrappedService{Service: service, wrap: wrap}
	}
	s, err := New(service, testOptions())
	require.NoError(t, err)
	return s
}

func TestSession_Negotiation(t *testing.T) {
	t.Run("batched extended service", func(t *testing.T) {
		s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: true}, nil)
		assert.Equal(t, int32(3), s.InterfaceVersion())
		assert.True(t, s.SupportsBatchedLayerLifecycle())
	})

	t.Run("legacy unbatched service", func(t *testing.T) {
		s := newTestSession(t, halsim.Options{InterfaceVersion: 2}, nil)
		assert.Equal(t, int32(2), s.InterfaceVersion())
		assert.False(t, s.SupportsBatchedLayerLifecycle())
	})
}

func TestSession_BatchedCreateLayer(t *testing.T) {
	var ic *instrumentedClient
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: true},
		func(c hal.Client) hal.Client {
			ic = &instrumentedClient{Client: c}
			return ic
		})

	first, err := s.CreateLayer(5, 2)
	require.NoError(t, err)
	second, err := s.CreateLayer(5, 2)
	require.NoError(t, err)

	// Locally generated ids: distinct and strictly increasing.
	assert.Greater(t, second, first)
	assert.Positive(t, first)

	// Both registered under display 5, pending until a flush confirms them.
	assert.Equal(t, []hal.LayerID{first, second}, s.Registry().Layers(5))
	for _, layer := range []hal.LayerID{first, second} {
		state, ok := s.Registry().LayerState(5, layer)
		require.True(t, ok)
		assert.Equal(t, LayerPending, state)
	}

	// No remote lifecycle call before the flush.
	assert.Zero(t, ic.createLayerCalls)
	assert.Zero(t, ic.executeCalls)
	assert.False(t, s.Writer().Empty())
}

func TestSession_BatchedCreateThenDestroy(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: true}, nil)

	layer, err := s.CreateLayer(5, 2)
	require.NoError(t, err)
	require.NoError(t, s.DestroyLayer(5, layer))

	// Optimistic add and optimistic remove cancel out without a flush: the
	// remote side never learns the layer existed.
	assert.Zero(t, s.Registry().LayerCount())
	assert.True(t, s.Writer().Empty())
}

func TestSession_UnbatchedLayerLifecycle(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 2}, nil)

	layer, err := s.CreateLayer(1, 3)
	require.NoError(t, err)

	state, ok := s.Registry().LayerState(1, layer)
	require.True(t, ok)
	assert.Equal(t, LayerConfirmed, state)

	require.NoError(t, s.DestroyLayer(1, layer))
	assert.Zero(t, s.Registry().LayerCount())
}

func TestSession_UnbatchedCreateFailureRegistersNothing(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 2}, nil)

	// Display 999 does not exist on the service.
	_, err := s.CreateLayer(999, 3)
	require.ErrorIs(t, err, hal.ErrBadDisplay)
	assert.False(t, s.Registry().HasDisplay(999))
	assert.Zero(t, s.Registry().LayerCount())
}

func TestSession_UnbatchedDestroyFailureKeepsOwnership(t *testing.T) {
	var ic *instrumentedClient
	s := newTestSession(t, halsim.Options{InterfaceVersion: 2},
		func(c hal.Client) hal.Client {
			ic = &instrumentedClient{Client: c}
			return ic
		})

	layer, err := s.CreateLayer(1, 3)
	require.NoError(t, err)

	ic.destroyLayerErr = hal.ErrNoResources
	err = s.DestroyLayer(1, layer)
	require.ErrorIs(t, err, hal.ErrNoResources)

	// Registry state before the failed call == after.
	assert.Equal(t, []hal.LayerID{layer}, s.Registry().Layers(1))
	state, ok := s.Registry().LayerState(1, layer)
	require.True(t, ok)
	assert.Equal(t, LayerConfirmed, state)
}

func TestSession_FlushConfirmAndEvict(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: true}, nil)

	first, err := s.CreateLayer(1, 2)
	require.NoError(t, err)

	results, err := s.Flush()
	require.NoError(t, err)
	for _, result := range results {
		require.Nil(t, result.Error)
	}
	assert.True(t, s.Writer().Empty())

	s.ConfirmPending()
	state, ok := s.Registry().LayerState(1, first)
	require.True(t, ok)
	assert.Equal(t, LayerConfirmed, state)

	second, err := s.CreateLayer(1, 2)
	require.NoError(t, err)
	s.EvictPending()
	_, ok = s.Registry().LayerState(1, second)
	assert.False(t, ok)
	// Confirmed ownership survives an evict.
	_, ok = s.Registry().LayerState(1, first)
	assert.True(t, ok)
}

func TestSession_DiscoveryExtended(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: true, ConfigsPerDisplay: 2}, nil)

	displays, err := s.Displays(context.Background())
	require.NoError(t, err)
	require.Len(t, displays, 1)

	display := displays[0]
	width, height := display.Dimensions()
	assert.GreaterOrEqual(t, width, int32(0))
	assert.GreaterOrEqual(t, height, int32(0))
	assert.Equal(t, int32(1920), width)
	assert.Equal(t, int32(1080), height)
	assert.Len(t, display.Configs(), 2)

	assert.True(t, s.Registry().HasDisplay(display.ID()))
	assert.False(t, s.Registry().IsVirtual(display.ID()))
}

func TestSession_DiscoveryLegacyAttributeQueries(t *testing.T) {
	var ic *instrumentedClient
	s := newTestSession(t, halsim.Options{InterfaceVersion: 2, ConfigsPerDisplay: 2},
		func(c hal.Client) hal.Client {
			ic = &instrumentedClient{Client: c}
			return ic
		})

	displays, err := s.Displays(context.Background())
	require.NoError(t, err)
	require.Len(t, displays, 1)

	// One query per (config, attribute) pair: 2 configs x {vsync, group}.
	assert.Equal(t, 2, ic.attributeCalls[hal.AttributeVsyncPeriod])
	assert.Equal(t, 2, ic.attributeCalls[hal.AttributeConfigGroup])

	display := displays[0]
	for id, dc := range display.Configs() {
		assert.Positive(t, dc.VsyncPeriodNs, "config %d", id)
	}
	width, height := display.Dimensions()
	assert.Equal(t, int32(1920), width)
	assert.Equal(t, int32(1080), height)
}

func TestSession_DiscoveryTimeout(t *testing.T) {
	service := &wrappedService{
		Service: halsim.New(halsim.Options{}),
		wrap: func(c hal.Client) hal.Client {
			return &instrumentedClient{Client: c, suppressEvents: true}
		},
	}
	s, err := New(service, Options{
		PollInterval:     time.Millisecond,
		DiscoveryTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = s.Displays(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display reported")
}

func TestSession_DiscoveryCancellation(t *testing.T) {
	service := &wrappedService{
		Service: halsim.New(halsim.Options{}),
		wrap: func(c hal.Client) hal.Client {
			return &instrumentedClient{Client: c, suppressEvents: true}
		},
	}
	s, err := New(service, Options{PollInterval: time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = s.Displays(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSession_SetActiveConfigWithConstraints(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, ConfigsPerDisplay: 2}, nil)

	displays, err := s.Displays(context.Background())
	require.NoError(t, err)
	display := displays[0]

	_, err = s.SetActiveConfigWithConstraints(display, 1, hal.VsyncPeriodChangeConstraints{
		DesiredTimeNanos: 12345,
	})
	require.NoError(t, err)

	timeline := s.TakeLastVsyncPeriodChangeTimeline()
	require.NotNil(t, timeline)
	assert.Equal(t, int64(12345), timeline.NewVsyncAppliedTimeNanos)

	// The solicited timeline is not an anomaly.
	assert.True(t, s.Events().Anomalies().Zero())

	active, err := s.ActiveConfig(display.ID())
	require.NoError(t, err)
	assert.Equal(t, hal.ConfigID(1), active)
}

func TestSession_SetPeakRefreshRateConfig(t *testing.T) {
	// Config 1 halves the vsync period within the same group.
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, ConfigsPerDisplay: 2}, nil)

	displays, err := s.Displays(context.Background())
	require.NoError(t, err)
	display := displays[0]

	require.NoError(t, s.SetPeakRefreshRateConfig(display))

	active, err := s.ActiveConfig(display.ID())
	require.NoError(t, err)
	assert.Equal(t, hal.ConfigID(1), active)
}

func TestSession_InvalidDisplayID(t *testing.T) {
	s := newTestSession(t, halsim.Options{}, nil)

	_, err := s.Displays(context.Background())
	require.NoError(t, err)

	assert.Equal(t, hal.DisplayID(math.MaxInt64), s.InvalidDisplayID())
}

func TestSession_TearDown(t *testing.T) {
	for _, batched := range []bool{true, false} {
		name := "unbatched"
		if batched {
			name = "batched"
		}
		t.Run(name, func(t *testing.T) {
			s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: batched}, nil)

			displays, err := s.Displays(context.Background())
			require.NoError(t, err)
			physical := displays[0].ID()

			_, err = s.CreateLayer(physical, 2)
			require.NoError(t, err)
			_, err = s.CreateLayer(physical, 2)
			require.NoError(t, err)

			vd, err := s.CreateVirtualDisplay(640, 480, hal.PixelFormatRGBA8888, 2)
			require.NoError(t, err)
			_, err = s.CreateLayer(vd.Display, 2)
			require.NoError(t, err)

			require.NoError(t, s.TearDown())

			// Virtual displays and all layers are gone; the physical
			// display survives with an empty layer set.
			assert.Equal(t, []hal.DisplayID{physical}, s.Registry().Displays())
			assert.Zero(t, s.Registry().LayerCount())
			assert.False(t, s.Registry().IsVirtual(physical))
		})
	}
}

func TestSession_TearDownWithConfirmedBatchedLayers(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, BatchedLifecycle: true}, nil)

	displays, err := s.Displays(context.Background())
	require.NoError(t, err)
	physical := displays[0].ID()

	_, err = s.CreateLayer(physical, 2)
	require.NoError(t, err)

	vd, err := s.CreateVirtualDisplay(640, 480, hal.PixelFormatRGBA8888, 2)
	require.NoError(t, err)
	_, err = s.CreateLayer(vd.Display, 2)
	require.NoError(t, err)

	// The layers exist remotely before teardown starts.
	results, err := s.Flush()
	require.NoError(t, err)
	for _, result := range results {
		require.Nil(t, result.Error)
	}
	s.ConfirmPending()

	// Teardown must land the virtual display's layer destroy before the
	// display itself is destroyed.
	require.NoError(t, s.TearDown())

	assert.Equal(t, []hal.DisplayID{physical}, s.Registry().Displays())
	assert.Zero(t, s.Registry().LayerCount())
	assert.True(t, s.Writer().Empty())
}

func TestSession_ConstrainedSwitchFailureClosesTimelineWindow(t *testing.T) {
	var ic *instrumentedClient
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3, ConfigsPerDisplay: 2},
		func(c hal.Client) hal.Client {
			ic = &instrumentedClient{Client: c}
			return ic
		})

	displays, err := s.Displays(context.Background())
	require.NoError(t, err)

	ic.constrainedSetErr = hal.ErrSeamlessNotPossible
	_, err = s.SetActiveConfigWithConstraints(displays[0], 1, hal.VsyncPeriodChangeConstraints{})
	require.ErrorIs(t, err, hal.ErrSeamlessNotPossible)

	// A timeline arriving after the failed request is unsolicited.
	s.Events().OnVsyncPeriodTimingChanged(displays[0].ID(), hal.VsyncPeriodChangeTimeline{})
	assert.Equal(t, 1, s.Events().Anomalies().VsyncPeriodChange)
}

func TestSession_TearDownReportsAnomalies(t *testing.T) {
	sim := halsim.New(halsim.Options{InterfaceVersion: 3})
	s, err := New(sim, testOptions())
	require.NoError(t, err)

	_, err = s.Displays(context.Background())
	require.NoError(t, err)
	_, err = s.CreateLayer(1, 2)
	require.NoError(t, err)

	// An unsolicited refresh marks teardown as failed without blocking the
	// destructive phase.
	sim.Refresh(1)

	err = s.TearDown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected events")
	assert.Zero(t, s.Registry().LayerCount())
}

func TestSession_TearDownAbortsOnDestroyFailure(t *testing.T) {
	var ic *instrumentedClient
	s := newTestSession(t, halsim.Options{InterfaceVersion: 2},
		func(c hal.Client) hal.Client {
			ic = &instrumentedClient{Client: c}
			return ic
		})

	layer, err := s.CreateLayer(1, 2)
	require.NoError(t, err)

	ic.destroyLayerErr = hal.ErrNoResources
	err = s.TearDown()
	require.ErrorIs(t, err, hal.ErrNoResources)

	// The failed layer is still owned for inspection.
	assert.Equal(t, []hal.LayerID{layer}, s.Registry().Layers(1))
}

func TestSession_VirtualDisplayLifecycle(t *testing.T) {
	s := newTestSession(t, halsim.Options{InterfaceVersion: 3}, nil)

	vd, err := s.CreateVirtualDisplay(800, 600, hal.PixelFormatRGBA8888, 2)
	require.NoError(t, err)
	assert.True(t, s.Registry().IsVirtual(vd.Display))

	require.NoError(t, s.DestroyVirtualDisplay(vd.Display))
	assert.False(t, s.Registry().HasDisplay(vd.Display))
}
