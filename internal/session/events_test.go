package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/displayhal/composerconf/internal/hal"
)

func TestCollector_Hotplug(t *testing.T) {
	c := NewCollector()

	c.OnHotplug(1, true)
	c.OnHotplug(2, true)
	assert.Equal(t, []hal.DisplayID{1, 2}, c.Displays())

	c.OnHotplug(1, false)
	assert.Equal(t, []hal.DisplayID{2}, c.Displays())
	assert.True(t, c.Anomalies().Zero())

	t.Run("connect for known display is anomalous", func(t *testing.T) {
		c.OnHotplug(2, true)
		assert.Equal(t, 1, c.Anomalies().Hotplug)
		assert.Equal(t, []hal.DisplayID{2}, c.Displays())
	})

	t.Run("disconnect for unknown display is anomalous", func(t *testing.T) {
		c.OnHotplug(42, false)
		assert.Equal(t, 2, c.Anomalies().Hotplug)
	})
}

func TestCollector_VsyncGate(t *testing.T) {
	c := NewCollector()

	c.OnVsync(1, 1000, 16_666_666)
	assert.Equal(t, 1, c.Anomalies().Vsync)

	c.SetVsyncAllowed(true)
	c.OnVsync(1, 2000, 16_666_666)
	assert.Equal(t, 1, c.Anomalies().Vsync)

	c.SetVsyncAllowed(false)
	c.OnVsync(1, 3000, 16_666_666)
	assert.Equal(t, 2, c.Anomalies().Vsync)

	// Every tick counts toward the per-display total, anomalous or not.
	assert.Equal(t, 3, c.VsyncCount(1))
	assert.Equal(t, 0, c.VsyncCount(2))
}

func TestCollector_VsyncPeriodChangeTimeline(t *testing.T) {
	c := NewCollector()

	t.Run("unsolicited timeline is anomalous but recorded", func(t *testing.T) {
		c.OnVsyncPeriodTimingChanged(1, hal.VsyncPeriodChangeTimeline{NewVsyncAppliedTimeNanos: 100})
		assert.Equal(t, 1, c.Anomalies().VsyncPeriodChange)

		timeline := c.TakeLastVsyncPeriodChangeTimeline()
		require.NotNil(t, timeline)
		assert.Equal(t, int64(100), timeline.NewVsyncAppliedTimeNanos)
	})

	t.Run("take clears the record", func(t *testing.T) {
		assert.Nil(t, c.TakeLastVsyncPeriodChangeTimeline())
	})

	t.Run("expected timeline is not anomalous and latest wins", func(t *testing.T) {
		c.ExpectVsyncPeriodChange()
		c.OnVsyncPeriodTimingChanged(1, hal.VsyncPeriodChangeTimeline{NewVsyncAppliedTimeNanos: 200})
		c.OnVsyncPeriodTimingChanged(1, hal.VsyncPeriodChangeTimeline{NewVsyncAppliedTimeNanos: 300})
		assert.Equal(t, 1, c.Anomalies().VsyncPeriodChange)

		timeline := c.TakeLastVsyncPeriodChangeTimeline()
		require.NotNil(t, timeline)
		assert.Equal(t, int64(300), timeline.NewVsyncAppliedTimeNanos)
	})

	t.Run("take closes the expectation window", func(t *testing.T) {
		c.OnVsyncPeriodTimingChanged(1, hal.VsyncPeriodChangeTimeline{})
		assert.Equal(t, 2, c.Anomalies().VsyncPeriodChange)
	})

	t.Run("cancel closes the window without taking a timeline", func(t *testing.T) {
		c.ExpectVsyncPeriodChange()
		c.CancelVsyncPeriodChange()
		c.OnVsyncPeriodTimingChanged(1, hal.VsyncPeriodChangeTimeline{})
		assert.Equal(t, 3, c.Anomalies().VsyncPeriodChange)
	})
}

func TestCollector_RefreshRateDebug(t *testing.T) {
	c := NewCollector()

	c.OnRefreshRateChangedDebug(hal.RefreshRateChangedDebugData{Display: 1, VsyncPeriodNanos: 111})
	assert.Equal(t, 1, c.Anomalies().RefreshRateDebug)

	c.SetRefreshRateDebugAllowed(true)
	c.OnRefreshRateChangedDebug(hal.RefreshRateChangedDebugData{Display: 1, VsyncPeriodNanos: 222})
	assert.Equal(t, 1, c.Anomalies().RefreshRateDebug)

	data := c.TakeRefreshRateChangedDebugData()
	require.Len(t, data, 2)
	assert.Equal(t, int32(111), data[0].VsyncPeriodNanos)
	assert.Equal(t, int32(222), data[1].VsyncPeriodNanos)
	assert.Empty(t, c.TakeRefreshRateChangedDebugData())
}

func TestCollector_AlwaysAnomalousEvents(t *testing.T) {
	c := NewCollector()

	c.OnRefresh(1)
	c.OnSeamlessPossible(1)

	anomalies := c.Anomalies()
	assert.Equal(t, 1, anomalies.Refresh)
	assert.Equal(t, 1, anomalies.SeamlessPossible)
	assert.False(t, anomalies.Zero())
}

func TestCollector_VsyncIdle(t *testing.T) {
	c := NewCollector()
	assert.Equal(t, int32(0), c.VsyncIdleCount())
	assert.Equal(t, int64(0), c.VsyncIdleTime())

	c.OnVsyncIdle(1)
	c.OnVsyncIdle(1)
	assert.Equal(t, int32(2), c.VsyncIdleCount())
	assert.NotZero(t, c.VsyncIdleTime())
	assert.True(t, c.Anomalies().Zero())
}

// Events arrive on the service's delivery thread while the session polls
// from the main thread; the collector must tolerate both at once.
func TestCollector_ConcurrentDelivery(t *testing.T) {
	c := NewCollector()
	c.SetVsyncAllowed(true)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(id hal.DisplayID) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.OnVsync(id, int64(i), 16_666_666)
				c.OnVsyncIdle(id)
			}
		}(hal.DisplayID(g + 1))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			c.Displays()
			c.Anomalies()
			c.VsyncIdleCount()
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, int32(4000), c.VsyncIdleCount())
	assert.True(t, c.Anomalies().Zero())
}
