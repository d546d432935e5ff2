package session

import (
	"sync"
	"time"

	"github.com/displayhal/composerconf/internal/hal"
	"github.com/displayhal/composerconf/internal/logger"
)

// AnomalyCounts tallies notifications that arrived outside their expected
// windows. Any non-zero field marks the session's teardown as failed.
type AnomalyCounts struct {
	Hotplug           int
	Refresh           int
	Vsync             int
	VsyncPeriodChange int
	SeamlessPossible  int
	RefreshRateDebug  int
}

// Zero reports whether no anomalous events were observed.
func (c AnomalyCounts) Zero() bool {
	return c == AnomalyCounts{}
}

// Collector is the passive sink for asynchronous service notifications. The
// service delivers events on its own thread while the session polls from the
// main thread, so every accessor takes the mutex.
//
// Events are recorded, never transformed. Validity rules: a vsync while
// vsync is not allowed, a hotplug that contradicts the known display set, a
// refresh or seamless-possible at any time (the harness never solicits
// them), a vsync-period-change with no change request outstanding, and
// refresh-rate debug data while the debug callback is disabled all count as
// anomalies.
type Collector struct {
	mu sync.Mutex

	displays    []hal.DisplayID // connected displays in arrival order
	vsyncCounts map[hal.DisplayID]int

	vsyncAllowed             bool
	refreshRateDebugAllowed  bool
	vsyncPeriodChangeAllowed bool

	lastTimeline         *hal.VsyncPeriodChangeTimeline
	refreshRateDebugData []hal.RefreshRateChangedDebugData

	vsyncIdleCount  int32
	vsyncIdleTimeNs int64

	anomalies AnomalyCounts
}

// NewCollector returns a collector with all gates closed.
func NewCollector() *Collector {
	return &Collector{}
}

var _ hal.EventHandler = (*Collector)(nil)

// OnHotplug records a display connection change. A connect for a known id or
// a disconnect for an unknown id is anomalous.
func (c *Collector) OnHotplug(display hal.DisplayID, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := -1
	for i, id := range c.displays {
		if id == display {
			index = i
			break
		}
	}
	if connected {
		if index >= 0 {
			c.anomalies.Hotplug++
			return
		}
		c.displays = append(c.displays, display)
		return
	}
	if index < 0 {
		c.anomalies.Hotplug++
		return
	}
	c.displays = append(c.displays[:index], c.displays[index+1:]...)
}

// OnRefresh records a refresh request. The harness never solicits one.
func (c *Collector) OnRefresh(display hal.DisplayID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anomalies.Refresh++
	logger.Debugf("unexpected refresh event for display %d", display)
}

// OnVsync records a vsync tick; anomalous unless vsync was enabled.
func (c *Collector) OnVsync(display hal.DisplayID, timestampNs int64, vsyncPeriodNs int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.vsyncAllowed {
		c.anomalies.Vsync++
	}
	if c.vsyncCounts == nil {
		c.vsyncCounts = make(map[hal.DisplayID]int)
	}
	c.vsyncCounts[display]++
}

// OnVsyncPeriodTimingChanged records the timeline of a config switch. The
// latest timeline replaces any earlier one; anomalous when no switch with
// constraints is outstanding.
func (c *Collector) OnVsyncPeriodTimingChanged(display hal.DisplayID, timeline hal.VsyncPeriodChangeTimeline) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.vsyncPeriodChangeAllowed {
		c.anomalies.VsyncPeriodChange++
	}
	t := timeline
	c.lastTimeline = &t
}

// OnSeamlessPossible records a seamless-possible hint; always anomalous.
func (c *Collector) OnSeamlessPossible(display hal.DisplayID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.anomalies.SeamlessPossible++
}

// OnVsyncIdle records an idle notification from the display's vsync engine.
func (c *Collector) OnVsyncIdle(display hal.DisplayID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vsyncIdleCount++
	c.vsyncIdleTimeNs = time.Now().UnixNano()
}

// OnRefreshRateChangedDebug appends refresh-rate debug data; anomalous while
// the debug callback is disabled.
func (c *Collector) OnRefreshRateChangedDebug(data hal.RefreshRateChangedDebugData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.refreshRateDebugAllowed {
		c.anomalies.RefreshRateDebug++
	}
	c.refreshRateDebugData = append(c.refreshRateDebugData, data)
}

// Displays returns a snapshot of the connected display ids in arrival order.
func (c *Collector) Displays() []hal.DisplayID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]hal.DisplayID, len(c.displays))
	copy(ids, c.displays)
	return ids
}

// VsyncCount returns how many vsync ticks arrived for the display.
func (c *Collector) VsyncCount(display hal.DisplayID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vsyncCounts[display]
}

// SetVsyncAllowed opens or closes the vsync window.
func (c *Collector) SetVsyncAllowed(allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vsyncAllowed = allowed
}

// SetRefreshRateDebugAllowed opens or closes the refresh-rate debug window.
func (c *Collector) SetRefreshRateDebugAllowed(allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshRateDebugAllowed = allowed
}

// ExpectVsyncPeriodChange opens the window for one or more timeline events.
// The session calls this before requesting a config switch with constraints.
func (c *Collector) ExpectVsyncPeriodChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vsyncPeriodChangeAllowed = true
}

// CancelVsyncPeriodChange closes the expectation window without touching a
// recorded timeline. The session calls this when the change request itself
// failed and no timeline is owed.
func (c *Collector) CancelVsyncPeriodChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vsyncPeriodChangeAllowed = false
}

// TakeLastVsyncPeriodChangeTimeline returns and clears the most recent
// timeline, and closes the expectation window. Nil when none arrived.
func (c *Collector) TakeLastVsyncPeriodChangeTimeline() *hal.VsyncPeriodChangeTimeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	timeline := c.lastTimeline
	c.lastTimeline = nil
	c.vsyncPeriodChangeAllowed = false
	return timeline
}

// TakeRefreshRateChangedDebugData returns and clears the accumulated debug
// data.
func (c *Collector) TakeRefreshRateChangedDebugData() []hal.RefreshRateChangedDebugData {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.refreshRateDebugData
	c.refreshRateDebugData = nil
	return data
}

// VsyncIdleCount returns how many idle notifications arrived.
func (c *Collector) VsyncIdleCount() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vsyncIdleCount
}

// VsyncIdleTime returns the arrival time of the last idle notification in
// nanoseconds, or 0 if none arrived.
func (c *Collector) VsyncIdleTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vsyncIdleTimeNs
}

// Anomalies returns a snapshot of the anomaly counters.
func (c *Collector) Anomalies() AnomalyCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anomalies
}
