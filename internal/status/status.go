// Package status provides a thread-safe diagnostics tracker for the outlet
// daemon. It is read by the HTTP status server and the MQTT heartbeat.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/spot-outlet/internal/logic"
	"github.com/sweeney/spot-outlet/internal/state"
)

// NetworkInfo contains network state as written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Threshold      string
	Area           string
	Currency       string
	Timezone       string
	ButtonPollMs   int64
	ActuatorPollMs int64
	MinSleepMs     int64
	MaxSleepMs     int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// Hardware reports which outputs are backed by real GPIO lines.
type Hardware struct {
	Button bool
	Outlet bool
	LED    bool
}

// FetchInfo describes the most recent price fetch attempt.
type FetchInfo struct {
	At                  time.Time
	Err                 string
	Day                 string // day of the cached schedule
	Entries             int
	ConsecutiveFailures int
}

// OffsetSource reports the clock correction in effect.
type OffsetSource interface {
	Offset() (time.Duration, time.Time)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Situation     logic.Situation
	Actuation     logic.Actuation
	Applied       bool // false until the first actuation
	AppliedAt     time.Time
	Actuations    int
	Fetch         FetchInfo
	ClockOffset   time.Duration
	ClockSyncedAt time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Hardware      Hardware
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon diagnostics behind an RWMutex. The current
// Situation and clock offset are read from their owners at snapshot time.
type Tracker struct {
	store *state.Store
	clock OffsetSource

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker. clock may be nil.
func NewTracker(startTime time.Time, cfg Config, store *state.Store, clock OffsetSource) *Tracker {
	return &Tracker{
		store: store,
		clock: clock,
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordFetch records a fetch attempt. day and entries describe the schedule
// cached after the attempt.
func (t *Tracker) RecordFetch(at time.Time, day string, entries int, err error) {
	t.mu.Lock()
	t.snap.Fetch.At = at
	t.snap.Fetch.Day = day
	t.snap.Fetch.Entries = entries
	if err != nil {
		t.snap.Fetch.Err = err.Error()
		t.snap.Fetch.ConsecutiveFailures++
	} else {
		t.snap.Fetch.Err = ""
		t.snap.Fetch.ConsecutiveFailures = 0
	}
	t.mu.Unlock()
}

// RecordActuation records the outputs applied at time at.
func (t *Tracker) RecordActuation(at time.Time, a logic.Actuation) {
	t.mu.Lock()
	t.snap.Actuation = a
	t.snap.Applied = true
	t.snap.AppliedAt = at
	t.snap.Actuations++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetHardware records which devices were found at startup.
func (t *Tracker) SetHardware(hw Hardware) {
	t.mu.Lock()
	t.snap.Hardware = hw
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	if t.store != nil {
		s.Situation = t.store.Load()
	}
	if t.clock != nil {
		s.ClockOffset, s.ClockSyncedAt = t.clock.Offset()
	}
	s.Now = time.Now()
	return s
}
