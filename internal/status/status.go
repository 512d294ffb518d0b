// Package status provides a thread-safe status tracker for the traffic-light daemon.
// It is read by the HTTP handlers and by the system events published to MQTT.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/traffic-light/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/config from status.
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
	TickMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Scale       int
	Broker      string
	Serial      string
	HTTPAddr    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
}

// State is the controller state copied in by the main loop.
type State struct {
	Left      logic.Level
	Right     logic.Level
	LeftOn    bool // indicator lamp lit
	RightOn   bool
	Phase     logic.Phase
	Remaining time.Duration // time left in the current phase when recorded
	Cycle     int
	Running   bool // false until the first phase has been entered
	Counts    logic.EventCounts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	State
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// LeftRate returns the indicator rate implied by the left level.
func (s Snapshot) LeftRate() logic.Rate { return logic.RateFor(s.Left) }

// RightRate returns the indicator rate implied by the right level.
func (s Snapshot) RightRate() logic.Rate { return logic.RateFor(s.Right) }

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update replaces the controller state.
// Called from the main loop on every phase entry and command.
func (t *Tracker) Update(s State) {
	t.mu.Lock()
	t.snap.State = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
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
	s.Now = t.now()
	return s
}
