// Package status provides a thread-safe status tracker for the blinker daemon.
// The run loop writes to it; HTTP handlers and MQTT snapshots read from it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/blinker/internal/blink"
	"github.com/sweeney/blinker/internal/control"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// BoardInfo describes the indicator hardware in use.
type BoardInfo struct {
	Name      string
	Model     string // device tree model, if detected
	Driver    string
	Chip      string
	Line      int
	ActiveLow bool
	SysfsName string
	RGB       bool
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	WSBroker    string // Websocket broker URL for browser MQTT (empty = disabled)
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Run           blink.RunState
	Plan          string
	Transitions   uint64
	Counts        control.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Board         BoardInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, board and config.
func NewTracker(startTime time.Time, board BoardInfo, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Board:     board,
			Config:    cfg,
		},
	}
}

// Update records machine progress and lifecycle counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(run blink.RunState, transitions uint64, counts control.Counts) {
	plan := ""
	if run.Phase != blink.PhaseIdle {
		plan = run.Plan.String()
	}

	t.mu.Lock()
	t.snap.Run = run
	t.snap.Plan = plan
	t.snap.Transitions = transitions
	t.snap.Counts = counts
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
	s.Now = time.Now()
	return s
}
