// Package status provides a thread-safe status tracker for the cafeteira daemon.
// It is read by the HTTP handlers and by the MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/cafeteira/internal/device"
	"github.com/sweeney/cafeteira/internal/network"
)

// Config contains daemon configuration for display.
type Config struct {
	DebounceMs       int64
	TelemetryMs      int64
	DisplayTimeoutMs int64
	HeartbeatMs      int64
	Broker           string
	TopicPrefix      string
	HTTPPort         string
}

// Counts are cumulative activity counters.
type Counts struct {
	ButtonPresses   int64
	ButtonDiscarded int64
	Commands        int64
	CommandsIgnored int64
	Renders         int64
	RendersSkipped  int64
	RendersFailed   int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Device        device.Snapshot
	Phase         string
	MQTTConnected bool
	Counts        Counts
	StartTime     time.Time
	Now           time.Time
	Network       *network.Info
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

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Phase:     "WAITING_NETWORK",
		},
	}
}

// Update records the latest device state.
func (t *Tracker) Update(dev device.Snapshot) {
	t.mu.Lock()
	t.snap.Device = dev
	t.mu.Unlock()
}

// SetPhase records the connection phase.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.snap.Phase = phase
	t.mu.Unlock()
}

// SetCounts records the activity counters.
func (t *Tracker) SetCounts(c Counts) {
	t.mu.Lock()
	t.snap.Counts = c
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *network.Info) {
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
