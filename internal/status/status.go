// Package status provides a thread-safe status tracker for the switch-sensor daemon.
// The run loop writes to it; HTTP handlers read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/switch-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
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
	Name        string
	Mode        string
	Pin         int
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Classification logic.Classification
	Thresholds     logic.Thresholds
	Counts         logic.EventCounts
	LastEvent      *logic.Event
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
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
		},
	}
}

// Update sets the current classification, thresholds and counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(c logic.Classification, th logic.Thresholds, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Classification = c
	t.snap.Thresholds = th
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordEvent stores the most recent gesture event.
func (t *Tracker) RecordEvent(e logic.Event) {
	t.mu.Lock()
	t.snap.LastEvent = &e
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
	if s.LastEvent != nil {
		e := *s.LastEvent
		s.LastEvent = &e
	}
	s.Now = time.Now()
	return s
}
