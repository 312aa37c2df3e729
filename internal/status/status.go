// Package status provides a thread-safe status tracker for the room monitor.
// The main loop writes it once per pass; the HTTP page and the companion
// heartbeat read it.
package status

import (
	"sync"
	"time"

	"github.com/dcorrigan/room-monitor/internal/logic"
)

// NetworkInfo contains network state supplied by the service environment.
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
	PollMs       int64
	ScanMs       int64
	Threshold    int
	HeartbeatMs  int64
	Broker       string
	HTTPPort     string
	VideoEnabled bool
}

// Counts are monotonic counters since startup.
type Counts struct {
	Passes          int
	Clips           int
	CaptureFailures int
	RelayFailures   int
	ManualRequests  int
}

// Pass is what the main loop reports after each decision step.
type Pass struct {
	Temperature  float64
	Presence     logic.Presence
	Light        logic.Switch
	Fan          logic.Switch
	FanTriggered bool
	Trigger      logic.TriggerState
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Pass
	Ready              bool // at least one pass completed
	LastPassAt         time.Time
	LastClipURL        string
	LastClipAt         time.Time
	Counts             Counts
	StartTime          time.Time
	Now                time.Time
	CompanionConnected bool
	Network            *NetworkInfo
	Config             Config
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
			Pass:      Pass{Trigger: logic.TriggerIdle},
		},
	}
}

// RecordPass stores the outcome of one loop pass.
func (t *Tracker) RecordPass(p Pass, at time.Time) {
	t.mu.Lock()
	// readings are pointers into the tracker's persons; copy them out
	p.Presence.ChildReading = copyReading(p.Presence.ChildReading)
	p.Presence.AdultReading = copyReading(p.Presence.AdultReading)
	t.snap.Pass = p
	t.snap.Ready = true
	t.snap.LastPassAt = at
	t.snap.Counts.Passes++
	t.mu.Unlock()
}

// SetTrigger updates the trigger state between passes, e.g. while a capture runs.
func (t *Tracker) SetTrigger(s logic.TriggerState) {
	t.mu.Lock()
	t.snap.Trigger = s
	t.mu.Unlock()
}

// RecordClip stores the latest published clip. It does not count as a new
// capture when restoring from the journal at startup; see RestoreClip.
func (t *Tracker) RecordClip(url string, at time.Time) {
	t.mu.Lock()
	t.snap.LastClipURL = url
	t.snap.LastClipAt = at
	t.snap.Counts.Clips++
	t.mu.Unlock()
}

// RestoreClip sets the last clip without touching the counters.
func (t *Tracker) RestoreClip(url string, at time.Time) {
	t.mu.Lock()
	t.snap.LastClipURL = url
	t.snap.LastClipAt = at
	t.mu.Unlock()
}

// RecordCaptureFailure counts a failed capture.
func (t *Tracker) RecordCaptureFailure() {
	t.mu.Lock()
	t.snap.Counts.CaptureFailures++
	t.mu.Unlock()
}

// RecordRelayFailure counts a failed relay push.
func (t *Tracker) RecordRelayFailure() {
	t.mu.Lock()
	t.snap.Counts.RelayFailures++
	t.mu.Unlock()
}

// RecordManualRequest counts an override received from the companion app.
func (t *Tracker) RecordManualRequest() {
	t.mu.Lock()
	t.snap.Counts.ManualRequests++
	t.mu.Unlock()
}

// SetCompanionConnected sets the companion channel connection status.
func (t *Tracker) SetCompanionConnected(connected bool) {
	t.mu.Lock()
	t.snap.CompanionConnected = connected
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

func copyReading(r *logic.Reading) *logic.Reading {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
