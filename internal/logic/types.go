// Package logic contains the pure decision logic for the room monitor.
// This package has NO external dependencies (no BLE, MQTT, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Role identifies which tracked person a beacon belongs to.
type Role string

const (
	RoleChild Role = "child"
	RoleAdult Role = "adult"
)

// Reading is a single beacon sighting from one scan pass.
type Reading struct {
	Identity string // beacon address, e.g. "ef:e3:bb:09:63:cc"
	RSSI     int    // signal strength in dBm
}

// Person is the per-instance presence state for one tracked beacon.
type Person struct {
	Role     Role
	Identity string

	// InRoom is recomputed on every pass and never carries over.
	InRoom bool
	// Found reports whether the beacon was seen at all this pass.
	Found bool
	// LastSeenAt is the time of the most recent pass with InRoom set.
	LastSeenAt time.Time
	// LastReading is the most recent matched reading. Stale when !Found.
	LastReading *Reading
}

// Presence is the result of one presence update.
type Presence struct {
	Child          bool
	Adult          bool
	SinceAdultSeen time.Duration
	ChildReading   *Reading
	AdultReading   *Reading
}

// Anyone reports whether at least one tracked person is in the room.
func (p Presence) Anyone() bool {
	return p.Child || p.Adult
}

// Switch is an actuator decision. Both false means "no change".
// On and Off are never both true.
type Switch struct {
	On  bool
	Off bool
}

// String returns "ON", "OFF" or "HOLD".
func (s Switch) String() string {
	switch {
	case s.On:
		return "ON"
	case s.Off:
		return "OFF"
	default:
		return "HOLD"
	}
}

// Snapshot is the decision payload pushed to the relay each pass.
type Snapshot struct {
	Temperature  float64
	Light        Switch
	Fan          Switch
	ChildPresent bool
	AdultPresent bool
	ClipURL      string // empty until the first clip is uploaded
}
