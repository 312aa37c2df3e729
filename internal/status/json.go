package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Ready         bool          `json:"ready"`
	Temperature   float64       `json:"temperature"`
	Light         string        `json:"light"`
	Fan           string        `json:"fan"`
	FanTriggered  bool          `json:"fan_triggered"`
	Presence      PresenceJSON  `json:"presence"`
	Video         VideoJSON     `json:"video"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	LastPass      string        `json:"last_pass,omitempty"`
	Companion     CompanionJSON `json:"companion"`
	Counts        CountsJSON    `json:"counts"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// PresenceJSON reports who is in the room.
type PresenceJSON struct {
	Child                 bool  `json:"child"`
	Adult                 bool  `json:"adult"`
	ChildRSSI             *int  `json:"child_rssi,omitempty"`
	AdultRSSI             *int  `json:"adult_rssi,omitempty"`
	SinceAdultSeenSeconds int64 `json:"since_adult_seen_seconds"`
}

// VideoJSON reports trigger state and the last clip.
type VideoJSON struct {
	Trigger    string `json:"trigger"`
	LastClip   string `json:"last_clip,omitempty"`
	LastClipAt string `json:"last_clip_at,omitempty"`
}

// CompanionJSON reports companion channel connection state.
type CompanionJSON struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the counters.
type CountsJSON struct {
	Passes          int `json:"passes"`
	Clips           int `json:"clips"`
	CaptureFailures int `json:"capture_failures"`
	RelayFailures   int `json:"relay_failures"`
	ManualRequests  int `json:"manual_requests"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	ScanMs       int64  `json:"scan_ms"`
	Threshold    int    `json:"threshold_dbm"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
	VideoEnabled bool   `json:"video_enabled"`
}

func buildInner(snap Snapshot) StatusInner {
	trigger := string(snap.Trigger)
	if trigger == "" {
		trigger = "UNKNOWN"
	}

	inner := StatusInner{
		Ready:        snap.Ready,
		Temperature:  snap.Temperature,
		Light:        snap.Light.String(),
		Fan:          snap.Fan.String(),
		FanTriggered: snap.FanTriggered,
		Presence: PresenceJSON{
			Child:                 snap.Presence.Child,
			Adult:                 snap.Presence.Adult,
			SinceAdultSeenSeconds: int64(snap.Presence.SinceAdultSeen.Seconds()),
		},
		Video: VideoJSON{
			Trigger:  trigger,
			LastClip: snap.LastClipURL,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Companion:     CompanionJSON{Connected: snap.CompanionConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Passes:          snap.Counts.Passes,
			Clips:           snap.Counts.Clips,
			CaptureFailures: snap.Counts.CaptureFailures,
			RelayFailures:   snap.Counts.RelayFailures,
			ManualRequests:  snap.Counts.ManualRequests,
		},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			ScanMs:       snap.Config.ScanMs,
			Threshold:    snap.Config.Threshold,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
			VideoEnabled: snap.Config.VideoEnabled,
		},
	}
	if r := snap.Presence.ChildReading; r != nil {
		v := r.RSSI
		inner.Presence.ChildRSSI = &v
	}
	if r := snap.Presence.AdultReading; r != nil {
		v := r.RSSI
		inner.Presence.AdultRSSI = &v
	}
	if !snap.LastClipAt.IsZero() {
		inner.Video.LastClipAt = snap.LastClipAt.UTC().Format(time.RFC3339)
	}
	if !snap.LastPassAt.IsZero() {
		inner.LastPass = snap.LastPassAt.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a companion system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
