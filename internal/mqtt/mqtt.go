// Package mqtt is the companion-app channel: a long-lived MQTT session that
// receives the manual "take video now" request and pushes the temperature,
// the latest clip URL and daemon status for the app to display.
package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Default topics follow the companion app's datastream naming: uplink
// values on ds/<pin>, app writes on downlink/ds/<pin>.
const (
	DefaultOverrideTopic    = "downlink/ds/V1"
	DefaultTemperatureTopic = "ds/V2"
	DefaultClipTopic        = "ds/V3"
	DefaultStatusTopic      = "room-monitor/system"
)

// ErrNotConnected is returned for unbuffered publishes while the session is down.
var ErrNotConnected = errors.New("mqtt: not connected")

// Channel is the outbound side of the companion session. Inbound override
// requests are delivered to the callback given at construction.
type Channel interface {
	// PublishTemperature pushes the current temperature. Not buffered.
	PublishTemperature(celsius float64) error

	// PublishClip announces the latest clip URL. Buffered while disconnected.
	PublishClip(url string) error

	// PublishSystem sends a lifecycle event. Buffered while disconnected.
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the session is up.
	IsConnected() bool

	// Close disconnects from the broker.
	Close() error
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the payload for system events without a status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// FormatTemperature renders a temperature the way the app's value widget
// expects: a bare decimal with two places.
func FormatTemperature(celsius float64) []byte {
	return []byte(strconv.FormatFloat(celsius, 'f', 2, 64))
}

// IsOverrideRequest reports whether an inbound payload is a button press.
// The app's button writes "1" on press and "0" on release.
func IsOverrideRequest(payload []byte) bool {
	return bytes.Equal(bytes.TrimSpace(payload), []byte("1"))
}
