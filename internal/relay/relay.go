// Package relay pushes each pass's decisions to the cloud automation relay.
//
// The relay is a ThingSpeak channel. Reacts on the channel watch the
// light/fan fields and fire ThingHTTP calls that switch the smart plugs.
package relay

import (
	"context"
	"net/url"
	"strconv"

	"github.com/dcorrigan/room-monitor/internal/logic"
)

// DefaultURL is the ThingSpeak channel update endpoint.
const DefaultURL = "https://api.thingspeak.com/update"

// Publisher pushes a decision snapshot to the relay.
type Publisher interface {
	// Publish sends the snapshot. Failures are *faults.TransportError and
	// must not stop the main loop; the next pass re-sends current state.
	Publish(ctx context.Context, snap logic.Snapshot) error
}

// yn encodes a flag the way the channel's Reacts expect.
func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// FormatFields encodes the snapshot as the channel's eight ordered fields:
// temperature, lightOn, lightOff, childPresent, adultPresent, fanOn, fanOff,
// clipURL.
func FormatFields(snap logic.Snapshot) url.Values {
	v := url.Values{}
	v.Set("field1", strconv.FormatFloat(snap.Temperature, 'f', 2, 64))
	v.Set("field2", yn(snap.Light.On))
	v.Set("field3", yn(snap.Light.Off))
	v.Set("field4", yn(snap.ChildPresent))
	v.Set("field5", yn(snap.AdultPresent))
	v.Set("field6", yn(snap.Fan.On))
	v.Set("field7", yn(snap.Fan.Off))
	v.Set("field8", snap.ClipURL)
	return v
}
