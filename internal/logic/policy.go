package logic

import (
	"fmt"
	"time"
)

// ClockTime is a time of day as an offset from local midnight.
type ClockTime time.Duration

// ParseClockTime parses "HH:MM" or "HH:MM:SS".
func ParseClockTime(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return ClockTime(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
}

// String formats the clock time as HH:MM:SS.
func (c ClockTime) String() string {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// clockOf returns the offset of t from midnight in t's own location.
func clockOf(t time.Time) ClockTime {
	h, m, s := t.Clock()
	return ClockTime(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// LightWindow is the daytime span during which the light stays off.
type LightWindow struct {
	OffFrom  ClockTime // 08:00
	OffUntil ClockTime // 17:00
}

// FanBand holds the fan hysteresis thresholds in degrees Celsius.
type FanBand struct {
	OnAt     float64 // 23
	OffBelow float64 // 22
}

// DecideLight returns the light decision for the given time and presence.
// The boundaries themselves count as outside the daytime window.
func DecideLight(now time.Time, childPresent, adultPresent bool, w LightWindow) Switch {
	t := clockOf(now)
	someone := childPresent || adultPresent

	if (t <= w.OffFrom || t >= w.OffUntil) && someone {
		return Switch{On: true}
	}
	if (t > w.OffFrom && t < w.OffUntil) || !someone {
		return Switch{Off: true}
	}
	return Switch{}
}

// DecideFan returns the fan decision for the given temperature and presence.
// Off ignores presence; on requires it. Everything in between holds.
func DecideFan(temperature float64, childPresent, adultPresent bool, b FanBand) Switch {
	if temperature >= b.OnAt && (childPresent || adultPresent) {
		return Switch{On: true}
	}
	if temperature < b.OffBelow {
		return Switch{Off: true}
	}
	return Switch{}
}
