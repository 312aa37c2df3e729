package logic

import (
	"strings"
	"time"
)

// Tracker owns the child and adult presence state across passes.
type Tracker struct {
	threshold int
	child     Person
	adult     Person
}

// NewTracker creates a tracker for the two beacons. A reading counts as
// in-room only when its RSSI is strictly greater than threshold.
// startTime seeds the adult's LastSeenAt so absence is measured from startup.
func NewTracker(childID, adultID string, threshold int, startTime time.Time) *Tracker {
	return &Tracker{
		threshold: threshold,
		child:     Person{Role: RoleChild, Identity: childID, LastSeenAt: startTime},
		adult:     Person{Role: RoleAdult, Identity: adultID, LastSeenAt: startTime},
	}
}

// Update applies one pass of readings and returns the derived presence.
func (t *Tracker) Update(readings []Reading, now time.Time) Presence {
	t.updatePerson(&t.child, readings, now)
	t.updatePerson(&t.adult, readings, now)

	p := Presence{
		Child:        t.child.InRoom,
		Adult:        t.adult.InRoom,
		ChildReading: t.child.LastReading,
		AdultReading: t.adult.LastReading,
	}

	if !t.adult.InRoom {
		if t.child.InRoom {
			p.SinceAdultSeen = now.Sub(t.adult.LastSeenAt)
		} else {
			// Nobody here: restart the adult-absence clock.
			t.adult.LastSeenAt = now
		}
	}
	return p
}

func (t *Tracker) updatePerson(p *Person, readings []Reading, now time.Time) {
	p.InRoom = false
	p.Found = false

	for i := range readings {
		r := readings[i]
		if !strings.EqualFold(r.Identity, p.Identity) {
			continue
		}
		p.Found = true
		p.LastReading = &r
	}

	if p.Found && p.LastReading.RSSI > t.threshold {
		p.InRoom = true
		p.LastSeenAt = now
	}
}

// Child returns a copy of the child's state.
func (t *Tracker) Child() Person {
	return t.child
}

// Adult returns a copy of the adult's state.
func (t *Tracker) Adult() Person {
	return t.adult
}
