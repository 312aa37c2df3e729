// Package ble provides proximity beacon scanning with hardware abstraction.
// The real implementation uses the BlueZ adapter through tinygo's bluetooth
// package. The fake implementation allows testing without hardware.
package ble

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dcorrigan/room-monitor/internal/logic"
)

// DefaultScanDuration is how long one discovery pass listens.
const DefaultScanDuration = 10 * time.Second

// Scanner performs discovery passes over nearby beacons.
type Scanner interface {
	// Scan listens for d and returns one reading per distinct address seen.
	// No sightings is an empty result, not an error. Adapter problems are
	// returned as *faults.ScanFault.
	Scan(ctx context.Context, d time.Duration) ([]logic.Reading, error)

	// Close releases the adapter.
	Close() error
}

// collector deduplicates sightings within one pass. Safe for concurrent use
// because adapter callbacks arrive on the driver's goroutine.
type collector struct {
	mu    sync.Mutex
	seen  map[string]logic.Reading
	order []string
}

func newCollector() *collector {
	return &collector{seen: make(map[string]logic.Reading)}
}

// add records a sighting. A later sighting of the same address replaces the
// earlier one.
func (c *collector) add(addr string, rssi int) {
	key := strings.ToLower(addr)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[key]; !ok {
		c.order = append(c.order, key)
	}
	c.seen[key] = logic.Reading{Identity: key, RSSI: rssi}
}

// readings returns the collected sightings in first-seen order.
func (c *collector) readings() []logic.Reading {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]logic.Reading, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.seen[k])
	}
	return out
}

// SortByStrength orders readings strongest first. Used for display only.
func SortByStrength(rs []logic.Reading) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].RSSI > rs[j].RSSI })
}
