package ble

import (
	"context"
	"errors"
	"time"

	"github.com/dcorrigan/room-monitor/internal/logic"
)

// FakeScanner is a test double that returns scripted passes.
type FakeScanner struct {
	// Passes contains scripted scan results. Each call to Scan consumes the
	// next pass; once exhausted, the last pass repeats.
	Passes [][]logic.Reading

	// ScanError, if set, will be returned by Scan.
	ScanError error

	// Durations records the duration passed to each Scan call.
	Durations []time.Duration

	// Closed tracks if Close was called.
	Closed bool

	index int
}

// NewFakeScanner creates a FakeScanner with the given passes.
func NewFakeScanner(passes ...[]logic.Reading) *FakeScanner {
	return &FakeScanner{Passes: passes}
}

// Scan returns the next scripted pass without blocking.
func (f *FakeScanner) Scan(ctx context.Context, d time.Duration) ([]logic.Reading, error) {
	f.Durations = append(f.Durations, d)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.ScanError != nil {
		return nil, f.ScanError
	}
	if len(f.Passes) == 0 {
		return nil, errors.New("no passes configured")
	}

	pass := f.Passes[f.index]
	if f.index < len(f.Passes)-1 {
		f.index++
	}

	// Run through the collector so fakes dedupe like the real scanner.
	c := newCollector()
	for _, r := range pass {
		c.add(r.Identity, r.RSSI)
	}
	return c.readings(), nil
}

// Close marks the scanner as closed.
func (f *FakeScanner) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first pass.
func (f *FakeScanner) Reset() {
	f.index = 0
	f.Closed = false
	f.Durations = nil
}
