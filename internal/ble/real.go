//go:build linux

package ble

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/dcorrigan/room-monitor/internal/faults"
	"github.com/dcorrigan/room-monitor/internal/logic"
)

// stopRetry is how often StopScan is retried if the driver has not started
// scanning yet when the window closes.
const stopRetry = 50 * time.Millisecond

// RealScanner scans using the host's default Bluetooth adapter.
type RealScanner struct {
	adapter *bluetooth.Adapter
}

// NewRealScanner enables the default adapter.
func NewRealScanner() (*RealScanner, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, &faults.ScanFault{Err: fmt.Errorf("enable adapter: %w", err)}
	}
	return &RealScanner{adapter: adapter}, nil
}

// Scan listens for advertisements for d, or until ctx is cancelled.
func (s *RealScanner) Scan(parent context.Context, d time.Duration) ([]logic.Reading, error) {
	if err := parent.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	c := newCollector()
	scanDone := make(chan struct{})
	stopperDone := make(chan struct{})

	go func() {
		defer close(stopperDone)
		select {
		case <-ctx.Done():
		case <-scanDone:
			return
		}
		for {
			if err := s.adapter.StopScan(); err == nil {
				return
			}
			select {
			case <-scanDone:
				return
			case <-time.After(stopRetry):
			}
		}
	}()

	err := s.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		c.add(r.Address.String(), int(r.RSSI))
	})
	close(scanDone)
	<-stopperDone

	if err != nil {
		return nil, &faults.ScanFault{Err: fmt.Errorf("scan: %w", err)}
	}
	// Shutdown mid-pass: the partial window is not a valid sample.
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return c.readings(), nil
}

// Close stops any scan in progress. The default adapter stays enabled.
func (s *RealScanner) Close() error {
	_ = s.adapter.StopScan()
	return nil
}
