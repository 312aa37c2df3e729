//go:build !linux

package ble

import (
	"context"
	"errors"
	"time"

	"github.com/dcorrigan/room-monitor/internal/faults"
	"github.com/dcorrigan/room-monitor/internal/logic"
)

// RealScanner is not available on non-Linux platforms.
type RealScanner struct{}

// NewRealScanner returns an error on non-Linux platforms.
func NewRealScanner() (*RealScanner, error) {
	return nil, &faults.ScanFault{Err: errors.New("ble: not supported on this platform (requires Linux/BlueZ)")}
}

// Scan is not implemented on non-Linux platforms.
func (s *RealScanner) Scan(ctx context.Context, d time.Duration) ([]logic.Reading, error) {
	return nil, &faults.ScanFault{Err: errors.New("ble: not supported")}
}

// Close is not implemented on non-Linux platforms.
func (s *RealScanner) Close() error {
	return nil
}
