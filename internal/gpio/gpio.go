// Package gpio drives the recording indicator LED.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"context"
	"time"
)

// DefaultPinLED is the BCM pin of the red recording LED.
const DefaultPinLED = 18

// Indicator is a single on/off output.
type Indicator interface {
	// Set drives the output high (true) or low (false).
	Set(on bool) error

	// Close turns the output off and releases the line.
	Close() error
}

// Flash holds the indicator on for d, or until ctx is done. The indicator is
// always switched off again before returning.
func Flash(ctx context.Context, ind Indicator, d time.Duration) error {
	if err := ind.Set(true); err != nil {
		return err
	}

	t := time.NewTimer(d)
	defer t.Stop()
	var waitErr error
	select {
	case <-t.C:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	if err := ind.Set(false); err != nil {
		return err
	}
	return waitErr
}
