// Package faults defines the error taxonomy shared by the room monitor.
//
// ScanFault and ConfigError are fatal. TransportError and CaptureFault are
// logged by the main loop and recovered on the next pass.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// ScanFault means the BLE adapter could not complete a scan.
type ScanFault struct {
	Err error
}

func (e *ScanFault) Error() string { return "scan fault: " + e.Err.Error() }
func (e *ScanFault) Unwrap() error { return e.Err }

// TransportError means a push to the relay or companion channel failed.
type TransportError struct {
	Op  string // e.g. "relay publish", "companion temperature"
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Capture stages, in pipeline order.
const (
	StageIndicator = "indicator"
	StageRecord    = "record"
	StageTranscode = "transcode"
	StageUpload    = "upload"
	StagePersist   = "persist"
	StageCleanup   = "cleanup"
)

// CaptureFault means one stage of the capture-and-publish sequence failed.
type CaptureFault struct {
	Stage string
	Err   error
}

func (e *CaptureFault) Error() string { return fmt.Sprintf("capture %s: %v", e.Stage, e.Err) }
func (e *CaptureFault) Unwrap() error { return e.Err }

// ConfigError collects every configuration problem found at startup.
type ConfigError struct {
	Problems []error
}

func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

func (e *ConfigError) Unwrap() []error { return e.Problems }

// IsFatal reports whether err should stop the process.
func IsFatal(err error) bool {
	var sf *ScanFault
	var ce *ConfigError
	return errors.As(err, &sf) || errors.As(err, &ce)
}
