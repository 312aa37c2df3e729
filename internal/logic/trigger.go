package logic

import (
	"errors"
	"sync/atomic"
	"time"
)

// TriggerState is the video trigger's state.
type TriggerState string

const (
	TriggerIdle            TriggerState = "IDLE"
	TriggerCaptureInFlight TriggerState = "CAPTURE_IN_FLIGHT"
	TriggerCooldown        TriggerState = "COOLDOWN"
)

// TriggerReason says why a capture fired.
type TriggerReason string

const (
	ReasonNone      TriggerReason = ""
	ReasonAutomatic TriggerReason = "automatic"
	ReasonManual    TriggerReason = "manual"
)

// ErrNoCaptureInFlight is returned by Complete when no capture is running.
var ErrNoCaptureInFlight = errors.New("no capture in flight")

// TriggerConfig holds the trigger's timing rules.
type TriggerConfig struct {
	AdultAbsence  time.Duration // child alone for longer than this (180s)
	ClipInterval  time.Duration // at least this long since the last clip (180s)
	PostClipSleep time.Duration // quiet period after every capture (30s)
}

// TriggerInput is one pass's view of the room.
type TriggerInput struct {
	Time           time.Time
	ChildPresent   bool
	AdultPresent   bool
	SinceAdultSeen time.Duration
}

// Latch is a one-shot flag set by one goroutine and taken by another.
type Latch struct {
	v atomic.Bool
}

// Set raises the latch. Setting an already raised latch is a no-op.
func (l *Latch) Set() {
	l.v.Store(true)
}

// Take reports whether the latch was raised and clears it.
func (l *Latch) Take() bool {
	return l.v.Swap(false)
}

// Pending reports whether the latch is raised without clearing it.
func (l *Latch) Pending() bool {
	return l.v.Load()
}

// VideoTrigger decides when to capture a clip.
type VideoTrigger struct {
	cfg           TriggerConfig
	state         TriggerState
	lastClipAt    time.Time
	cooldownUntil time.Time
	fired         int
}

// NewVideoTrigger creates an idle trigger. startTime counts as the last clip
// so nothing fires automatically until ClipInterval has passed.
func NewVideoTrigger(cfg TriggerConfig, startTime time.Time) *VideoTrigger {
	return &VideoTrigger{
		cfg:        cfg,
		state:      TriggerIdle,
		lastClipAt: startTime,
	}
}

// Evaluate decides whether to start a capture now. On true the trigger is in
// CaptureInFlight and the caller must call Complete once the capture ends.
// The override latch is only taken when a capture could actually start.
func (v *VideoTrigger) Evaluate(in TriggerInput, override *Latch) (bool, TriggerReason) {
	switch v.state {
	case TriggerCaptureInFlight:
		return false, ReasonNone
	case TriggerCooldown:
		if in.Time.Before(v.cooldownUntil) {
			return false, ReasonNone
		}
		v.state = TriggerIdle
	}

	reason := ReasonNone
	if override != nil && override.Take() {
		reason = ReasonManual
	} else if v.automatic(in) {
		reason = ReasonAutomatic
	}
	if reason == ReasonNone {
		return false, ReasonNone
	}

	v.state = TriggerCaptureInFlight
	v.fired++
	return true, reason
}

func (v *VideoTrigger) automatic(in TriggerInput) bool {
	return in.ChildPresent &&
		!in.AdultPresent &&
		in.SinceAdultSeen > v.cfg.AdultAbsence &&
		in.Time.Sub(v.lastClipAt) > v.cfg.ClipInterval
}

// Complete ends the in-flight capture, successful or not, and starts the
// post-clip cooldown.
func (v *VideoTrigger) Complete(now time.Time) error {
	if v.state != TriggerCaptureInFlight {
		return ErrNoCaptureInFlight
	}
	v.lastClipAt = now
	v.cooldownUntil = now.Add(v.cfg.PostClipSleep)
	v.state = TriggerCooldown
	return nil
}

// State returns the current state.
func (v *VideoTrigger) State() TriggerState {
	return v.state
}

// LastClipAt returns the time of the last completed capture (or startup).
func (v *VideoTrigger) LastClipAt() time.Time {
	return v.lastClipAt
}

// SinceLastClip returns the time elapsed since the last completed capture.
func (v *VideoTrigger) SinceLastClip(now time.Time) time.Duration {
	return now.Sub(v.lastClipAt)
}

// Fired returns how many captures have been started.
func (v *VideoTrigger) Fired() int {
	return v.fired
}
