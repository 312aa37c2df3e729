package logic

import (
	"sync"
	"testing"
	"time"
)

var triggerStart = time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)

func newTestTrigger() *VideoTrigger {
	return NewVideoTrigger(TriggerConfig{
		AdultAbsence:  180 * time.Second,
		ClipInterval:  180 * time.Second,
		PostClipSleep: 30 * time.Second,
	}, triggerStart)
}

// childAlone returns an input at start+offset with the adult away for absent.
func childAlone(offset, absent time.Duration) TriggerInput {
	return TriggerInput{
		Time:           triggerStart.Add(offset),
		ChildPresent:   true,
		AdultPresent:   false,
		SinceAdultSeen: absent,
	}
}

func TestTriggerStartsIdle(t *testing.T) {
	v := newTestTrigger()
	if v.State() != TriggerIdle {
		t.Errorf("state: got %s, want IDLE", v.State())
	}
	if !v.LastClipAt().Equal(triggerStart) {
		t.Errorf("LastClipAt: got %v, want start time", v.LastClipAt())
	}
}

func TestTriggerAutomaticFiresThenCoolsDown(t *testing.T) {
	v := newTestTrigger()
	var latch Latch

	// Adult absent 200s, last clip 300s ago.
	fire, reason := v.Evaluate(childAlone(300*time.Second, 200*time.Second), &latch)
	if !fire || reason != ReasonAutomatic {
		t.Fatalf("expected automatic fire, got fire=%v reason=%q", fire, reason)
	}
	if v.State() != TriggerCaptureInFlight {
		t.Fatalf("state: got %s, want CAPTURE_IN_FLIGHT", v.State())
	}

	done := triggerStart.Add(310 * time.Second)
	if err := v.Complete(done); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Last clip 10s ago, same presence: no fire (cooldown + clip interval).
	fire, _ = v.Evaluate(childAlone(320*time.Second, 220*time.Second), &latch)
	if fire {
		t.Error("trigger fired 10s after the last clip")
	}

	// Past the post-clip sleep but inside the clip interval: still no fire.
	fire, _ = v.Evaluate(childAlone(350*time.Second, 250*time.Second), &latch)
	if fire {
		t.Error("trigger fired inside the clip interval")
	}
	if v.State() != TriggerIdle {
		t.Errorf("state after cooldown: got %s, want IDLE", v.State())
	}

	// Clip interval elapsed.
	fire, _ = v.Evaluate(childAlone(500*time.Second, 400*time.Second), &latch)
	if !fire {
		t.Error("expected fire once the clip interval elapsed")
	}
}

func TestTriggerAutomaticNeedsAllConditions(t *testing.T) {
	base := childAlone(300*time.Second, 200*time.Second)

	tests := []struct {
		name   string
		mutate func(in *TriggerInput)
	}{
		{"child absent", func(in *TriggerInput) { in.ChildPresent = false }},
		{"adult present", func(in *TriggerInput) { in.AdultPresent = true }},
		{"adult only just left", func(in *TriggerInput) { in.SinceAdultSeen = 100 * time.Second }},
		{"adult absence exactly at limit", func(in *TriggerInput) { in.SinceAdultSeen = 180 * time.Second }},
		{"recent clip", func(in *TriggerInput) { in.Time = triggerStart.Add(100 * time.Second) }},
		{"clip interval exactly at limit", func(in *TriggerInput) { in.Time = triggerStart.Add(180 * time.Second) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestTrigger()
			in := base
			tt.mutate(&in)
			if fire, _ := v.Evaluate(in, &Latch{}); fire {
				t.Error("trigger fired with a missing condition")
			}
			if v.State() != TriggerIdle {
				t.Errorf("state: got %s, want IDLE", v.State())
			}
		})
	}

	v := newTestTrigger()
	if fire, _ := v.Evaluate(base, &Latch{}); !fire {
		t.Error("trigger should fire with all conditions met")
	}
}

func TestTriggerManualOverrideFiresOnce(t *testing.T) {
	v := newTestTrigger()
	var latch Latch
	latch.Set()

	// Nobody present, no automatic condition.
	in := TriggerInput{Time: triggerStart.Add(5 * time.Second)}
	fire, reason := v.Evaluate(in, &latch)
	if !fire || reason != ReasonManual {
		t.Fatalf("expected manual fire, got fire=%v reason=%q", fire, reason)
	}
	if latch.Pending() {
		t.Error("override should be cleared in the step that consumed it")
	}
	if err := v.Complete(triggerStart.Add(12 * time.Second)); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// After cooldown, no new override: must not fire again.
	in.Time = triggerStart.Add(60 * time.Second)
	if fire, _ := v.Evaluate(in, &latch); fire {
		t.Error("consumed override caused a second capture")
	}

	// A new override event fires again, even inside the clip interval.
	latch.Set()
	in.Time = triggerStart.Add(70 * time.Second)
	if fire, reason := v.Evaluate(in, &latch); !fire || reason != ReasonManual {
		t.Errorf("expected second manual fire, got fire=%v reason=%q", fire, reason)
	}
}

func TestTriggerOverrideIsIdempotent(t *testing.T) {
	v := newTestTrigger()
	var latch Latch
	latch.Set()
	latch.Set()
	latch.Set()

	in := TriggerInput{Time: triggerStart.Add(time.Second)}
	if fire, _ := v.Evaluate(in, &latch); !fire {
		t.Fatal("expected fire")
	}
	v.Complete(in.Time)

	in.Time = in.Time.Add(time.Minute)
	if fire, _ := v.Evaluate(in, &latch); fire {
		t.Error("repeated Set should collapse into a single capture")
	}
}

func TestTriggerNoReentryWhileInFlight(t *testing.T) {
	v := newTestTrigger()
	var latch Latch
	latch.Set()

	if fire, _ := v.Evaluate(TriggerInput{Time: triggerStart}, &latch); !fire {
		t.Fatal("expected first fire")
	}

	// Override arrives while the capture is running.
	latch.Set()
	for i := 0; i < 5; i++ {
		fire, _ := v.Evaluate(childAlone(time.Hour, time.Hour), &latch)
		if fire {
			t.Fatal("fired while a capture was in flight")
		}
	}
	if !latch.Pending() {
		t.Error("override arriving mid-capture should stay pending")
	}
	if v.Fired() != 1 {
		t.Errorf("Fired: got %d, want 1", v.Fired())
	}
}

func TestTriggerOverrideWaitsOutCooldown(t *testing.T) {
	v := newTestTrigger()
	var latch Latch
	latch.Set()
	v.Evaluate(TriggerInput{Time: triggerStart}, &latch)
	v.Complete(triggerStart.Add(10 * time.Second))

	latch.Set()
	if fire, _ := v.Evaluate(TriggerInput{Time: triggerStart.Add(20 * time.Second)}, &latch); fire {
		t.Fatal("fired during cooldown")
	}
	if v.State() != TriggerCooldown {
		t.Errorf("state: got %s, want COOLDOWN", v.State())
	}
	if !latch.Pending() {
		t.Fatal("override consumed during cooldown")
	}

	if fire, reason := v.Evaluate(TriggerInput{Time: triggerStart.Add(40 * time.Second)}, &latch); !fire || reason != ReasonManual {
		t.Errorf("expected pending override to fire after cooldown, got fire=%v reason=%q", fire, reason)
	}
}

func TestTriggerCompleteWithoutCapture(t *testing.T) {
	v := newTestTrigger()
	if err := v.Complete(triggerStart); err != ErrNoCaptureInFlight {
		t.Errorf("Complete on idle trigger: got %v, want ErrNoCaptureInFlight", err)
	}
}

func TestTriggerCompleteUpdatesLastClip(t *testing.T) {
	v := newTestTrigger()
	var latch Latch
	latch.Set()
	v.Evaluate(TriggerInput{Time: triggerStart.Add(time.Minute)}, &latch)

	done := triggerStart.Add(time.Minute + 7*time.Second)
	v.Complete(done)
	if !v.LastClipAt().Equal(done) {
		t.Errorf("LastClipAt: got %v, want %v", v.LastClipAt(), done)
	}
	if got := v.SinceLastClip(done.Add(5 * time.Second)); got != 5*time.Second {
		t.Errorf("SinceLastClip: got %v, want 5s", got)
	}
}

func TestLatchConcurrentSetAndTake(t *testing.T) {
	var latch Latch
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			latch.Set()
		}()
	}
	wg.Wait()

	if !latch.Take() {
		t.Fatal("expected latch to be set")
	}
	if latch.Take() {
		t.Error("second Take should return false")
	}
}
