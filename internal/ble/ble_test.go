package ble

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dcorrigan/room-monitor/internal/logic"
)

func TestCollectorDedupesLatestWins(t *testing.T) {
	c := newCollector()
	c.add("AA:BB:CC:DD:EE:01", -70)
	c.add("aa:bb:cc:dd:ee:02", -50)
	c.add("aa:bb:cc:dd:ee:01", -60)

	got := c.readings()
	if len(got) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(got))
	}
	if got[0].Identity != "aa:bb:cc:dd:ee:01" || got[0].RSSI != -60 {
		t.Errorf("reading 0: got %+v, want ee:01 at -60", got[0])
	}
	if got[1].Identity != "aa:bb:cc:dd:ee:02" || got[1].RSSI != -50 {
		t.Errorf("reading 1: got %+v, want ee:02 at -50", got[1])
	}
}

func TestCollectorEmpty(t *testing.T) {
	got := newCollector().readings()
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCollectorConcurrentAdd(t *testing.T) {
	c := newCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.add("aa:bb:cc:dd:ee:ff", -40-i)
		}(i)
	}
	wg.Wait()
	if got := len(c.readings()); got != 1 {
		t.Errorf("expected 1 reading, got %d", got)
	}
}

func TestSortByStrength(t *testing.T) {
	rs := []logic.Reading{{Identity: "a", RSSI: -80}, {Identity: "b", RSSI: -40}, {Identity: "c", RSSI: -60}}
	SortByStrength(rs)
	if rs[0].Identity != "b" || rs[1].Identity != "c" || rs[2].Identity != "a" {
		t.Errorf("unexpected order: %+v", rs)
	}
}

func TestFakeScannerPasses(t *testing.T) {
	f := NewFakeScanner(
		[]logic.Reading{{Identity: "a", RSSI: -50}},
		[]logic.Reading{},
	)
	ctx := context.Background()

	got, err := f.Scan(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].RSSI != -50 {
		t.Errorf("pass 0: got %+v", got)
	}

	got, err = f.Scan(ctx, 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("pass 1: expected no readings, got %+v", got)
	}

	// Last pass repeats.
	got, _ = f.Scan(ctx, 10*time.Second)
	if len(got) != 0 {
		t.Errorf("pass 2 (repeat): expected no readings, got %+v", got)
	}

	if len(f.Durations) != 3 || f.Durations[0] != 10*time.Second {
		t.Errorf("Durations: got %v", f.Durations)
	}
}

func TestFakeScannerError(t *testing.T) {
	f := NewFakeScanner([]logic.Reading{})
	f.ScanError = errors.New("adapter gone")
	if _, err := f.Scan(context.Background(), time.Second); err == nil {
		t.Error("expected error")
	}
}

func TestFakeScannerNoPasses(t *testing.T) {
	if _, err := NewFakeScanner().Scan(context.Background(), time.Second); err == nil {
		t.Error("expected error with no passes")
	}
}

func TestFakeScannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFakeScanner([]logic.Reading{})
	if _, err := f.Scan(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFakeScannerCloseReset(t *testing.T) {
	f := NewFakeScanner([]logic.Reading{{Identity: "a", RSSI: -1}}, []logic.Reading{})
	f.Scan(context.Background(), time.Second)
	f.Close()
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
	f.Reset()
	got, _ := f.Scan(context.Background(), time.Second)
	if len(got) != 1 {
		t.Errorf("after reset: expected first pass, got %+v", got)
	}
}
