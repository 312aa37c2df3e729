package internal

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dcorrigan/room-monitor/internal/ble"
	"github.com/dcorrigan/room-monitor/internal/capture"
	"github.com/dcorrigan/room-monitor/internal/clipstore"
	"github.com/dcorrigan/room-monitor/internal/log"
	"github.com/dcorrigan/room-monitor/internal/logic"
	"github.com/dcorrigan/room-monitor/internal/monitor"
	"github.com/dcorrigan/room-monitor/internal/mqtt"
	"github.com/dcorrigan/room-monitor/internal/relay"
	"github.com/dcorrigan/room-monitor/internal/sensor"
	"github.com/dcorrigan/room-monitor/internal/status"
	"github.com/dcorrigan/room-monitor/internal/web"
)

const (
	childID = "AA:AA:AA:AA:AA:AA"
	adultID = "BB:BB:BB:BB:BB:BB"
)

type harness struct {
	now      time.Time
	scanner  *ble.FakeScanner
	relay    *relay.FakePublisher
	comp     *mqtt.FakeChannel
	uploader *clipstore.FakeUploader
	journal  *clipstore.SQLiteStore
	tracker  *status.Tracker
	mon      *monitor.Monitor
}

func newHarness(t *testing.T, passes ...[]logic.Reading) *harness {
	t.Helper()
	ctx := context.Background()

	journal, err := clipstore.OpenSQLiteStore(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	h := &harness{
		now:      time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC),
		scanner:  ble.NewFakeScanner(passes...),
		relay:    relay.NewFakePublisher(),
		comp:     mqtt.NewFakeChannel(),
		uploader: clipstore.NewFakeUploader("nursery"),
		journal:  journal,
	}
	h.tracker = status.NewTracker(h.now, status.Config{VideoEnabled: true})

	pipeline := &capture.Pipeline{
		Recorder:   &capture.FakeRecorder{},
		Transcoder: &capture.FakeTranscoder{},
		Uploader:   h.uploader,
		Store:      journal,
		Dir:        t.TempDir(),
		NewName:    func(time.Time) string { return "clip" },
		Logger:     log.Discard(),
	}

	h.mon, err = monitor.New(monitor.Config{
		ChildBeacon:  childID,
		AdultBeacon:  adultID,
		Threshold:    -65,
		ScanDuration: 10 * time.Second,
		Poll:         10 * time.Second,
		LightWindow: logic.LightWindow{
			OffFrom:  logic.ClockTime(8 * time.Hour),
			OffUntil: logic.ClockTime(17 * time.Hour),
		},
		FanBand: logic.FanBand{OnAt: 23, OffBelow: 22},
		Trigger: logic.TriggerConfig{
			AdultAbsence:  180 * time.Second,
			ClipInterval:  180 * time.Second,
			PostClipSleep: 30 * time.Second,
		},
	}, monitor.Deps{
		Scanner:     h.scanner,
		Thermometer: sensor.NewFakeThermometer(24),
		Relay:       h.relay,
		Capturer:    pipeline,
		Companion:   h.comp,
		Tracker:     h.tracker,
		Logger:      log.Discard(),
		Now:         func() time.Time { return h.now },
	})
	if err != nil {
		t.Fatalf("monitor.New: %v", err)
	}
	return h
}

func (h *harness) step(t *testing.T, after time.Duration) monitor.Result {
	t.Helper()
	h.now = h.now.Add(after)
	res, err := h.mon.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	return res
}

// TestIntegrationAutomaticClip walks from both people present to the child
// left alone long enough for a clip, then checks every surface saw it.
func TestIntegrationAutomaticClip(t *testing.T) {
	h := newHarness(t,
		[]logic.Reading{{Identity: childID, RSSI: -50}, {Identity: adultID, RSSI: -55}},
		[]logic.Reading{{Identity: childID, RSSI: -50}, {Identity: adultID, RSSI: -90}},
	)

	res := h.step(t, 0)
	if !res.Presence.Child || !res.Presence.Adult || res.Fired {
		t.Fatalf("pass 1: got %+v fired=%v", res.Presence, res.Fired)
	}

	// adult walks away; not long enough yet
	res = h.step(t, 10*time.Second)
	if res.Presence.Adult || res.Fired {
		t.Fatalf("pass 2: adult=%v fired=%v", res.Presence.Adult, res.Fired)
	}
	if !res.Snapshot.Fan.On {
		t.Errorf("pass 2: fan should be on at 24C with only the child, got %v", res.Snapshot.Fan)
	}

	res = h.step(t, 190*time.Second)
	if !res.Fired || res.Reason != logic.ReasonAutomatic {
		t.Fatalf("pass 3: fired=%v reason=%q err=%v", res.Fired, res.Reason, res.CaptureErr)
	}
	if res.CaptureErr != nil {
		t.Fatalf("capture: %v", res.CaptureErr)
	}
	wantURL := "https://storage.googleapis.com/nursery/clip.mp4"
	if res.Capture.URL != wantURL {
		t.Errorf("clip URL: got %q", res.Capture.URL)
	}

	// journal
	n, err := h.journal.Count(context.Background())
	if err != nil || n != 1 {
		t.Errorf("journal count: got %d, %v", n, err)
	}
	rec, err := h.journal.Latest(context.Background())
	if err != nil || rec.URL != wantURL || rec.Reason != string(logic.ReasonAutomatic) {
		t.Errorf("journal latest: got %+v, %v", rec, err)
	}

	// companion
	if clips := h.comp.Clips(); len(clips) != 1 || clips[0] != wantURL {
		t.Errorf("companion clips: got %v", clips)
	}

	// relay sees the URL on the next pass, while the trigger cools down
	res = h.step(t, 10*time.Second)
	if res.Fired {
		t.Error("pass 4: should be cooling down")
	}
	last, _ := h.relay.Last()
	if last.ClipURL != wantURL {
		t.Errorf("relay clip URL: got %q", last.ClipURL)
	}

	// status page
	body := fetch(t, h.tracker, "/index.json")
	var got struct {
		Status struct {
			Video struct {
				LastClip string `json:"last_clip"`
			} `json:"video"`
			Counts struct {
				Clips int `json:"clips"`
			} `json:"counts"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode status: %v\n%s", err, body)
	}
	if got.Status.Video.LastClip != wantURL || got.Status.Counts.Clips != 1 {
		t.Errorf("status JSON: got %+v", got.Status)
	}
	if html := string(fetch(t, h.tracker, "/")); !strings.Contains(html, wantURL) {
		t.Error("status page should link the last clip")
	}
}

// TestIntegrationManualOverride checks a button press from the companion app
// records a clip even though the adult is still in the room.
func TestIntegrationManualOverride(t *testing.T) {
	h := newHarness(t, []logic.Reading{{Identity: childID, RSSI: -50}, {Identity: adultID, RSSI: -50}})

	h.step(t, 0)
	h.mon.RequestClip()
	h.mon.RequestClip()

	res := h.step(t, 10*time.Second)
	if !res.Fired || res.Reason != logic.ReasonManual {
		t.Fatalf("fired=%v reason=%q", res.Fired, res.Reason)
	}
	res = h.step(t, 60*time.Second)
	if res.Fired {
		t.Error("repeated presses should collapse into one clip")
	}
	if len(h.uploader.Paths) != 1 {
		t.Errorf("uploads: got %d", len(h.uploader.Paths))
	}
	if snap := h.tracker.Snapshot(); snap.Counts.ManualRequests != 2 {
		t.Errorf("manual requests: got %d", snap.Counts.ManualRequests)
	}
}

func fetch(t *testing.T, tracker *status.Tracker, path string) []byte {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := web.New("", tracker)
	go srv.Serve(ln)
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + ln.Addr().String() + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return body
}
