package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dcorrigan/room-monitor/internal/logic"
	"github.com/dcorrigan/room-monitor/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      10000,
		ScanMs:      10000,
		Threshold:   -65,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":8080",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordPass(status.Pass{
		Temperature: 21.5,
		Presence:    logic.Presence{Child: true, Adult: true},
		Light:       logic.Switch{On: true},
		Fan:         logic.Switch{Off: true},
		Trigger:     logic.TriggerIdle,
	}, time.Now())
	tr.SetCompanionConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Light != "ON" {
		t.Errorf("Light: got %q, want ON", sj.Status.Light)
	}
	if sj.Status.Fan != "OFF" {
		t.Errorf("Fan: got %q, want OFF", sj.Status.Fan)
	}
	if !sj.Status.Ready {
		t.Error("expected Ready=true")
	}
	if sj.Status.Temperature != 21.5 {
		t.Errorf("Temperature: got %v", sj.Status.Temperature)
	}
	if !sj.Status.Companion.Connected {
		t.Error("expected Companion.Connected=true")
	}
	if sj.Status.Companion.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Companion.Broker: got %q", sj.Status.Companion.Broker)
	}
	if sj.Status.Config.PollMs != 10000 {
		t.Errorf("Config.PollMs: got %d, want 10000", sj.Status.Config.PollMs)
	}
	if sj.Status.Config.Threshold != -65 {
		t.Errorf("Config.Threshold: got %d", sj.Status.Config.Threshold)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordPass(status.Pass{Temperature: 23.4, FanTriggered: true, Fan: logic.Switch{On: true}}, time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	b, _ := io.ReadAll(resp.Body)
	body := string(b)
	if !strings.Contains(body, "23.4&deg;C") {
		t.Error("temperature missing from page")
	}
	if !strings.Contains(body, `id="fan-hint"`) {
		t.Error("fan hint should show when the fan is triggered")
	}
}

func TestHTMLBeforeFirstPass(t *testing.T) {
	ts, _ := newTestServer(t)
	body := getBody(t, ts.URL+"/index.html")

	if !strings.Contains(body, `id="temperature">--`) {
		t.Error("temperature should be a placeholder before the first pass")
	}
	if strings.Contains(body, `id="fan-hint"`) {
		t.Error("fan hint should be hidden")
	}
	if !strings.Contains(body, "none") {
		t.Error("last clip should read none")
	}
}

func TestHTMLLastClipLink(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordClip("https://storage.googleapis.com/b/clip.mp4", time.Now())

	body := getBody(t, ts.URL+"/")
	if !strings.Contains(body, `href="https://storage.googleapis.com/b/clip.mp4"`) {
		t.Error("expected a link to the last clip")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	tr.RecordPass(status.Pass{Presence: logic.Presence{Child: true}, Trigger: logic.TriggerCooldown}, time.Now())
	tr.SetCompanionConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Ready {
		t.Error("expected Ready=true after update")
	}
	if !sj2.Status.Presence.Child {
		t.Error("expected child present after update")
	}
	if sj2.Status.Video.Trigger != "COOLDOWN" {
		t.Errorf("Trigger: got %q, want COOLDOWN", sj2.Status.Video.Trigger)
	}
	if !sj2.Status.Companion.Connected {
		t.Error("expected companion connected after update")
	}
}

func TestClipRedirect(t *testing.T) {
	ts, tr := newTestServer(t)
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(ts.URL + "/clip")
	if err != nil {
		t.Fatalf("GET /clip: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("no clip: got status %d", resp.StatusCode)
	}

	url := "https://storage.googleapis.com/bucket/clip.mp4"
	tr.RecordClip(url, time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC))
	resp, err = client.Get(ts.URL + "/clip")
	if err != nil {
		t.Fatalf("GET /clip: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != url {
		t.Errorf("got %d -> %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}
