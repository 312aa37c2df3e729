// Package monitor is the room monitor's decision loop. A Monitor owns all
// per-process state: the two tracked persons, the video trigger, the manual
// override latch and the latest clip URL.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dcorrigan/room-monitor/internal/ble"
	"github.com/dcorrigan/room-monitor/internal/capture"
	"github.com/dcorrigan/room-monitor/internal/logic"
	"github.com/dcorrigan/room-monitor/internal/mqtt"
	"github.com/dcorrigan/room-monitor/internal/relay"
	"github.com/dcorrigan/room-monitor/internal/sensor"
	"github.com/dcorrigan/room-monitor/internal/status"
)

// Capturer runs the capture-and-publish sequence.
type Capturer interface {
	Capture(ctx context.Context, req capture.Request) (capture.Result, error)
}

// Config holds the loop's rules and timings.
type Config struct {
	ChildBeacon  string
	AdultBeacon  string
	Threshold    int
	ScanDuration time.Duration
	Poll         time.Duration

	LightWindow logic.LightWindow
	FanBand     logic.FanBand
	Trigger     logic.TriggerConfig

	// Used only for the distance estimate logged when a capture fires.
	MeasuredPower       int
	EnvironmentalFactor float64
}

// Deps are the Monitor's collaborators. Scanner, Thermometer and Relay are
// required; a nil Capturer disables video, nil Companion and Tracker are
// skipped.
type Deps struct {
	Scanner     ble.Scanner
	Thermometer sensor.Thermometer
	Relay       relay.Publisher
	Capturer    Capturer
	Companion   mqtt.Channel
	Tracker     *status.Tracker
	Logger      *slog.Logger

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Monitor is the process context for the decision loop. Step and Run must
// be called from a single goroutine; RequestClip is safe from any.
type Monitor struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	presence *logic.Tracker
	trigger  *logic.VideoTrigger
	override logic.Latch

	clipURL     string
	temperature float64
	haveTemp    bool // a good reading has been taken
}

// New builds a Monitor whose clocks start at Deps.Now().
func New(cfg Config, deps Deps) (*Monitor, error) {
	var missing []error
	if deps.Scanner == nil {
		missing = append(missing, errors.New("scanner"))
	}
	if deps.Thermometer == nil {
		missing = append(missing, errors.New("thermometer"))
	}
	if deps.Relay == nil {
		missing = append(missing, errors.New("relay"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("monitor: missing dependencies: %w", errors.Join(missing...))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.ScanDuration <= 0 {
		cfg.ScanDuration = ble.DefaultScanDuration
	}

	start := deps.Now()
	return &Monitor{
		cfg:      cfg,
		deps:     deps,
		log:      deps.Logger.With("component", "monitor"),
		presence: logic.NewTracker(cfg.ChildBeacon, cfg.AdultBeacon, cfg.Threshold, start),
		trigger:  logic.NewVideoTrigger(cfg.Trigger, start),
	}, nil
}

// RequestClip raises the manual override. The next pass that could start a
// capture takes it. Repeated requests before then collapse into one.
func (m *Monitor) RequestClip() {
	m.override.Set()
	if m.deps.Tracker != nil {
		m.deps.Tracker.RecordManualRequest()
	}
}

// SetCompanion attaches the companion channel. Call it before Run; the
// channel is usually built after the Monitor so it can deliver RequestClip.
func (m *Monitor) SetCompanion(ch mqtt.Channel) {
	m.deps.Companion = ch
}

// RestoreClipURL sets the clip URL reported before the first new capture.
func (m *Monitor) RestoreClipURL(url string) {
	m.clipURL = url
}

// ClipURL returns the most recent clip URL.
func (m *Monitor) ClipURL() string {
	return m.clipURL
}

// TriggerState returns the video trigger's state.
func (m *Monitor) TriggerState() logic.TriggerState {
	return m.trigger.State()
}

// Result is the outcome of one pass.
type Result struct {
	Time     time.Time
	Presence logic.Presence
	Snapshot logic.Snapshot

	Fired   bool
	Reason  logic.TriggerReason
	Capture capture.Result

	RelayErr   error
	CaptureErr error
}

// Step runs one pass: scan, update presence, decide, push to the relay and
// capture if the trigger fires. Nothing is pushed to the relay until the
// thermometer has produced a reading. Only a scan fault or cancellation is
// returned as an error; relay and capture failures are logged and reported
// in the Result.
func (m *Monitor) Step(ctx context.Context) (Result, error) {
	readings, err := m.deps.Scanner.Scan(ctx, m.cfg.ScanDuration)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("scan: %w", err)
	}

	now := m.deps.Now()
	presence := m.presence.Update(readings, now)
	temp, haveTemp := m.readTemperature()

	snap := logic.Snapshot{
		Temperature:  temp,
		Light:        logic.DecideLight(now, presence.Child, presence.Adult, m.cfg.LightWindow),
		Fan:          logic.DecideFan(temp, presence.Child, presence.Adult, m.cfg.FanBand),
		ChildPresent: presence.Child,
		AdultPresent: presence.Adult,
		ClipURL:      m.clipURL,
	}
	if !haveTemp {
		snap.Fan = logic.Switch{}
	}
	res := Result{Time: now, Presence: presence, Snapshot: snap}

	m.log.Debug("pass",
		"readings", len(readings),
		"child", presence.Child,
		"adult", presence.Adult,
		"since_adult_seen", presence.SinceAdultSeen,
		"temperature", temp,
		"light", snap.Light,
		"fan", snap.Fan,
	)

	if !haveTemp {
		m.log.Warn("no temperature reading yet, relay push skipped")
	} else {
		res.RelayErr = m.deps.Relay.Publish(ctx, snap)
	}
	if res.RelayErr != nil {
		if errors.Is(res.RelayErr, relay.ErrRateLimited) {
			m.log.Debug("relay push skipped", "error", res.RelayErr)
		} else {
			m.log.Warn("relay push failed", "error", res.RelayErr)
			if m.deps.Tracker != nil {
				m.deps.Tracker.RecordRelayFailure()
			}
		}
	}

	if m.deps.Capturer != nil {
		res.Fired, res.Reason = m.trigger.Evaluate(logic.TriggerInput{
			Time:           now,
			ChildPresent:   presence.Child,
			AdultPresent:   presence.Adult,
			SinceAdultSeen: presence.SinceAdultSeen,
		}, &m.override)
		if res.Fired {
			m.runCapture(ctx, &res)
		}
	}

	m.report(res)
	return res, nil
}

func (m *Monitor) runCapture(ctx context.Context, res *Result) {
	m.log.Info("video triggered",
		"reason", res.Reason,
		"since_adult_seen", res.Presence.SinceAdultSeen,
		"since_last_clip", m.trigger.SinceLastClip(res.Time),
	)
	m.logDistance("child", res.Presence.ChildReading)
	m.logDistance("adult", res.Presence.AdultReading)

	if m.deps.Tracker != nil {
		m.deps.Tracker.SetTrigger(logic.TriggerCaptureInFlight)
	}

	res.Capture, res.CaptureErr = m.deps.Capturer.Capture(ctx, capture.Request{
		Time:         res.Time,
		ChildPresent: res.Presence.Child,
		AdultPresent: res.Presence.Adult,
		Reason:       string(res.Reason),
	})
	if err := m.trigger.Complete(m.deps.Now()); err != nil {
		m.log.Error("complete capture", "error", err)
	}

	if res.Capture.URL != "" {
		m.clipURL = res.Capture.URL
		if m.deps.Tracker != nil {
			m.deps.Tracker.RecordClip(res.Capture.URL, res.Time)
		}
		if m.deps.Companion != nil {
			if err := m.deps.Companion.PublishClip(res.Capture.URL); err != nil {
				m.log.Warn("companion clip publish failed", "error", err)
			}
		}
	}
	if res.CaptureErr != nil {
		m.log.Error("capture failed", "error", res.CaptureErr)
		if m.deps.Tracker != nil {
			m.deps.Tracker.RecordCaptureFailure()
		}
	}
}

func (m *Monitor) logDistance(role string, r *logic.Reading) {
	if r == nil {
		m.log.Info("beacon not seen", "role", role)
		return
	}
	d := logic.EstimateDistance(m.cfg.MeasuredPower, r.RSSI, m.cfg.EnvironmentalFactor)
	if math.IsNaN(d) {
		m.log.Info("beacon", "role", role, "rssi", r.RSSI)
		return
	}
	m.log.Info("beacon", "role", role, "rssi", r.RSSI, "distance_m", math.Round(d*100)/100)
}

// readTemperature returns the current reading, or the last good one if the
// sensor fails. ok is false until the sensor has been read once.
func (m *Monitor) readTemperature() (celsius float64, ok bool) {
	c, err := m.deps.Thermometer.Temperature()
	if err != nil {
		m.log.Warn("temperature read failed, using last value", "error", err, "last", m.temperature, "have_last", m.haveTemp)
		return m.temperature, m.haveTemp
	}
	m.temperature = sensor.Round2(c)
	m.haveTemp = true
	return m.temperature, true
}

func (m *Monitor) report(res Result) {
	t := m.deps.Tracker
	if t == nil {
		return
	}
	t.RecordPass(status.Pass{
		Temperature: res.Snapshot.Temperature,
		Presence:    res.Presence,
		Light:       res.Snapshot.Light,
		Fan:         res.Snapshot.Fan,
		FanTriggered: res.Presence.Anyone() &&
			res.Snapshot.Temperature >= m.cfg.FanBand.OnAt,
		Trigger: m.trigger.State(),
	}, res.Time)
	if m.deps.Companion != nil {
		t.SetCompanionConnected(m.deps.Companion.IsConnected())
	}
}

// Run calls Step until ctx is done, sleeping Poll between passes and
// Trigger.PostClipSleep after a capture. It returns nil on cancellation and
// the error on a scan fault.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("loop started",
		"poll", m.cfg.Poll,
		"scan", m.cfg.ScanDuration,
		"threshold", m.cfg.Threshold,
		"video", m.deps.Capturer != nil,
	)
	for {
		res, err := m.Step(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if res.Fired && m.cfg.Trigger.PostClipSleep > 0 {
			if err := m.deps.Sleep(ctx, m.cfg.Trigger.PostClipSleep); err != nil {
				return nil
			}
		}
		if err := m.deps.Sleep(ctx, m.cfg.Poll); err != nil {
			return nil
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
