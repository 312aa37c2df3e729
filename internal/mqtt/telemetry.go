package mqtt

import (
	"context"
	"log/slog"
	"time"

	"github.com/dcorrigan/room-monitor/internal/sensor"
)

// DefaultTelemetryInterval is how often the temperature goes to the app.
const DefaultTelemetryInterval = 5 * time.Second

// TelemetryConfig drives RunTelemetry.
type TelemetryConfig struct {
	Channel     Channel
	Thermometer sensor.Thermometer
	Interval    time.Duration

	// Heartbeat is the period between HEARTBEAT events; zero disables them.
	Heartbeat time.Duration
	// StatusPayload renders the full status snapshot for a system event.
	// Nil sends the bare event.
	StatusPayload func(event string) []byte

	Logger *slog.Logger
}

// RunTelemetry pushes the temperature every Interval and a heartbeat every
// Heartbeat until ctx is done. It never touches the main loop's state.
func RunTelemetry(ctx context.Context, cfg TelemetryConfig) error {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTelemetryInterval
	}
	tick := time.NewTicker(cfg.Interval)
	defer tick.Stop()

	var hb <-chan time.Time
	if cfg.Heartbeat > 0 {
		t := time.NewTicker(cfg.Heartbeat)
		defer t.Stop()
		hb = t.C
	}
	return runTelemetry(ctx, cfg, tick.C, hb)
}

func runTelemetry(ctx context.Context, cfg TelemetryConfig, tick, heartbeat <-chan time.Time) error {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "telemetry")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			c, err := cfg.Thermometer.Temperature()
			if err != nil {
				log.Warn("temperature read failed", "error", err)
				continue
			}
			if err := cfg.Channel.PublishTemperature(sensor.Round2(c)); err != nil {
				log.Debug("temperature publish failed", "error", err)
			}
		case now := <-heartbeat:
			ev := SystemEvent{Timestamp: now, Event: "HEARTBEAT", Retained: true}
			if cfg.StatusPayload != nil {
				ev.RawPayload = cfg.StatusPayload(ev.Event)
			}
			if err := cfg.Channel.PublishSystem(ev); err != nil {
				log.Warn("heartbeat publish failed", "error", err)
			}
		}
	}
}
