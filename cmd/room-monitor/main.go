package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dcorrigan/room-monitor/internal/ble"
	"github.com/dcorrigan/room-monitor/internal/clipstore"
	"github.com/dcorrigan/room-monitor/internal/config"
	"github.com/dcorrigan/room-monitor/internal/faults"
	"github.com/dcorrigan/room-monitor/internal/log"
	"github.com/dcorrigan/room-monitor/internal/logic"
	"github.com/dcorrigan/room-monitor/internal/monitor"
	"github.com/dcorrigan/room-monitor/internal/mqtt"
	"github.com/dcorrigan/room-monitor/internal/relay"
	"github.com/dcorrigan/room-monitor/internal/sensor"
	"github.com/dcorrigan/room-monitor/internal/status"
	"github.com/dcorrigan/room-monitor/internal/web"
)

func main() {
	ctx, cancel := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel(nil)

	cliApp := cli.NewApp()
	cliApp.Name = "room-monitor"
	cliApp.Usage = "Watch a child's room over BLE, drive the light and fan and record clips when the child is left alone"

	cliApp.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config-file",
			Aliases: []string{"c"},
			Value:   "",
			Usage:   "path to yaml config file (required if not using environment variables)",
		},
	}

	cliApp.Commands = []*cli.Command{
		{
			Name:   "run",
			Usage:  "[default] runs the monitor",
			Action: run,
		},
		{
			Name:   "scan",
			Usage:  "runs one BLE pass and prints every advertiser with its estimated distance",
			Action: scan,
		},
	}

	cliApp.DefaultCommand = "run"

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.NewLogger().Error("failed to run room monitor", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := log.ParseLevel(cfg.Logger.Level)
	opts := []log.LoggerOption{log.WithLevel(level)}
	if !cfg.Logger.Structured {
		opts = append(opts, log.WithDevelopment())
	}
	return log.NewLogger(opts...)
}

func run(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load(c.String("config-file")) // falls back to env vars if the file is empty
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	scanner, err := ble.NewRealScanner()
	if err != nil {
		return fmt.Errorf("init bluetooth: %w", err)
	}
	defer scanner.Close() //nolint:errcheck

	therm, err := sensor.NewIIOThermometer(cfg.Sensor.IIODevice, cfg.Sensor.Offset)
	if err != nil {
		return fmt.Errorf("init thermometer: %w", err)
	}

	publisher := relay.NewThingSpeakPublisher(relay.ThingSpeakConfig{
		URL:         cfg.Relay.URL,
		APIKey:      cfg.Relay.APIKey,
		MinInterval: cfg.Relay.MinInterval,
		Client:      &http.Client{Timeout: cfg.Relay.Timeout},
		Logger:      logger,
	})

	// Tracker first so the STARTUP event carries a snapshot.
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var journal *clipstore.SQLiteStore
	if cfg.SQLiteDir != "" {
		journal, err = clipstore.OpenSQLiteStore(ctx, cfg.SQLiteDir)
		if err != nil {
			return fmt.Errorf("open clip journal: %w", err)
		}
		defer journal.Close() //nolint:errcheck
		logger.Info("opened clip journal", "dir", cfg.SQLiteDir)
	}

	var capturer monitor.Capturer
	if cfg.Video.Enabled {
		pipeline, closeCapture, err := buildCapture(ctx, cfg, journal, logger)
		if err != nil {
			return err
		}
		defer closeCapture()
		capturer = pipeline
	} else {
		logger.Info("video disabled")
	}

	lw, err := cfg.LightWindow()
	if err != nil {
		return err
	}
	mon, err := monitor.New(monitor.Config{
		ChildBeacon:         cfg.Presence.ChildBeacon,
		AdultBeacon:         cfg.Presence.AdultBeacon,
		Threshold:           cfg.Presence.Threshold,
		ScanDuration:        cfg.Presence.ScanDuration,
		Poll:                cfg.Loop.Poll,
		LightWindow:         lw,
		FanBand:             cfg.FanBand(),
		Trigger:             cfg.TriggerConfig(),
		MeasuredPower:       cfg.Presence.MeasuredPower,
		EnvironmentalFactor: cfg.Presence.EnvironmentalFactor,
	}, monitor.Deps{
		Scanner:     scanner,
		Thermometer: therm,
		Relay:       publisher,
		Capturer:    capturer,
		Tracker:     tracker,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	if journal != nil {
		restoreLastClip(ctx, journal, mon, tracker, logger)
	}

	var companion mqtt.Channel
	if cfg.Companion.Broker != "" {
		ch, err := mqtt.NewRealChannel(companionConfig(cfg, mon.RequestClip, logger))
		if err != nil {
			return fmt.Errorf("init companion channel: %w", err)
		}
		companion = ch
		mon.SetCompanion(ch)
		defer ch.Close() //nolint:errcheck
	} else {
		logger.Info("companion channel disabled")
	}

	publishSystem(companion, tracker, "STARTUP", "", logger)

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background()) //nolint:errcheck
		logger.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	telemetryCtx, stopTelemetry := context.WithCancel(ctx)
	defer stopTelemetry()
	telemetryDone := make(chan struct{})
	if companion != nil {
		go func() {
			defer close(telemetryDone)
			_ = mqtt.RunTelemetry(telemetryCtx, mqtt.TelemetryConfig{
				Channel:     companion,
				Thermometer: therm,
				Interval:    cfg.Companion.TelemetryInterval,
				Heartbeat:   cfg.Companion.Heartbeat,
				StatusPayload: func(event string) []byte {
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					tracker.SetCompanionConnected(companion.IsConnected())
					return status.FormatStatusEvent(tracker.Snapshot(), event, "")
				},
				Logger: logger,
			})
		}()
	} else {
		close(telemetryDone)
	}

	logger.Info("started",
		"poll", cfg.Loop.Poll,
		"scan", cfg.Presence.ScanDuration,
		"threshold", cfg.Presence.Threshold,
		"video", cfg.Video.Enabled,
		"broker", cfg.Companion.Broker,
	)

	runErr := mon.Run(ctx)
	stopTelemetry()
	<-telemetryDone

	reason := shutdownReason(ctx, runErr)
	logger.Info("shutting down", "reason", reason)
	publishSystem(companion, tracker, "SHUTDOWN", reason, logger)
	return runErr
}

// buildCapture wires the capture pipeline. The returned func releases the
// indicator.
func buildCapture(ctx context.Context, cfg *config.Config, journal *clipstore.SQLiteStore, logger *slog.Logger) (monitor.Capturer, func(), error) {
	uploader, err := clipstore.NewFirebaseUploader(ctx, cfg.Firebase.Bucket, storageOptions(cfg)...)
	if err != nil {
		return nil, nil, fmt.Errorf("init clip uploader: %w", err)
	}

	stores, err := recordStores(ctx, cfg, journal)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.Video.WorkDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create video work dir: %w", err)
	}

	ind := indicator(cfg, logger)
	p := newPipeline(cfg, ind, uploader, stores, logger)
	return p, func() { _ = ind.Close() }, nil
}

// restoreLastClip seeds the clip URL from the journal so the relay and the
// status page survive a restart.
func restoreLastClip(ctx context.Context, journal *clipstore.SQLiteStore, mon *monitor.Monitor, tracker *status.Tracker, logger *slog.Logger) {
	rec, err := journal.Latest(ctx)
	if errors.Is(err, clipstore.ErrNoClips) {
		return
	}
	if err != nil {
		logger.Warn("read clip journal", "error", err)
		return
	}
	mon.RestoreClipURL(rec.URL)
	tracker.RestoreClip(rec.URL, rec.TakenAt)
	logger.Info("restored last clip", "url", rec.URL, "taken_at", rec.TakenAt)
}

func publishSystem(ch mqtt.Channel, tracker *status.Tracker, event, reason string, logger *slog.Logger) {
	if ch == nil {
		return
	}
	tracker.SetCompanionConnected(ch.IsConnected())
	snap := tracker.Snapshot()
	err := ch.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		logger.Warn("failed to publish system event", "event", event, "error", err)
		return
	}
	logger.Info("published system event", "event", event)
}

func scan(c *cli.Context) error {
	cfg, err := config.Load(c.String("config-file"))
	if err != nil {
		return err
	}

	scanner, err := ble.NewRealScanner()
	if err != nil {
		return fmt.Errorf("init bluetooth: %w", err)
	}
	defer scanner.Close() //nolint:errcheck

	readings, err := scanner.Scan(c.Context, cfg.Presence.ScanDuration)
	if err != nil {
		return err
	}
	return printReadings(os.Stdout, readings, cfg)
}

// printReadings writes one row per advertiser, strongest first, marking the
// two configured beacons.
func printReadings(w io.Writer, readings []logic.Reading, cfg *config.Config) error {
	ble.SortByStrength(readings)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tRSSI\tDISTANCE\tROLE")
	for _, r := range readings {
		role := ""
		switch {
		case strings.EqualFold(r.Identity, cfg.Presence.ChildBeacon):
			role = "child"
		case strings.EqualFold(r.Identity, cfg.Presence.AdultBeacon):
			role = "adult"
		}
		d := logic.EstimateDistance(cfg.Presence.MeasuredPower, r.RSSI, cfg.Presence.EnvironmentalFactor)
		fmt.Fprintf(tw, "%s\t%d\t%.2fm\t%s\n", r.Identity, r.RSSI, d, role)
	}
	return tw.Flush()
}

// shutdownSignal is the cancel cause recorded by notifyContext.
type shutdownSignal struct {
	sig os.Signal
}

func (s shutdownSignal) Error() string { return "received " + s.sig.String() }

// notifyContext is signal.NotifyContext that remembers which signal fired.
func notifyContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		select {
		case s := <-ch:
			cancel(shutdownSignal{sig: s})
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// shutdownReason names what stopped the loop: SCAN_FAULT or ERROR for a
// loop error, otherwise the signal that cancelled ctx, or "UNKNOWN".
func shutdownReason(ctx context.Context, runErr error) string {
	var sf *faults.ScanFault
	switch {
	case errors.As(runErr, &sf):
		return "SCAN_FAULT"
	case runErr != nil:
		return "ERROR"
	}
	var s shutdownSignal
	if !errors.As(context.Cause(ctx), &s) {
		return "UNKNOWN"
	}
	switch s.sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
