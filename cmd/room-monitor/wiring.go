package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"google.golang.org/api/option"

	"github.com/dcorrigan/room-monitor/internal/capture"
	"github.com/dcorrigan/room-monitor/internal/clipstore"
	"github.com/dcorrigan/room-monitor/internal/config"
	"github.com/dcorrigan/room-monitor/internal/gpio"
	"github.com/dcorrigan/room-monitor/internal/mqtt"
	"github.com/dcorrigan/room-monitor/internal/status"
)

func statusConfig(cfg *config.Config) status.Config {
	port := cfg.HTTPAddr
	if i := strings.LastIndex(port, ":"); i >= 0 {
		port = port[i+1:]
	}
	return status.Config{
		PollMs:       cfg.Loop.Poll.Milliseconds(),
		ScanMs:       cfg.Presence.ScanDuration.Milliseconds(),
		Threshold:    cfg.Presence.Threshold,
		HeartbeatMs:  cfg.Companion.Heartbeat.Milliseconds(),
		Broker:       cfg.Companion.Broker,
		HTTPPort:     port,
		VideoEnabled: cfg.Video.Enabled,
	}
}

func companionConfig(cfg *config.Config, onOverride func(), logger *slog.Logger) mqtt.Config {
	return mqtt.Config{
		Broker:           cfg.Companion.Broker,
		ClientID:         cfg.Companion.ClientID,
		Username:         cfg.Companion.Username,
		Password:         cfg.Companion.Token,
		OverrideTopic:    cfg.Companion.OverrideTopic,
		TemperatureTopic: cfg.Companion.TemperatureTopic,
		ClipTopic:        cfg.Companion.ClipTopic,
		StatusTopic:      cfg.Companion.StatusTopic,
		OnOverride:       onOverride,
		Logger:           logger,
	}
}

// storageOptions uses the service account key when one is configured and
// application default credentials otherwise.
func storageOptions(cfg *config.Config) []option.ClientOption {
	if cfg.Firebase.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.Firebase.CredentialsFile)}
}

// recordStores collects the metadata sinks for a clip: the local journal
// and, when configured, the Realtime Database.
func recordStores(ctx context.Context, cfg *config.Config, journal *clipstore.SQLiteStore) (clipstore.MultiStore, error) {
	var stores clipstore.MultiStore
	if journal != nil {
		stores = append(stores, journal)
	}
	if cfg.Firebase.DatabaseURL == "" {
		return stores, nil
	}

	if cfg.Firebase.CredentialsFile == "" {
		return nil, errors.New("firebase.databaseURL needs firebase.credentialsFile")
	}
	creds, err := os.ReadFile(cfg.Firebase.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read firebase credentials: %w", err)
	}
	client, err := clipstore.RTDBClient(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("init realtime database client: %w", err)
	}
	rtdb, err := clipstore.NewRTDBStore(cfg.Firebase.DatabaseURL, cfg.Firebase.RecordPath, client)
	if err != nil {
		return nil, err
	}
	return append(stores, rtdb), nil
}

// indicator opens the recording LED, falling back to a no-op when GPIO is
// disabled or unavailable.
func indicator(cfg *config.Config, logger *slog.Logger) gpio.Indicator {
	if !cfg.GPIO.Enabled {
		return gpio.NopIndicator{}
	}
	ind, err := gpio.NewRealIndicator(cfg.GPIO.LEDPin)
	if err != nil {
		logger.Warn("recording indicator unavailable", "pin", cfg.GPIO.LEDPin, "error", err)
		return gpio.NopIndicator{}
	}
	return ind
}

func newPipeline(cfg *config.Config, ind gpio.Indicator, uploader clipstore.Uploader, stores clipstore.MultiStore, logger *slog.Logger) *capture.Pipeline {
	var store clipstore.RecordStore
	if len(stores) > 0 {
		store = stores
	}
	return &capture.Pipeline{
		Indicator: ind,
		Recorder: &capture.CommandRecorder{
			Command:   cfg.Video.RecorderCommand,
			ExtraArgs: cfg.Video.RecorderArgs,
		},
		Transcoder:   &capture.MP4BoxTranscoder{Command: cfg.Video.TranscoderCommand},
		Uploader:     uploader,
		Store:        store,
		Dir:          cfg.Video.WorkDir,
		PreRoll:      cfg.Video.PreRoll,
		ClipLength:   cfg.Video.ClipLength,
		StageTimeout: cfg.Video.StageTimeout,
		Logger:       logger,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
