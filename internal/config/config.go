// Package config loads the daemon configuration: defaults, then an optional
// YAML file, then environment variables, then validation.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dcorrigan/room-monitor/internal/faults"
	"github.com/dcorrigan/room-monitor/internal/log"
	"github.com/dcorrigan/room-monitor/internal/logic"
)

type Config struct {
	Logger    Logger    `yaml:"logger" envPrefix:"LOGGER_"`
	Presence  Presence  `yaml:"presence" envPrefix:"PRESENCE_"`
	Policy    Policy    `yaml:"policy" envPrefix:"POLICY_"`
	Video     Video     `yaml:"video" envPrefix:"VIDEO_"`
	Loop      Loop      `yaml:"loop" envPrefix:"LOOP_"`
	Relay     Relay     `yaml:"relay" envPrefix:"RELAY_"`
	Companion Companion `yaml:"companion" envPrefix:"COMPANION_"`
	Firebase  Firebase  `yaml:"firebase" envPrefix:"FIREBASE_"`
	Sensor    Sensor    `yaml:"sensor" envPrefix:"SENSOR_"`
	GPIO      GPIO      `yaml:"gpio" envPrefix:"GPIO_"`
	HTTPAddr  string    `yaml:"httpAddr" env:"HTTP_ADDR"`   // default: :8080, empty disables
	SQLiteDir string    `yaml:"sqliteDir" env:"SQLITE_DIR"` // default: ./data/, empty disables the journal
}

type Logger struct {
	Level      string `yaml:"level" env:"LEVEL"`           // default: info
	Structured bool   `yaml:"structured" env:"STRUCTURED"` // default: true
}

type Presence struct {
	ChildBeacon         string        `yaml:"childBeacon" env:"CHILD_BEACON"`
	AdultBeacon         string        `yaml:"adultBeacon" env:"ADULT_BEACON"`
	Threshold           int           `yaml:"threshold" env:"THRESHOLD"`                     // default: -65
	ScanDuration        time.Duration `yaml:"scanDuration" env:"SCAN_DURATION"`              // default: 10s
	MeasuredPower       int           `yaml:"measuredPower" env:"MEASURED_POWER"`            // default: -52
	EnvironmentalFactor float64       `yaml:"environmentalFactor" env:"ENVIRONMENTAL_FACTOR"` // default: 2
}

type Policy struct {
	LightOffFrom  string  `yaml:"lightOffFrom" env:"LIGHT_OFF_FROM"`   // default: 08:00
	LightOffUntil string  `yaml:"lightOffUntil" env:"LIGHT_OFF_UNTIL"` // default: 17:00
	FanOnAt       float64 `yaml:"fanOnAt" env:"FAN_ON_AT"`             // default: 23
	FanOffBelow   float64 `yaml:"fanOffBelow" env:"FAN_OFF_BELOW"`     // default: 22
}

type Video struct {
	Enabled           bool          `yaml:"enabled" env:"ENABLED"`              // default: true
	AdultAbsence      time.Duration `yaml:"adultAbsence" env:"ADULT_ABSENCE"`   // default: 180s
	ClipInterval      time.Duration `yaml:"clipInterval" env:"CLIP_INTERVAL"`   // default: 180s
	PostClipSleep     time.Duration `yaml:"postClipSleep" env:"POST_CLIP_SLEEP"` // default: 30s
	PreRoll           time.Duration `yaml:"preRoll" env:"PRE_ROLL"`             // default: 2s
	ClipLength        time.Duration `yaml:"clipLength" env:"CLIP_LENGTH"`       // default: 5s
	StageTimeout      time.Duration `yaml:"stageTimeout" env:"STAGE_TIMEOUT"`   // default: 60s
	WorkDir           string        `yaml:"workDir" env:"WORK_DIR"`             // default: os.TempDir()/room-monitor
	RecorderCommand   string        `yaml:"recorderCommand" env:"RECORDER_COMMAND"`
	RecorderArgs      []string      `yaml:"recorderArgs" env:"RECORDER_ARGS"`
	TranscoderCommand string        `yaml:"transcoderCommand" env:"TRANSCODER_COMMAND"`
}

type Loop struct {
	Poll time.Duration `yaml:"poll" env:"POLL"` // default: 10s
}

type Relay struct {
	URL         string        `yaml:"url" env:"URL"`
	APIKey      string        `yaml:"apiKey" env:"API_KEY"`
	MinInterval time.Duration `yaml:"minInterval" env:"MIN_INTERVAL"` // default: 15s
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`          // default: 10s
}

type Companion struct {
	Broker            string        `yaml:"broker" env:"BROKER"` // empty disables the channel
	ClientID          string        `yaml:"clientID" env:"CLIENT_ID"`
	Username          string        `yaml:"username" env:"USERNAME"`
	Token             string        `yaml:"token" env:"TOKEN"`
	OverrideTopic     string        `yaml:"overrideTopic" env:"OVERRIDE_TOPIC"`
	TemperatureTopic  string        `yaml:"temperatureTopic" env:"TEMPERATURE_TOPIC"`
	ClipTopic         string        `yaml:"clipTopic" env:"CLIP_TOPIC"`
	StatusTopic       string        `yaml:"statusTopic" env:"STATUS_TOPIC"`
	TelemetryInterval time.Duration `yaml:"telemetryInterval" env:"TELEMETRY_INTERVAL"` // default: 5s
	Heartbeat         time.Duration `yaml:"heartbeat" env:"HEARTBEAT"`                  // default: 15m, 0 disables
}

type Firebase struct {
	CredentialsFile string `yaml:"credentialsFile" env:"CREDENTIALS_FILE"`
	Bucket          string `yaml:"bucket" env:"BUCKET"`
	DatabaseURL     string `yaml:"databaseURL" env:"DATABASE_URL"` // empty skips the RTDB record
	RecordPath      string `yaml:"recordPath" env:"RECORD_PATH"`   // default: file
}

type Sensor struct {
	IIODevice string  `yaml:"iioDevice" env:"IIO_DEVICE"`
	Offset    float64 `yaml:"offset" env:"OFFSET"`
}

type GPIO struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"` // default: true
	LEDPin  int  `yaml:"ledPin" env:"LED_PIN"`  // default: 18
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Logger: Logger{
			Level:      "info",
			Structured: true,
		},
		Presence: Presence{
			Threshold:           -65,
			ScanDuration:        10 * time.Second,
			MeasuredPower:       -52,
			EnvironmentalFactor: 2,
		},
		Policy: Policy{
			LightOffFrom:  "08:00",
			LightOffUntil: "17:00",
			FanOnAt:       23,
			FanOffBelow:   22,
		},
		Video: Video{
			Enabled:       true,
			AdultAbsence:  180 * time.Second,
			ClipInterval:  180 * time.Second,
			PostClipSleep: 30 * time.Second,
			PreRoll:       2 * time.Second,
			ClipLength:    5 * time.Second,
			StageTimeout:  60 * time.Second,
			WorkDir:       os.TempDir() + "/room-monitor",
		},
		Loop: Loop{Poll: 10 * time.Second},
		Relay: Relay{
			URL:         "https://api.thingspeak.com/update",
			MinInterval: 15 * time.Second,
			Timeout:     10 * time.Second,
		},
		Companion: Companion{
			ClientID:          "room-monitor",
			OverrideTopic:     "downlink/ds/V1",
			TemperatureTopic:  "ds/V2",
			ClipTopic:         "ds/V3",
			StatusTopic:       "room-monitor/system",
			TelemetryInterval: 5 * time.Second,
			Heartbeat:         15 * time.Minute,
		},
		Firebase: Firebase{RecordPath: "file"},
		Sensor:   Sensor{IIODevice: "/sys/bus/iio/devices/iio:device0"},
		GPIO:     GPIO{Enabled: true, LEDPin: 18},
		HTTPAddr:  ":8080",
		SQLiteDir: "./data/",
	}
}

func (c Config) Validate() []error {
	var errs []error
	if _, ok := log.ParseLevel(c.Logger.Level); !ok {
		errs = append(errs, errors.New("logger.level: must be one of [debug, info, warn, error]"))
	}

	if c.Presence.ChildBeacon == "" {
		errs = append(errs, errors.New("presence.childBeacon: required"))
	}
	if c.Presence.AdultBeacon == "" {
		errs = append(errs, errors.New("presence.adultBeacon: required"))
	}
	if c.Presence.ChildBeacon != "" && strings.EqualFold(c.Presence.ChildBeacon, c.Presence.AdultBeacon) {
		errs = append(errs, errors.New("presence.adultBeacon: must differ from childBeacon"))
	}
	if c.Presence.Threshold >= 0 {
		errs = append(errs, errors.New("presence.threshold: must be negative dBm"))
	}
	if c.Presence.ScanDuration <= 0 {
		errs = append(errs, errors.New("presence.scanDuration: must be greater than 0"))
	}
	if c.Presence.EnvironmentalFactor <= 0 {
		errs = append(errs, errors.New("presence.environmentalFactor: must be greater than 0"))
	}

	if _, err := c.LightWindow(); err != nil {
		errs = append(errs, err)
	}
	if c.Policy.FanOffBelow > c.Policy.FanOnAt {
		errs = append(errs, errors.New("policy.fanOffBelow: must not exceed fanOnAt"))
	}

	positive := []struct {
		name string
		d    time.Duration
	}{
		{"video.adultAbsence", c.Video.AdultAbsence},
		{"video.clipInterval", c.Video.ClipInterval},
		{"video.clipLength", c.Video.ClipLength},
		{"video.stageTimeout", c.Video.StageTimeout},
		{"loop.poll", c.Loop.Poll},
		{"relay.timeout", c.Relay.Timeout},
		{"companion.telemetryInterval", c.Companion.TelemetryInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be greater than 0", p.name))
		}
	}
	nonNegative := []struct {
		name string
		d    time.Duration
	}{
		{"video.postClipSleep", c.Video.PostClipSleep},
		{"video.preRoll", c.Video.PreRoll},
		{"relay.minInterval", c.Relay.MinInterval},
		{"companion.heartbeat", c.Companion.Heartbeat},
	}
	for _, p := range nonNegative {
		if p.d < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative", p.name))
		}
	}

	if c.Relay.APIKey == "" {
		errs = append(errs, errors.New("relay.apiKey: required"))
	}
	if c.Video.Enabled {
		if c.Firebase.Bucket == "" {
			errs = append(errs, errors.New("firebase.bucket: required when video is enabled"))
		}
		if c.Video.WorkDir == "" {
			errs = append(errs, errors.New("video.workDir: required when video is enabled"))
		}
	}
	if c.Firebase.DatabaseURL != "" && !strings.HasPrefix(c.Firebase.DatabaseURL, "https://") {
		errs = append(errs, errors.New("firebase.databaseURL: must be an https URL"))
	}
	if c.GPIO.Enabled && (c.GPIO.LEDPin < 0 || c.GPIO.LEDPin > 27) {
		errs = append(errs, errors.New("gpio.ledPin: must be a BCM pin between 0 and 27"))
	}
	return errs
}

// LightWindow parses the light policy clock times.
func (c Config) LightWindow() (logic.LightWindow, error) {
	from, err := logic.ParseClockTime(c.Policy.LightOffFrom)
	if err != nil {
		return logic.LightWindow{}, fmt.Errorf("policy.lightOffFrom: %w", err)
	}
	until, err := logic.ParseClockTime(c.Policy.LightOffUntil)
	if err != nil {
		return logic.LightWindow{}, fmt.Errorf("policy.lightOffUntil: %w", err)
	}
	if from >= until {
		return logic.LightWindow{}, errors.New("policy.lightOffFrom: must be before lightOffUntil")
	}
	return logic.LightWindow{OffFrom: from, OffUntil: until}, nil
}

// FanBand returns the fan thresholds.
func (c Config) FanBand() logic.FanBand {
	return logic.FanBand{OnAt: c.Policy.FanOnAt, OffBelow: c.Policy.FanOffBelow}
}

// TriggerConfig returns the video trigger timings.
func (c Config) TriggerConfig() logic.TriggerConfig {
	return logic.TriggerConfig{
		AdultAbsence:  c.Video.AdultAbsence,
		ClipInterval:  c.Video.ClipInterval,
		PostClipSleep: c.Video.PostClipSleep,
	}
}

// Load reads configFile (if non-empty) over the defaults, applies
// environment overrides and validates. Validation failures come back as a
// *faults.ConfigError listing every problem.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		file, err := os.Open(configFile)
		if err != nil {
			return nil, fmt.Errorf("open config file at path '%s': %w", configFile, err)
		}
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err = decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode config file at path '%s': %w", configFile, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "ROOM_MONITOR_"}); err != nil {
		return nil, fmt.Errorf("parse config environment variables: %w", err)
	}

	if verrs := cfg.Validate(); len(verrs) > 0 {
		return nil, &faults.ConfigError{Problems: verrs}
	}
	return &cfg, nil
}
