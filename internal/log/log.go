// Package log builds the daemon's slog logger.
// Development mode uses tint's coloured console handler; otherwise JSON.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

type loggerOptions struct {
	level       slog.Level
	development bool
	w           io.Writer
}

// LoggerOption configures NewLogger.
type LoggerOption func(*loggerOptions)

// WithDevelopment switches to the human-readable console handler.
func WithDevelopment() LoggerOption {
	return func(o *loggerOptions) {
		o.development = true
	}
}

// WithLevel sets the minimum level.
func WithLevel(level slog.Level) LoggerOption {
	return func(o *loggerOptions) {
		o.level = level
	}
}

// WithWriter sends output somewhere other than stdout.
func WithWriter(w io.Writer) LoggerOption {
	return func(o *loggerOptions) {
		o.w = w
	}
}

// NewLogger returns a logger configured by opts. The default is JSON at info.
func NewLogger(opts ...LoggerOption) *slog.Logger {
	o := loggerOptions{level: slog.LevelInfo, w: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	if o.development {
		return slog.New(tint.NewHandler(o.w, &tint.Options{
			Level:      o.level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(o.w, &slog.HandlerOptions{Level: o.level}))
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
