// Package capture runs the capture-and-publish sequence: flash the LED,
// record a short clip, wrap it as mp4, upload it, record its metadata, and
// delete the local files.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dcorrigan/room-monitor/internal/clipstore"
	"github.com/dcorrigan/room-monitor/internal/faults"
	"github.com/dcorrigan/room-monitor/internal/gpio"
)

// Defaults for the capture timings.
const (
	DefaultPreRoll      = 2 * time.Second
	DefaultClipLength   = 5 * time.Second
	DefaultStageTimeout = 60 * time.Second
	recordGrace         = 10 * time.Second
)

// Request describes why and when a capture was asked for.
type Request struct {
	Time         time.Time
	ChildPresent bool
	AdultPresent bool
	Reason       string
}

// Result is what a capture produced. URL is set once the upload succeeds,
// even if a later stage fails.
type Result struct {
	Name string
	URL  string
}

// Pipeline holds the collaborators for a capture.
type Pipeline struct {
	Indicator  gpio.Indicator
	Recorder   Recorder
	Transcoder Transcoder
	Uploader   clipstore.Uploader
	Store      clipstore.RecordStore

	// Dir holds the intermediate files.
	Dir string

	PreRoll      time.Duration
	ClipLength   time.Duration
	StageTimeout time.Duration

	// NewName returns the base file name for a clip; defaults to a
	// timestamp plus a random UUID.
	NewName func(t time.Time) string

	Logger *slog.Logger
}

// ClipName is the default NewName.
func ClipName(t time.Time) string {
	return t.Format("20060102T150405") + "-" + uuid.NewString()
}

// Capture runs the whole sequence. Errors are *faults.CaptureFault naming
// the failing stage. Local files are removed whatever happens.
func (p *Pipeline) Capture(ctx context.Context, req Request) (Result, error) {
	log := p.logger()
	newName := p.NewName
	if newName == nil {
		newName = ClipName
	}
	name := newName(req.Time)
	raw := filepath.Join(p.Dir, name+".h264")
	mp4 := filepath.Join(p.Dir, name+".mp4")
	res := Result{Name: name + ".mp4"}

	log = log.With("clip", res.Name, "reason", req.Reason)
	log.Info("capture starting")

	defer func() {
		if err := removeAll(raw, mp4); err != nil {
			log.Warn("cleanup failed", "error", &faults.CaptureFault{Stage: faults.StageCleanup, Err: err})
		}
	}()

	if p.Indicator != nil {
		if err := gpio.Flash(ctx, p.Indicator, durationOr(p.PreRoll, DefaultPreRoll)); err != nil {
			if ctx.Err() != nil {
				return res, &faults.CaptureFault{Stage: faults.StageIndicator, Err: err}
			}
			// indicator faults do not abort the capture
			log.Warn("indicator failed", "error", &faults.CaptureFault{Stage: faults.StageIndicator, Err: err})
		}
	}

	clipLen := durationOr(p.ClipLength, DefaultClipLength)
	if err := p.stage(ctx, clipLen+recordGrace, func(ctx context.Context) error {
		return p.Recorder.Record(ctx, raw, clipLen)
	}); err != nil {
		return res, &faults.CaptureFault{Stage: faults.StageRecord, Err: err}
	}

	stageTimeout := durationOr(p.StageTimeout, DefaultStageTimeout)
	if err := p.stage(ctx, stageTimeout, func(ctx context.Context) error {
		return p.Transcoder.Transcode(ctx, raw, mp4)
	}); err != nil {
		return res, &faults.CaptureFault{Stage: faults.StageTranscode, Err: err}
	}

	if err := p.stage(ctx, stageTimeout, func(ctx context.Context) error {
		url, err := p.Uploader.UploadClip(ctx, mp4)
		res.URL = url
		return err
	}); err != nil {
		return res, &faults.CaptureFault{Stage: faults.StageUpload, Err: err}
	}
	log.Info("clip uploaded", "url", res.URL)

	if p.Store != nil {
		rec := clipstore.Record{
			Name:         res.Name,
			URL:          res.URL,
			TakenAt:      req.Time,
			ChildPresent: req.ChildPresent,
			AdultPresent: req.AdultPresent,
			Reason:       req.Reason,
		}
		if err := p.stage(ctx, stageTimeout, func(ctx context.Context) error {
			return p.Store.RecordMetadata(ctx, rec)
		}); err != nil {
			return res, &faults.CaptureFault{Stage: faults.StagePersist, Err: err}
		}
	}
	return res, nil
}

func (p *Pipeline) stage(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default().With("component", "capture")
	}
	return p.Logger.With("component", "capture")
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func removeAll(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", filepath.Base(p), err))
		}
	}
	return errors.Join(errs...)
}
