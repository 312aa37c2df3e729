// Package clipstore publishes recorded clips: the video goes to a public
// Firebase Storage bucket and a metadata record goes to every configured
// RecordStore (Realtime Database, local journal).
package clipstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"
)

// TimestampLayout is the record timestamp format, day first.
const TimestampLayout = "02/01/2006 15:04:05"

// Uploader stores a local file and returns its public URL.
type Uploader interface {
	UploadClip(ctx context.Context, path string) (string, error)
}

// Record describes one published clip.
type Record struct {
	Name         string // object name, e.g. 20260301T073000-<uuid>.mp4
	URL          string
	TakenAt      time.Time
	ChildPresent bool
	AdultPresent bool
	Reason       string // "automatic" or "manual"
}

// RecordStore persists clip metadata.
type RecordStore interface {
	RecordMetadata(ctx context.Context, rec Record) error
}

// PublicURL is the address of a publicly readable object in bucket.
func PublicURL(bucket, name string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + url.PathEscape(name)
}

// MultiStore writes a record to every store, continuing past failures.
type MultiStore []RecordStore

// RecordMetadata returns every store's error joined, or nil.
func (m MultiStore) RecordMetadata(ctx context.Context, rec Record) error {
	var errs []error
	for i, s := range m {
		if err := s.RecordMetadata(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("store %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
