package clipstore

import (
	"context"
	"path/filepath"
	"sync"
)

// FakeUploader records uploads and returns a URL under a fixed bucket.
type FakeUploader struct {
	mu sync.Mutex

	Bucket string
	Paths  []string
	Err    error
}

// NewFakeUploader creates a FakeUploader for bucket.
func NewFakeUploader(bucket string) *FakeUploader {
	return &FakeUploader{Bucket: bucket}
}

func (f *FakeUploader) UploadClip(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Paths = append(f.Paths, path)
	if f.Err != nil {
		return "", f.Err
	}
	return PublicURL(f.Bucket, filepath.Base(path)), nil
}

// FakeRecordStore keeps records in memory.
type FakeRecordStore struct {
	mu      sync.Mutex
	Records []Record
	Err     error
}

func (f *FakeRecordStore) RecordMetadata(_ context.Context, rec Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Records = append(f.Records, rec)
	return nil
}
