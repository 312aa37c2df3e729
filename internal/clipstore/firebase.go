package clipstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// FirebaseUploader uploads clips to a Firebase Storage bucket (a Cloud
// Storage bucket under the hood) and makes them publicly readable.
type FirebaseUploader struct {
	svc    *storage.Service
	bucket string
}

// NewFirebaseUploader builds the storage client. Pass
// option.WithCredentialsFile for a service account key.
func NewFirebaseUploader(ctx context.Context, bucket string, opts ...option.ClientOption) (*FirebaseUploader, error) {
	if bucket == "" {
		return nil, errors.New("clipstore: bucket is required")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &FirebaseUploader{svc: svc, bucket: bucket}, nil
}

// UploadClip uploads path under its base name with a publicRead ACL.
func (u *FirebaseUploader) UploadClip(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open clip: %w", err)
	}
	defer f.Close() //nolint:errcheck

	name := filepath.Base(path)
	obj := &storage.Object{
		Name:        name,
		ContentType: "video/mp4",
	}
	_, err = u.svc.Objects.Insert(u.bucket, obj).
		Media(f).
		PredefinedAcl("publicRead").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return PublicURL(u.bucket, name), nil
}
