package clipstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes needed for Realtime Database REST access with a service account.
var rtdbScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

// RTDBClient returns an HTTP client authorised with the service account in
// credentialsJSON.
func RTDBClient(ctx context.Context, credentialsJSON []byte) (*http.Client, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, rtdbScopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	return oauth2.NewClient(ctx, creds.TokenSource), nil
}

// RTDBRecord is the JSON document pushed for each clip.
type RTDBRecord struct {
	Image        string `json:"image"`
	Timestamp    string `json:"timestamp"`
	ChildPresent bool   `json:"childPresent"`
	AdultPresent bool   `json:"adultPresent"`
}

// RTDBStore pushes clip records to a Realtime Database list.
type RTDBStore struct {
	endpoint string
	client   *http.Client
}

// NewRTDBStore pushes to <databaseURL>/<path>.json. client should carry
// credentials, see RTDBClient.
func NewRTDBStore(databaseURL, path string, client *http.Client) (*RTDBStore, error) {
	if databaseURL == "" {
		return nil, errors.New("clipstore: database URL is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	path = strings.Trim(path, "/")
	if path == "" {
		path = "file"
	}
	return &RTDBStore{
		endpoint: strings.TrimSuffix(databaseURL, "/") + "/" + path + ".json",
		client:   client,
	}, nil
}

// RecordMetadata POSTs the record, which appends it under a generated key.
func (s *RTDBStore) RecordMetadata(ctx context.Context, rec Record) error {
	body, err := json.Marshal(RTDBRecord{
		Image:        rec.Name,
		Timestamp:    rec.TakenAt.Format(TimestampLayout),
		ChildPresent: rec.ChildPresent,
		AdultPresent: rec.AdultPresent,
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("push record: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push record: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
