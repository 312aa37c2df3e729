package clipstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/sensepi.appspot.com/clip-1.mp4",
		PublicURL("sensepi.appspot.com", "clip-1.mp4"))
	assert.Equal(t,
		"https://storage.googleapis.com/b/a%20b.mp4",
		PublicURL("b", "a b.mp4"))
}

func TestMultiStoreJoinsErrors(t *testing.T) {
	ok := &FakeRecordStore{}
	bad := &FakeRecordStore{Err: errors.New("offline")}
	rec := Record{Name: "x.mp4"}

	err := MultiStore{bad, ok}.RecordMetadata(t.Context(), rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, bad.Err)
	assert.Len(t, ok.Records, 1, "later stores still receive the record")

	require.NoError(t, MultiStore{ok}.RecordMetadata(t.Context(), rec))
	require.NoError(t, MultiStore(nil).RecordMetadata(t.Context(), rec))
}

func TestRTDBStoreRecordMetadata(t *testing.T) {
	var (
		gotPath string
		gotBody RTDBRecord
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = io.WriteString(w, `{"name":"-NabcDEF"}`)
	}))
	defer srv.Close()

	store, err := NewRTDBStore(srv.URL+"/", "/file/", srv.Client())
	require.NoError(t, err)

	rec := Record{
		Name:         "clip.mp4",
		TakenAt:      time.Date(2026, 3, 1, 7, 5, 9, 0, time.Local),
		ChildPresent: true,
	}
	require.NoError(t, store.RecordMetadata(t.Context(), rec))

	assert.Equal(t, "/file.json", gotPath)
	assert.Equal(t, RTDBRecord{
		Image:        "clip.mp4",
		Timestamp:    "01/03/2026 07:05:09",
		ChildPresent: true,
	}, gotBody)
}

func TestRTDBStoreRejectsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Permission denied"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	store, err := NewRTDBStore(srv.URL, "", srv.Client())
	require.NoError(t, err)

	err = store.RecordMetadata(t.Context(), Record{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Permission denied")
}

func TestNewRTDBStoreRequiresURL(t *testing.T) {
	_, err := NewRTDBStore("", "file", nil)
	require.Error(t, err)
}

func TestFirebaseUploader(t *testing.T) {
	var (
		gotACL  string
		gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/b/clips-bucket/o"), "path %s", r.URL.Path)
		gotACL = r.URL.Query().Get("predefinedAcl")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"clips-bucket","name":"clip.mp4"}`)
	}))
	defer srv.Close()

	up, err := NewFirebaseUploader(context.Background(), "clips-bucket",
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4-bytes"), 0o644))

	got, err := up.UploadClip(t.Context(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/clips-bucket/clip.mp4", got)
	assert.Equal(t, "publicRead", gotACL)
	assert.Contains(t, gotBody, "mp4-bytes")
}

func TestFirebaseUploaderMissingFile(t *testing.T) {
	up, err := NewFirebaseUploader(context.Background(), "b", option.WithoutAuthentication())
	require.NoError(t, err)

	_, err = up.UploadClip(t.Context(), filepath.Join(t.TempDir(), "nope.mp4"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
