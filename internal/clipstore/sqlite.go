package clipstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/dcorrigan/room-monitor/internal/clipstore/migrations"
)

const (
	journalFile       = "clips.db"
	connRetryInterval = time.Second
	connMaxRetries    = 5
)

// ErrNoClips is returned by Latest when the journal is empty.
var ErrNoClips = errors.New("clipstore: no clips recorded")

var _ RecordStore = (*SQLiteStore)(nil)

// SQLiteStore is the local clip journal. It survives restarts so the last
// clip URL can be shown again before the next capture.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the journal in dir and applies
// pending migrations.
func OpenSQLiteStore(ctx context.Context, dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	file := filepath.Join(dir, journalFile)

	db, err := sql.Open("sqlite", "file:"+file+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if err = waitHealthy(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	if err = migrateUp(db, migrations.FS()); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func waitHealthy(ctx context.Context, db *sql.DB) error {
	var err error
	for i := 0; i < connMaxRetries; i++ {
		pctx, cancel := context.WithTimeout(ctx, time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-time.After(connRetryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("sqlite db unhealthy: %w", err)
}

func migrateUp(db *sql.DB, fsys fs.FS) error {
	sd, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("open migrations fs: %w", err)
	}
	defer sd.Close() //nolint:errcheck

	driver, err := migratesqlite.WithInstance(db, new(migratesqlite.Config))
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sd, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// RecordMetadata appends rec to the journal. Re-recording the same name
// replaces the earlier row.
func (s *SQLiteStore) RecordMetadata(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO clips (name, url, taken_at, child_present, adult_present, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			taken_at = excluded.taken_at,
			child_present = excluded.child_present,
			adult_present = excluded.adult_present,
			reason = excluded.reason`,
		rec.Name, rec.URL, rec.TakenAt.UnixMilli(), rec.ChildPresent, rec.AdultPresent, rec.Reason)
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	return nil
}

// Latest returns the most recent clip, or ErrNoClips.
func (s *SQLiteStore) Latest(ctx context.Context) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, url, taken_at, child_present, adult_present, reason
		FROM clips ORDER BY taken_at DESC, id DESC LIMIT 1`)

	var (
		rec     Record
		takenAt int64
	)
	err := row.Scan(&rec.Name, &rec.URL, &takenAt, &rec.ChildPresent, &rec.AdultPresent, &rec.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoClips
	}
	if err != nil {
		return Record{}, fmt.Errorf("query latest clip: %w", err)
	}
	rec.TakenAt = time.UnixMilli(takenAt)
	return rec, nil
}

// Count returns how many clips are journaled.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clips: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
