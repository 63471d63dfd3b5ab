// Package sqlite persists the session record in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saccosphere/memberclient/internal/domain/session"
)

// DefaultProfile is the row key used when no profile is given.
const DefaultProfile = "default"

// SessionStore keeps one session record per profile.
type SessionStore struct {
	db      *sql.DB
	profile string
}

// Compile-time check.
var _ session.Persister = (*SessionStore)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path, profile string) (*SessionStore, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		if err := restrictFile(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	// Concurrent CLI invocations share the file.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SessionStore{db: db, profile: profile}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// restrictFile creates the database file owner-only before SQLite opens it,
// and tightens an existing file. Journal files inherit its mode.
func restrictFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	_ = f.Close()
	if runtime.GOOS == "windows" {
		return nil
	}
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("restrict database file permissions: %w", err)
	}
	return nil
}

func (s *SessionStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS sessions (
		profile TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		record TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);`)
	return err
}

// Load returns the record for the profile, or session.ErrNoRecord.
func (s *SessionStore) Load(ctx context.Context) (*session.Record, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM sessions WHERE profile = ?`, s.profile,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &rec, nil
}

// Save replaces the record for the profile.
func (s *SessionStore) Save(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (profile, version, record, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(profile) DO UPDATE SET
			version = excluded.version,
			record = excluded.record,
			saved_at = excluded.saved_at`,
		s.profile, rec.Version, string(data), savedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes the record for the profile.
func (s *SessionStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE profile = ?`, s.profile); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
