// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/saccosphere/memberclient/internal/domain/session"
)

// SessionStore implements session.Persister with an in-memory record.
// Thread-safe for concurrent access. Nothing survives the process; use it for
// tests and for --session-backend=memory.
type SessionStore struct {
	mu      sync.RWMutex
	data    []byte
	saves   int
	deletes int
}

// Compile-time check.
var _ session.Persister = (*SessionStore)(nil)

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// Load returns a copy of the saved record.
func (s *SessionStore) Load(ctx context.Context) (*session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil, session.ErrNoRecord
	}
	var rec session.Record
	if err := json.Unmarshal(s.data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

// Save stores a copy of rec.
func (s *SessionStore) Save(ctx context.Context, rec *session.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Round-trip through JSON so callers cannot alias the stored record.
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saves++
	return nil
}

// Delete drops the saved record.
func (s *SessionStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	s.deletes++
	return nil
}

// Counts returns how many saves and deletes have happened.
func (s *SessionStore) Counts() (saves, deletes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves, s.deletes
}
