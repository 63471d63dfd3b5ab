// Package redis persists the session record in Redis, for member clients that
// share one session across hosts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/saccosphere/memberclient/internal/domain/session"
)

// DefaultKey is the key used when none is configured.
const DefaultKey = "saccosphere:session"

// SessionStore keeps the session record under a single key.
type SessionStore struct {
	client goredis.UniversalClient
	key    string
	ttl    time.Duration
}

// Compile-time check.
var _ session.Persister = (*SessionStore)(nil)

// NewSessionStore creates a store on client. A zero ttl keeps the record until
// it is deleted.
func NewSessionStore(client goredis.UniversalClient, key string, ttl time.Duration) *SessionStore {
	if key == "" {
		key = DefaultKey
	}
	return &SessionStore{client: client, key: key, ttl: ttl}
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, key string, ttl time.Duration) (*SessionStore, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return NewSessionStore(client, key, ttl), nil
}

// Load returns the stored record, or session.ErrNoRecord.
func (s *SessionStore) Load(ctx context.Context) (*session.Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, session.ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	return &rec, nil
}

// Save replaces the stored record and restarts its TTL.
func (s *SessionStore) Save(ctx context.Context, rec *session.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// Delete removes the stored record.
func (s *SessionStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
