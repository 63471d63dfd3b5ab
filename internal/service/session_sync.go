package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/port/outbound"
)

// persistTimeout bounds a save or delete triggered by a store write.
const persistTimeout = 5 * time.Second

// SessionSync keeps a persisted session record in step with the store so the
// next run can bootstrap from the same server-side session material.
type SessionSync struct {
	persister session.Persister
	store     *session.Store
	jar       outbound.CookieJar
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	unsubscribe func()
}

// NewSessionSync creates a SessionSync. jar may be nil when the transport
// keeps no cookies.
func NewSessionSync(persister session.Persister, store *session.Store, jar outbound.CookieJar, logger *slog.Logger) *SessionSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSync{
		persister: persister,
		store:     store,
		jar:       jar,
		logger:    logger,
		now:       time.Now,
	}
}

// Restore loads the saved record into the transport and the store. Only the
// session material is restored: the credential and the cookies. Identity and
// the initialization flag are left for bootstrap to decide.
// A missing record is not an error.
func (s *SessionSync) Restore(ctx context.Context) error {
	rec, err := s.persister.Load(ctx)
	if errors.Is(err, session.ErrNoRecord) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if rec.Version != "" && rec.Version != session.RecordVersion {
		s.logger.Warn("ignoring saved session with unknown version", "version", rec.Version)
		return nil
	}
	if s.jar != nil {
		s.jar.SetCookies(session.HTTPCookies(rec.Cookies))
	}
	if rec.Credential != "" {
		s.store.SetCredential(rec.Credential)
	}
	s.logger.Debug("session restored", "cookies", len(rec.Cookies), "credential", rec.Credential != "")
	return nil
}

// Start persists every store write until Stop is called. Calling Start twice
// has no further effect.
func (s *SessionSync) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.store.Subscribe(s.onChange)
}

// Stop ends persistence of store writes.
func (s *SessionSync) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Flush persists the current state now. Cookies can change without a store
// write (a renewal that only rotates cookies), so callers flush before exit.
func (s *SessionSync) Flush(ctx context.Context) error {
	return s.persist(ctx, s.store.Snapshot())
}

func (s *SessionSync) onChange(snap session.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persist(ctx, snap); err != nil {
		s.logger.Warn("failed to persist session", "error", err)
	}
}

func (s *SessionSync) persist(ctx context.Context, snap session.Snapshot) error {
	switch {
	case snap.Initialized && !snap.Authenticated() && snap.Credential == "":
		// Signed out: nothing may survive to the next run.
		if err := s.persister.Delete(ctx); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		return nil
	case !snap.Initialized && snap.Credential == "":
		// Reset or not yet restored.
		return nil
	}

	rec := &session.Record{
		Version:    session.RecordVersion,
		Identity:   snap.Identity,
		Credential: snap.Credential,
		SavedAt:    s.now().UTC(),
	}
	if s.jar != nil {
		rec.Cookies = session.CookiesFromHTTP(s.jar.Cookies())
	}
	if err := s.persister.Save(ctx, rec); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
