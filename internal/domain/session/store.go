package session

import (
	"context"
	"errors"
)

// Persister saves session records between runs.
// This interface is defined in the domain to avoid circular imports.
// Implementations: state file, SQLite, Redis, in-memory (test).
type Persister interface {
	// Load returns the saved record.
	// Returns ErrNoRecord if nothing has been saved.
	Load(ctx context.Context) (*Record, error)

	// Save replaces the saved record.
	Save(ctx context.Context, rec *Record) error

	// Delete removes the saved record. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}

// ErrNoRecord is returned by Persister.Load when no session has been saved.
var ErrNoRecord = errors.New("no saved session")

// Observer receives the store state after every write.
// Observers run on the writing goroutine while the write lock is held and must
// not write to the store.
type Observer func(Snapshot)
