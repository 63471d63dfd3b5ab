package session

import (
	"sync"
)

// Store is the process-wide session state shared by the request gateway, the
// refresh coordinator, bootstrap and the route guard.
//
// Every write replaces whole fields and is serialised: observers see snapshots
// in write order and a read always returns the most recent completed write.
type Store struct {
	// writeMu orders writes together with their notifications.
	writeMu sync.Mutex

	mu    sync.RWMutex
	state Snapshot

	obsMu     sync.RWMutex
	observers map[uint64]Observer
	nextObsID uint64
}

// NewStore creates an empty, uninitialized store.
func NewStore() *Store {
	return &Store{
		observers: make(map[uint64]Observer),
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.state)
}

// Credential returns the current bearer credential ("" when absent).
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Credential
}

// SetIdentity replaces the identity. A nil identity marks it absent.
func (s *Store) SetIdentity(identity *Identity) {
	s.write(func(st *Snapshot) {
		st.Identity = cloneIdentity(identity)
	})
}

// SetCredential replaces the credential without touching the identity.
func (s *Store) SetCredential(credential string) {
	s.write(func(st *Snapshot) {
		st.Credential = credential
	})
}

// SetAuth replaces identity and credential in one write, as login and
// registration do.
func (s *Store) SetAuth(identity *Identity, credential string) {
	s.write(func(st *Snapshot) {
		st.Identity = cloneIdentity(identity)
		st.Credential = credential
	})
}

// SetInitialized marks the session question as answered.
// The flag only ever moves from false to true; use Reset to start over.
func (s *Store) SetInitialized() {
	s.write(func(st *Snapshot) {
		st.Initialized = true
	})
}

// Clear drops identity and credential and marks the store initialized:
// the answer is now "not authenticated", not "unknown". Clearing twice
// leaves the same state as clearing once.
func (s *Store) Clear() {
	s.write(func(st *Snapshot) {
		st.Identity = nil
		st.Credential = ""
		st.Initialized = true
	})
}

// Reset returns the store to its zero state, including the initialization
// flag. It exists for test setup and for explicit application restarts.
func (s *Store) Reset() {
	s.write(func(st *Snapshot) {
		*st = Snapshot{}
	})
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.observers, id)
			s.obsMu.Unlock()
		})
	}
}

func (s *Store) write(mutate func(*Snapshot)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	mutate(&s.state)
	snap := copySnapshot(s.state)
	s.mu.Unlock()

	s.obsMu.RLock()
	observers := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.obsMu.RUnlock()

	for _, fn := range observers {
		fn(copySnapshot(snap))
	}
}

func copySnapshot(in Snapshot) Snapshot {
	out := in
	out.Identity = cloneIdentity(in.Identity)
	return out
}

func cloneIdentity(in *Identity) *Identity {
	if in == nil {
		return nil
	}
	out := *in
	if in.DateJoined != nil {
		t := *in.DateJoined
		out.DateJoined = &t
	}
	return &out
}
