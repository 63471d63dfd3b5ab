package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/saccosphere/memberclient/internal/domain/session"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, "", ttl)

	t.Cleanup(func() {
		_ = store.Close()
		mr.Close()
	})
	return store, mr
}

func TestSessionStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t, 0)

	_, err := store.Load(context.Background())
	if !errors.Is(err, session.ErrNoRecord) {
		t.Errorf("Load() error = %v, want ErrNoRecord", err)
	}
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, 0)

	rec := &session.Record{
		Version:    session.RecordVersion,
		Identity:   &session.Identity{ID: "3", Email: "member@example.com"},
		Credential: "tok-1",
	}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !mr.Exists(DefaultKey) {
		t.Fatalf("key %q not written", DefaultKey)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Credential != "tok-1" || got.Identity == nil || got.Identity.ID != "3" {
		t.Errorf("Load() = %+v, want credential tok-1 and identity 3", got)
	}

	if err := store.Delete(ctx); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNoRecord) {
		t.Errorf("Load() after Delete error = %v, want ErrNoRecord", err)
	}
}

func TestSessionStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t, time.Hour)

	if err := store.Save(ctx, &session.Record{Version: session.RecordVersion, Credential: "t"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if ttl := mr.TTL(DefaultKey); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.Load(ctx); !errors.Is(err, session.ErrNoRecord) {
		t.Errorf("Load() after expiry error = %v, want ErrNoRecord", err)
	}
}

func TestSessionStore_CorruptValue(t *testing.T) {
	store, mr := newTestStore(t, 0)
	if err := mr.Set(DefaultKey, "not json"); err != nil {
		t.Fatal(err)
	}

	_, err := store.Load(context.Background())
	if err == nil || errors.Is(err, session.ErrNoRecord) {
		t.Errorf("Load() error = %v, want parse error", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, addr, "", 0); err == nil {
		t.Error("Dial() to closed server succeeded, want error")
	}
}
