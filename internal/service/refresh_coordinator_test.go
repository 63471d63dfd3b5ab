package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/saccosphere/memberclient/internal/domain/auth"
	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/port/outbound"
)

// blockingRefresh answers the refresh endpoint once release is closed.
func blockingRefresh(release <-chan struct{}, resp *outbound.Response) func(context.Context, outbound.Request) (*outbound.Response, error) {
	return func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
		select {
		case <-release:
			return resp, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func newTestCoordinator(transport outbound.APITransport, credential string) (*RefreshCoordinator, *session.Store) {
	store := storeWith(credential)
	return NewRefreshCoordinator(transport, store, RefreshConfig{}, discardLogger(), nil, nil), store
}

func TestRefreshCoordinator_ConcurrentCallersShareOneRenewal(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	transport := newFakeTransport(blockingRefresh(release, jsonResponse(http.StatusOK, refreshBody("new"))))
	c, st := newTestCoordinator(transport, "old")

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureRefreshed(context.Background(), "old")
		}(i)
	}

	waitFor(t, "all callers to attach", func() bool { return c.waiters() == callers })
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: EnsureRefreshed() error: %v", i, err)
		}
	}
	if n := transport.CountPath("/auth/refresh"); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	if got := st.Credential(); got != "new" {
		t.Errorf("credential = %q, want %q", got, "new")
	}
	if c.Refreshing() {
		t.Error("coordinator still refreshing after completion")
	}
}

func TestRefreshCoordinator_RejectedIsSharedByAllWaiters(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	transport := newFakeTransport(blockingRefresh(release, jsonResponse(http.StatusUnauthorized, `{"detail":"expired"}`)))
	c, st := newTestCoordinator(transport, "old")

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.EnsureRefreshed(context.Background(), "old")
		}(i)
	}
	waitFor(t, "all callers to attach", func() bool { return c.waiters() == callers })
	close(release)
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, ErrRefreshRejected) {
			t.Errorf("caller %d: error = %v, want ErrRefreshRejected", i, err)
		}
		var rerr *RefreshError
		if !errors.As(err, &rerr) || rerr.StatusCode != http.StatusUnauthorized {
			t.Errorf("caller %d: error = %v, want RefreshError{401}", i, err)
		}
	}
	if n := transport.CountPath("/auth/refresh"); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	// The coordinator reports failure; clearing is the caller's job.
	if got := st.Credential(); got != "old" {
		t.Errorf("credential = %q, want it untouched", got)
	}
}

func TestRefreshCoordinator_NextCycleStartsFresh(t *testing.T) {
	calls := 0
	transport := newFakeTransport(func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
		calls++
		if calls == 1 {
			return jsonResponse(http.StatusInternalServerError, `{}`), nil
		}
		return jsonResponse(http.StatusOK, refreshBody("second")), nil
	})
	c, st := newTestCoordinator(transport, "old")

	if err := c.EnsureRefreshed(context.Background(), "old"); !errors.Is(err, ErrRefreshRejected) {
		t.Fatalf("first EnsureRefreshed() error = %v, want ErrRefreshRejected", err)
	}
	if err := c.EnsureRefreshed(context.Background(), "old"); err != nil {
		t.Fatalf("second EnsureRefreshed() error: %v", err)
	}
	if n := transport.CountPath("/auth/refresh"); n != 2 {
		t.Errorf("refresh calls = %d, want 2", n)
	}
	if got := st.Credential(); got != "second" {
		t.Errorf("credential = %q, want %q", got, "second")
	}
}

func TestRefreshCoordinator_AlreadyRenewedSkipsCall(t *testing.T) {
	transport := newFakeTransport(func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
		t.Errorf("unexpected call to %s", req.Path)
		return jsonResponse(http.StatusOK, refreshBody("x")), nil
	})
	c, _ := newTestCoordinator(transport, "fresh")

	if err := c.EnsureRefreshed(context.Background(), "stale"); err != nil {
		t.Fatalf("EnsureRefreshed() error: %v", err)
	}
	if len(transport.Calls()) != 0 {
		t.Errorf("calls = %d, want 0", len(transport.Calls()))
	}
}

func TestRefreshCoordinator_EmptyCredentialStillRenews(t *testing.T) {
	transport := newFakeTransport(func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
		return jsonResponse(http.StatusOK, refreshBody("from-cookie")), nil
	})
	c, st := newTestCoordinator(transport, "")

	if err := c.EnsureRefreshed(context.Background(), ""); err != nil {
		t.Fatalf("EnsureRefreshed() error: %v", err)
	}
	if got := st.Credential(); got != "from-cookie" {
		t.Errorf("credential = %q, want %q", got, "from-cookie")
	}
	calls := transport.Calls()
	if len(calls) != 1 || calls[0].Method != http.MethodPost || calls[0].Path != "/auth/refresh" {
		t.Errorf("calls = %+v, want one POST /auth/refresh", calls)
	}
}

func TestRefreshCoordinator_Failures(t *testing.T) {
	tests := []struct {
		name     string
		resp     *outbound.Response
		sendErr  error
		wantIs   error
		rejected bool
	}{
		{
			name:    "transport error",
			sendErr: errors.New("connection refused"),
		},
		{
			name:   "missing token",
			resp:   jsonResponse(http.StatusOK, `{"detail":"ok"}`),
			wantIs: auth.ErrMalformedPayload,
		},
		{
			name:   "not json",
			resp:   jsonResponse(http.StatusOK, `<html>`),
			wantIs: auth.ErrMalformedPayload,
		},
		{
			name:     "forbidden",
			resp:     jsonResponse(http.StatusForbidden, `{}`),
			wantIs:   ErrRefreshRejected,
			rejected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newFakeTransport(func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
				return tt.resp, tt.sendErr
			})
			c, st := newTestCoordinator(transport, "old")

			err := c.EnsureRefreshed(context.Background(), "old")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want %v", err, tt.wantIs)
			}
			if got := errors.Is(err, ErrRefreshRejected); got != tt.rejected {
				t.Errorf("errors.Is(ErrRefreshRejected) = %v, want %v", got, tt.rejected)
			}
			if got := st.Credential(); got != "old" {
				t.Errorf("credential = %q, want it untouched", got)
			}
		})
	}
}

func TestRefreshCoordinator_WaiterCancelLeavesRenewalRunning(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	transport := newFakeTransport(blockingRefresh(release, jsonResponse(http.StatusOK, refreshBody("new"))))
	c, st := newTestCoordinator(transport, "old")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.EnsureRefreshed(ctx, "old") }()

	waitFor(t, "renewal to start", c.Refreshing)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("EnsureRefreshed() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}
	if !c.Refreshing() {
		t.Fatal("renewal stopped when its starter gave up")
	}

	close(release)
	waitFor(t, "renewal to finish", func() bool { return !c.Refreshing() })
	if got := st.Credential(); got != "new" {
		t.Errorf("credential = %q, want %q", got, "new")
	}
}

func TestRefreshCoordinator_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	transport := newFakeTransport(func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	store := storeWith("old")
	c := NewRefreshCoordinator(transport, store, RefreshConfig{Timeout: 20 * time.Millisecond}, discardLogger(), nil, nil)

	err := c.EnsureRefreshed(context.Background(), "old")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("EnsureRefreshed() error = %v, want DeadlineExceeded", err)
	}
	if c.Refreshing() {
		t.Error("coordinator still refreshing after timeout")
	}
}

func TestRefreshCoordinator_CustomPath(t *testing.T) {
	transport := newFakeTransport(func(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
		return jsonResponse(http.StatusOK, refreshBody("new")), nil
	})
	c := NewRefreshCoordinator(transport, storeWith(""), RefreshConfig{Path: "/api/token/refresh/"}, nil, nil, nil)

	if err := c.EnsureRefreshed(context.Background(), ""); err != nil {
		t.Fatalf("EnsureRefreshed() error: %v", err)
	}
	if n := transport.CountPath("/api/token/refresh/"); n != 1 {
		t.Errorf("calls to custom path = %d, want 1", n)
	}
}
