package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/port/outbound"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sentCall is one request seen by fakeTransport.
type sentCall struct {
	Method     string
	Path       string
	Credential string
}

// fakeTransport implements outbound.APITransport with a per-call handler.
type fakeTransport struct {
	mu      sync.Mutex
	handler func(ctx context.Context, req outbound.Request) (*outbound.Response, error)
	calls   []sentCall
}

func newFakeTransport(handler func(ctx context.Context, req outbound.Request) (*outbound.Response, error)) *fakeTransport {
	return &fakeTransport{handler: handler}
}

func (f *fakeTransport) Send(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sentCall{Method: req.Method, Path: req.Path, Credential: req.Credential})
	f.mu.Unlock()
	return f.handler(ctx, req)
}

func (f *fakeTransport) Calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CountPath returns how many calls were made to path (query ignored).
func (f *fakeTransport) CountPath(path string) int {
	n := 0
	for _, c := range f.Calls() {
		p, _, _ := strings.Cut(c.Path, "?")
		if p == path {
			n++
		}
	}
	return n
}

func (f *fakeTransport) Paths() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Path
	}
	return out
}

func jsonResponse(status int, body string) *outbound.Response {
	return &outbound.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

const (
	meBody      = `{"user":{"id":"u-1","email":"jane@example.com","first_name":"Jane","is_active":true}}`
	meBodyOther = `{"user":{"id":"u-2","email":"john@example.com","first_name":"John","is_active":true}}`
)

func refreshBody(token string) string {
	return `{"accessToken":"` + token + `"}`
}

// stubRenewer implements Renewer with a function.
type stubRenewer struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, stale string) error
	stale []string
}

func (r *stubRenewer) EnsureRefreshed(ctx context.Context, stale string) error {
	r.mu.Lock()
	r.stale = append(r.stale, stale)
	r.mu.Unlock()
	return r.fn(ctx, stale)
}

func (r *stubRenewer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stale)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// storeWith returns a store holding credential.
func storeWith(credential string) *session.Store {
	s := session.NewStore()
	if credential != "" {
		s.SetCredential(credential)
	}
	return s
}
