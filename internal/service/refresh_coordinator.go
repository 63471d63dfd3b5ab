package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saccosphere/memberclient/internal/domain/auth"
	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/port/outbound"
	"github.com/saccosphere/memberclient/internal/telemetry"
)

// DefaultRefreshTimeout bounds a single renewal call.
const DefaultRefreshTimeout = 10 * time.Second

// ErrRefreshRejected is returned when the refresh endpoint answers with a
// non-2xx status, including 401.
var ErrRefreshRejected = errors.New("credential renewal rejected")

// RefreshError carries the status of a rejected renewal.
type RefreshError struct {
	StatusCode int
}

// Error returns the error message.
func (e *RefreshError) Error() string {
	return fmt.Sprintf("credential renewal rejected: status %d", e.StatusCode)
}

// Is matches ErrRefreshRejected.
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshRejected
}

// RefreshConfig configures the RefreshCoordinator.
type RefreshConfig struct {
	// Path is the refresh endpoint. Default: /auth/refresh.
	Path string
	// Timeout bounds each renewal call. Default: 10s.
	Timeout time.Duration
}

// renewal is the single in-flight renewal slot. Every caller that attaches to
// it receives the same err once done is closed.
type renewal struct {
	done    chan struct{}
	err     error
	waiters int
}

// RefreshCoordinator renews the credential on behalf of concurrent callers,
// issuing at most one renewal call at a time (Idle -> Refreshing -> Idle).
// It is safe for concurrent use.
type RefreshCoordinator struct {
	transport outbound.APITransport
	store     *session.Store
	path      string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer

	mu       sync.Mutex
	inflight *renewal
}

// NewRefreshCoordinator creates a coordinator that renews through transport
// and stores the new credential in store. The transport is used directly:
// a renewal never goes through the request gateway and cannot recurse.
func NewRefreshCoordinator(transport outbound.APITransport, store *session.Store, cfg RefreshConfig, logger *slog.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *RefreshCoordinator {
	if cfg.Path == "" {
		cfg.Path = DefaultPaths().Refresh
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRefreshTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	return &RefreshCoordinator{
		transport: transport,
		store:     store,
		path:      cfg.Path,
		timeout:   cfg.Timeout,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
	}
}

// EnsureRefreshed makes sure the credential has been renewed since stale was
// used. It returns nil on success and an error on failure; it never clears the
// session.
//
// If a renewal is in flight the caller attaches to it and gets its outcome.
// If the store already holds a different non-empty credential, a renewal
// finished after stale was sent and no call is made. Otherwise this caller
// starts the renewal.
//
// If ctx ends before the shared renewal finishes, ctx.Err() is returned and the
// renewal carries on for the other waiters.
func (c *RefreshCoordinator) EnsureRefreshed(ctx context.Context, stale string) error {
	c.mu.Lock()
	if current := c.store.Credential(); current != "" && current != stale {
		c.mu.Unlock()
		c.metrics.IncRenewalWait("already_renewed")
		return nil
	}

	r := c.inflight
	leader := r == nil
	if leader {
		r = &renewal{done: make(chan struct{})}
		c.inflight = r
	} else {
		c.metrics.IncRenewalWait("joined")
	}
	r.waiters++
	c.mu.Unlock()

	if leader {
		go c.run(context.WithoutCancel(ctx), r)
	}

	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refreshing reports whether a renewal is in flight.
func (c *RefreshCoordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight != nil
}

// waiters returns how many callers are attached to the in-flight renewal.
func (c *RefreshCoordinator) waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return 0
	}
	return c.inflight.waiters
}

// run performs the renewal and publishes its outcome. The new credential is
// stored before the slot is released, so a caller arriving after release sees
// either the slot or the renewed credential.
func (c *RefreshCoordinator) run(ctx context.Context, r *renewal) {
	err := c.renew(ctx)

	c.mu.Lock()
	r.err = err
	c.inflight = nil
	c.mu.Unlock()

	close(r.done)
}

func (c *RefreshCoordinator) renew(ctx context.Context) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "credential.renew", trace.WithAttributes(
		attribute.String("http.path", c.path),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	start := time.Now()
	resp, err := c.transport.Send(ctx, outbound.Request{Method: http.MethodPost, Path: c.path})
	if err != nil {
		c.metrics.IncRenewal(false)
		c.logger.Warn("credential renewal failed", "error", err)
		return fmt.Errorf("credential renewal: %w", err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if !resp.OK() {
		c.metrics.IncRenewal(false)
		c.logger.Info("credential renewal rejected", "status", resp.StatusCode)
		return &RefreshError{StatusCode: resp.StatusCode}
	}

	token, err := auth.DecodeRefresh(resp.Body)
	if err != nil {
		c.metrics.IncRenewal(false)
		c.logger.Warn("credential renewal returned unusable body", "error", err)
		return fmt.Errorf("credential renewal: %w", err)
	}

	c.store.SetCredential(token)
	c.metrics.IncRenewal(true)
	c.logger.Debug("credential renewed", "duration", time.Since(start))
	return nil
}
