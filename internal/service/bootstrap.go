package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/saccosphere/memberclient/internal/domain/auth"
	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/telemetry"
)

// BootstrapResult is how bootstrap resolved the session.
type BootstrapResult string

const (
	// BootstrapAuthenticated means "who am I" succeeded on the first call.
	BootstrapAuthenticated BootstrapResult = "authenticated"
	// BootstrapRenewed means the credential was renewed and "who am I" then
	// succeeded.
	BootstrapRenewed BootstrapResult = "renewed"
	// BootstrapUnauthenticated means the session was cleared.
	BootstrapUnauthenticated BootstrapResult = "unauthenticated"
)

// BootstrapOutcome is returned by Bootstrap.Run.
type BootstrapOutcome struct {
	Result   BootstrapResult
	Identity *session.Identity
	// Err is the reason the session ended up unauthenticated, if any. It is
	// informational: bootstrap always resolves the initialization flag.
	Err error
}

// Bootstrap establishes the initial session state once per application
// session from the server-side session material (cookies, saved credential).
type Bootstrap struct {
	gateway *Gateway
	renewer Renewer
	store   *session.Store
	mePath  string
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer

	mu      sync.Mutex
	done    bool
	outcome BootstrapOutcome
}

// NewBootstrap creates the bootstrap sequencer.
func NewBootstrap(gateway *Gateway, renewer Renewer, store *session.Store, mePath string, logger *slog.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *Bootstrap {
	if mePath == "" {
		mePath = DefaultPaths().Me
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	return &Bootstrap{
		gateway: gateway,
		renewer: renewer,
		store:   store,
		mePath:  mePath,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Run resolves the session: "who am I", then at most one renewal and one
// more "who am I". Every path ends with the initialization flag set, except
// when ctx is cancelled.
//
// ctx is the cancellation token. Network calls run detached from it, so a
// cancelled run never aborts a call already sent; it only suppresses the
// identity, initialization and clear writes bootstrap itself would make, and
// Run returns ctx.Err(). A renewal that succeeds after cancellation still
// stores its credential: that write belongs to the coordinator. An aborted run
// may be retried. A completed run is remembered and later calls return its outcome
// without touching the network.
func (b *Bootstrap) Run(ctx context.Context) (BootstrapOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return b.outcome, nil
	}

	ctx, span := b.tracer.Start(ctx, "session.bootstrap")
	defer span.End()

	outcome, err := b.run(ctx)
	if err != nil {
		b.metrics.IncBootstrap("aborted")
		b.logger.Debug("bootstrap aborted", "error", err)
		return BootstrapOutcome{}, err
	}

	span.SetAttributes(attribute.String("bootstrap.result", string(outcome.Result)))
	b.metrics.IncBootstrap(string(outcome.Result))
	b.done = true
	b.outcome = outcome
	return outcome, nil
}

func (b *Bootstrap) run(ctx context.Context) (BootstrapOutcome, error) {
	netCtx := context.WithoutCancel(ctx)

	// 1. Try the current session material.
	sent := b.store.Credential()
	payload, err := b.whoAmI(netCtx)
	if err == nil {
		if ctx.Err() != nil {
			return BootstrapOutcome{}, ctx.Err()
		}
		identity := payload.User.Identity()
		if payload.AccessToken != "" {
			b.store.SetAuth(identity, payload.AccessToken)
		} else {
			b.store.SetIdentity(identity)
		}
		b.store.SetInitialized()
		b.logger.Debug("session resolved", "identity", identity.ID)
		return BootstrapOutcome{Result: BootstrapAuthenticated, Identity: identity}, nil
	}
	if ctx.Err() != nil {
		return BootstrapOutcome{}, ctx.Err()
	}
	// Only a rejected call is worth a renewal. Transport errors and malformed
	// bodies fall straight to the unauthenticated default.
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return b.unauthenticated(ctx, err)
	}
	b.logger.Debug("who am I rejected, attempting renewal", "status", apiErr.StatusCode)

	// 2. One renewal.
	if rerr := b.renewer.EnsureRefreshed(netCtx, sent); rerr != nil {
		return b.unauthenticated(ctx, rerr)
	}
	if ctx.Err() != nil {
		return BootstrapOutcome{}, ctx.Err()
	}

	// 3. One more "who am I".
	payload, err = b.whoAmI(netCtx)
	if err != nil {
		return b.unauthenticated(ctx, err)
	}
	if ctx.Err() != nil {
		return BootstrapOutcome{}, ctx.Err()
	}
	identity := payload.User.Identity()
	b.store.SetIdentity(identity)
	b.store.SetInitialized()
	b.logger.Debug("session resolved after renewal", "identity", identity.ID)
	return BootstrapOutcome{Result: BootstrapRenewed, Identity: identity}, nil
}

func (b *Bootstrap) unauthenticated(ctx context.Context, cause error) (BootstrapOutcome, error) {
	if ctx.Err() != nil {
		return BootstrapOutcome{}, ctx.Err()
	}
	b.store.Clear()
	b.metrics.IncSessionClear("bootstrap")
	b.logger.Info("no active session", "reason", cause)
	return BootstrapOutcome{Result: BootstrapUnauthenticated, Err: cause}, nil
}

// whoAmI calls the "who am I" endpoint without gateway retry; bootstrap runs
// its own single renewal.
func (b *Bootstrap) whoAmI(ctx context.Context) (*auth.SessionPayload, error) {
	resp, err := b.gateway.Get(ctx, b.mePath, WithoutRetry())
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: auth.EnvelopeMessage(resp.Body)}
	}
	payload, err := auth.DecodeSession(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("who am I: %w", err)
	}
	return payload, nil
}
