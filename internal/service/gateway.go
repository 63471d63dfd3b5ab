package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/saccosphere/memberclient/internal/domain/auth"
	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/port/outbound"
	"github.com/saccosphere/memberclient/internal/telemetry"
)

// Renewer is the part of RefreshCoordinator the gateway depends on.
type Renewer interface {
	EnsureRefreshed(ctx context.Context, stale string) error
}

// GatewayConfig configures the Gateway.
type GatewayConfig struct {
	// ProactiveRefreshSkew renews a JWT credential before sending when it
	// expires within this window. Zero disables proactive renewal.
	ProactiveRefreshSkew time.Duration
}

// Gateway is the single entry point for authenticated API calls. It attaches
// the current credential, detects 401, renews through the coordinator and
// retries at most once.
type Gateway struct {
	transport outbound.APITransport
	renewer   Renewer
	store     *session.Store
	skew      time.Duration
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// RequestOption adjusts a single Gateway.Request call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	allowRetry bool
}

// WithoutRetry disables renewal-and-retry for this call: a 401 is returned
// as-is.
func WithoutRetry() RequestOption {
	return func(o *requestOptions) {
		o.allowRetry = false
	}
}

// NewGateway creates a gateway.
func NewGateway(transport outbound.APITransport, renewer Renewer, store *session.Store, cfg GatewayConfig, logger *slog.Logger, metrics *telemetry.Metrics, tracer trace.Tracer) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	return &Gateway{
		transport: transport,
		renewer:   renewer,
		store:     store,
		skew:      cfg.ProactiveRefreshSkew,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		now:       time.Now,
	}
}

// Request sends req and returns the API response.
//
// Any status other than 401 is returned unchanged. On 401 with retry allowed
// the credential is renewed (sharing any renewal already in flight); on
// success the identical request is sent once more and that second response is
// returned whatever its status; on failure the session is cleared and the
// original 401 is returned. Calls with retry allowed renew an expiring JWT
// before sending; that renewal counts as the call's only one. The returned error is non-nil only when no
// response could be obtained or ctx ended while waiting for a renewal.
func (g *Gateway) Request(ctx context.Context, req outbound.Request, opts ...RequestOption) (resp *outbound.Response, err error) {
	o := requestOptions{allowRetry: true}
	for _, opt := range opts {
		opt(&o)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := g.tracer.Start(ctx, "api.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", req.Path),
		attribute.Bool("retry.allowed", o.allowRetry),
	))
	start := time.Now()
	defer func() {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		g.metrics.ObserveRequest(method, status, err, time.Since(start))
	}()

	allowRetry := o.allowRetry

	// An early renewal is this call's one renewal. After a failed one a 401
	// clears the session; after a successful one a 401 is returned as-is.
	var renewErr error
	if allowRetry {
		var renewed bool
		renewed, renewErr = g.renewIfExpiring(ctx)
		if renewErr != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if renewed && renewErr == nil {
			allowRetry = false
		}
	}

	for {
		req.Credential = g.store.Credential()
		resp, err = g.transport.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		if !resp.Unauthorized() || !allowRetry {
			return resp, nil
		}
		allowRetry = false

		if renewErr == nil {
			renewErr = g.renewer.EnsureRefreshed(ctx, req.Credential)
			if renewErr == nil {
				g.metrics.IncRetry()
				span.AddEvent("retry after renewal")
				g.logger.Debug("retrying after renewal", "method", method, "path", req.Path)
				continue
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Info("renewal failed, clearing session", "path", req.Path, "error", renewErr)
		g.store.Clear()
		g.metrics.IncSessionClear("renewal_failed")
		return resp, nil
	}
}

// Get is a convenience for a GET request.
func (g *Gateway) Get(ctx context.Context, path string, opts ...RequestOption) (*outbound.Response, error) {
	return g.Request(ctx, outbound.Request{Method: http.MethodGet, Path: path}, opts...)
}

// PostJSON is a convenience for a POST request with a JSON body.
func (g *Gateway) PostJSON(ctx context.Context, path string, body any, opts ...RequestOption) (*outbound.Response, error) {
	req, err := outbound.NewJSONRequest(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return g.Request(ctx, req, opts...)
}

// renewIfExpiring renews a JWT credential that is about to expire and reports
// whether it tried. The request still goes out when the renewal fails.
func (g *Gateway) renewIfExpiring(ctx context.Context) (bool, error) {
	if g.skew <= 0 {
		return false, nil
	}
	current := g.store.Credential()
	if current == "" || !auth.ExpiresWithin(current, g.skew, g.now()) {
		return false, nil
	}
	if err := g.renewer.EnsureRefreshed(ctx, current); err != nil {
		g.logger.Debug("proactive renewal failed", "error", err)
		return true, err
	}
	return true, nil
}
