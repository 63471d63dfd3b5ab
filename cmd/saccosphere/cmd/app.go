package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/saccosphere/memberclient/internal/adapter/outbound/apiclient"
	"github.com/saccosphere/memberclient/internal/adapter/outbound/memory"
	"github.com/saccosphere/memberclient/internal/adapter/outbound/redis"
	"github.com/saccosphere/memberclient/internal/adapter/outbound/sqlite"
	"github.com/saccosphere/memberclient/internal/adapter/outbound/state"
	"github.com/saccosphere/memberclient/internal/config"
	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/service"
	"github.com/saccosphere/memberclient/internal/telemetry"
)

// shutdownTimeout bounds the final session flush and exporter shutdown.
const shutdownTimeout = 5 * time.Second

// app is the wired client for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	store     *session.Store
	client    *apiclient.Client
	renewer   *service.RefreshCoordinator
	gateway   *service.Gateway
	bootstrap *service.Bootstrap
	auth      *service.AuthService
	saccos    *service.SaccoService
	guard     *service.RouteGuard
	sync      *service.SessionSync

	registry *prometheus.Registry
	tracing  *telemetry.Tracing
	closers  []io.Closer
}

// newApp loads configuration and wires every component. Logs go to stderr.
func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := newLogger(cfg.Log, stderr)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Debug("loaded config", "file", configFile)
	}
	if cfg.InsecureBaseURL() {
		logger.Warn("API base URL is not https, credentials will be sent in clear text", "base_url", cfg.API.BaseURL)
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	tracing, err := telemetry.NewTracing(cfg.Telemetry.TraceStdout, stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	tracer := tracing.Tracer()

	client, err := apiclient.NewClient(cfg.API.BaseURL,
		apiclient.WithTimeout(cfg.APITimeout()),
		apiclient.WithUserAgent(cfg.API.UserAgent+"/"+Version),
		apiclient.WithBearer(cfg.Auth.AttachBearer),
		apiclient.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    session.NewStore(),
		client:   client,
		registry: registry,
		tracing:  tracing,
	}

	persister, err := a.openPersister(ctx)
	if err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, err
	}

	paths := service.Paths{
		Login:    cfg.API.Paths.Login,
		Register: cfg.API.Paths.Register,
		Refresh:  cfg.API.Paths.Refresh,
		Me:       cfg.API.Paths.Me,
		Logout:   cfg.API.Paths.Logout,
		Saccos:   cfg.API.Paths.Saccos,
	}

	a.renewer = service.NewRefreshCoordinator(client, a.store, service.RefreshConfig{
		Path:    paths.Refresh,
		Timeout: cfg.RefreshTimeout(),
	}, logger, metrics, tracer)
	a.gateway = service.NewGateway(client, a.renewer, a.store, service.GatewayConfig{
		ProactiveRefreshSkew: cfg.ProactiveRefreshSkew(),
	}, logger, metrics, tracer)
	a.bootstrap = service.NewBootstrap(a.gateway, a.renewer, a.store, paths.Me, logger, metrics, tracer)
	a.auth = service.NewAuthService(a.gateway, a.store, paths, logger, metrics)
	a.saccos = service.NewSaccoService(a.gateway, paths.Saccos)
	a.guard = service.NewRouteGuard(a.store, cfg.Auth.LoginPath)
	a.sync = service.NewSessionSync(persister, a.store, client, logger)

	return a, nil
}

// openPersister opens the configured session backend.
func (a *app) openPersister(ctx context.Context) (session.Persister, error) {
	sc := a.cfg.Session
	switch sc.Backend {
	case config.BackendFile:
		return state.NewFileStateStore(sc.StatePath, a.logger), nil
	case config.BackendSQLite:
		s, err := sqlite.Open(sc.SQLitePath, sc.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to open session database: %w", err)
		}
		a.closers = append(a.closers, s)
		return s, nil
	case config.BackendRedis:
		key := sc.RedisKey
		if sc.Profile != config.DefaultProfile {
			key += ":" + sc.Profile
		}
		s, err := redis.Dial(ctx, sc.RedisAddr, key, a.cfg.RedisTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}
		a.closers = append(a.closers, s)
		return s, nil
	case config.BackendMemory:
		return memory.NewSessionStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", sc.Backend)
	}
}

// start restores the saved session and begins persisting changes.
// A saved session that cannot be read is ignored; the member signs in again.
func (a *app) start(ctx context.Context) {
	if err := a.sync.Restore(ctx); err != nil {
		a.logger.Warn("ignoring saved session", "error", err)
	}
	a.sync.Start()
}

// close flushes the session and releases resources.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.sync.Stop()
	if a.store.Snapshot().Authenticated() {
		if err := a.sync.Flush(ctx); err != nil {
			a.logger.Warn("failed to save session", "error", err)
		}
	}
	if path := a.cfg.Telemetry.MetricsFile; path != "" {
		if err := telemetry.WriteTextfile(path, a.registry); err != nil {
			a.logger.Warn("failed to write metrics", "path", path, "error", err)
		}
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to flush traces", "error", err)
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// requireMember runs bootstrap and returns the signed-in identity, or an
// error naming the sign-in command.
func (a *app) requireMember(ctx context.Context) (*session.Identity, error) {
	if _, err := a.bootstrap.Run(ctx); err != nil {
		return nil, err
	}
	decision, err := a.guard.Await(ctx)
	if err != nil {
		return nil, err
	}
	if decision.Action != service.GuardAdmit {
		return nil, errNotSignedIn
	}
	return decision.Identity, nil
}

var errNotSignedIn = errors.New("not signed in: run `saccosphere login` first")

// runWithApp wires the app for a command, restores the session, runs fn with
// a context cancelled on Ctrl+C, and saves the session afterwards.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), gracefulSignals()...)
	defer stop()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	a.start(ctx)
	return fn(ctx, a)
}

// newLogger builds the stderr logger from log config.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
