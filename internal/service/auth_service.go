package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/saccosphere/memberclient/internal/domain/auth"
	"github.com/saccosphere/memberclient/internal/domain/session"
	"github.com/saccosphere/memberclient/internal/port/outbound"
	"github.com/saccosphere/memberclient/internal/telemetry"
)

// AuthService performs the explicit session actions: login, registration and
// logout. These are the only writers of identity and credential together.
type AuthService struct {
	gateway *Gateway
	store   *session.Store
	paths   Paths
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewAuthService creates an AuthService.
func NewAuthService(gateway *Gateway, store *session.Store, paths Paths, logger *slog.Logger, metrics *telemetry.Metrics) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		gateway: gateway,
		store:   store,
		paths:   paths.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// Login signs in with email and password and stores the returned identity
// and credential.
func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (*session.Identity, error) {
	if err := auth.Validate(&req); err != nil {
		return nil, err
	}
	resp, err := s.gateway.PostJSON(ctx, s.paths.Login, req, WithoutRetry())
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if !resp.OK() {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: auth.EnvelopeMessage(resp.Body)}
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, apiErr)
		}
		return nil, fmt.Errorf("login: %w", apiErr)
	}
	return s.establish(resp, "login")
}

// Register creates an account and signs it in.
func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (*session.Identity, error) {
	if err := auth.Validate(&req); err != nil {
		return nil, err
	}
	resp, err := s.gateway.PostJSON(ctx, s.paths.Register, req, WithoutRetry())
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("register: %w", &APIError{StatusCode: resp.StatusCode, Message: auth.EnvelopeMessage(resp.Body)})
	}
	return s.establish(resp, "register")
}

// Logout ends the server session and always clears the local one. The
// server call goes through the gateway, so an expired credential is renewed
// first. A transport error is returned after the local session is cleared.
func (s *AuthService) Logout(ctx context.Context) error {
	resp, err := s.gateway.Request(ctx, outbound.Request{Method: http.MethodPost, Path: s.paths.Logout})

	s.store.Clear()
	s.metrics.IncSessionClear("logout")

	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	if !resp.OK() && !resp.Unauthorized() {
		s.logger.Warn("server logout failed, local session cleared", "status", resp.StatusCode)
		return fmt.Errorf("logout: %w", &APIError{StatusCode: resp.StatusCode, Message: auth.EnvelopeMessage(resp.Body)})
	}
	s.logger.Info("logged out")
	return nil
}

func (s *AuthService) establish(resp *outbound.Response, action string) (*session.Identity, error) {
	payload, err := auth.DecodeSession(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	identity := payload.User.Identity()
	s.store.SetAuth(identity, payload.AccessToken)
	s.store.SetInitialized()
	s.logger.Info("session established", "action", action, "identity", identity.ID)
	return identity, nil
}
