// Package apiclient provides the HTTP adapter for the Saccosphere API.
package apiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saccosphere/memberclient/internal/port/outbound"
)

const (
	// maxResponseBodySize caps how much of a response body is buffered.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultUserAgent is sent when no user agent is configured.
	DefaultUserAgent = "saccosphere-cli"

	// RequestIDHeader carries a per-call UUID for server-side correlation.
	RequestIDHeader = "X-Request-ID"
)

// ErrResponseTooLarge is returned when a response exceeds maxResponseBodySize.
var ErrResponseTooLarge = errors.New("response body too large")

// Client sends API calls with the standard headers and a cookie jar that holds
// the transport-level session material.
// It implements outbound.APITransport and outbound.CookieJar.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	userAgent    string
	attachBearer bool
	logger       *slog.Logger
	jar          *recordingJar
}

// ClientOption is a functional option for configuring Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client. A cookie jar is added if the
// client has none, and the jar is wrapped so cookie attributes are recorded.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-call timeout of the HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if c.httpClient != nil && d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithBearer controls whether Request.Credential is sent as an
// Authorization: Bearer header. Cookies are always sent.
func WithBearer(enabled bool) ClientOption {
	return func(c *Client) {
		c.attachBearer = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:    DefaultUserAgent,
		attachBearer: true,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	c.jar = newRecordingJar(c.httpClient.Jar)
	c.httpClient.Jar = c.jar

	return c, nil
}

// Send issues req against the API and buffers the response body.
func (c *Client) Send(ctx context.Context, req outbound.Request) (*outbound.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set(RequestIDHeader, uuid.New().String())
	if c.attachBearer && req.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Credential)
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("api call failed", "method", method, "path", req.Path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxResponseBodySize {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, ErrResponseTooLarge)
	}

	c.logger.Debug("api call",
		"method", method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"request_id", httpReq.Header.Get(RequestIDHeader),
		"duration", time.Since(start),
	)

	return &outbound.Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
	}, nil
}

// Cookies returns the unexpired cookies set by the API, with their path and
// expiry, including cookies scoped below the base URL path.
func (c *Client) Cookies() []*http.Cookie {
	return c.jar.recorded()
}

// SetCookies loads cookies for the API base URL, keeping each cookie's path
// and expiry.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.jar.SetCookies(c.baseURL, cookies)
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) resolve(path string) (string, error) {
	if path == "" || !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("invalid api path %q: must start with /", path)
	}
	return c.baseURL.String() + path, nil
}
