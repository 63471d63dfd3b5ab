// Package outbound defines the outbound port interfaces for reaching the
// Saccosphere API.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// APITransport is the outbound port that sends a single HTTP call to the API.
// It never retries and never interprets status codes; 401 handling belongs to
// the request gateway. Adapters attach standard headers, the cookie jar and,
// when enabled, Request.Credential as a bearer header.
type APITransport interface {
	// Send issues req and returns the fully read response.
	// A non-nil error means no HTTP response was obtained.
	Send(ctx context.Context, req Request) (*Response, error)
}

// Request describes one API call. It is a value so the gateway can re-issue
// the identical call after a renewal.
type Request struct {
	// Method is the HTTP method; empty means GET.
	Method string
	// Path is appended to the API base URL and may carry a query string.
	Path string
	// Body is sent as-is with a JSON content type. Nil means no body.
	Body []byte
	// Header holds extra headers; they override the standard ones.
	Header http.Header
	// Credential is the bearer token to attach ("" = none). The gateway fills
	// it from the session store right before each attempt.
	Credential string
}

// NewJSONRequest builds a request whose body is v encoded as JSON.
func NewJSONRequest(method, path string, v any) (Request, error) {
	req := Request{Method: method, Path: path}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req.Body = body
	return req, nil
}

// Response is a fully buffered API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Unauthorized reports a 401 status.
func (r *Response) Unauthorized() bool {
	return r.StatusCode == http.StatusUnauthorized
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
