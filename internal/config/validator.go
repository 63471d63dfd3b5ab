package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers the client's validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	// api_path: absolute request path, no scheme or host
	if err := v.RegisterValidation("api_path", validateAPIPath); err != nil {
		return fmt.Errorf("failed to register api_path validator: %w", err)
	}
	// duration: Go duration string, not negative
	if err := v.RegisterValidation("duration", validateDuration); err != nil {
		return fmt.Errorf("failed to register duration validator: %w", err)
	}
	return nil
}

// validateAPIPath accepts "/auth/login" style paths.
func validateAPIPath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.ContainsAny(p, " \t\n")
}

func validateDuration(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d >= 0
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	// Cross-field validation: scheme and backend requirements
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("API.BaseURL must use http or https, got %q", c.API.BaseURL)
	}
	if c.Session.Backend == BackendRedis && c.Session.RedisAddr == "" {
		return errors.New("Session.RedisAddr is required when Session.Backend is redis")
	}
	return nil
}

// InsecureBaseURL reports a plain-http base URL that points off this machine.
// Credentials sent to it travel in clear text.
func (c *Config) InsecureBaseURL() bool {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme != "http" {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return false
	}
	return true
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "api_path":
		return fmt.Sprintf("%s must be a path starting with '/'", field)
	case "duration":
		return fmt.Sprintf("%s must be a duration such as \"30s\"", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
