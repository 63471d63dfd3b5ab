package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedPayload is returned when an API response body does not match the
// expected schema.
var ErrMalformedPayload = errors.New("malformed payload")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a request or payload struct against its validate tags.
// The error lists every failing field.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// tokenFields accepts both spellings the backend has used for the access token.
type tokenFields struct {
	User        *User  `json:"user"`
	AccessToken string `json:"accessToken"`
	Access      string `json:"access"`
}

func (t tokenFields) token() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Access
}

// DecodeSession parses a login, register or "who am I" body.
func DecodeSession(body []byte) (*SessionPayload, error) {
	var raw tokenFields
	if err := decodeBody(body, &raw); err != nil {
		return nil, err
	}
	p := &SessionPayload{User: raw.User, AccessToken: raw.token()}
	if err := Validate(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

// DecodeRefresh parses a refresh body and returns the new access token.
func DecodeRefresh(body []byte) (string, error) {
	var raw tokenFields
	if err := decodeBody(body, &raw); err != nil {
		return "", err
	}
	p := &RefreshPayload{AccessToken: raw.token()}
	if err := Validate(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p.AccessToken, nil
}

// decodeBody unmarshals body into v, unwrapping the backend's
// {"success","message","data","errors"} envelope when present.
func decodeBody(body []byte, v any) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if data, ok := top["data"]; ok && isEnvelope(top) {
		body = data
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func isEnvelope(top map[string]json.RawMessage) bool {
	if _, ok := top["user"]; ok {
		return false
	}
	_, hasSuccess := top["success"]
	_, hasMessage := top["message"]
	return hasSuccess || hasMessage
}

// EnvelopeMessage extracts a human-readable message from an error body,
// returning "" when the body carries none.
func EnvelopeMessage(body []byte) string {
	var env struct {
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
		Errors  json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	msg := env.Message
	if msg == "" {
		msg = env.Detail
	}
	if len(env.Errors) > 0 && !bytes.Equal(env.Errors, []byte("null")) {
		if msg != "" {
			msg += ": "
		}
		msg += string(env.Errors)
	}
	return msg
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
