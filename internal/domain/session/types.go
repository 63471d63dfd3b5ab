// Package session holds the client-side session state: who is signed in, the
// bearer credential used for API calls, and whether startup has decided either.
package session

import (
	"net/http"
	"time"
)

// Identity describes the authenticated member as returned by the API.
// Fields beyond ID are informational; the session logic only cares whether an
// Identity is present.
type Identity struct {
	// ID is the server-side user identifier (a UUID on the Saccosphere backend).
	ID string `json:"id"`
	// Email is the login email.
	Email string `json:"email,omitempty"`
	// FirstName is the member's given name.
	FirstName string `json:"first_name,omitempty"`
	// LastName is the member's family name.
	LastName string `json:"last_name,omitempty"`
	// IsActive mirrors the backend account flag.
	IsActive bool `json:"is_active,omitempty"`
	// IsStaff marks administrative accounts.
	IsStaff bool `json:"is_staff,omitempty"`
	// DateJoined is when the account was created, if reported.
	DateJoined *time.Time `json:"date_joined,omitempty"`
}

// DisplayName returns a human-readable name, falling back to email and ID.
func (i *Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	case i.Email != "":
		return i.Email
	default:
		return i.ID
	}
}

// Snapshot is an immutable copy of the store state at one point in time.
type Snapshot struct {
	// Identity is nil when nobody is signed in.
	Identity *Identity
	// Credential is the bearer token; empty means absent.
	Credential string
	// Initialized is true once startup has answered the session question.
	Initialized bool
}

// Authenticated reports whether an identity is present.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil
}

// RecordVersion is the schema version written into new records.
const RecordVersion = "1"

// Record is the persisted form of a session, written between CLI runs so the
// next bootstrap can reuse server-side session material (cookies, token).
type Record struct {
	// Version is the schema version (RecordVersion).
	Version string `json:"version"`
	// Identity is the last known identity. It is informational only; bootstrap
	// always re-resolves it against the API.
	Identity *Identity `json:"identity,omitempty"`
	// Credential is the last bearer token.
	Credential string `json:"credential,omitempty"`
	// Cookies are the API cookies (session and refresh cookies).
	Cookies []Cookie `json:"cookies,omitempty"`
	// SavedAt is when the record was written (UTC).
	SavedAt time.Time `json:"saved_at"`
}

// Cookie is the persisted subset of an http.Cookie.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// CookiesFromHTTP converts transport cookies into their persisted form. The
// transport reports each cookie with the path and expiry the server set.
func CookiesFromHTTP(in []*http.Cookie) []Cookie {
	if len(in) == 0 {
		return nil
	}
	out := make([]Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, Cookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires})
	}
	return out
}

// HTTPCookies converts persisted cookies back for a cookie jar.
func HTTPCookies(in []Cookie) []*http.Cookie {
	if len(in) == 0 {
		return nil
	}
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		path := c.Path
		if path == "" {
			path = "/"
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: path, Expires: c.Expires})
	}
	return out
}
