// Package auth contains the wire schemas exchanged with the Saccosphere API's
// authentication endpoints and their validation.
package auth

import (
	"time"

	"github.com/saccosphere/memberclient/internal/domain/session"
)

// User is the identity record as serialised by the API.
type User struct {
	ID         string     `json:"id" validate:"required"`
	Email      string     `json:"email" validate:"omitempty,email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	IsActive   bool       `json:"is_active"`
	IsStaff    bool       `json:"is_staff"`
	DateJoined *time.Time `json:"date_joined,omitempty"`
}

// Identity converts the wire record into the session identity.
func (u *User) Identity() *session.Identity {
	if u == nil {
		return nil
	}
	return &session.Identity{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsActive:   u.IsActive,
		IsStaff:    u.IsStaff,
		DateJoined: u.DateJoined,
	}
}

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of the registration call.
type RegisterRequest struct {
	FirstName string `json:"first_name" validate:"max=30"`
	LastName  string `json:"last_name" validate:"max=30"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

// SessionPayload is returned by login, register and "who am I".
// AccessToken is optional on "who am I".
type SessionPayload struct {
	User        *User  `json:"user" validate:"required"`
	AccessToken string `json:"accessToken"`
}

// RefreshPayload is returned by the refresh endpoint.
type RefreshPayload struct {
	AccessToken string `json:"accessToken" validate:"required"`
}
