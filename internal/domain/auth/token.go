package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying its signature. The client cannot verify tokens and only uses the
// value to renew early; the server stays the authority.
// ok is false for opaque tokens and tokens without exp.
func AccessTokenExpiry(token string) (exp time.Time, ok bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether token is a JWT expiring within skew of now.
// Opaque tokens never report expiry.
func ExpiresWithin(token string, skew time.Duration, now time.Time) bool {
	if skew <= 0 {
		return false
	}
	exp, ok := AccessTokenExpiry(token)
	if !ok {
		return false
	}
	return exp.Before(now.Add(skew))
}
