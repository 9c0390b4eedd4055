// Package tokens provides implementations of the session token gateway:
// the secure store for access and refresh tokens with expiry introspection.
// See the memory and bbolt subpackages for the concrete stores.
package tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultExpiryMargin is how long before actual expiry a token is already
// reported as expired, so a refresh lands before the server starts
// rejecting the old token.
const DefaultExpiryMargin = 30 * time.Second

// ExpiryFromJWT derives an expiry time from the exp claim of a JWT access
// token. The token is parsed without signature verification: the expiry is
// scheduling metadata for the client's own refresh timing, not a trust
// decision. Returns false for non-JWT tokens or tokens without exp.
func ExpiryFromJWT(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expiry resolves the expiry for a freshly stored access token: the
// server-reported lifetime when given, the token's own exp claim otherwise.
// A zero return means the expiry is unknown and the token is treated as
// usable until the server rejects it.
func Expiry(accessToken string, expiresIn time.Duration, now time.Time) time.Time {
	if expiresIn > 0 {
		return now.Add(expiresIn)
	}
	if exp, ok := ExpiryFromJWT(accessToken); ok {
		return exp
	}
	return time.Time{}
}

// Expired reports whether a token with the given expiry is expired or
// within margin of expiring at the given time. An unknown (zero) expiry is
// never considered expired.
func Expired(expiresAt time.Time, margin time.Duration, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(expiresAt)
}
