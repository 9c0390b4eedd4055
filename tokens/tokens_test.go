package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)

	got, ok := ExpiryFromJWT(signedJWT(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp), "got %v, want %v", got, exp)
}

func TestExpiryFromJWT_NoExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-1"})
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, ok := ExpiryFromJWT(signed)
	assert.False(t, ok)
}

func TestExpiryFromJWT_OpaqueToken(t *testing.T) {
	_, ok := ExpiryFromJWT("at-3f8a2c")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	now := time.Now()
	jwtExp := now.Add(15 * time.Minute).Truncate(time.Second)

	t.Run("server lifetime wins", func(t *testing.T) {
		got := Expiry(signedJWT(t, jwtExp), time.Hour, now)
		assert.True(t, got.Equal(now.Add(time.Hour)))
	})

	t.Run("falls back to exp claim", func(t *testing.T) {
		got := Expiry(signedJWT(t, jwtExp), 0, now)
		assert.True(t, got.Equal(jwtExp))
	})

	t.Run("opaque token without lifetime is unknown", func(t *testing.T) {
		assert.True(t, Expiry("at-3f8a2c", 0, now).IsZero())
	})
}

func TestExpired(t *testing.T) {
	now := time.Now()
	margin := 30 * time.Second

	assert.False(t, Expired(now.Add(time.Hour), margin, now))
	assert.True(t, Expired(now.Add(-time.Minute), margin, now), "already expired")
	assert.True(t, Expired(now.Add(10*time.Second), margin, now), "within margin")
	assert.False(t, Expired(time.Time{}, margin, now), "unknown expiry never expires")
}
