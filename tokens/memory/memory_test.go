package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetAndGet(t *testing.T) {
	s := NewStore()

	assert.False(t, s.HasAccessToken())
	assert.True(t, s.AccessTokenExpired(), "missing token counts as expired")
	_, ok := s.RefreshToken()
	assert.False(t, ok)

	require.NoError(t, s.SetTokens("at-1", "rt-1", time.Hour))

	assert.True(t, s.HasAccessToken())
	assert.False(t, s.AccessTokenExpired())

	access, ok := s.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "at-1", access)

	refresh, ok := s.RefreshToken()
	require.True(t, ok)
	assert.Equal(t, "rt-1", refresh)
}

func TestStore_Replace(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetTokens("at-1", "rt-1", time.Hour))
	require.NoError(t, s.SetTokens("at-2", "", time.Hour))

	access, ok := s.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "at-2", access)

	_, ok = s.RefreshToken()
	assert.False(t, ok, "empty refresh token replaces the old one")
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetTokens("at-1", "rt-1", time.Hour))
	require.NoError(t, s.ClearTokens())

	assert.False(t, s.HasAccessToken())
	_, ok := s.AccessToken()
	assert.False(t, ok)
	_, ok = s.RefreshToken()
	assert.False(t, ok)
}

func TestStore_ExpiryMargin(t *testing.T) {
	s := NewStore(WithExpiryMargin(time.Minute))

	// Expires in 30s: inside the one minute margin.
	require.NoError(t, s.SetTokens("at-1", "rt-1", 30*time.Second))
	assert.True(t, s.AccessTokenExpired())

	require.NoError(t, s.SetTokens("at-2", "rt-2", time.Hour))
	assert.False(t, s.AccessTokenExpired())
}

func TestStore_UnknownExpiry(t *testing.T) {
	s := NewStore()

	// Opaque token, no server lifetime: usable until the server objects.
	require.NoError(t, s.SetTokens("at-opaque", "rt-1", 0))
	assert.True(t, s.HasAccessToken())
	assert.False(t, s.AccessTokenExpired())
}
