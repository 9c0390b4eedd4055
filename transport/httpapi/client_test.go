package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/gatehouse/session"
	"github.com/jmcleod/gatehouse/tokens/memory"
	"github.com/jmcleod/gatehouse/transport/transporttest"
)

func seededServer(t *testing.T) *transporttest.Server {
	t.Helper()
	server := transporttest.NewServer(transporttest.SeedUser{
		ID:          "u-1",
		Email:       "a@b.com",
		Password:    "x",
		Roles:       []string{"admin"},
		Permissions: []string{"settings:read"},
	})
	t.Cleanup(server.Close)
	return server
}

func TestClient_Login(t *testing.T) {
	server := seededServer(t)
	client := New(server.URL)

	payload, err := client.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	assert.Equal(t, "u-1", payload.User.ID)
	assert.Equal(t, "a@b.com", payload.User.Email)
	assert.True(t, payload.User.Roles.Has("admin"))
	assert.True(t, payload.User.Permissions.Has("settings:read"))
	assert.NotEmpty(t, payload.AccessToken)
	assert.NotEmpty(t, payload.RefreshToken)
	assert.Equal(t, time.Hour, payload.ExpiresIn)
}

func TestClient_LoginRejected(t *testing.T) {
	server := seededServer(t)
	client := New(server.URL)

	_, err := client.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrUnauthorized)
}

func TestClient_NetworkError(t *testing.T) {
	server := seededServer(t)
	url := server.URL
	server.Close()

	client := New(url)
	_, err := client.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNetwork)
}

func TestClient_Register(t *testing.T) {
	server := seededServer(t)
	client := New(server.URL)

	payload, err := client.Register(context.Background(), session.Credentials{Email: "new@b.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "new@b.com", payload.User.Email)

	// The account exists now; duplicate registration is rejected but is
	// not an auth or server failure.
	_, err = client.Register(context.Background(), session.Credentials{Email: "new@b.com", Password: "pw"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrUnauthorized)
	assert.NotErrorIs(t, err, session.ErrServer)
}

func TestClient_Refresh(t *testing.T) {
	server := seededServer(t)
	client := New(server.URL)

	payload, err := client.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)

	rotated, err := client.Refresh(context.Background(), payload.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", rotated.User.ID)
	assert.NotEqual(t, payload.RefreshToken, rotated.RefreshToken, "refresh token rotates")

	// The consumed token no longer works.
	_, err = client.Refresh(context.Background(), payload.RefreshToken)
	assert.ErrorIs(t, err, session.ErrUnauthorized)
}

func TestClient_CurrentUser(t *testing.T) {
	server := seededServer(t)
	store := memory.NewStore()
	client := New(server.URL, WithTokenSource(store))

	// Without a token the server rejects the call.
	_, err := client.CurrentUser(context.Background())
	assert.ErrorIs(t, err, session.ErrUnauthorized)

	payload, err := client.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	require.NoError(t, store.SetTokens(payload.AccessToken, payload.RefreshToken, payload.ExpiresIn))

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", user.Email)
	assert.True(t, user.Roles.Has("admin"))
}

func TestClient_LogoutAndResetPassword(t *testing.T) {
	server := seededServer(t)
	store := memory.NewStore()
	client := New(server.URL, WithTokenSource(store))

	payload, err := client.Login(context.Background(), session.Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	require.NoError(t, store.SetTokens(payload.AccessToken, payload.RefreshToken, payload.ExpiresIn))

	require.NoError(t, client.Logout(context.Background()))

	// The access token was revoked server-side.
	_, err = client.CurrentUser(context.Background())
	assert.ErrorIs(t, err, session.ErrUnauthorized)

	require.NoError(t, client.ResetPassword(context.Background(), "a@b.com"))
}
