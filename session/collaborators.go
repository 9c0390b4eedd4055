package session

import (
	"context"
	"time"
)

// Transport abstracts the remote authentication endpoints. Implementations
// must classify failures by wrapping ErrNetwork, ErrUnauthorized or
// ErrServer so the Manager can react to the failure kind.
type Transport interface {
	// Login authenticates with the given credentials.
	Login(ctx context.Context, creds Credentials) (AuthPayload, error)
	// Register creates an account and authenticates in one step.
	Register(ctx context.Context, creds Credentials) (AuthPayload, error)
	// Logout invalidates the session server-side. Best effort.
	Logout(ctx context.Context) error
	// Refresh exchanges a refresh token for fresh tokens.
	Refresh(ctx context.Context, refreshToken string) (AuthPayload, error)
	// ResetPassword requests a password reset for the given email.
	ResetPassword(ctx context.Context, email string) error
	// CurrentUser fetches the user owning the current access token.
	CurrentUser(ctx context.Context) (User, error)
}

// TokenGateway is the token lifecycle gateway: the secure store that holds
// the access and refresh tokens and answers expiry questions. The Manager is
// its only writer.
type TokenGateway interface {
	// HasAccessToken reports whether an access token is stored.
	HasAccessToken() bool
	// AccessTokenExpired reports whether the stored access token is expired
	// or within the implementation's expiry margin.
	AccessTokenExpired() bool
	// RefreshToken returns the stored refresh token, if any.
	RefreshToken() (string, bool)
	// SetTokens stores a new token pair. An expiresIn of zero lets the
	// implementation derive the expiry from the token itself, if it can.
	SetTokens(access, refresh string, expiresIn time.Duration) error
	// ClearTokens removes all stored tokens.
	ClearTokens() error
}
