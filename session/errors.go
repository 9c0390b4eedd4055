package session

import "errors"

var (
	// ErrNetwork indicates the transport could not reach the server.
	ErrNetwork = errors.New("network error")
	// ErrUnauthorized indicates the server rejected the caller's credentials or token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrServer indicates the server failed while handling the request.
	ErrServer = errors.New("server error")
	// ErrInvalidCredentials indicates a login or register attempt was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshFailed indicates the refresh token was missing, invalid or
	// expired. A failed refresh terminates the session.
	ErrRefreshFailed = errors.New("refresh failed")
)
