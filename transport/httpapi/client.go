// Package httpapi implements the session transport over JSON/HTTP. It maps
// HTTP outcomes onto the transport error kinds the session manager reacts
// to: connection failures wrap session.ErrNetwork, 401/403 wrap
// session.ErrUnauthorized, 5xx wrap session.ErrServer.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/gatehouse/session"
)

// TokenSource supplies the bearer token attached to authenticated requests.
// Both token stores satisfy it.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Client implements session.Transport against a gatehouse-style auth API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

var _ session.Transport = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client. If not set, a client with
// a 30 second timeout is used.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource sets the source of bearer tokens for authenticated
// requests (logout, current user). Without one those requests go out
// unauthenticated.
func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

// WithLogger sets the structured logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for the auth API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "httpapi")
	return c
}

// Login implements session.Transport.
func (c *Client) Login(ctx context.Context, creds session.Credentials) (session.AuthPayload, error) {
	return c.postAuth(ctx, "/auth/login", credentialsRequest{Email: creds.Email, Password: creds.Password})
}

// Register implements session.Transport.
func (c *Client) Register(ctx context.Context, creds session.Credentials) (session.AuthPayload, error) {
	return c.postAuth(ctx, "/auth/register", credentialsRequest{Email: creds.Email, Password: creds.Password})
}

// Refresh implements session.Transport.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.AuthPayload, error) {
	return c.postAuth(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken})
}

// Logout implements session.Transport.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// ResetPassword implements session.Transport.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/reset-password", resetPasswordRequest{Email: email}, nil)
}

// CurrentUser implements session.Transport.
func (c *Client) CurrentUser(ctx context.Context) (session.User, error) {
	var payload userPayload
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &payload); err != nil {
		return session.User{}, err
	}
	return payload.user(), nil
}

func (c *Client) postAuth(ctx context.Context, path string, body any) (session.AuthPayload, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return session.AuthPayload{}, err
	}
	return session.AuthPayload{
		User:         resp.User.user(),
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

func (p userPayload) user() session.User {
	return session.User{
		ID:          p.ID,
		Email:       p.Email,
		Roles:       session.NewSet(p.Roles...),
		Permissions: session.NewSet(p.Permissions...),
	}
}

// do performs one JSON round trip and decodes the response into out, if
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if token, ok := c.tokens.AccessToken(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%w: %s %s: %v", session.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	msg := serverMessage(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", session.ErrUnauthorized, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", session.ErrServer, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
}

// serverMessage extracts the error message from a failed response body.
func serverMessage(body io.Reader) string {
	var resp errorResponse
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&resp); err != nil || resp.Error == "" {
		return "no error detail"
	}
	return resp.Error
}
