// Package memory provides a process-local token gateway. Tokens are held in
// memguard enclaves so the raw bytes are encrypted while at rest in memory;
// they are lost on process exit.
package memory

import (
	"sync"
	"time"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/gatehouse/session"
	"github.com/jmcleod/gatehouse/tokens"
)

// Store is a thread-safe in-memory token gateway.
type Store struct {
	mu        sync.RWMutex
	access    *memguard.Enclave
	refresh   *memguard.Enclave
	expiresAt time.Time
	margin    time.Duration
}

var _ session.TokenGateway = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithExpiryMargin sets how long before actual expiry the access token is
// reported as expired.
func WithExpiryMargin(margin time.Duration) Option {
	return func(s *Store) {
		s.margin = margin
	}
}

// NewStore creates an empty in-memory token store.
func NewStore(opts ...Option) *Store {
	s := &Store{margin: tokens.DefaultExpiryMargin}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTokens stores a new token pair, replacing any previous one.
func (s *Store) SetTokens(access, refresh string, expiresIn time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access = nil
	s.refresh = nil
	if access != "" {
		s.access = memguard.NewEnclave([]byte(access))
	}
	if refresh != "" {
		s.refresh = memguard.NewEnclave([]byte(refresh))
	}
	s.expiresAt = tokens.Expiry(access, expiresIn, time.Now())
	return nil
}

// ClearTokens removes all stored tokens.
func (s *Store) ClearTokens() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = nil
	s.refresh = nil
	s.expiresAt = time.Time{}
	return nil
}

// HasAccessToken reports whether an access token is stored.
func (s *Store) HasAccessToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != nil
}

// AccessTokenExpired reports whether the stored access token is expired or
// within the expiry margin. A missing token counts as expired; a token with
// unknown expiry does not.
func (s *Store) AccessTokenExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.access == nil {
		return true
	}
	return tokens.Expired(s.expiresAt, s.margin, time.Now())
}

// AccessToken returns a copy of the stored access token, if any.
func (s *Store) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return open(s.access)
}

// RefreshToken returns a copy of the stored refresh token, if any.
func (s *Store) RefreshToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return open(s.refresh)
}

func open(enclave *memguard.Enclave) (string, bool) {
	if enclave == nil {
		return "", false
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	return string(buf.Bytes()), true
}
