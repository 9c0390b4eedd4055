// Package bbolt provides a persistent token gateway backed by a BBolt
// database. Tokens are sealed at rest with AES-256-GCM under an Argon2id
// key derived from a caller passphrase, so a session can be restored across
// process restarts without storing token bytes in the clear.
package bbolt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/gatehouse/internal/util"
	"github.com/jmcleod/gatehouse/session"
	"github.com/jmcleod/gatehouse/tokens"
)

var (
	bucketTokens = []byte("tokens")
	keySalt      = []byte("salt")
	keyRecord    = []byte("record")
)

// record is the sealed on-disk token state.
type record struct {
	Access    string    `json:"access"`
	Refresh   string    `json:"refresh,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Store implements session.TokenGateway backed by a BBolt database.
type Store struct {
	db      *bbolt.DB
	sealKey []byte
	margin  time.Duration
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

// NewStoreFromFile opens (or creates) a BBolt database at path and derives
// the sealing key from passphrase. A store opened with the wrong passphrase
// behaves as if it holds no tokens.
func NewStoreFromFile(path, passphrase string, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening token store: %w", err)
	}

	var salt []byte
	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketTokens)
		if err != nil {
			return err
		}
		if existing := b.Get(keySalt); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		salt, err = util.RandomBytes(saltLen)
		if err != nil {
			return err
		}
		return b.Put(keySalt, salt)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing token store: %w", err)
	}

	s := &Store{
		db:      db,
		sealKey: deriveSealKey(passphrase, salt),
		margin:  tokens.DefaultExpiryMargin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close wipes the sealing key and closes the underlying database.
func (s *Store) Close() error {
	util.WipeBytes(s.sealKey)
	return s.db.Close()
}

// SetTokens stores a new sealed token pair, replacing any previous one.
func (s *Store) SetTokens(access, refresh string, expiresIn time.Duration) error {
	rec := record{
		Access:    access,
		Refresh:   refresh,
		ExpiresAt: tokens.Expiry(access, expiresIn, time.Now()),
	}
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token record: %w", err)
	}
	defer util.WipeBytes(plaintext)

	sealed, err := seal(plaintext, s.sealKey)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).Put(keyRecord, sealed)
	})
}

// ClearTokens removes the stored token record.
func (s *Store) ClearTokens() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).Delete(keyRecord)
	})
}

// HasAccessToken reports whether a readable access token is stored.
func (s *Store) HasAccessToken() bool {
	rec, ok := s.read()
	return ok && rec.Access != ""
}

// AccessTokenExpired reports whether the stored access token is expired or
// within the expiry margin. A missing or unreadable token counts as
// expired; a token with unknown expiry does not.
func (s *Store) AccessTokenExpired() bool {
	rec, ok := s.read()
	if !ok || rec.Access == "" {
		return true
	}
	return tokens.Expired(rec.ExpiresAt, s.margin, time.Now())
}

// AccessToken returns the stored access token, if any.
func (s *Store) AccessToken() (string, bool) {
	rec, ok := s.read()
	if !ok || rec.Access == "" {
		return "", false
	}
	return rec.Access, true
}

// RefreshToken returns the stored refresh token, if any.
func (s *Store) RefreshToken() (string, bool) {
	rec, ok := s.read()
	if !ok || rec.Refresh == "" {
		return "", false
	}
	return rec.Refresh, true
}

// read loads and unseals the token record. Any failure, including a record
// sealed under a different passphrase, reads as absent.
func (s *Store) read() (record, bool) {
	var sealed []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketTokens).Get(keyRecord); data != nil {
			sealed = append([]byte(nil), data...)
		}
		return nil
	})
	if err != nil || sealed == nil {
		return record{}, false
	}

	plaintext, err := unseal(sealed, s.sealKey)
	if err != nil {
		return record{}, false
	}
	defer util.WipeBytes(plaintext)

	var rec record
	if err := json.Unmarshal(plaintext, &rec); err != nil {
		return record{}, false
	}
	return rec, true
}
