// Package transporttest provides an in-process fake authentication server
// for tests and examples. It speaks the same wire protocol as
// transport/httpapi, mints opaque tokens, rotates refresh tokens, and
// supports failure injection.
package transporttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SeedUser is an account known to the fake server.
type SeedUser struct {
	ID          string
	Email       string
	Password    string
	Roles       []string
	Permissions []string
}

// Server is a fake auth server. Construct with NewServer and Close when
// done. All exported mutators are safe for concurrent use.
type Server struct {
	// URL is the server's base URL, suitable for httpapi.New.
	URL string

	ts *httptest.Server

	mu              sync.Mutex
	users           map[string]SeedUser // keyed by email
	access          map[string]string   // access token -> email
	refresh         map[string]string   // refresh token -> email
	accessTTL       time.Duration
	refreshCalls    int
	failNextRefresh bool
}

// NewServer starts a fake auth server seeded with the given users.
func NewServer(users ...SeedUser) *Server {
	s := &Server{
		users:     make(map[string]SeedUser),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		accessTTL: time.Hour,
	}
	for _, u := range users {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		s.users[u.Email] = u
	}

	r := chi.NewRouter()
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/logout", s.handleLogout)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Post("/auth/reset-password", s.handleResetPassword)
	r.Get("/auth/me", s.handleMe)

	s.ts = httptest.NewServer(r)
	s.URL = s.ts.URL
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.ts.Close()
}

// SetAccessTTL sets the expires_in reported with issued tokens.
func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = ttl
}

// FailNextRefresh makes the next refresh call fail with a 401, as an
// expired or revoked refresh token would.
func (s *Server) FailNextRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextRefresh = true
}

// RefreshCalls returns how many refresh requests the server has received.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// IssueTokens mints a token pair for an already-seeded user, as if the user
// had logged in elsewhere. Useful for session-restore tests.
func (s *Server) IssueTokens(email string) (access, refresh string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.users[email]; !found {
		return "", "", false
	}
	access, refresh = s.mintLocked(email)
	return access, refresh, true
}

// mintLocked issues a fresh token pair for email. Caller holds mu.
func (s *Server) mintLocked(email string) (access, refresh string) {
	access = "at-" + uuid.NewString()
	refresh = "rt-" + uuid.NewString()
	s.access[access] = email
	s.refresh[refresh] = email
	return access, refresh
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[credentialsRequest](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, found := s.users[req.Email]
	if !found || user.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	s.writeAuthLocked(w, user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[credentialsRequest](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Email]; exists {
		writeError(w, http.StatusConflict, "account already exists")
		return
	}
	user := SeedUser{
		ID:       uuid.NewString(),
		Email:    req.Email,
		Password: req.Password,
		Roles:    []string{"member"},
	}
	s.users[req.Email] = user
	s.writeAuthLocked(w, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if email, ok := s.bearerEmailLocked(r); ok {
		for token, owner := range s.access {
			if owner == email {
				delete(s.access, token)
			}
		}
		for token, owner := range s.refresh {
			if owner == email {
				delete(s.refresh, token)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[refreshRequest](w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshCalls++
	if s.failNextRefresh {
		s.failNextRefresh = false
		writeError(w, http.StatusUnauthorized, "refresh token revoked")
		return
	}

	email, found := s.refresh[req.RefreshToken]
	if !found {
		writeError(w, http.StatusUnauthorized, "unknown refresh token")
		return
	}
	// Rotation: the presented refresh token is consumed.
	delete(s.refresh, req.RefreshToken)
	s.writeAuthLocked(w, s.users[email])
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if _, ok := decodeJSON[struct {
		Email string `json:"email"`
	}](w, r); !ok {
		return
	}
	// Always accepted, as a real server would, to avoid account probing.
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.bearerEmailLocked(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid access token")
		return
	}
	writeJSON(w, http.StatusOK, userJSON(s.users[email]))
}

// bearerEmailLocked resolves the Authorization header to a known user.
// Caller holds mu.
func (s *Server) bearerEmailLocked(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	email, ok := s.access[header[len(prefix):]]
	return email, ok
}

// writeAuthLocked issues tokens for user and writes the auth response.
// Caller holds mu.
func (s *Server) writeAuthLocked(w http.ResponseWriter, user SeedUser) {
	access, refresh := s.mintLocked(user.Email)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          userJSON(user),
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    int64(s.accessTTL / time.Second),
	})
}

func userJSON(user SeedUser) map[string]any {
	return map[string]any{
		"id":          user.ID,
		"email":       user.Email,
		"roles":       user.Roles,
		"permissions": user.Permissions,
	}
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
