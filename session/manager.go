package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jmcleod/gatehouse/internal/util"
)

// Manager owns the session state machine. It is the sole writer of session
// state; all mutating operations (Login, Register, Logout, Refresh) are
// serialized through a single mutation lock so they can never interleave.
// Readers take snapshots and never queue behind network I/O.
//
// A Manager is constructed once per client lifetime, initialized at startup
// with Initialize, and torn down by Logout.
type Manager struct {
	transport Transport
	tokens    TokenGateway
	logger    *slog.Logger
	metrics   *metricsCollector

	// opMu serializes session mutations, including their network round
	// trips. A logout arriving mid-login queues behind it.
	opMu sync.Mutex

	// flight collapses concurrent refresh triggers into one transport call.
	flight singleflight.Group

	// mu guards the published snapshot and the subscriber table.
	mu      sync.RWMutex
	snap    Snapshot
	subs    map[uint64]chan Snapshot
	nextSub uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. If not set, a default JSON logger
// writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithAlertFunc installs a callback invoked when repeated authentication or
// refresh failures cross the anomaly thresholds. The callback runs
// synchronously on the goroutine of the failing operation, which still holds
// the mutation lock: it must not call Login, Register, Logout, Refresh or
// Initialize. Reading Current and spawning a goroutine for any reaction are
// both safe.
func WithAlertFunc(fn AlertFunc) Option {
	return func(m *Manager) {
		m.metrics.alertFn = fn
	}
}

// NewManager creates a Manager over the given transport and token gateway.
// The session starts Unauthenticated; call Initialize to restore a persisted
// session.
func NewManager(transport Transport, tokens TokenGateway, opts ...Option) *Manager {
	m := &Manager{
		transport: transport,
		tokens:    tokens,
		metrics:   newMetricsCollector(),
		snap:      Snapshot{Status: StatusUnauthenticated},
		subs:      make(map[uint64]chan Snapshot),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// Current returns the current session snapshot.
func (m *Manager) Current() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers an observer of session state changes. The returned
// channel is primed with the current snapshot and receives every subsequent
// transition. Sends never block the mutation path: a slow subscriber only
// keeps the most recent snapshot and should reconcile via Current. The
// cancel function removes the subscription; the channel is never closed.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snap
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	return ch, cancel
}

// transition publishes a new snapshot to all subscribers. A non-nil user is
// required exactly when status is Authenticated or Refreshing.
func (m *Manager) transition(status Status, user *User, err error) {
	snap := Snapshot{Status: status, User: user, Err: err}
	m.mu.Lock()
	m.snap = snap
	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so the latest one always lands.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	m.mu.Unlock()
}

// Initialize restores a persisted session at startup. If a usable access
// token exists it fetches the current user; if the token is stale but a
// refresh token exists it attempts exactly one refresh. All failures are
// absorbed and resolved to Unauthenticated with tokens cleared, so the
// session always enters the process in a terminal, non-loading state.
func (m *Manager) Initialize(ctx context.Context) Snapshot {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if !m.tokens.HasAccessToken() {
		m.transition(StatusUnauthenticated, nil, nil)
		return m.Current()
	}

	m.transition(StatusAuthenticating, nil, nil)

	if m.tokens.AccessTokenExpired() {
		if _, ok := m.tokens.RefreshToken(); !ok {
			m.logger.Info("stored access token stale and no refresh token, clearing")
			m.clearLocked(nil)
			return m.Current()
		}
		if err := m.refreshLocked(ctx, nil); err != nil {
			m.logger.Warn("session restore refresh failed", "error", err)
		}
		return m.Current()
	}

	user, err := m.transport.CurrentUser(ctx)
	if err != nil {
		m.logger.Warn("session restore failed", "error", err)
		m.clearLocked(nil)
		return m.Current()
	}
	m.transition(StatusAuthenticated, &user, nil)
	m.logger.Info("session restored", "user_id", user.ID)
	return m.Current()
}

// Login authenticates with the given credentials. On failure the session
// ends Unauthenticated and the error is returned to the caller.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	return m.authenticate(ctx, creds, m.transport.Login, "login")
}

// Register creates an account and logs in. Identical contract to Login.
func (m *Manager) Register(ctx context.Context, creds Credentials) error {
	return m.authenticate(ctx, creds, m.transport.Register, "register")
}

func (m *Manager) authenticate(
	ctx context.Context,
	creds Credentials,
	call func(context.Context, Credentials) (AuthPayload, error),
	op string,
) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	creds.Email = util.CanonicalEmail(creds.Email)
	m.transition(StatusAuthenticating, nil, nil)

	payload, err := call(ctx, creds)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			err = fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
		}
		m.metrics.recordAuthFailure()
		m.transition(StatusUnauthenticated, nil, err)
		m.logger.Info(op+" failed", "email", creds.Email, "error", err)
		return err
	}

	if err := m.tokens.SetTokens(payload.AccessToken, payload.RefreshToken, payload.ExpiresIn); err != nil {
		err = fmt.Errorf("storing tokens: %w", err)
		m.transition(StatusUnauthenticated, nil, err)
		return err
	}

	user := payload.User
	m.transition(StatusAuthenticated, &user, nil)
	m.logger.Info(op+" succeeded", "user_id", user.ID)
	return nil
}

// Logout ends the session. The server is notified best-effort; local tokens
// and session state are cleared regardless of the network outcome, so the
// client always ends up logged out locally. Idempotent.
func (m *Manager) Logout(ctx context.Context) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.Current().Status != StatusUnauthenticated {
		if err := m.transport.Logout(ctx); err != nil {
			m.logger.Warn("remote logout failed", "error", err)
		}
	}
	m.clearLocked(nil)
	m.logger.Info("logged out")
}

// ResetPassword requests a password reset for the given email. It does not
// touch session state; transport failures propagate to the caller.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	return m.transport.ResetPassword(ctx, util.CanonicalEmail(email))
}

// Refresh exchanges the stored refresh token for fresh tokens. It is
// single-flight: concurrent calls collapse into one transport round trip
// and all callers observe its result. A failed refresh is a forced session
// termination: tokens are cleared and the session becomes Unauthenticated.
//
// Only the RefreshScheduler and Initialize drive this; it is not meant to be
// wired to user actions.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.flight.Do("refresh", func() (any, error) {
		return nil, m.refreshSerialized(ctx)
	})
	return err
}

func (m *Manager) refreshSerialized(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	snap := m.Current()
	if snap.Status != StatusAuthenticated {
		// Nothing to refresh; a concurrent logout may have won the race.
		return nil
	}
	return m.refreshLocked(ctx, snap.User)
}

// refreshLocked performs one refresh round trip with opMu held. prior is the
// currently known user, nil during session restore. On failure it performs
// full logout side effects.
func (m *Manager) refreshLocked(ctx context.Context, prior *User) error {
	refreshToken, ok := m.tokens.RefreshToken()
	if !ok {
		err := fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
		m.clearLocked(err)
		return err
	}

	if prior != nil {
		m.transition(StatusRefreshing, prior, nil)
	}

	payload, err := m.transport.Refresh(ctx, refreshToken)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrRefreshFailed, err)
		m.metrics.recordRefreshFailure()
		m.logger.Warn("token refresh failed, terminating session", "error", err)
		m.clearLocked(err)
		return err
	}

	if err := m.tokens.SetTokens(payload.AccessToken, payload.RefreshToken, payload.ExpiresIn); err != nil {
		err = fmt.Errorf("%w: storing tokens: %v", ErrRefreshFailed, err)
		m.clearLocked(err)
		return err
	}

	user := payload.User
	if user.ID == "" && prior != nil {
		// Server omitted the user on refresh; keep the known one.
		user = *prior
	}
	if user.ID == "" {
		u, err := m.transport.CurrentUser(ctx)
		if err != nil {
			err = fmt.Errorf("%w: fetching user: %v", ErrRefreshFailed, err)
			m.clearLocked(err)
			return err
		}
		user = u
	}

	m.transition(StatusAuthenticated, &user, nil)
	m.logger.Debug("token refresh succeeded", "user_id", user.ID)
	return nil
}

// clearLocked wipes tokens and resets the session with opMu held. cause, if
// non-nil, is surfaced on the resulting snapshot for observability.
func (m *Manager) clearLocked(cause error) {
	if err := m.tokens.ClearTokens(); err != nil {
		m.logger.Warn("clearing tokens failed", "error", err)
	}
	m.transition(StatusUnauthenticated, nil, cause)
}
