package session

import (
	"context"
	"sync"
	"time"
)

// DefaultRefreshInterval is how often the scheduler checks token freshness.
const DefaultRefreshInterval = 60 * time.Second

// RefreshScheduler periodically checks whether the access token is expired
// or near expiry and triggers Manager.Refresh when it is. It holds no
// session data of its own: it is purely a timer driving the Manager.
//
// The scheduler idles while the session is not Authenticated and resumes
// when it becomes Authenticated again, so it never fires against a dead
// session indefinitely.
type RefreshScheduler struct {
	mgr      *Manager
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// SchedulerOption configures a RefreshScheduler.
type SchedulerOption func(*RefreshScheduler)

// WithTickInterval overrides the check period.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *RefreshScheduler) {
		s.interval = d
	}
}

// NewRefreshScheduler creates a scheduler for the given manager. It does not
// run until Start is called.
func NewRefreshScheduler(mgr *Manager, opts ...SchedulerOption) *RefreshScheduler {
	s := &RefreshScheduler{
		mgr:      mgr,
		interval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the scheduler goroutine. Calling Start on a running
// scheduler is a no-op. Cancelling ctx stops it as if Stop were called.
func (s *RefreshScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop halts the scheduler and waits for its goroutine to exit. No further
// refreshes are triggered after Stop returns. The scheduler may be started
// again afterwards.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *RefreshScheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	snaps, unsubscribe := s.mgr.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	active := false
	ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-snaps:
			switch {
			case snap.Status == StatusAuthenticated && !active:
				active = true
				ticker.Reset(s.interval)
			case snap.Status == StatusUnauthenticated && active:
				active = false
				ticker.Stop()
			}
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick performs one freshness check. The status check makes a tick racing a
// logout harmless; Refresh re-checks under the mutation lock anyway.
func (s *RefreshScheduler) tick(ctx context.Context) {
	if s.mgr.Current().Status != StatusAuthenticated {
		return
	}
	if !s.mgr.tokens.AccessTokenExpired() {
		return
	}
	if err := s.mgr.Refresh(ctx); err != nil {
		s.mgr.logger.Warn("scheduled refresh failed", "error", err)
	}
}
