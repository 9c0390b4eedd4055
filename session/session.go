// Package session implements the client-side session core: a Manager that
// owns the authentication state machine and a RefreshScheduler that keeps
// access tokens fresh in the background. All session mutations flow through
// the Manager; everything else observes read-only snapshots.
package session

import "time"

// Status is the session lifecycle state.
type Status string

const (
	// StatusUnauthenticated means no session exists.
	StatusUnauthenticated Status = "unauthenticated"
	// StatusAuthenticating means a login or register call is in flight.
	StatusAuthenticating Status = "authenticating"
	// StatusAuthenticated means a session is active and its user is known.
	StatusAuthenticated Status = "authenticated"
	// StatusRefreshing means a token refresh is in flight for an active session.
	StatusRefreshing Status = "refreshing"
)

// Set is a string set. The zero value (nil) is a valid empty set.
type Set map[string]struct{}

// NewSet builds a Set from the given members.
func NewSet(members ...string) Set {
	s := make(Set, len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Has reports whether v is a member of the set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return len(s) == 0 }

// Intersects reports whether the sets share at least one member.
func (s Set) Intersects(other Set) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for m := range small {
		if large.Has(m) {
			return true
		}
	}
	return false
}

// ContainsAll reports whether every member of other is also in s.
func (s Set) ContainsAll(other Set) bool {
	for m := range other {
		if !s.Has(m) {
			return false
		}
	}
	return true
}

// User is an immutable snapshot of the authenticated principal. It is
// replaced wholesale when the profile changes, never mutated in place.
type User struct {
	ID          string
	Email       string
	Roles       Set
	Permissions Set
}

// Credentials are the inputs to Login and Register.
type Credentials struct {
	Email    string
	Password string
}

// Snapshot is a point-in-time view of the session. User is non-nil if and
// only if Status is StatusAuthenticated or StatusRefreshing. Err carries the
// last failed operation's error for observability and is cleared on the next
// successful transition.
type Snapshot struct {
	Status Status
	User   *User
	Err    error
}

// AuthPayload is what the transport returns from login, register and
// refresh calls. ExpiresIn of zero means the server did not report a token
// lifetime; the token gateway may derive one from the token itself.
type AuthPayload struct {
	User         User
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
