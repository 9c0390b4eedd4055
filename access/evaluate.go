package access

import "github.com/jmcleod/gatehouse/session"

// Verdict is the evaluator's decision for one snapshot/policy pair.
type Verdict string

const (
	// Allow permits the operation.
	Allow Verdict = "allow"
	// AwaitSession means the session is still settling (authenticating or
	// refreshing); the caller should show a loading state and re-evaluate
	// once the status settles.
	AwaitSession Verdict = "await_session"
	// DenyRedirectLogin means no authenticated session exists; the caller
	// should preserve the requested destination and redirect to login.
	DenyRedirectLogin Verdict = "deny_redirect_login"
	// DenyUnauthorized means the session lacks a required role or
	// permission.
	DenyUnauthorized Verdict = "deny_unauthorized"
)

// Evaluate returns the authorization verdict for the given session snapshot
// and policy. Callers must re-evaluate after any session-changing event; the
// snapshot carries no ordering guarantee relative to concurrent mutations.
//
// A policy with an unrecognized protection level or operator is treated as
// misconfigured and denied, never allowed.
func Evaluate(snap session.Snapshot, policy RoutePolicy) Verdict {
	if snap.Status == session.StatusAuthenticating || snap.Status == session.StatusRefreshing {
		return AwaitSession
	}

	if policy.Level == LevelPublic {
		return Allow
	}

	if snap.Status != session.StatusAuthenticated || snap.User == nil {
		return DenyRedirectLogin
	}

	switch policy.Level {
	case LevelAuthenticated:
		return Allow
	case LevelRoleBased:
		// Role matching is always any-of, independent of Operator.
		if policy.RequiredRoles.Empty() || policy.RequiredRoles.Intersects(snap.User.Roles) {
			return Allow
		}
		return DenyUnauthorized
	case LevelPermissionBased:
		if policy.RequiredPermissions.Empty() {
			return Allow
		}
		switch policy.Operator {
		case OperatorAll, "":
			if snap.User.Permissions.ContainsAll(policy.RequiredPermissions) {
				return Allow
			}
		case OperatorAny:
			if snap.User.Permissions.Intersects(policy.RequiredPermissions) {
				return Allow
			}
		}
		return DenyUnauthorized
	default:
		return DenyUnauthorized
	}
}
