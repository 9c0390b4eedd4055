// Package access decides whether a guarded operation may proceed for a
// given session snapshot. Evaluation is pure: no network calls, no session
// mutation, fully determined by its inputs.
package access

import "github.com/jmcleod/gatehouse/session"

// ProtectionLevel classifies a guarded resource's access requirement.
type ProtectionLevel string

const (
	// LevelPublic resources are reachable by anyone, session or not.
	LevelPublic ProtectionLevel = "public"
	// LevelAuthenticated resources require any authenticated session.
	LevelAuthenticated ProtectionLevel = "authenticated"
	// LevelRoleBased resources require one of the policy's roles.
	LevelRoleBased ProtectionLevel = "role_based"
	// LevelPermissionBased resources require the policy's permissions,
	// combined per the policy's Operator.
	LevelPermissionBased ProtectionLevel = "permission_based"
)

// Operator is the combination rule for multiple required permissions.
// Role matching is always any-of, regardless of Operator.
type Operator string

const (
	// OperatorAll requires every listed permission. This is the default:
	// the zero value evaluates as OperatorAll.
	OperatorAll Operator = "all"
	// OperatorAny requires at least one listed permission.
	OperatorAny Operator = "any"
)

// RoutePolicy describes the access requirement of one guarded resource.
// Policies are immutable, constructed by the caller per resource; the
// evaluator never stores them.
type RoutePolicy struct {
	Level               ProtectionLevel
	RequiredRoles       session.Set
	RequiredPermissions session.Set
	Operator            Operator
}
