package access

import (
	"testing"

	"github.com/jmcleod/gatehouse/session"
)

func authenticated(roles, perms []string) session.Snapshot {
	return session.Snapshot{
		Status: session.StatusAuthenticated,
		User: &session.User{
			ID:          "u-1",
			Email:       "a@b.com",
			Roles:       session.NewSet(roles...),
			Permissions: session.NewSet(perms...),
		},
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		snap   session.Snapshot
		policy RoutePolicy
		want   Verdict
	}{
		{
			name:   "public allows unauthenticated",
			snap:   session.Snapshot{Status: session.StatusUnauthenticated},
			policy: RoutePolicy{Level: LevelPublic},
			want:   Allow,
		},
		{
			name:   "public allows authenticated",
			snap:   authenticated(nil, nil),
			policy: RoutePolicy{Level: LevelPublic},
			want:   Allow,
		},
		{
			name:   "authenticating awaits session",
			snap:   session.Snapshot{Status: session.StatusAuthenticating},
			policy: RoutePolicy{Level: LevelAuthenticated},
			want:   AwaitSession,
		},
		{
			name: "refreshing awaits session",
			snap: session.Snapshot{
				Status: session.StatusRefreshing,
				User:   &session.User{ID: "u-1"},
			},
			policy: RoutePolicy{Level: LevelAuthenticated},
			want:   AwaitSession,
		},
		{
			name:   "unauthenticated redirects to login",
			snap:   session.Snapshot{Status: session.StatusUnauthenticated},
			policy: RoutePolicy{Level: LevelAuthenticated},
			want:   DenyRedirectLogin,
		},
		{
			name:   "unauthenticated role based redirects to login",
			snap:   session.Snapshot{Status: session.StatusUnauthenticated},
			policy: RoutePolicy{Level: LevelRoleBased, RequiredRoles: session.NewSet("admin")},
			want:   DenyRedirectLogin,
		},
		{
			name:   "authenticated level allows any session",
			snap:   authenticated(nil, nil),
			policy: RoutePolicy{Level: LevelAuthenticated},
			want:   Allow,
		},
		{
			name:   "role based any one role suffices",
			snap:   authenticated([]string{"editor"}, nil),
			policy: RoutePolicy{Level: LevelRoleBased, RequiredRoles: session.NewSet("admin", "editor")},
			want:   Allow,
		},
		{
			name:   "role based no matching role denies",
			snap:   authenticated([]string{"viewer"}, nil),
			policy: RoutePolicy{Level: LevelRoleBased, RequiredRoles: session.NewSet("admin", "editor")},
			want:   DenyUnauthorized,
		},
		{
			name:   "role based empty requirement allows",
			snap:   authenticated(nil, nil),
			policy: RoutePolicy{Level: LevelRoleBased},
			want:   Allow,
		},
		{
			name: "role matching ignores the permission operator",
			snap: authenticated([]string{"editor"}, nil),
			policy: RoutePolicy{
				Level:         LevelRoleBased,
				RequiredRoles: session.NewSet("admin", "editor"),
				Operator:      OperatorAll,
			},
			want: Allow,
		},
		{
			name: "permission all requires every permission",
			snap: authenticated(nil, []string{"settings:read"}),
			policy: RoutePolicy{
				Level:               LevelPermissionBased,
				RequiredPermissions: session.NewSet("settings:read", "settings:write"),
				Operator:            OperatorAll,
			},
			want: DenyUnauthorized,
		},
		{
			name: "permission all full set allows",
			snap: authenticated(nil, []string{"settings:read", "settings:write", "extra"}),
			policy: RoutePolicy{
				Level:               LevelPermissionBased,
				RequiredPermissions: session.NewSet("settings:read", "settings:write"),
				Operator:            OperatorAll,
			},
			want: Allow,
		},
		{
			name: "permission operator defaults to all",
			snap: authenticated(nil, []string{"settings:read"}),
			policy: RoutePolicy{
				Level:               LevelPermissionBased,
				RequiredPermissions: session.NewSet("settings:read", "settings:write"),
			},
			want: DenyUnauthorized,
		},
		{
			name: "permission any one permission suffices",
			snap: authenticated(nil, []string{"settings:read"}),
			policy: RoutePolicy{
				Level:               LevelPermissionBased,
				RequiredPermissions: session.NewSet("settings:read", "settings:write"),
				Operator:            OperatorAny,
			},
			want: Allow,
		},
		{
			name: "permission any no overlap denies",
			snap: authenticated(nil, []string{"billing:manage"}),
			policy: RoutePolicy{
				Level:               LevelPermissionBased,
				RequiredPermissions: session.NewSet("settings:read", "settings:write"),
				Operator:            OperatorAny,
			},
			want: DenyUnauthorized,
		},
		{
			name:   "permission empty requirement allows",
			snap:   authenticated(nil, nil),
			policy: RoutePolicy{Level: LevelPermissionBased},
			want:   Allow,
		},
		{
			name: "unknown operator denies not allows",
			snap: authenticated(nil, []string{"settings:read", "settings:write"}),
			policy: RoutePolicy{
				Level:               LevelPermissionBased,
				RequiredPermissions: session.NewSet("settings:read"),
				Operator:            Operator("xor"),
			},
			want: DenyUnauthorized,
		},
		{
			name:   "unknown protection level denies not allows",
			snap:   authenticated([]string{"admin"}, []string{"settings:read"}),
			policy: RoutePolicy{Level: ProtectionLevel("vip")},
			want:   DenyUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.snap, tt.policy); got != tt.want {
				t.Fatalf("Evaluate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvaluateIsPure(t *testing.T) {
	snap := authenticated([]string{"admin"}, []string{"settings:read"})
	policy := RoutePolicy{Level: LevelRoleBased, RequiredRoles: session.NewSet("admin")}

	first := Evaluate(snap, policy)
	for i := 0; i < 100; i++ {
		if got := Evaluate(snap, policy); got != first {
			t.Fatalf("verdict changed between calls: %q then %q", first, got)
		}
	}
	if snap.User.Roles.Empty() || !snap.User.Roles.Has("admin") {
		t.Fatal("evaluate mutated the snapshot")
	}
}
