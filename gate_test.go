package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-portal-auth"
)

func sessionWithRole(role string) *auth.SessionObject {
	return &auth.SessionObject{
		UserID: "acc-1",
		Data:   map[string]any{"role": role},
	}
}

func TestGateDecide(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []auth.AccountRole
		session  auth.Session
		expected auth.Decision
	}{
		{
			name:     "no session",
			allowed:  []auth.AccountRole{auth.RoleAdmin},
			session:  nil,
			expected: auth.DecisionUnauthenticated,
		},
		{
			name:     "session without user",
			allowed:  []auth.AccountRole{auth.RoleAdmin},
			session:  &auth.SessionObject{Data: map[string]any{"role": "admin"}},
			expected: auth.DecisionUnauthenticated,
		},
		{
			name:     "matching role",
			allowed:  []auth.AccountRole{auth.RolePartner},
			session:  sessionWithRole("partner"),
			expected: auth.DecisionAllow,
		},
		{
			name:     "one of several",
			allowed:  []auth.AccountRole{auth.RoleMentor, auth.RoleAdmin},
			session:  sessionWithRole("admin"),
			expected: auth.DecisionAllow,
		},
		{
			name:     "role outside the set",
			allowed:  []auth.AccountRole{auth.RoleAdmin},
			session:  sessionWithRole("user"),
			expected: auth.DecisionForbidden,
		},
		{
			name:     "unknown role",
			allowed:  nil,
			session:  sessionWithRole("root"),
			expected: auth.DecisionForbidden,
		},
		{
			name:     "missing role",
			allowed:  nil,
			session:  &auth.SessionObject{UserID: "acc-1"},
			expected: auth.DecisionForbidden,
		},
		{
			name:     "empty set accepts any valid role",
			allowed:  nil,
			session:  sessionWithRole("mentor"),
			expected: auth.DecisionAllow,
		},
		{
			name:     "misspelled role denies everyone",
			allowed:  []auth.AccountRole{"Admin"},
			session:  sessionWithRole("user"),
			expected: auth.DecisionForbidden,
		},
		{
			name:     "unknown role declared denies admin too",
			allowed:  []auth.AccountRole{"administrator"},
			session:  sessionWithRole("admin"),
			expected: auth.DecisionForbidden,
		},
		{
			name:     "invalid roles are dropped from the set",
			allowed:  []auth.AccountRole{"root", auth.RoleAdmin},
			session:  sessionWithRole("partner"),
			expected: auth.DecisionForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, auth.NewGate(tt.allowed...).Decide(tt.session))
			assert.Equal(t, tt.expected, auth.Decide(tt.session, tt.allowed...))
		})
	}
}

func TestDecisionErr(t *testing.T) {
	assert.NoError(t, auth.DecisionAllow.Err())
	assert.ErrorIs(t, auth.DecisionUnauthenticated.Err(), auth.ErrUnauthorized)
	assert.ErrorIs(t, auth.DecisionForbidden.Err(), auth.ErrForbidden)

	assert.Equal(t, "allow", auth.DecisionAllow.String())
	assert.Equal(t, "unauthenticated", auth.DecisionUnauthenticated.String())
	assert.Equal(t, "forbidden", auth.DecisionForbidden.String())
	assert.Equal(t, "unknown", auth.Decision(42).String())
}

func TestGateAllowed(t *testing.T) {
	gate := auth.NewGate(auth.RoleMentor, auth.RoleAdmin, "root")
	assert.Equal(t, []string{"admin", "mentor"}, gate.Allowed().Strings())
}

func TestGateRestricted(t *testing.T) {
	assert.False(t, auth.NewGate().Restricted())
	assert.True(t, auth.NewGate("Admin").Restricted())
	assert.Empty(t, auth.NewGate("Admin").Allowed())
}
