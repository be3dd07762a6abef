package auth

import "strings"

// IsValid checks if the role is one of the predefined valid roles
func (r AccountRole) IsValid() bool {
	switch r {
	case RoleAdmin, RolePartner, RoleUser, RoleMentor:
		return true
	default:
		return false
	}
}

// IsSelfAssignable reports whether a registrant may pick the role
func (r AccountRole) IsSelfAssignable() bool {
	switch r {
	case RolePartner, RoleUser, RoleMentor:
		return true
	default:
		return false
	}
}

func (r AccountRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []AccountRole {
	return []AccountRole{
		RoleAdmin,
		RolePartner,
		RoleUser,
		RoleMentor,
	}
}

// ParseRole safely parses a string into an AccountRole
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// RoleSet is the set of roles a route accepts
type RoleSet map[AccountRole]struct{}

// NewRoleSet builds a RoleSet, invalid roles are ignored
func NewRoleSet(roles ...AccountRole) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		if r.IsValid() {
			set[r] = struct{}{}
		}
	}
	return set
}

// Contains reports whether role is a member of the set
func (s RoleSet) Contains(role AccountRole) bool {
	_, ok := s[role]
	return ok
}

// Strings returns the members as plain strings
func (s RoleSet) Strings() []string {
	out := make([]string, 0, len(s))
	for _, r := range GetAllRoles() {
		if s.Contains(r) {
			out = append(out, string(r))
		}
	}
	return out
}
