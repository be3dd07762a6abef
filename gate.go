package auth

// Decision is the outcome of checking a session against a route
type Decision int

const (
	// DecisionAllow the handler may run
	DecisionAllow Decision = iota
	// DecisionUnauthenticated there is no valid session, send to sign-in
	DecisionUnauthenticated
	// DecisionForbidden the session role is not in the allowed set
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Err returns the error matching the decision, nil when allowed
func (d Decision) Err() error {
	switch d {
	case DecisionAllow:
		return nil
	case DecisionForbidden:
		return ErrForbidden
	default:
		return ErrUnauthorized
	}
}

// Gate guards a route with a set of allowed roles.
// A gate declared without roles accepts any authenticated session.
// A gate declared with roles that are all invalid accepts nobody.
type Gate struct {
	allowed    RoleSet
	restricted bool
}

// NewGate creates a gate for roles
func NewGate(roles ...AccountRole) Gate {
	return Gate{
		allowed:    NewRoleSet(roles...),
		restricted: len(roles) > 0,
	}
}

// Restricted reports whether the gate was declared with roles
func (g Gate) Restricted() bool {
	return g.restricted
}

// Allowed returns the roles the gate accepts
func (g Gate) Allowed() RoleSet {
	return g.allowed
}

// Decide checks session against the allowed roles. A nil session or one
// with an unknown role never passes.
func (g Gate) Decide(session Session) Decision {
	if session == nil || session.GetUserID() == "" {
		return DecisionUnauthenticated
	}

	role := session.GetRole()
	if !role.IsValid() {
		return DecisionForbidden
	}

	if !g.restricted || g.allowed.Contains(role) {
		return DecisionAllow
	}

	return DecisionForbidden
}

// Decide is a shortcut for NewGate(allowed...).Decide(session)
func Decide(session Session, allowed ...AccountRole) Decision {
	return NewGate(allowed...).Decide(session)
}
