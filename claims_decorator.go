package auth

import "context"

// ClaimsDecorator runs right before a session token is signed. It may
// write Metadata and the profile claims (name, avatar). Changes to the
// subject, role, issuer, audience or timing claims abort the login with
// ErrProtectedClaimMutation.
type ClaimsDecorator interface {
	Decorate(ctx context.Context, identity Identity, claims *JWTClaims) error
}

// ClaimsDecoratorFunc lets a plain function act as a ClaimsDecorator.
// A nil func leaves the claims untouched.
type ClaimsDecoratorFunc func(ctx context.Context, identity Identity, claims *JWTClaims) error

func (f ClaimsDecoratorFunc) Decorate(ctx context.Context, identity Identity, claims *JWTClaims) error {
	if f == nil {
		return nil
	}
	return f(ctx, identity, claims)
}

func normalizeClaimsDecorator(d ClaimsDecorator) ClaimsDecorator {
	if d == nil {
		return ClaimsDecoratorFunc(nil)
	}
	return d
}
