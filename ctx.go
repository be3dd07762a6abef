package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-portal-auth/middleware/jwtware"
)

type claimsKey struct{}

// ValidationListener runs after the session token validated and before the
// role check. Returning an error rejects the request.
type ValidationListener = jwtware.ValidationListener

// WithClaimsContext stores claims in ctx
func WithClaimsContext(ctx context.Context, claims AuthClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaims returns the claims stored by WithClaimsContext
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(AuthClaims)
	return claims, ok
}

// SessionFromContext rebuilds the session of the current request
func SessionFromContext(ctx context.Context) (Session, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return nil, false
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		return nil, false
	}

	return session, true
}

// GetFiberClaims returns the claims the gate stored under key.
// An empty key reads the jwtware default "user".
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user"
	}
	claims, ok := c.Locals(key).(AuthClaims)
	return claims, ok
}

// HasRole reports whether the request session holds one of roles
func HasRole(ctx context.Context, roles ...AccountRole) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}

	return NewRoleSet(roles...).Contains(AccountRole(claims.Role()))
}

// ContextEnricherAdapter copies the validated claims into the request
// context so handlers can use GetClaims, HasRole and SessionFromContext
func ContextEnricherAdapter(ctx context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return ctx
	}
	return WithClaimsContext(ctx, authClaims)
}

// RegisterValidationListeners appends listeners to cfg
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
