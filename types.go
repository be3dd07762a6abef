package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Session holds attributes that are part of an auth session
type Session interface {
	GetUserID() string
	GetUserUUID() (uuid.UUID, error)
	GetRole() AccountRole
	GetAudience() []string
	GetIssuer() string
	GetIssuedAt() *time.Time
	GetExpiresAt() *time.Time
	GetData() map[string]any
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
	LoginWithIdentity(ctx context.Context, identity Identity) (string, error)
	SessionFromToken(token string) (Session, error)
	UpdateSession(ctx context.Context, token string, update SessionUpdate) (string, error)
	RefreshSession(ctx context.Context, token string) (string, error)
	IdentityFromSession(ctx context.Context, session Session) (Identity, error)
}

type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
	GetExtendedSession() bool
}

// Identity holds the attributes of an authenticated account.
// It never exposes the password hash.
type Identity interface {
	ID() string
	DisplayName() string
	Email() string
	Role() string
	AvatarURL() string
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetContextKey() string
	GetTokenExpiration() int
	GetExtendedTokenDuration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
	GetLoginPath() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Notifier delivers verification tokens to account owners.
type Notifier interface {
	SendVerification(ctx context.Context, recipient, token string) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, recipient, token string) error

// SendVerification implements Notifier.
func (f NotifierFunc) SendVerification(ctx context.Context, recipient, token string) error {
	return f(ctx, recipient, token)
}

// Clock returns the current time. Handlers take one so tests can move time.
type Clock func() time.Time

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}
