package auth

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// SessionUpdate lists the claims UpdateSession may change. Nil fields are
// left as they are.
type SessionUpdate struct {
	Role        *AccountRole
	DisplayName *string
	AvatarURL   *string
}

func (u SessionUpdate) empty() bool {
	return u.Role == nil && u.DisplayName == nil && u.AvatarURL == nil
}

type Auther struct {
	provider        IdentityProvider
	tokenService    *TokenServiceImpl
	logger          Logger
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
	now             Clock
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:        provider,
		tokenService:    tokenService,
		logger:          defLogger{},
		activitySink:    noopActivitySink{},
		claimsDecorator: ClaimsDecoratorFunc(nil),
		now:             tokenService.now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.tokenService.logger = logger
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithClock sets the time source for minting and validating tokens
func (s *Auther) WithClock(c Clock) *Auther {
	s.now = normalizeClock(c)
	s.tokenService.WithClock(s.now)
	return s
}

// TokenService exposes the service used to mint and validate tokens
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and returns a signed session token
func (s *Auther) Login(ctx context.Context, identifier, password string) (string, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.recordLoginFailure(ctx, identifier, err)
		return "", err
	}

	token, err := s.issue(ctx, identity)
	if err != nil {
		return "", err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: identity.ID(), Type: "user"},
		UserID:    identity.ID(),
		Metadata:  map[string]any{"role": identity.Role(), "method": "password"},
	})

	return token, nil
}

// LoginWithIdentity issues a session for an identity that was already
// authenticated somewhere else, e.g. by an external provider. The identity
// role must come from the account store.
func (s *Auther) LoginWithIdentity(ctx context.Context, identity Identity) (string, error) {
	if identity == nil {
		return "", ErrIdentityNotFound
	}

	if !AccountRole(identity.Role()).IsValid() {
		s.logger.Warn("refusing to issue session for invalid role", "account_id", identity.ID(), "role", identity.Role())
		return "", ErrUnauthorized
	}

	token, err := s.issue(ctx, identity)
	if err != nil {
		return "", err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: identity.ID(), Type: "user"},
		UserID:    identity.ID(),
		Metadata:  map[string]any{"role": identity.Role(), "method": "identity"},
	})

	return token, nil
}

// SessionFromToken validates raw and returns the session it carries
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		return nil, err
	}
	return sessionFromAuthClaims(claims)
}

// UpdateSession merges update into the claims of a valid token and signs a
// new one. The subject never changes, iat and exp are re-stamped. Nothing
// is read from the store so the caller decides what the new role is.
func (s *Auther) UpdateSession(ctx context.Context, raw string, update SessionUpdate) (string, error) {
	current, err := s.validClaims(raw)
	if err != nil {
		return "", err
	}

	if update.empty() {
		return "", NewValidationError("session update has no fields", nil)
	}

	next := current.Clone()
	snap := captureClaims(next)

	if update.Role != nil {
		role := *update.Role
		if !role.IsValid() {
			return "", NewValidationError("invalid role", map[string]string{"role": "must be one of " + strings.Join(NewRoleSet(GetAllRoles()...).Strings(), ", ")})
		}
		next.UserRole = role.String()
	}

	if update.DisplayName != nil {
		next.UserName = strings.TrimSpace(*update.DisplayName)
	}

	if update.AvatarURL != nil {
		next.UserAvatar = strings.TrimSpace(*update.AvatarURL)
	}

	s.tokenService.stamp(next)

	if err := snap.validateIdentity(next); err != nil {
		s.logger.Error("session update changed token identity", "error", err)
		return "", err
	}

	token, err := s.tokenService.SignClaims(next)
	if err != nil {
		return "", err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionUpdated,
		Actor:     ActorRef{ID: next.UserID(), Type: "user"},
		UserID:    next.UserID(),
		Metadata: map[string]any{
			"previous_role": current.UserRole,
			"role":          next.UserRole,
		},
	})

	return token, nil
}

// RefreshSession reloads the account behind a valid token and issues a new
// token with its current role and profile.
func (s *Auther) RefreshSession(ctx context.Context, raw string) (string, error) {
	current, err := s.validClaims(raw)
	if err != nil {
		return "", err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, current.UserID())
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return "", ErrUnauthorized
		}
		return "", err
	}

	token, err := s.issue(ctx, identity)
	if err != nil {
		return "", err
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionRefreshed,
		Actor:     ActorRef{ID: identity.ID(), Type: "user"},
		UserID:    identity.ID(),
		Metadata: map[string]any{
			"previous_role": current.UserRole,
			"role":          identity.Role(),
		},
	})

	return token, nil
}

// IdentityFromSession loads the identity a session belongs to
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	if session == nil {
		return nil, ErrUnableToFindSession
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		return nil, err
	}

	if identity == nil {
		return nil, ErrIdentityNotFound
	}

	return identity, nil
}

func (s *Auther) issue(ctx context.Context, identity Identity) (string, error) {
	claims := s.tokenService.newClaims(identity)
	snap := captureClaims(claims)

	if err := s.claimsDecorator.Decorate(ctx, identity, claims); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "claims decorator failed")
	}

	if err := snap.validate(claims); err != nil {
		s.logger.Error("claims decorator changed protected claims", "error", err)
		return "", err
	}

	return s.tokenService.SignClaims(claims)
}

func (s *Auther) validClaims(raw string) (*JWTClaims, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		return nil, err
	}

	jwtClaims, ok := claims.(*JWTClaims)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	return jwtClaims, nil
}

func (s *Auther) recordLoginFailure(ctx context.Context, identifier string, err error) {
	reason := "unknown"
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		reason = richErr.TextCode
	}

	s.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "anonymous"},
		Metadata: map[string]any{
			"identifier": NormalizeEmail(identifier),
			"reason":     reason,
		},
	})
}

func (s *Auther) recordActivity(ctx context.Context, event ActivityEvent) {
	event.OccurredAt = s.now()
	recordActivity(ctx, s.activitySink, s.logger, event)
}

var _ Authenticator = (*Auther)(nil)
