package social

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-portal-auth"
)

// SessionIssuer mints a session for an identity resolved by this package
type SessionIssuer interface {
	LoginWithIdentity(ctx context.Context, identity auth.Identity) (string, error)
}

// SocialAuthenticator signs accounts in with identity tokens issued by
// external providers.
type SocialAuthenticator struct {
	providers       map[string]IDTokenVerifier
	linkingStrategy LinkingStrategy
	repo            auth.RepositoryManager
	sessions        SessionIssuer
	activitySink    auth.ActivitySink
	logger          auth.Logger
	now             auth.Clock
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// AuthResult is the outcome of a successful sign-in
type AuthResult struct {
	Identity     auth.Identity
	Token        string
	Provider     string
	IsNewAccount bool
	Linked       bool
	Profile      *SocialProfile
}

// NewSocialAuthenticator creates a new social authenticator.
func NewSocialAuthenticator(repo auth.RepositoryManager, sessions SessionIssuer, opts ...SocialAuthOption) *SocialAuthenticator {
	sa := &SocialAuthenticator{
		providers: make(map[string]IDTokenVerifier),
		repo:      repo,
		sessions:  sessions,
		linkingStrategy: &DefaultLinkingStrategy{
			AllowSignup:          true,
			AllowLinking:         true,
			RequireEmailVerified: true,
		},
		activitySink: auth.ActivitySinkFunc(nil),
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	return sa
}

// WithProvider registers a provider.
func WithProvider(provider IDTokenVerifier) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithLinkingStrategy sets a custom account linking strategy.
func WithLinkingStrategy(ls LinkingStrategy) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if ls != nil {
			sa.linkingStrategy = ls
		}
	}
}

// WithLinkingPolicy sets a policy function used by the default resolver.
func WithLinkingPolicy(policy LinkingPolicy) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.linkingStrategy = &PolicyLinkingStrategy{Policy: policy}
	}
}

// WithActivitySink sets the activity sink for audit logging.
func WithActivitySink(sink auth.ActivitySink) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if sink != nil {
			sa.activitySink = sink
		}
	}
}

func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.logger = logger
	}
}

func WithClock(c auth.Clock) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if c != nil {
			sa.now = c
		}
	}
}

// Providers returns the registered provider names.
func (sa *SocialAuthenticator) Providers() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SignIn verifies idToken with the named provider, resolves the local
// account and issues a session. The session role is always the stored
// account role, whatever the provider asserts.
func (sa *SocialAuthenticator) SignIn(ctx context.Context, providerName, idToken string) (*AuthResult, error) {
	provider, ok := sa.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound
	}

	if idToken == "" {
		return nil, ErrInvalidIDToken
	}

	profile, err := provider.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, WrapProviderError(ErrInvalidIDToken, providerName, "verify_id_token", err)
	}

	if profile.Provider == "" {
		profile.Provider = providerName
	}

	var result *LinkingResult
	err = sa.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		result, err = sa.linkingStrategy.ResolveAccount(ctx, LinkingContext{
			Profile:  profile,
			Tx:       tx,
			Accounts: sa.repo.Accounts(),
			Links:    sa.repo.SocialAccounts(),
			Now:      sa.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if result == nil || result.Account == nil {
		return nil, auth.ErrIdentityNotFound
	}

	identity := auth.IdentityFromAccount(result.Account)

	token, err := sa.sessions.LoginWithIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	if err := sa.activitySink.Record(ctx, auth.ActivityEvent{
		EventType:  auth.ActivityEventSocialLogin,
		UserID:     identity.ID(),
		Actor:      auth.ActorRef{Type: "social", ID: providerName},
		OccurredAt: sa.now(),
		Metadata: map[string]any{
			"provider":         providerName,
			"provider_user_id": profile.ProviderUserID,
			"is_new_account":   result.IsNewAccount,
			"linked":           result.Linked,
		},
	}); err != nil && sa.logger != nil {
		sa.logger.Warn("activity sink record error", "event", string(auth.ActivityEventSocialLogin), "error", err)
	}

	return &AuthResult{
		Identity:     identity,
		Token:        token,
		Provider:     providerName,
		IsNewAccount: result.IsNewAccount,
		Linked:       result.Linked,
		Profile:      profile,
	}, nil
}
