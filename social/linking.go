package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-portal-auth"
)

// LinkingStrategy determines how social profiles are linked to accounts.
type LinkingStrategy interface {
	ResolveAccount(ctx context.Context, lc LinkingContext) (*LinkingResult, error)
}

// LinkingPolicy decides which linking mode/flags to apply for a request.
type LinkingPolicy func(ctx context.Context, lc LinkingContext) (LinkDecision, error)

// LinkDecision controls resolution behavior for a single auth flow.
type LinkDecision struct {
	Mode                 string
	AllowSignup          bool
	AllowLinking         bool
	RequireEmailVerified bool
}

// PolicyLinkingStrategy applies a LinkingPolicy and then performs resolution.
type PolicyLinkingStrategy struct {
	Policy LinkingPolicy
}

// ResolveAccount implements LinkingStrategy.
func (s *PolicyLinkingStrategy) ResolveAccount(ctx context.Context, lc LinkingContext) (*LinkingResult, error) {
	if s == nil || s.Policy == nil {
		return nil, ErrLinkingNotAllowed
	}

	decision, err := s.Policy(ctx, lc)
	if err != nil {
		return nil, err
	}

	resolver := &DefaultLinkingStrategy{
		AllowSignup:          decision.AllowSignup,
		AllowLinking:         decision.AllowLinking,
		RequireEmailVerified: decision.RequireEmailVerified,
	}

	return resolver.ResolveAccount(ctx, lc.withMode(decision.Mode))
}

// LinkingContext provides context for account resolution. Tx is the
// transaction the lookups and inserts run in.
type LinkingContext struct {
	Profile  *SocialProfile
	Mode     string
	Tx       bun.IDB
	Accounts auth.Accounts
	Links    auth.SocialAccounts
	Now      time.Time
}

func (lc LinkingContext) withMode(mode string) LinkingContext {
	if mode == "" {
		return lc
	}
	copy := lc
	copy.Mode = mode
	return copy
}

// LinkingResult contains the resolved account and metadata.
type LinkingResult struct {
	Account      *auth.Account
	IsNewAccount bool
	Linked       bool
}

// DefaultLinkingStrategy resolves a profile by its provider link first,
// then by email, and finally creates a new account.
type DefaultLinkingStrategy struct {
	AllowSignup          bool
	AllowLinking         bool
	RequireEmailVerified bool

	OnAccountCreated func(ctx context.Context, account *auth.Account, profile *SocialProfile) error
	OnAccountLinked  func(ctx context.Context, account *auth.Account, profile *SocialProfile) error
}

// ResolveAccount implements LinkingStrategy.
func (s *DefaultLinkingStrategy) ResolveAccount(ctx context.Context, lc LinkingContext) (*LinkingResult, error) {
	if lc.Profile == nil {
		return nil, ErrInvalidIDToken
	}
	if lc.Accounts == nil || lc.Links == nil || lc.Tx == nil {
		return nil, ErrLinkingNotAllowed
	}

	profile := lc.Profile

	if s.RequireEmailVerified && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	existing, err := lc.Links.FindByProviderIDTx(ctx, lc.Tx, profile.Provider, profile.ProviderUserID)
	if err == nil && existing != nil {
		account, err := lc.Accounts.GetByIDTx(ctx, lc.Tx, existing.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to find linked account: %w", err)
		}
		return &LinkingResult{Account: account}, nil
	}
	if err != nil && !auth.IsRecordNotFound(err) {
		return nil, fmt.Errorf("failed to find social link: %w", err)
	}

	if lc.Mode == LinkModeExplicitOnly {
		return nil, ErrLinkingNotAllowed
	}

	email := auth.NormalizeEmail(profile.Email)
	if email != "" && lc.Mode != LinkModeRejectUnknown {
		account, err := lc.Accounts.GetByEmailTx(ctx, lc.Tx, email)
		if err == nil && account != nil {
			if !s.AllowLinking {
				return nil, ErrEmailAlreadyExists
			}

			// an unverified email must not take over a password account
			if !profile.EmailVerified {
				return nil, ErrEmailNotVerified
			}

			// an unverified account keeps no password once a provider proves the email
			if !account.IsVerified() {
				account, err = lc.Accounts.ClaimUnverifiedTx(ctx, lc.Tx, account.ID, lc.Now)
				if err != nil {
					return nil, fmt.Errorf("failed to claim unverified account: %w", err)
				}
			}

			if err := s.link(ctx, lc, account); err != nil {
				return nil, err
			}

			if s.OnAccountLinked != nil {
				if err := s.OnAccountLinked(ctx, account, profile); err != nil {
					return nil, err
				}
			}

			return &LinkingResult{Account: account, Linked: true}, nil
		}
		if err != nil && !auth.IsRecordNotFound(err) {
			return nil, fmt.Errorf("failed to find account by email: %w", err)
		}
	}

	if lc.Mode == LinkModeEmailMatch || lc.Mode == LinkModeRejectUnknown {
		return nil, ErrSignupNotAllowed
	}

	if !s.AllowSignup {
		return nil, ErrSignupNotAllowed
	}

	if email == "" {
		return nil, ErrInvalidIDToken
	}

	created, err := lc.Accounts.CreateTx(ctx, lc.Tx, s.accountFromProfile(profile, lc.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.link(ctx, lc, created); err != nil {
		return nil, err
	}

	if s.OnAccountCreated != nil {
		if err := s.OnAccountCreated(ctx, created, profile); err != nil {
			return nil, err
		}
	}

	return &LinkingResult{Account: created, IsNewAccount: true, Linked: true}, nil
}

func (s *DefaultLinkingStrategy) link(ctx context.Context, lc LinkingContext, account *auth.Account) error {
	_, err := lc.Links.CreateTx(ctx, lc.Tx, &auth.SocialAccount{
		AccountID:      account.ID,
		Provider:       lc.Profile.Provider,
		ProviderUserID: lc.Profile.ProviderUserID,
		Email:          auth.NormalizeEmail(lc.Profile.Email),
	})
	if err != nil {
		return fmt.Errorf("failed to link social account: %w", err)
	}
	return nil
}

// accountFromProfile never picks the role from the profile, new accounts
// always start with the default role.
func (s *DefaultLinkingStrategy) accountFromProfile(profile *SocialProfile, now time.Time) *auth.Account {
	account := &auth.Account{
		Email:       profile.Email,
		DisplayName: strings.TrimSpace(profile.Name),
		AvatarURL:   profile.AvatarURL,
		Role:        auth.DefaultRole,
		Category:    auth.DefaultRole.String(),
	}

	if account.DisplayName == "" {
		account.DisplayName = strings.Split(profile.Email, "@")[0]
	}

	if profile.EmailVerified {
		verifiedAt := now
		account.EmailVerifiedAt = &verifiedAt
	}

	return account
}

// Linking modes (used by LinkingPolicy decisions).
const (
	LinkModeAutoCreate    = "auto_create"
	LinkModeEmailMatch    = "email_match"
	LinkModeExplicitOnly  = "explicit_only"
	LinkModeRejectUnknown = "reject_unknown"
)

// PolicyAutoCreate creates a new account if one does not exist.
func PolicyAutoCreate() LinkingPolicy {
	return func(ctx context.Context, lc LinkingContext) (LinkDecision, error) {
		return LinkDecision{
			Mode:                 LinkModeAutoCreate,
			AllowSignup:          true,
			AllowLinking:         true,
			RequireEmailVerified: true,
		}, nil
	}
}

// PolicyEmailMatch only links when email matches an existing account.
func PolicyEmailMatch() LinkingPolicy {
	return func(ctx context.Context, lc LinkingContext) (LinkDecision, error) {
		return LinkDecision{
			Mode:                 LinkModeEmailMatch,
			AllowSignup:          false,
			AllowLinking:         true,
			RequireEmailVerified: true,
		}, nil
	}
}

// PolicyRejectUnknown only accepts profiles that are already linked.
func PolicyRejectUnknown() LinkingPolicy {
	return func(ctx context.Context, lc LinkingContext) (LinkDecision, error) {
		return LinkDecision{
			Mode:                 LinkModeRejectUnknown,
			AllowSignup:          false,
			AllowLinking:         false,
			RequireEmailVerified: true,
		}, nil
	}
}
