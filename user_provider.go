package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// AccountTracker is a store we can use to retrieve accounts and
// record login attempts
type AccountTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// UserProvider verifies credentials against the account store
type UserProvider struct {
	store     AccountTracker
	hasher    PasswordAuthenticator
	Validator func(*Account) error
	logger    Logger
	activity  ActivitySink
	now       Clock
	decoy     *decoyHash
}

// decoyHash is compared against when there is no stored hash, so a
// missing account costs the same hashing work as a wrong password
type decoyHash struct {
	once sync.Once
	hash string
}

func (d *decoyHash) compare(hasher PasswordAuthenticator, password string) {
	d.once.Do(func() {
		d.hash, _ = hasher.HashPassword("portal-decoy-password")
	})
	if d.hash != "" {
		_ = hasher.ComparePasswordAndHash(password, d.hash)
	}
}

// MaxLoginAttempts is the maximun number of attempts a user gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// NewUserProvider will create a new UserProvider
func NewUserProvider(store AccountTracker) *UserProvider {
	return &UserProvider{
		store:     store,
		hasher:    CompositeHasher{},
		logger:    defLogger{},
		activity:  noopActivitySink{},
		now:       time.Now,
		Validator: defaultValidator,
		decoy:     &decoyHash{},
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

func (u *UserProvider) WithPasswordHasher(h PasswordAuthenticator) *UserProvider {
	if h != nil {
		u.hasher = h
		u.decoy = &decoyHash{}
	}
	return u
}

// WithActivitySink records lockouts. Failures the caller can see are
// recorded by the Auther.
func (u *UserProvider) WithActivitySink(sink ActivitySink) *UserProvider {
	u.activity = normalizeActivitySink(sink)
	return u
}

func (u *UserProvider) WithClock(c Clock) *UserProvider {
	u.now = normalizeClock(c)
	return u
}

func (u *UserProvider) validate(account *Account) error {
	if u.Validator != nil {
		return u.Validator(account)
	}
	return defaultValidator(account)
}

// VerifyIdentity will find the account, compare the password, and return
// its identity. Unknown accounts, password-less accounts, wrong passwords
// and accounts cooling down after too many failures all return
// ErrInvalidCredentials, with the same hashing work. Verification status is
// only reported once the password matched.
func (u UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	account, err := u.store.GetByIdentifier(ctx, NormalizeEmail(identifier))
	if err != nil {
		if IsRecordNotFound(err) {
			u.decoy.compare(u.hasher, password)
			return nil, ErrInvalidCredentials
		}
		return nil, NewInternalError(err, "failed to retrieve account during verification")
	}

	if account == nil || !account.HasPassword() {
		u.decoy.compare(u.hasher, password)
		return nil, ErrInvalidCredentials
	}

	if account.LoginAttemptAt != nil {
		within, err := InCoolDown(u.now(), *account.LoginAttemptAt)
		if err != nil {
			return nil, NewInternalError(err, "failed to calculate login attempt cooldown")
		}

		if !within {
			account.LoginAttempts = 0
		}
	}

	// cool off without telling the caller the account exists
	if account.LoginAttempts > MaxLoginAttempts {
		_ = u.hasher.ComparePasswordAndHash(password, account.PasswordHash)
		u.logger.Warn("login blocked during cool-down", "account_id", account.ID.String(), "attempts", account.LoginAttempts)
		recordActivity(ctx, u.activity, u.logger, ActivityEvent{
			EventType:  ActivityEventLoginLocked,
			Actor:      ActorRef{Type: "user"},
			UserID:     account.ID.String(),
			OccurredAt: u.now(),
			Metadata:   map[string]any{"attempts": account.LoginAttempts},
		})
		return nil, ErrInvalidCredentials
	}

	if err := u.hasher.ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if !errors.Is(err, ErrMismatchedHashAndPassword) {
			u.logger.Error("password comparison failed", "account_id", account.ID.String(), "error", err)
		}

		if err2 := u.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, NewInternalError(err2, "failed to track login attempt")
		}

		return nil, ErrInvalidCredentials
	}

	if !account.IsVerified() {
		return nil, ErrEmailNotVerified
	}

	// reset the login_attempts counter and login_attempt_at
	if err := u.store.TrackSuccessfulLogin(ctx, account); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	if err := u.validate(account); err != nil {
		return nil, err
	}

	return IdentityFromAccount(account), nil
}

func (u UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if err := u.validate(account); err != nil {
		return nil, err
	}

	return IdentityFromAccount(account), nil
}

// IdentityFromAccount builds the public identity of an account
func IdentityFromAccount(a *Account) Identity {
	if a == nil {
		return nil
	}

	return accountIdentity{
		id:          a.ID.String(),
		displayName: a.DisplayName,
		email:       a.Email,
		role:        string(a.Role),
		avatarURL:   a.AvatarURL,
	}
}

type accountIdentity struct {
	id          string
	displayName string
	email       string
	role        string
	avatarURL   string
}

func (a accountIdentity) ID() string {
	return a.id
}

func (a accountIdentity) DisplayName() string {
	return a.displayName
}

func (a accountIdentity) Email() string {
	return a.email
}

func (a accountIdentity) Role() string {
	return a.role
}

func (a accountIdentity) AvatarURL() string {
	return a.avatarURL
}

var _ Identity = accountIdentity{}

func defaultValidator(a *Account) error {
	if a == nil {
		return ErrIdentityNotFound
	}

	if a.Role.IsValid() {
		return nil
	}

	return goerrors.New("account has an unknown or invalid role", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode("INVALID_ROLE").
		WithMetadata(map[string]any{"role": string(a.Role), "account_id": a.ID.String()})
}
