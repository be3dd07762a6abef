package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-portal-auth"
)

func TestUserProviderVerifyIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.seedAccount(t, "pat@example.com", auth.RolePartner, true)

	identity, err := f.provider.VerifyIdentity(ctx, " Pat@Example.com ", testPassword)
	require.NoError(t, err)

	assert.Equal(t, account.ID.String(), identity.ID())
	assert.Equal(t, "pat@example.com", identity.Email())
	assert.Equal(t, "partner", identity.Role())
	assert.Equal(t, "Seeded", identity.DisplayName())
}

func TestUserProviderChecksPasswordBeforeVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedAccount(t, "new@example.com", auth.RoleUser, false)

	_, err := f.provider.VerifyIdentity(ctx, "new@example.com", "wrong-password")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = f.provider.VerifyIdentity(ctx, "new@example.com", testPassword)
	require.ErrorIs(t, err, auth.ErrEmailNotVerified)
}

type countingHasher struct {
	auth.BcryptHasher
	mu       sync.Mutex
	compares int
}

func (c *countingHasher) ComparePasswordAndHash(password, hash string) error {
	c.mu.Lock()
	c.compares++
	c.mu.Unlock()
	return c.BcryptHasher.ComparePasswordAndHash(password, hash)
}

func TestUserProviderHashesForEveryRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedAccount(t, "pat@example.com", auth.RolePartner, true)
	_, err := f.repo.Accounts().Create(ctx, &auth.Account{
		Email:       "social@example.com",
		DisplayName: "Social",
		Role:        auth.RoleUser,
	})
	require.NoError(t, err)

	hasher := &countingHasher{BcryptHasher: auth.BcryptHasher{Cost: bcrypt.MinCost}}
	provider := auth.NewUserProvider(f.repo.Accounts()).
		WithClock(f.clock.Now).
		WithPasswordHasher(hasher)

	for _, email := range []string{"ghost@example.com", "social@example.com", "pat@example.com"} {
		before := hasher.compares

		_, err := provider.VerifyIdentity(ctx, email, "wrong-password")
		require.ErrorIs(t, err, auth.ErrInvalidCredentials, email)
		assert.Equal(t, before+1, hasher.compares, email)
	}
}

func TestUserProviderCustomValidator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedAccount(t, "pat@example.com", auth.RolePartner, true)

	blocked := errors.New("account suspended")
	f.provider.Validator = func(a *auth.Account) error {
		if a.Email == "pat@example.com" {
			return blocked
		}
		return nil
	}

	_, err := f.provider.VerifyIdentity(ctx, "pat@example.com", testPassword)
	require.ErrorIs(t, err, blocked)
}

func TestUserProviderRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.seedAccount(t, "pat@example.com", auth.RolePartner, true)

	_, err := f.db.NewUpdate().
		Model((*auth.Account)(nil)).
		Set("role = ?", "root").
		Where("id = ?", account.ID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = f.provider.VerifyIdentity(ctx, "pat@example.com", testPassword)
	require.Error(t, err)
	assert.Equal(t, 401, auth.HTTPStatus(err))

	_, err = f.provider.FindIdentityByIdentifier(ctx, account.ID.String())
	require.Error(t, err)
}

func TestUserProviderFindIdentityByIdentifier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	account := f.seedAccount(t, "pat@example.com", auth.RoleMentor, true)

	byID, err := f.provider.FindIdentityByIdentifier(ctx, account.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", byID.Email())

	byEmail, err := f.provider.FindIdentityByIdentifier(ctx, "pat@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), byEmail.ID())
	assert.Equal(t, "mentor", byEmail.Role())

	_, err = f.provider.FindIdentityByIdentifier(ctx, "ghost@example.com")
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)
}

func TestIdentityFromAccount(t *testing.T) {
	assert.Nil(t, auth.IdentityFromAccount(nil))

	identity := auth.IdentityFromAccount(&auth.Account{
		Email:        "pat@example.com",
		DisplayName:  "Pat",
		Role:         auth.RoleAdmin,
		AvatarURL:    "https://example.com/pat.png",
		PasswordHash: "secret",
	})
	require.NotNil(t, identity)
	assert.Equal(t, "admin", identity.Role())
	assert.Equal(t, "https://example.com/pat.png", identity.AvatarURL())
}
