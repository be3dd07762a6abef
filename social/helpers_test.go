package social_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/social"
)

type testConfig struct{}

func (testConfig) GetSigningKey() string           { return "social-test-signing-key" }
func (testConfig) GetSigningMethod() string        { return "HS256" }
func (testConfig) GetContextKey() string           { return "auth_token" }
func (testConfig) GetTokenExpiration() int         { return 24 }
func (testConfig) GetExtendedTokenDuration() int   { return 720 }
func (testConfig) GetTokenLookup() string          { return "header:Authorization,cookie:auth_token" }
func (testConfig) GetAuthScheme() string           { return "Bearer" }
func (testConfig) GetIssuer() string               { return "portal" }
func (testConfig) GetAudience() []string           { return []string{"portal:web"} }
func (testConfig) GetRejectedRouteKey() string     { return "redirect_to" }
func (testConfig) GetRejectedRouteDefault() string { return "/" }
func (testConfig) GetLoginPath() string            { return "/login" }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.CreateSchema(context.Background(), db))
	return db
}

type stubVerifier struct {
	profile *social.SocialProfile
	err     error
}

func (s stubVerifier) Name() string { return "google" }

func (s stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*social.SocialProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := *s.profile
	return &p, nil
}

type fixture struct {
	db     *bun.DB
	repo   auth.RepositoryManager
	auther *auth.Auther
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := auth.NewRepositoryManager(db, auth.WithAccountsClock(clock))
	provider := auth.NewUserProvider(repo.Accounts()).WithClock(clock)
	auther := auth.NewAuthenticator(provider, testConfig{}).WithClock(clock)

	return &fixture{db: db, repo: repo, auther: auther, now: now}
}

func (f *fixture) seedAccount(t *testing.T, email string, role auth.AccountRole) *auth.Account {
	t.Helper()

	verified := f.now
	account, err := f.repo.Accounts().Create(context.Background(), &auth.Account{
		Email:           email,
		PasswordHash:    "$2a$04$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva",
		DisplayName:     "Seeded",
		Role:            role,
		EmailVerifiedAt: &verified,
	})
	require.NoError(t, err)
	return account
}
