package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-portal-auth"
)

const testPassword = "s3cret-pass"

type testConfig struct{}

func (testConfig) GetSigningKey() string           { return "portal-test-signing-key-0123456789" }
func (testConfig) GetSigningMethod() string        { return "HS256" }
func (testConfig) GetContextKey() string           { return "portal_session" }
func (testConfig) GetTokenExpiration() int         { return 24 }
func (testConfig) GetExtendedTokenDuration() int   { return 720 }
func (testConfig) GetTokenLookup() string          { return "header:Authorization,cookie:portal_session" }
func (testConfig) GetAuthScheme() string           { return "Bearer" }
func (testConfig) GetIssuer() string               { return "portal" }
func (testConfig) GetAudience() []string           { return []string{"portal:web"} }
func (testConfig) GetRejectedRouteKey() string     { return "login_redirect" }
func (testConfig) GetRejectedRouteDefault() string { return "/" }
func (testConfig) GetLoginPath() string            { return "/login" }

// testClock is a clock tests can move forward
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentVerification struct {
	recipient string
	token     string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentVerification
	err  error
}

func (n *recordingNotifier) SendVerification(_ context.Context, recipient, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentVerification{recipient: recipient, token: token})
	return nil
}

func (n *recordingNotifier) last(t *testing.T) sentVerification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent, "no verification was sent")
	return n.sent[len(n.sent)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) ofType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

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

type fixture struct {
	db       *bun.DB
	repo     auth.RepositoryManager
	clock    *testClock
	hasher   auth.PasswordAuthenticator
	notifier *recordingNotifier
	sink     *recordingSink
	provider *auth.UserProvider
	auther   *auth.Auther
	register *auth.RegisterAccountHandler
	verify   *auth.VerifyAccountHandler
	resend   *auth.ResendVerificationHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	clock := newTestClock()
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}
	notifier := &recordingNotifier{}
	sink := &recordingSink{}

	repo := auth.NewRepositoryManager(db, auth.WithAccountsClock(clock.Now))

	provider := auth.NewUserProvider(repo.Accounts()).
		WithClock(clock.Now).
		WithPasswordHasher(auth.CompositeHasher{Hasher: hasher}).
		WithActivitySink(sink)

	auther := auth.NewAuthenticator(provider, testConfig{}).
		WithClock(clock.Now).
		WithActivitySink(sink)

	register := auth.NewRegisterAccountHandler(repo, notifier).
		WithClock(clock.Now).
		WithPasswordHasher(hasher).
		WithActivitySink(sink)

	verify := auth.NewVerifyAccountHandler(repo).
		WithClock(clock.Now).
		WithActivitySink(sink)

	return &fixture{
		db:       db,
		repo:     repo,
		clock:    clock,
		hasher:   hasher,
		notifier: notifier,
		sink:     sink,
		provider: provider,
		auther:   auther,
		register: register,
		verify:   verify,
		resend:   auth.NewResendVerificationHandler(register),
	}
}

// seedAccount stores an account with testPassword. verified controls
// whether email verification already happened.
func (f *fixture) seedAccount(t *testing.T, email string, role auth.AccountRole, verified bool) *auth.Account {
	t.Helper()

	hash, err := f.hasher.HashPassword(testPassword)
	require.NoError(t, err)

	account := &auth.Account{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Seeded",
		Role:         role,
	}

	if verified {
		at := f.clock.Now()
		account.EmailVerifiedAt = &at
	}

	account, err = f.repo.Accounts().Create(context.Background(), account)
	require.NoError(t, err)
	return account
}

func (f *fixture) registerAccount(t *testing.T, email string) *auth.RegisterAccountResponse {
	t.Helper()

	var resp *auth.RegisterAccountResponse
	err := f.register.Execute(context.Background(), auth.RegisterAccountMessage{
		Email:    email,
		Password: testPassword,
		OnResponse: func(r *auth.RegisterAccountResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func (f *fixture) countTokens(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*auth.VerificationToken)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) countAccounts(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*auth.Account)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}
