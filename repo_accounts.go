package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the account store. Every operation has a Tx variant
// that runs against the given bun.IDB so callers can compose them
// inside RunInTx.
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error)

	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)

	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)

	MarkVerifiedTx(ctx context.Context, tx bun.IDB, email string, at time.Time) (*Account, error)
	// ClaimUnverifiedTx marks the email of an unverified account as verified
	// and drops its password and login attempts.
	ClaimUnverifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (*Account, error)

	UpdateRole(ctx context.Context, id uuid.UUID, role AccountRole) (*Account, error)
	UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role AccountRole) (*Account, error)

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
}

type accounts struct {
	db  *bun.DB
	now Clock
}

var _ Accounts = (*accounts)(nil)

type AccountsOption func(*accounts)

// WithAccountsClock sets the clock used for timestamps
func WithAccountsClock(c Clock) AccountsOption {
	return func(a *accounts) {
		a.now = normalizeClock(c)
	}
}

func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := &accounts{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}

	return repo
}

func (a *accounts) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{"id": id.String()})
	}
	return record, nil
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{"email": email})
	}
	return record, nil
}

func (a *accounts) GetByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier)
}

// GetByIdentifierTx resolves identifier as an account ID or an email
func (a *accounts) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)

	if id, err := uuid.Parse(identifier); err == nil {
		return a.GetByIDTx(ctx, tx, id)
	}

	if _, err := mail.ParseAddress(identifier); err == nil {
		return a.GetByEmailTx(ctx, tx, identifier)
	}

	return nil, newRecordNotFound(map[string]any{
		"identifier": identifier,
	})
}

func (a *accounts) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Exists(ctx)
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	prepareAccountDefaults(record, a.now())

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) MarkVerifiedTx(ctx context.Context, tx bun.IDB, email string, at time.Time) (*Account, error) {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("email_verified_at = ?", at).
		Set("updated_at = ?", at).
		Where("email = ?", NormalizeEmail(email)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, newRecordNotFound(map[string]any{"email": email})
	}

	return a.GetByEmailTx(ctx, tx, email)
}

func (a *accounts) ClaimUnverifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, at time.Time) (*Account, error) {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", "").
		Set("email_verified_at = ?", at).
		Set("login_attempts = 0").
		Set("login_attempt_at = NULL").
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("email_verified_at IS NULL").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, newRecordNotFound(map[string]any{"id": id.String(), "verified": false})
	}

	return a.GetByIDTx(ctx, tx, id)
}

func (a *accounts) UpdateRole(ctx context.Context, id uuid.UUID, role AccountRole) (*Account, error) {
	return a.UpdateRoleTx(ctx, a.db, id, role)
}

func (a *accounts) UpdateRoleTx(ctx context.Context, tx bun.IDB, id uuid.UUID, role AccountRole) (*Account, error) {
	if !role.IsValid() {
		return nil, NewValidationError("unknown role", map[string]string{"role": string(role)})
	}

	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, newRecordNotFound(map[string]any{"id": id.String()})
	}

	return a.GetByIDTx(ctx, tx, id)
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("loggedin_at = ?", a.now()).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", account.ID).
		Exec(ctx)
	return err
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	_, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = ?", account.LoginAttempts+1).
		Set("login_attempt_at = ?", a.now()).
		Where("id = ?", account.ID).
		Exec(ctx)
	return err
}

func prepareAccountDefaults(record *Account, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if !record.Role.IsValid() {
		record.Role = DefaultRole
	}

	record.Email = NormalizeEmail(record.Email)

	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}

	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func notFoundOr(err error, meta map[string]any) error {
	if IsRecordNotFound(err) {
		return newRecordNotFound(meta)
	}
	return err
}
