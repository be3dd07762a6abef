package auth

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// VerificationTokens stores single-use email verification tokens.
type VerificationTokens interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *VerificationToken) (*VerificationToken, error)
	GetByToken(ctx context.Context, token string) (*VerificationToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*VerificationToken, error)
	// DeleteTx reports whether this call removed the token. A false
	// result means a concurrent request already consumed it.
	DeleteTx(ctx context.Context, tx bun.IDB, token string) (bool, error)
	ListByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) ([]*VerificationToken, error)
	CountLiveTx(ctx context.Context, tx bun.IDB, identifier string, now time.Time) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type verificationTokens struct {
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	return &verificationTokens{db: db}
}

func (v *verificationTokens) CreateTx(ctx context.Context, tx bun.IDB, record *VerificationToken) (*VerificationToken, error) {
	record.Identifier = NormalizeEmail(record.Identifier)
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (v *verificationTokens) GetByToken(ctx context.Context, token string) (*VerificationToken, error) {
	return v.GetByTokenTx(ctx, v.db, token)
}

func (v *verificationTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{})
	}
	return record, nil
}

func (v *verificationTokens) DeleteTx(ctx context.Context, tx bun.IDB, token string) (bool, error) {
	res, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (v *verificationTokens) ListByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) ([]*VerificationToken, error) {
	records := []*VerificationToken{}
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.identifier = ?", NormalizeEmail(identifier)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (v *verificationTokens) CountLiveTx(ctx context.Context, tx bun.IDB, identifier string, now time.Time) (int, error) {
	records, err := v.ListByIdentifierTx(ctx, tx, identifier)
	if err != nil {
		return 0, err
	}

	live := 0
	for _, r := range records {
		if !r.IsExpired(now) {
			live++
		}
	}
	return live, nil
}

// DeleteExpired removes every token whose expiry is at or before now and
// returns how many were removed.
func (v *verificationTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := v.db.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}
