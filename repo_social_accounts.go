package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SocialAccounts stores links between accounts and external identities.
type SocialAccounts interface {
	FindByProviderID(ctx context.Context, provider, providerUserID string) (*SocialAccount, error)
	FindByProviderIDTx(ctx context.Context, tx bun.IDB, provider, providerUserID string) (*SocialAccount, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) ([]*SocialAccount, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *SocialAccount) (*SocialAccount, error)
}

type socialAccounts struct {
	db *bun.DB
}

var _ SocialAccounts = (*socialAccounts)(nil)

func NewSocialAccountsRepository(db *bun.DB) SocialAccounts {
	return &socialAccounts{db: db}
}

func (r *socialAccounts) FindByProviderID(ctx context.Context, provider, providerUserID string) (*SocialAccount, error) {
	return r.FindByProviderIDTx(ctx, r.db, provider, providerUserID)
}

func (r *socialAccounts) FindByProviderIDTx(ctx context.Context, tx bun.IDB, provider, providerUserID string) (*SocialAccount, error) {
	record := &SocialAccount{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ? AND ?TableAlias.provider_user_id = ?", provider, providerUserID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFoundOr(err, map[string]any{
			"provider":         provider,
			"provider_user_id": providerUserID,
		})
	}
	return record, nil
}

func (r *socialAccounts) FindByAccountID(ctx context.Context, accountID uuid.UUID) ([]*SocialAccount, error) {
	records := []*SocialAccount{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.account_id = ?", accountID).
		Scan(ctx)
	if err != nil && !IsRecordNotFound(err) {
		return nil, err
	}
	return records, nil
}

func (r *socialAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *SocialAccount) (*SocialAccount, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}
