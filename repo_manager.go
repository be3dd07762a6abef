package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() Accounts
	VerificationTokens() VerificationTokens
	SocialAccounts() SocialAccounts
}

type mngr struct {
	db                 *bun.DB
	accounts           Accounts
	verificationTokens VerificationTokens
	socialAccounts     SocialAccounts
}

func NewRepositoryManager(db *bun.DB, opts ...AccountsOption) RepositoryManager {
	return &mngr{
		db:                 db,
		accounts:           NewAccountsRepository(db, opts...),
		verificationTokens: NewVerificationTokensRepository(db),
		socialAccounts:     NewSocialAccountsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.verificationTokens == nil {
		return errors.New("repository verificationTokens should be initialized")
	}

	if m.socialAccounts == nil {
		return errors.New("repository socialAccounts should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) VerificationTokens() VerificationTokens {
	return m.verificationTokens
}

func (m mngr) SocialAccounts() SocialAccounts {
	return m.socialAccounts
}
