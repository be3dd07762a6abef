package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// Models lists every table owned by this package
func Models() []any {
	return []any{
		(*Account)(nil),
		(*VerificationToken)(nil),
		(*SocialAccount)(nil),
	}
}

// CreateSchema creates the tables and indexes if they are missing.
// It is a bootstrap helper for development and tests, not a migration tool.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	_, err := db.NewCreateIndex().
		Model((*VerificationToken)(nil)).
		Index("idx_verification_tokens_identifier").
		Column("identifier").
		IfNotExists().
		Exec(ctx)

	return err
}
