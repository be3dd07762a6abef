package config

import (
	"database/sql"

	"github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// OpenDB opens the store selected by Driver. SQLite connections are
// capped at one so writes inside RunInTx do not hit SQLITE_BUSY.
func OpenDB(cfg Database) (*bun.DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		connCfg, err := pgx.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid postgres DSN").
				WithTextCode("INVALID_DSN")
		}
		sqldb := stdlib.OpenDB(*connCfg)
		return bun.NewDB(sqldb, pgdialect.New()), nil

	case DriverSQLite, "":
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil

	default:
		return nil, errors.New("unsupported database driver", errors.CategoryBadInput).
			WithTextCode("UNSUPPORTED_DRIVER").
			WithMetadata(map[string]any{"driver": cfg.Driver})
	}
}
