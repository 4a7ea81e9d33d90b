package database

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	"usersvc/internal/platform/database/migrations"
)

func init() {
	goose.SetBaseFS(migrations.FS)
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "set dialect").Wrap(err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "migrate up").Wrap(err)
	}
	return nil
}

// Recreate rolls every migration back and applies them again, leaving an
// empty schema.
func Recreate(ctx context.Context, db *sql.DB) error {
	if err := goose.SetDialect("pgx"); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "set dialect").Wrap(err)
	}
	if err := goose.ResetContext(ctx, db, "."); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "reset").Wrap(err)
	}
	return Migrate(ctx, db)
}
