package store

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"dormtrack/internal/store/migrations"
)

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
