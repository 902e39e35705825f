package data

import (
	"context"
	"database/sql"

	"github.com/target/mmk-job-ingest/internal/migrate"
)

// RunMigrations brings the run record, smoke test, override, and posting tables up to date.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}

// MigrationStatus reports which embedded migrations have been applied.
func MigrationStatus(ctx context.Context, db *sql.DB) ([]migrate.Migration, error) {
	return migrate.Status(ctx, db)
}
