package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/data/pgxutil"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	apperrors "github.com/target/mmk-job-ingest/internal/errors"
)

// SourceStateRepo persists operator enable/disable overrides.
type SourceStateRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.SourceStateRepository = (*SourceStateRepo)(nil)

// NewSourceStateRepo creates a new SourceStateRepo.
func NewSourceStateRepo(db *sql.DB) *SourceStateRepo {
	return &SourceStateRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewSourceStateRepoWithTimeProvider creates a SourceStateRepo with a custom TimeProvider (useful for testing).
func NewSourceStateRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *SourceStateRepo {
	return &SourceStateRepo{DB: db, timeProvider: tp}
}

// Get returns the override for source, or nil when the operator never toggled it.
func (r *SourceStateRepo) Get(ctx context.Context, source string) (*model.SourceOverride, error) {
	var out model.SourceOverride
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT source, enabled, updated_at FROM source_overrides WHERE source = $1`, source)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SourceOverride])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get source override: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// List returns every override ordered by source.
func (r *SourceStateRepo) List(ctx context.Context) ([]model.SourceOverride, error) {
	var out []model.SourceOverride
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx,
			`SELECT source, enabled, updated_at FROM source_overrides ORDER BY source`)
		if err != nil {
			return fmt.Errorf("query source overrides: %w", err)
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.SourceOverride])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list source overrides: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// SetEnabled records the operator's toggle for source.
func (r *SourceStateRepo) SetEnabled(ctx context.Context, source string, enabled bool) error {
	if source == "" {
		return ErrSourceRequired
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO source_overrides (source, enabled, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at`,
		source, enabled, r.timeProvider.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set source enabled: %w", apperrors.MapDBError(err))
	}
	return nil
}
