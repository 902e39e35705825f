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

// SmokeTestRepo persists smoke test results, kept apart from run records.
type SmokeTestRepo struct {
	DB *sql.DB
}

var _ core.SmokeTestRepository = (*SmokeTestRepo)(nil)

// NewSmokeTestRepo creates a new SmokeTestRepo.
func NewSmokeTestRepo(db *sql.DB) *SmokeTestRepo {
	return &SmokeTestRepo{DB: db}
}

// Insert writes one smoke test result.
func (r *SmokeTestRepo) Insert(ctx context.Context, res *model.SmokeTestResult) error {
	if res == nil {
		return ErrSmokeTestRequired
	}
	if res.Source == "" {
		return ErrSourceRequired
	}

	category := res.ErrorCategory
	if category == "" {
		category = model.ErrorCategoryNone
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO smoke_test_results (id, source, result, duration_ms, detail, error_category, ran_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		res.ID, res.Source, string(res.Result), res.DurationMs, res.Detail, string(category), res.RanAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert smoke test result: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Latest returns the most recent result for source, or nil when none exists.
func (r *SmokeTestRepo) Latest(ctx context.Context, source string) (*model.SmokeTestResult, error) {
	var out model.SmokeTestResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id::text AS id, source, result, duration_ms, detail, error_category, ran_at
			FROM smoke_test_results
			WHERE source = $1
			ORDER BY ran_at DESC
			LIMIT 1`, source)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SmokeTestResult])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest smoke test: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// DeleteBefore deletes up to params.BatchSize results that ran before params.Before.
func (r *SmokeTestRepo) DeleteBefore(ctx context.Context, params core.DeleteBeforeParams) (int64, error) {
	return deleteBatch(ctx, r.DB, batchDelete{
		lockMinor: advisoryLockReaperSmokeTests,
		query: `
			DELETE FROM smoke_test_results
			WHERE id IN (
				SELECT id FROM smoke_test_results
				WHERE ran_at < $1
				ORDER BY ran_at
				LIMIT $2
			)`,
		params: params,
	})
}
