package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/data/pgxutil"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	apperrors "github.com/target/mmk-job-ingest/internal/errors"
)

// Advisory lock namespace for retention deletes.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
const (
	advisoryLockReaperMajor      = 1000
	advisoryLockReaperRunRecords = 1 // minor key for RunRecordRepo.DeleteBefore
	advisoryLockReaperSmokeTests = 2 // minor key for SmokeTestRepo.DeleteBefore
)

const runRecordColumns = `id::text AS id, source, started_at, completed_at, status, duration_ms,
	postings_found, postings_new, error_category, error_detail, attempts`

// RunRecordRepo persists run records in Postgres.
type RunRecordRepo struct {
	DB *sql.DB
}

var _ core.RunRecordRepository = (*RunRecordRepo)(nil)

// NewRunRecordRepo creates a new RunRecordRepo.
func NewRunRecordRepo(db *sql.DB) *RunRecordRepo {
	return &RunRecordRepo{DB: db}
}

// Insert writes one run record. Records are immutable once written.
func (r *RunRecordRepo) Insert(ctx context.Context, rec *model.RunRecord) error {
	if rec == nil {
		return ErrRunRecordRequired
	}
	if rec.Source == "" {
		return ErrSourceRequired
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO run_records (
			id, source, started_at, completed_at, status, duration_ms,
			postings_found, postings_new, error_category, error_detail, attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.Source, rec.StartedAt.UTC(), rec.CompletedAt.UTC(), string(rec.Status), rec.DurationMs,
		rec.PostingsFound, rec.PostingsNew, string(rec.ErrorCategory), rec.ErrorDetail, rec.Attempts,
	)
	if err != nil {
		return fmt.Errorf("insert run record: %w", apperrors.MapDBError(err))
	}
	return nil
}

// ListSince returns records completed at or after params.Since, ordered by source and then
// completion time. A zero Limit returns every matching record.
func (r *RunRecordRepo) ListSince(ctx context.Context, params core.ListRunRecordsParams) ([]model.RunRecord, error) {
	var limit any
	if params.Limit > 0 {
		limit = params.Limit
	}

	query := `SELECT ` + runRecordColumns + `
		FROM run_records
		WHERE completed_at >= $1
		  AND ($2::text = '' OR source = $2)
		ORDER BY source, completed_at, id
		LIMIT $3`

	var out []model.RunRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, params.Since.UTC(), params.Source, limit)
		if err != nil {
			return fmt.Errorf("query run records: %w", err)
		}
		defer rows.Close()

		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.RunRecord])
		if err != nil {
			return fmt.Errorf("collect run records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// DeleteBefore deletes up to params.BatchSize records completed before params.Before.
// Returns 0 without error when another instance holds the retention lock.
func (r *RunRecordRepo) DeleteBefore(ctx context.Context, params core.DeleteBeforeParams) (int64, error) {
	return deleteBatch(ctx, r.DB, batchDelete{
		lockMinor: advisoryLockReaperRunRecords,
		query: `
			DELETE FROM run_records
			WHERE id IN (
				SELECT id FROM run_records
				WHERE completed_at < $1
				ORDER BY completed_at
				LIMIT $2
			)`,
		params: params,
	})
}

// batchDelete groups parameters for deleteBatch to keep param count ≤3.
type batchDelete struct {
	lockMinor int
	query     string
	params    core.DeleteBeforeParams
}

func deleteBatch(ctx context.Context, db *sql.DB, d batchDelete) (int64, error) {
	if d.params.BatchSize < 1 {
		return 0, fmt.Errorf("batch size must be positive, got %d", d.params.BatchSize)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, db, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
				advisoryLockReaperMajor, d.lockMinor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}

			res, err := tx.ExecContext(ctx, d.query, d.params.Before.UTC(), d.params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete batch: %w", err)
			}
			rowsAffected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, apperrors.MapDBError(err)
	}
	return rowsAffected, nil
}
