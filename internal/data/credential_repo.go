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

// CredentialRepo stores credential validity metadata. The secret itself is never stored.
type CredentialRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

var _ core.CredentialStore = (*CredentialRepo)(nil)

// NewCredentialRepo creates a new CredentialRepo.
func NewCredentialRepo(db *sql.DB) *CredentialRepo {
	return &CredentialRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewCredentialRepoWithTimeProvider creates a CredentialRepo with a custom TimeProvider (useful for testing).
func NewCredentialRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *CredentialRepo {
	return &CredentialRepo{DB: db, timeProvider: tp}
}

// Get returns the credential metadata for source, or nil when none is on file.
func (r *CredentialRepo) Get(ctx context.Context, source string) (*model.CredentialHealth, error) {
	var out model.CredentialHealth
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT source, credential_type, issued_at, expires_at, warning_threshold_days
			FROM source_credentials
			WHERE source = $1`, source)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CredentialHealth])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credential: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// Upsert records credential metadata for a source. A zero IssuedAt is stamped with the current time.
func (r *CredentialRepo) Upsert(ctx context.Context, cred *model.CredentialHealth) error {
	if cred == nil || cred.ExpiresAt.IsZero() {
		return ErrCredentialInvalid
	}
	if cred.Source == "" {
		return ErrSourceRequired
	}
	if cred.WarningThresholdDays < 0 {
		return apperrors.Validationf("warning threshold days must be >= 0, got %d", cred.WarningThresholdDays)
	}

	issuedAt := cred.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = r.timeProvider.Now()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO source_credentials (source, credential_type, issued_at, expires_at, warning_threshold_days)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source) DO UPDATE SET
			credential_type = EXCLUDED.credential_type,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			warning_threshold_days = EXCLUDED.warning_threshold_days`,
		cred.Source, cred.CredentialType, issuedAt.UTC(), cred.ExpiresAt.UTC(), cred.WarningThresholdDays,
	)
	if err != nil {
		return fmt.Errorf("upsert credential: %w", apperrors.MapDBError(err))
	}
	cred.IssuedAt = issuedAt
	return nil
}
