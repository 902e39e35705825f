package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/data/pgxutil"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	apperrors "github.com/target/mmk-job-ingest/internal/errors"
)

const upsertPostingSQL = `
	INSERT INTO job_postings (
		fingerprint, title, company, location, url, extra, first_seen_at, last_seen_at, repost_count
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
	ON CONFLICT (fingerprint) DO UPDATE SET
		last_seen_at = GREATEST(job_postings.last_seen_at, EXCLUDED.last_seen_at),
		repost_count = GREATEST(job_postings.repost_count, EXCLUDED.repost_count)`

const upsertPostingSourceSQL = `
	INSERT INTO job_posting_sources (fingerprint, source, url, first_seen_at, last_seen_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (fingerprint, source) DO UPDATE SET
		url = EXCLUDED.url,
		last_seen_at = GREATEST(job_posting_sources.last_seen_at, EXCLUDED.last_seen_at)`

// PostingRepo is the Postgres posting sink. Each fingerprint is stored once; the sources that
// surfaced it are tracked alongside.
type PostingRepo struct {
	DB *sql.DB
}

var _ core.PostingSink = (*PostingRepo)(nil)

// NewPostingRepo creates a new PostingRepo.
func NewPostingRepo(db *sql.DB) *PostingRepo {
	return &PostingRepo{DB: db}
}

// Persist upserts one cycle's postings in a single transaction. Rows are written in
// fingerprint order so concurrent batches from different sources lock overlapping rows in
// the same order.
func (r *PostingRepo) Persist(ctx context.Context, postings []model.IngestedPosting) error {
	if len(postings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range lockOrder(postings) {
		if p.Fingerprint == "" {
			return ErrEmptyFingerprint
		}
		extra, err := encodeExtra(p.Raw.Extra)
		if err != nil {
			return fmt.Errorf("posting %s: %w", p.Fingerprint, err)
		}
		observed := p.ObservedAt.UTC()
		batch.Queue(upsertPostingSQL,
			p.Fingerprint, p.Raw.Title, p.Raw.Company, p.Raw.Location, p.Raw.URL, extra, observed, p.RepostCount)
		batch.Queue(upsertPostingSourceSQL, p.Fingerprint, p.Source, p.Raw.URL, observed)
	}

	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			results := tx.SendBatch(ctx, batch)
			for range batch.Len() {
				if _, err := results.Exec(); err != nil {
					_ = results.Close()
					return err
				}
			}
			return results.Close()
		},
	})
	if err != nil {
		return fmt.Errorf("persist postings: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Get returns the stored posting for a fingerprint, including the sources that surfaced it.
func (r *PostingRepo) Get(ctx context.Context, fingerprint string) (*model.StoredPosting, error) {
	var out model.StoredPosting
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		ReadOnly: true,
		Fn: func(tx pgx.Tx) error {
			var extra []byte
			err := tx.QueryRow(ctx, `
				SELECT fingerprint, title, company, location, url, extra, first_seen_at, last_seen_at, repost_count
				FROM job_postings WHERE fingerprint = $1`, fingerprint).Scan(
				&out.Fingerprint, &out.Title, &out.Company, &out.Location, &out.URL, &extra,
				&out.FirstSeenAt, &out.LastSeenAt, &out.RepostCount,
			)
			if err != nil {
				return err
			}
			if len(extra) > 0 {
				if err := json.Unmarshal(extra, &out.Extra); err != nil {
					return fmt.Errorf("decode extra: %w", err)
				}
			}

			rows, err := tx.Query(ctx,
				`SELECT source FROM job_posting_sources WHERE fingerprint = $1 ORDER BY source`, fingerprint)
			if err != nil {
				return err
			}
			out.Sources, err = pgx.CollectRows(rows, pgx.RowTo[string])
			return err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get posting: %w", apperrors.MapDBError(err))
	}
	return &out, nil
}

// lockOrder returns the postings sorted by fingerprint without reordering the caller's slice.
func lockOrder(postings []model.IngestedPosting) []*model.IngestedPosting {
	out := make([]*model.IngestedPosting, len(postings))
	for i := range postings {
		out[i] = &postings[i]
	}
	slices.SortStableFunc(out, func(a, b *model.IngestedPosting) int {
		return strings.Compare(a.Fingerprint, b.Fingerprint)
	})
	return out
}

// encodeExtra returns nil for empty maps so the column stays NULL.
func encodeExtra(extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("encode extra: %w", err)
	}
	return b, nil
}
