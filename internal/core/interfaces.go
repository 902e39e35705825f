package core

import (
	"context"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// This file contains the ports between the ingestion core and its collaborators.
// Services depend on these interfaces, never on concrete adapters or repositories.

// SourceAdapter fetches postings for one source's current configuration.
// Failures should be returned as *failure.Error so the category survives unmodified.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context) ([]model.RawPosting, error)
}

// Prober is an optional SourceAdapter extension for cheap connectivity and shape checks.
type Prober interface {
	Probe(ctx context.Context) error
}

// PostingSink receives the per-cycle storage tuples.
type PostingSink interface {
	Persist(ctx context.Context, postings []model.IngestedPosting) error
}

// ListRunRecordsParams groups parameters for RunRecordRepository.ListSince to keep param count ≤3.
type ListRunRecordsParams struct {
	Source string // Optional: empty lists every source
	Since  time.Time
	Limit  int
}

// DeleteBeforeParams groups parameters for retention deletes.
type DeleteBeforeParams struct {
	Before    time.Time
	BatchSize int
}

// RetentionRepository deletes rows older than a cutoff, at most BatchSize per call.
type RetentionRepository interface {
	DeleteBefore(ctx context.Context, params DeleteBeforeParams) (int64, error)
}

// RunRecordRepository persists immutable run records.
type RunRecordRepository interface {
	Insert(ctx context.Context, rec *model.RunRecord) error
	// ListSince returns records ordered by source, then completed_at ascending.
	ListSince(ctx context.Context, params ListRunRecordsParams) ([]model.RunRecord, error)
	DeleteBefore(ctx context.Context, params DeleteBeforeParams) (int64, error)
}

// SmokeTestRepository persists smoke test results separately from run records.
type SmokeTestRepository interface {
	Insert(ctx context.Context, res *model.SmokeTestResult) error
	// Latest returns nil without error when the source has no results.
	Latest(ctx context.Context, source string) (*model.SmokeTestResult, error)
	DeleteBefore(ctx context.Context, params DeleteBeforeParams) (int64, error)
}

// CredentialStore reads credential validity metadata. It never exposes the secret.
type CredentialStore interface {
	// Get returns nil without error when the source has no credential on file.
	Get(ctx context.Context, source string) (*model.CredentialHealth, error)
}

// SourceStateRepository persists operator enable/disable overrides.
type SourceStateRepository interface {
	// Get returns nil without error when no override exists.
	Get(ctx context.Context, source string) (*model.SourceOverride, error)
	List(ctx context.Context) ([]model.SourceOverride, error)
	SetEnabled(ctx context.Context, source string, enabled bool) error
}
