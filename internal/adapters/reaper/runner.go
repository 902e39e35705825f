// Package reaper wires the retention reaper to the Postgres repositories.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/data"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
	"github.com/target/mmk-job-ingest/internal/service/reaper"
)

// Runner constructs the reaper service and runs the cleanup loop.
type Runner struct {
	svc    *reaper.Service
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	RunRecords core.RetentionRepository
	SmokeTests core.RetentionRepository
	Metrics    statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.RunRecords == nil || opts.SmokeTests == nil) {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RunRecords == nil {
		opts.RunRecords = data.NewRunRecordRepo(opts.DB)
	}
	if opts.SmokeTests == nil {
		opts.SmokeTests = data.NewSmokeTestRepo(opts.DB)
	}

	svc, err := reaper.New(reaper.Options{
		RunRecords: opts.RunRecords,
		SmokeTests: opts.SmokeTests,
		Config:     opts.Config,
		Logger:     opts.Logger,
		Metrics:    opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}
	return &Runner{svc: svc, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.svc.Run(ctx)
}

// RunOnce performs a single cleanup pass, for the admin CLI.
func (r *Runner) RunOnce(ctx context.Context) (reaper.Report, error) {
	return r.svc.RunOnce(ctx)
}
