// Package reaper deletes run records and smoke test results that have aged out of
// the health window.
package reaper

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/core"
	obserrors "github.com/target/mmk-job-ingest/internal/observability/errors"
	"github.com/target/mmk-job-ingest/internal/observability/metrics"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
)

// Options groups dependencies for Service.
type Options struct {
	RunRecords core.RetentionRepository // Required
	SmokeTests core.RetentionRepository // Required
	Config     config.ReaperConfig      // Required
	Logger     *slog.Logger             // Optional
	Metrics    statsd.Sink              // Optional
	Now        func() time.Time         // Optional
}

// Service prunes retention-bound tables on an interval.
type Service struct {
	runRecords core.RetentionRepository
	smokeTests core.RetentionRepository
	config     config.ReaperConfig
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time
}

// Report is the outcome of one cleanup pass.
type Report struct {
	RunRecords int64
	SmokeTests int64
	Elapsed    time.Duration
}

// New constructs a Service.
func New(opts Options) (*Service, error) {
	if opts.RunRecords == nil {
		return nil, errors.New("run record repository is required")
	}
	if opts.SmokeTests == nil {
		return nil, errors.New("smoke test repository is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		runRecords: opts.RunRecords,
		smokeTests: opts.SmokeTests,
		config:     opts.Config,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *Service) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service",
		"interval", s.config.Interval,
		"run_record_max_age", s.config.RunRecordMaxAge,
		"smoke_test_max_age", s.config.SmokeTestMaxAge,
	)

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(ctx, err, "initial cleanup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(ctx, err, "cleanup")
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval so instances started
// together do not contend for the retention locks.
func (s *Service) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// RunOnce performs one cleanup pass over every table. Steps run independently; a failing
// step does not skip the others.
func (s *Service) RunOnce(ctx context.Context) (Report, error) {
	start := time.Now()
	now := s.now()

	var (
		report Report
		errs   []error
	)
	steps := []struct {
		operation string
		repo      core.RetentionRepository
		maxAge    time.Duration
		count     *int64
	}{
		{"delete_run_records", s.runRecords, s.config.RunRecordMaxAge, &report.RunRecords},
		{"delete_smoke_tests", s.smokeTests, s.config.SmokeTestMaxAge, &report.SmokeTests},
	}

	for _, step := range steps {
		count, err := s.drain(ctx, step.repo, now.Add(-step.maxAge))
		*step.count = count
		s.emitOperationMetric(step.operation, count, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.operation, err))
			continue
		}
		if count > 0 {
			s.logger.InfoContext(ctx, "pruned expired rows",
				"operation", step.operation,
				"count", count,
				"max_age", step.maxAge,
			)
		}
	}

	report.Elapsed = time.Since(start)
	err := errors.Join(errs...)
	s.emitCleanupMetric(report, err)
	if err != nil {
		return report, fmt.Errorf("cleanup failed: %w", err)
	}
	return report, nil
}

// drain deletes in batches until a batch comes back empty.
func (s *Service) drain(ctx context.Context, repo core.RetentionRepository, before time.Time) (int64, error) {
	var total int64
	for {
		count, err := repo.DeleteBefore(ctx, core.DeleteBeforeParams{
			Before:    before,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

func (s *Service) emitCleanupMetric(r Report, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case err != nil:
		result = metrics.ResultError
	case r.RunRecords+r.SmokeTests == 0:
		result = metrics.ResultNoop
	}
	tags := map[string]string{"result": result}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	s.metrics.Timing("reaper.cleanup_duration", r.Elapsed, metrics.CloneTags(tags))
	if err == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.now().Unix()), nil)
	}
}

func (s *Service) emitOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if count > 0 {
		s.metrics.Count("reaper.rows_deleted", count, metrics.CloneTags(tags))
	}
}

func (s *Service) logCleanupError(ctx context.Context, err error, label string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.DebugContext(ctx, label+" cancelled by context", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, label+" failed", "error", err)
}
