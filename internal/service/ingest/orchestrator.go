// Package ingest runs one independent fetch loop per source and ties the rate limiter,
// retry executor, deduplicator, and health tracker together.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/domain/dedup"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/domain/ratelimit"
	"github.com/target/mmk-job-ingest/internal/domain/retry"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
	"github.com/target/mmk-job-ingest/internal/service/health"
)

var (
	// ErrUnknownSource is returned for source names that are not configured.
	ErrUnknownSource = errors.New("ingest: unknown source")
	// ErrSourceDisabled is returned when a manual trigger targets a disabled source.
	ErrSourceDisabled = errors.New("ingest: source is disabled")
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("ingest: orchestrator already running")
)

// Source pairs a source's configuration with the adapter that fetches it.
type Source struct {
	Config  model.SourceConfig
	Adapter core.SourceAdapter
}

// Options groups dependencies for Orchestrator.
type Options struct {
	Config   config.IngestConfig      // Required: retry policy and start jitter
	Sources  []Source                 // Required: at least one
	Limiter  *ratelimit.Limiter       // Required
	Dedup    *dedup.Deduplicator      // Required
	Tracker  *health.Tracker          // Required
	Executor *retry.Executor          // Optional: defaults to retry.NewExecutor
	Sink     core.PostingSink         // Optional: postings are dropped when nil
	Runs     core.RunRecordRepository // Optional: run records are only kept in memory when nil
	Metrics  statsd.Sink              // Optional
	Logger   *slog.Logger             // Optional
	Now      func() time.Time         // Optional
}

// Orchestrator owns the per-source cycle loops and the operator actions on them.
type Orchestrator struct {
	policy      retry.Policy
	startJitter float64

	limiter  *ratelimit.Limiter
	dedup    *dedup.Deduplicator
	tracker  *health.Tracker
	executor *retry.Executor
	sink     core.PostingSink
	runs     core.RunRecordRepository
	metrics  statsd.Sink
	logger   *slog.Logger
	now      func() time.Time

	runners map[string]*runner
	order   []string
	running atomic.Bool
}

// runner is the loop state for one source.
type runner struct {
	cfg     model.SourceConfig
	adapter core.SourceAdapter
	wake    chan struct{}

	mu    sync.RWMutex
	state model.SourceState
}

func (r *runner) setState(s model.SourceState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *runner) currentState() model.SourceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// poke wakes the loop if it is parked or idle. Extra pokes coalesce.
func (r *runner) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// New validates the sources and registers each one with the limiter and tracker.
func New(opts Options) (*Orchestrator, error) {
	if opts.Limiter == nil {
		return nil, errors.New("rate limiter is required")
	}
	if opts.Dedup == nil {
		return nil, errors.New("deduplicator is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("health tracker is required")
	}
	if len(opts.Sources) == 0 {
		return nil, errors.New("at least one source is required")
	}

	policy := opts.Config.RetryPolicy()
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ingest_orchestrator")

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	executor := opts.Executor
	if executor == nil {
		executor = retry.NewExecutor(retry.Options{Logger: logger, Now: now})
	}

	o := &Orchestrator{
		policy:      policy,
		startJitter: opts.Config.StartJitter,
		limiter:     opts.Limiter,
		dedup:       opts.Dedup,
		tracker:     opts.Tracker,
		executor:    executor,
		sink:        opts.Sink,
		runs:        opts.Runs,
		metrics:     opts.Metrics,
		logger:      logger,
		now:         now,
		runners:     make(map[string]*runner, len(opts.Sources)),
	}

	for i, src := range opts.Sources {
		if err := o.add(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	sort.Strings(o.order)
	return o, nil
}

func (o *Orchestrator) add(src Source) error {
	if src.Adapter == nil {
		return fmt.Errorf("source %s: adapter is required", src.Config.Name)
	}
	if err := src.Config.Validate(); err != nil {
		return err
	}
	name := src.Config.Name
	if _, dup := o.runners[name]; dup {
		return fmt.Errorf("duplicate source name %q", name)
	}

	err := o.limiter.Register(name, ratelimit.BucketConfig{
		Capacity:        src.Config.RateLimit.Capacity,
		RefillPerSecond: src.Config.RateLimit.RefillPerSecond,
	})
	if err != nil {
		return fmt.Errorf("source %s: %w", name, err)
	}

	r := &runner{
		cfg:     src.Config,
		adapter: src.Adapter,
		wake:    make(chan struct{}, 1),
		state:   model.SourceStateIdle,
	}
	o.tracker.Register(name, o.probeFor(r), src.Config.Disabled)
	o.runners[name] = r
	o.order = append(o.order, name)
	return nil
}

// Run starts one loop per source and blocks until ctx is cancelled.
// A failing source never stops the others. Returns nil on graceful shutdown.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer o.running.Store(false)

	o.logger.InfoContext(ctx, "starting ingestion orchestrator", "sources", len(o.order))

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.order {
		r := o.runners[name]
		g.Go(func() error {
			o.loop(gctx, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	o.logger.InfoContext(ctx, "ingestion orchestrator stopping", "reason", ctx.Err())
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// loop drives one source until ctx ends. The next cycle is due one interval after
// the previous cycle started; a poke runs it early.
func (o *Orchestrator) loop(ctx context.Context, r *runner) {
	if !o.idle(ctx, r, o.startDelay(r.cfg.Interval)) {
		return
	}

	for {
		if !o.tracker.IsEnabled(r.cfg.Name) {
			r.setState(model.SourceStateDisabled)
			o.logger.InfoContext(ctx, "source disabled, parking", "source", r.cfg.Name)
			select {
			case <-ctx.Done():
				return
			case <-r.wake:
				continue
			}
		}

		started := time.Now()
		o.runCycle(ctx, r)
		if ctx.Err() != nil {
			return
		}
		if !o.idle(ctx, r, r.cfg.Interval-time.Since(started)) {
			return
		}
	}
}

// idle waits up to d for the next cycle. It reports false once ctx has ended.
func (o *Orchestrator) idle(ctx context.Context, r *runner, d time.Duration) bool {
	r.setState(model.SourceStateIdle)
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-r.wake:
	}
	return true
}

// startDelay spreads first cycles so sources sharing an interval do not fire together.
func (o *Orchestrator) startDelay(interval time.Duration) time.Duration {
	maxJitter := int64(float64(interval) * o.startJitter)
	if maxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(maxJitter))
}

func (o *Orchestrator) lookup(source string) (*runner, error) {
	r, ok := o.runners[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return r, nil
}

// Sources returns the configured source names in sorted order.
func (o *Orchestrator) Sources() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

// State returns the source's current cycle state.
func (o *Orchestrator) State(source string) (model.SourceState, error) {
	r, err := o.lookup(source)
	if err != nil {
		return "", err
	}
	return r.currentState(), nil
}

// SetEnabled persists the operator override and wakes the source so it parks or resumes
// without waiting out its interval. A cycle already in flight completes.
func (o *Orchestrator) SetEnabled(ctx context.Context, source string, enabled bool) error {
	r, err := o.lookup(source)
	if err != nil {
		return err
	}
	if err := o.tracker.SetEnabled(ctx, source, enabled); err != nil {
		return err
	}
	r.poke()
	return nil
}

// TriggerNow runs the source's next cycle without waiting for its interval.
// The rate limiter still applies.
func (o *Orchestrator) TriggerNow(ctx context.Context, source string) error {
	r, err := o.lookup(source)
	if err != nil {
		return err
	}
	if !o.tracker.IsEnabled(source) {
		return fmt.Errorf("%w: %s", ErrSourceDisabled, source)
	}
	o.logger.InfoContext(ctx, "manual cycle requested", "source", source)
	r.poke()
	return nil
}

// ResetRateLimit refills the source's token bucket.
func (o *Orchestrator) ResetRateLimit(ctx context.Context, source string) error {
	if _, err := o.lookup(source); err != nil {
		return err
	}
	if err := o.limiter.Reset(source); err != nil {
		return err
	}
	o.logger.InfoContext(ctx, "rate limit reset", "source", source)
	return nil
}

// RunSmokeTest probes the source once. The result never counts toward its success rate.
func (o *Orchestrator) RunSmokeTest(ctx context.Context, source string) (model.SmokeTestResult, error) {
	if _, err := o.lookup(source); err != nil {
		return model.SmokeTestResult{}, err
	}
	return o.tracker.RunSmokeTest(ctx, source)
}

// Health returns the source's current health.
func (o *Orchestrator) Health(ctx context.Context, source string) (model.SourceHealth, error) {
	if _, err := o.lookup(source); err != nil {
		return model.SourceHealth{}, err
	}
	return o.tracker.Health(ctx, source)
}

// HealthAll returns health for every source in name order.
func (o *Orchestrator) HealthAll(ctx context.Context) []model.SourceHealth {
	return o.tracker.HealthAll(ctx)
}

// CredentialHealth returns the source's credential metadata, or nil when none is on file.
func (o *Orchestrator) CredentialHealth(ctx context.Context, source string) (*model.CredentialHealth, error) {
	if _, err := o.lookup(source); err != nil {
		return nil, err
	}
	return o.tracker.CredentialHealth(ctx, source)
}
