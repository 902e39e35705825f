// Package health tracks per-source run history and derives operational health on read.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/metrics"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
)

var (
	// ErrUnknownSource is returned for sources that were never registered.
	ErrUnknownSource = errors.New("health: unknown source")
	// ErrOutOfOrder is returned when a run record completes before the source's latest record.
	ErrOutOfOrder = errors.New("health: run record out of order")
	// ErrNoProbe is returned when a smoke test is requested for a source without a probe.
	ErrNoProbe = errors.New("health: no smoke test probe registered")
)

// ProbeFunc runs a single smoke test against a source.
type ProbeFunc func(ctx context.Context) error

// TransitionFunc observes status changes and credential warnings turning on.
type TransitionFunc func(prev, cur model.SourceHealth)

// BucketReader exposes read-only rate limiter state.
type BucketReader interface {
	Snapshot(source string) (model.BucketSnapshot, bool)
}

// TrackerOptions groups dependencies for Tracker. Only Config is required;
// nil repositories disable the corresponding persistence.
type TrackerOptions struct {
	Config      config.HealthConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
	Credentials core.CredentialStore
	SmokeTests  core.SmokeTestRepository
	States      core.SourceStateRepository
	Runs        core.RunRecordRepository // read for Hydrate only
	Limiter     BucketReader
	Now         func() time.Time
}

// Tracker is the per-source health and credential tracker.
type Tracker struct {
	cfg         config.HealthConfig
	logger      *slog.Logger
	metrics     statsd.Sink
	credentials core.CredentialStore
	smokeTests  core.SmokeTestRepository
	states      core.SourceStateRepository
	runs        core.RunRecordRepository
	limiter     BucketReader
	now         func() time.Time

	mu      sync.RWMutex
	sources map[string]*sourceState

	smoke singleflight.Group

	listenersMu sync.RWMutex
	listeners   []TransitionFunc
}

// sourceState is owned by one source. Only that source's orchestrator goroutine appends runs.
type sourceState struct {
	mu        sync.RWMutex
	runs      []model.RunRecord
	disabled  bool
	probe     ProbeFunc
	lastSmoke *model.SmokeTestResult

	// last is the most recently published health, used to detect transitions.
	last      model.SourceHealth
	published bool
}

// NewTracker constructs a Tracker.
func NewTracker(opts TrackerOptions) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cfg := opts.Config
	cfg.Sanitize()

	return &Tracker{
		cfg:         cfg,
		logger:      logger.With("component", "health_tracker"),
		metrics:     opts.Metrics,
		credentials: opts.Credentials,
		smokeTests:  opts.SmokeTests,
		states:      opts.States,
		runs:        opts.Runs,
		limiter:     opts.Limiter,
		now:         now,
		sources:     make(map[string]*sourceState),
	}
}

// Register adds a source. Registering an existing source replaces its probe and
// configured disabled flag but keeps its history.
func (t *Tracker) Register(source string, probe ProbeFunc, disabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sources[source]
	if !ok {
		st = &sourceState{}
		t.sources[source] = st
	}
	st.mu.Lock()
	st.probe = probe
	st.disabled = disabled
	st.mu.Unlock()
}

// Sources returns the registered source names in sorted order.
func (t *Tracker) Sources() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.sources))
	for name := range t.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OnTransition registers fn to be called, outside any lock, whenever a source's status
// changes or its credential enters the warning window.
func (t *Tracker) OnTransition(fn TransitionFunc) {
	if fn == nil {
		return
	}
	t.listenersMu.Lock()
	defer t.listenersMu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// RecordRun appends a completed run for its source. Records must arrive in completion order.
func (t *Tracker) RecordRun(ctx context.Context, rec model.RunRecord) error {
	st, err := t.lookup(rec.Source)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if n := len(st.runs); n > 0 && rec.CompletedAt.Before(st.runs[n-1].CompletedAt) {
		last := st.runs[n-1].CompletedAt
		st.mu.Unlock()
		return fmt.Errorf("%w: %s completed at %s, latest is %s",
			ErrOutOfOrder, rec.Source, rec.CompletedAt.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	}
	st.runs = append(st.runs, rec)
	st.runs = t.prune(st.runs)
	st.mu.Unlock()

	t.publish(ctx, rec.Source, st)
	return nil
}

// Health computes the current health of source.
func (t *Tracker) Health(ctx context.Context, source string) (model.SourceHealth, error) {
	st, err := t.lookup(source)
	if err != nil {
		return model.SourceHealth{}, err
	}
	return t.health(ctx, source, st), nil
}

// HealthAll computes health for every registered source, sorted by name.
func (t *Tracker) HealthAll(ctx context.Context) []model.SourceHealth {
	names := t.Sources()
	out := make([]model.SourceHealth, 0, len(names))
	for _, name := range names {
		h, err := t.Health(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out
}

// CredentialHealth returns credential metadata for source, or nil when none is on file.
// A zero warning threshold falls back to the configured default.
func (t *Tracker) CredentialHealth(ctx context.Context, source string) (*model.CredentialHealth, error) {
	if _, err := t.lookup(source); err != nil {
		return nil, err
	}
	if t.credentials == nil {
		return nil, nil
	}
	cred, err := t.credentials.Get(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("get credential for %s: %w", source, err)
	}
	if cred == nil {
		return nil, nil
	}
	out := *cred
	if out.WarningThresholdDays <= 0 {
		out.WarningThresholdDays = t.cfg.CredentialWarningDays
	}
	return &out, nil
}

// SetEnabled toggles the operator override for source. The override is persisted
// before the in-memory state changes, so a failed write leaves the source untouched.
func (t *Tracker) SetEnabled(ctx context.Context, source string, enabled bool) error {
	st, err := t.lookup(source)
	if err != nil {
		return err
	}
	if t.states != nil {
		if err := t.states.SetEnabled(ctx, source, enabled); err != nil {
			return fmt.Errorf("persist enabled=%t for %s: %w", enabled, source, err)
		}
	}

	st.mu.Lock()
	st.disabled = !enabled
	st.mu.Unlock()

	t.logger.InfoContext(ctx, "source enabled state changed", "source", source, "enabled", enabled)
	t.publish(ctx, source, st)
	return nil
}

// IsEnabled reports whether source is registered and not disabled.
func (t *Tracker) IsEnabled(source string) bool {
	st, err := t.lookup(source)
	if err != nil {
		return false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	return !st.disabled
}

// Hydrate loads the run window and operator overrides for registered sources,
// then records a baseline status without firing transitions.
func (t *Tracker) Hydrate(ctx context.Context) error {
	var errs []error
	if err := t.hydrateRuns(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.hydrateOverrides(ctx); err != nil {
		errs = append(errs, err)
	}

	for _, name := range t.Sources() {
		st, err := t.lookup(name)
		if err != nil {
			continue
		}
		if t.smokeTests != nil {
			latest, err := t.smokeTests.Latest(ctx, name)
			if err != nil {
				errs = append(errs, fmt.Errorf("load latest smoke test for %s: %w", name, err))
			} else if latest != nil {
				st.mu.Lock()
				st.lastSmoke = latest
				st.mu.Unlock()
			}
		}
		h := t.health(ctx, name, st)
		st.mu.Lock()
		st.last, st.published = h, true
		st.mu.Unlock()
	}

	return errors.Join(errs...)
}

func (t *Tracker) hydrateRuns(ctx context.Context) error {
	if t.runs == nil {
		return nil
	}
	recs, err := t.runs.ListSince(ctx, core.ListRunRecordsParams{Since: t.now().Add(-t.cfg.Window)})
	if err != nil {
		return fmt.Errorf("load run records: %w", err)
	}

	bySource := make(map[string][]model.RunRecord)
	for _, rec := range recs {
		bySource[rec.Source] = append(bySource[rec.Source], rec)
	}

	loaded := 0
	for name, list := range bySource {
		st, err := t.lookup(name)
		if err != nil {
			continue
		}
		slices.SortStableFunc(list, func(a, b model.RunRecord) int {
			return a.CompletedAt.Compare(b.CompletedAt)
		})
		st.mu.Lock()
		st.runs = t.prune(append(list, st.runs...))
		loaded += len(st.runs)
		st.mu.Unlock()
	}
	t.logger.InfoContext(ctx, "hydrated run records", "records", loaded, "sources", len(bySource))
	return nil
}

func (t *Tracker) hydrateOverrides(ctx context.Context) error {
	if t.states == nil {
		return nil
	}
	overrides, err := t.states.List(ctx)
	if err != nil {
		return fmt.Errorf("load source overrides: %w", err)
	}
	for _, o := range overrides {
		st, err := t.lookup(o.Source)
		if err != nil {
			continue
		}
		st.mu.Lock()
		st.disabled = !o.Enabled
		st.mu.Unlock()
	}
	return nil
}

func (t *Tracker) lookup(source string) (*sourceState, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return st, nil
}

// prune drops records outside the window and caps the slice length.
func (t *Tracker) prune(runs []model.RunRecord) []model.RunRecord {
	cutoff := t.now().Add(-t.cfg.Window)
	drop := 0
	for drop < len(runs) && runs[drop].CompletedAt.Before(cutoff) {
		drop++
	}
	if over := len(runs) - drop - t.cfg.MaxRecordsPerSource; over > 0 {
		drop += over
	}
	if drop == 0 {
		return runs
	}
	return slices.Clone(runs[drop:])
}

func (t *Tracker) health(ctx context.Context, source string, st *sourceState) model.SourceHealth {
	st.mu.RLock()
	snap := snapshot{
		Source:    source,
		Runs:      slices.Clone(st.runs),
		Disabled:  st.disabled,
		LastSmoke: st.lastSmoke,
	}
	st.mu.RUnlock()

	cred, err := t.CredentialHealth(ctx, source)
	if err != nil {
		t.logger.WarnContext(ctx, "credential lookup failed", "source", source, "error", err)
	}
	snap.Credential = cred

	if t.limiter != nil {
		if b, ok := t.limiter.Snapshot(source); ok {
			snap.RateLimit = &b
		}
	}

	return compute(t.cfg, snap, t.now())
}

// publish recomputes health and notifies listeners on a status change or a new credential warning.
func (t *Tracker) publish(ctx context.Context, source string, st *sourceState) {
	cur := t.health(ctx, source, st)

	st.mu.Lock()
	prev := st.last
	if !st.published {
		prev = model.SourceHealth{Source: source, Status: model.HealthStatusUnknown}
	}
	changed := prev.Status != cur.Status
	warned := cur.CredentialWarning && !prev.CredentialWarning
	st.last, st.published = cur, true
	st.mu.Unlock()

	if !changed && !warned {
		return
	}
	if changed {
		metrics.EmitHealthTransition(t.metrics, source, prev.Status, cur.Status)
		t.logger.InfoContext(ctx, "source health changed",
			"source", source,
			"from", prev.Status,
			"to", cur.Status,
			"success_rate", cur.SuccessRate,
			"sample_count", cur.SampleCount,
		)
	}

	t.listenersMu.RLock()
	listeners := slices.Clone(t.listeners)
	t.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn(prev, cur)
	}
}
