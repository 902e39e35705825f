package health

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/metrics"
)

// RunSmokeTest probes source once and stores the result separately from run records.
// Concurrent calls for the same source share one probe. The probe is bounded by the
// smoke test timeout and keeps running if this caller's ctx ends first, so other
// waiters still get a result.
func (t *Tracker) RunSmokeTest(ctx context.Context, source string) (model.SmokeTestResult, error) {
	st, err := t.lookup(source)
	if err != nil {
		return model.SmokeTestResult{}, err
	}
	st.mu.RLock()
	probe := st.probe
	st.mu.RUnlock()
	if probe == nil {
		return model.SmokeTestResult{}, fmt.Errorf("%w: %s", ErrNoProbe, source)
	}

	base := context.WithoutCancel(ctx)
	ch := t.smoke.DoChan(source, func() (any, error) {
		return t.runProbe(base, source, st, probe), nil
	})

	select {
	case <-ctx.Done():
		return model.SmokeTestResult{}, ctx.Err()
	case res := <-ch:
		return res.Val.(model.SmokeTestResult), nil //nolint:forcetypeassert // only this package writes the group
	}
}

func (t *Tracker) runProbe(ctx context.Context, source string, st *sourceState, probe ProbeFunc) model.SmokeTestResult {
	pctx, cancel := context.WithTimeout(ctx, t.cfg.SmokeTestTimeout)
	defer cancel()

	start := t.now()
	err := probe(pctx)
	if err == nil && pctx.Err() != nil {
		err = pctx.Err()
	}
	elapsed := t.now().Sub(start)

	res := model.SmokeTestResult{
		ID:            uuid.NewString(),
		Source:        source,
		Result:        model.SmokePass,
		DurationMs:    elapsed.Milliseconds(),
		ErrorCategory: model.ErrorCategoryNone,
		RanAt:         start,
	}
	if err != nil {
		res.Result = model.SmokeFail
		res.ErrorCategory = failure.Classify(err)
		res.Detail = failure.Detail(err)
	}

	st.mu.Lock()
	stored := res
	st.lastSmoke = &stored
	st.mu.Unlock()

	if t.smokeTests != nil {
		if err := t.smokeTests.Insert(ctx, &res); err != nil {
			t.logger.ErrorContext(ctx, "persist smoke test failed", "source", source, "error", err)
		}
	}

	metrics.EmitSmokeTest(t.metrics, res)
	t.logger.InfoContext(ctx, "smoke test completed",
		"source", source,
		"result", res.Result,
		"duration_ms", res.DurationMs,
		"error_category", res.ErrorCategory,
	)
	return res
}
