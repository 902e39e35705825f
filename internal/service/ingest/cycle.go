package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/metrics"
)

// Storage stages used in log lines and metric tags.
const (
	stageDedup     = "dedup"
	stageSink      = "sink"
	stageRunRecord = "run_record"
)

// runCycle performs one Acquiring, Running, Recording pass for r. A cycle whose context
// ends at any point writes no run record.
func (o *Orchestrator) runCycle(ctx context.Context, r *runner) {
	name := r.cfg.Name
	logger := o.logger.With("source", name)

	r.setState(model.SourceStateAcquiring)
	waitStart := o.now()
	acquiredAt, err := o.limiter.WaitAndAcquire(ctx, name)
	if err != nil {
		if ctx.Err() == nil {
			logger.ErrorContext(ctx, "rate limiter wait failed", "error", err)
		}
		o.emitCanceled(name, 0)
		return
	}
	metrics.EmitLimiterWait(o.metrics, name, o.now().Sub(waitStart))

	r.setState(model.SourceStateRunning)
	var postings []model.RawPosting
	res := o.executor.Execute(ctx, o.policy, func(actx context.Context, _ int) error {
		got, err := o.fetch(actx, r)
		if err != nil {
			return err
		}
		postings = got
		return nil
	})
	if res.Canceled || ctx.Err() != nil {
		logger.InfoContext(ctx, "cycle canceled, no run record written", "attempts", res.Attempts)
		o.emitCanceled(name, res.Attempts)
		return
	}

	r.setState(model.SourceStateRecording)
	rec := model.RunRecord{
		ID:            uuid.NewString(),
		Source:        name,
		StartedAt:     acquiredAt,
		Status:        model.RunStatusFailed,
		DurationMs:    res.Elapsed.Milliseconds(),
		ErrorCategory: res.Category,
		Attempts:      res.Attempts,
	}
	if res.Succeeded() {
		rec.Status = model.RunStatusSuccess
		rec.ErrorCategory = model.ErrorCategoryNone
		rec.PostingsFound, rec.PostingsNew = o.store(ctx, name, postings)
	} else {
		rec.ErrorDetail = failure.Detail(res.Err)
	}
	if ctx.Err() != nil {
		logger.InfoContext(ctx, "cycle canceled while recording, no run record written")
		o.emitCanceled(name, res.Attempts)
		return
	}
	rec.CompletedAt = o.now()

	o.writeRecord(ctx, rec)

	result := metrics.ResultSuccess
	if !res.Succeeded() {
		result = metrics.ResultError
		logger.WarnContext(ctx, "cycle failed",
			"attempts", rec.Attempts,
			"error_category", rec.ErrorCategory,
			"error", res.Err,
		)
	} else {
		logger.InfoContext(ctx, "cycle completed",
			"attempts", rec.Attempts,
			"postings_found", rec.PostingsFound,
			"postings_new", rec.PostingsNew,
			"duration_ms", rec.DurationMs,
		)
	}
	metrics.EmitCycle(o.metrics, metrics.CycleMetric{
		Source:   name,
		Result:   result,
		Category: rec.ErrorCategory,
		Attempts: rec.Attempts,
		Duration: res.Elapsed,
		Err:      res.Err,
	})
}

// fetch runs one adapter attempt under the source timeout. An adapter that ignores its
// context is abandoned once the timeout fires.
func (o *Orchestrator) fetch(ctx context.Context, r *runner) ([]model.RawPosting, error) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	type fetched struct {
		postings []model.RawPosting
		err      error
	}
	done := make(chan fetched, 1)
	go func() {
		postings, err := r.adapter.Fetch(actx)
		done <- fetched{postings: postings, err: err}
	}()

	select {
	case out := <-done:
		return out.postings, out.err
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, failure.Wrap(actx.Err(), model.ErrorCategoryTimeout,
			fmt.Sprintf("adapter did not return within %s", r.cfg.Timeout))
	}
}

// store fingerprints the cycle's postings, collapses repeats within the cycle, records each
// fingerprint, and hands the batch to the sink. Postings whose fingerprint could not be
// recorded are withheld from the sink until a later cycle observes them. Dedup and sink
// failures are logged and counted but never fail the run.
func (o *Orchestrator) store(ctx context.Context, source string, raw []model.RawPosting) (found, fresh int) {
	observedAt := o.now()
	seen := make(map[string]struct{}, len(raw))
	batch := make([]model.IngestedPosting, 0, len(raw))

	var (
		reposts   int
		dedupErrs int
		firstErr  error
	)
	for _, p := range raw {
		hash := o.dedup.FingerprintPosting(p)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}

		item := model.IngestedPosting{
			Fingerprint: hash,
			Source:      source,
			Raw:         p,
			ObservedAt:  observedAt,
		}
		obs, err := o.dedup.Observe(ctx, hash, observedAt)
		switch {
		case err != nil:
			dedupErrs++
			if firstErr == nil {
				firstErr = err
			}
			continue
		case obs.IsNew:
			item.IsNew = true
			item.RepostCount = obs.RepostCount
			fresh++
		default:
			item.RepostCount = obs.RepostCount
			reposts++
		}
		batch = append(batch, item)
	}

	if dedupErrs > 0 && ctx.Err() == nil {
		o.logger.ErrorContext(ctx, "fingerprint store failed",
			"source", source,
			"failed", dedupErrs,
			"postings", len(batch)+dedupErrs,
			"error", firstErr,
		)
		metrics.EmitStorageFailure(o.metrics, source, stageDedup, firstErr)
	}

	if o.sink != nil && len(batch) > 0 && ctx.Err() == nil {
		if err := o.sink.Persist(ctx, batch); err != nil {
			o.logger.ErrorContext(ctx, "posting sink failed", "source", source, "postings", len(batch), "error", err)
			metrics.EmitStorageFailure(o.metrics, source, stageSink, err)
		}
	}

	metrics.EmitPostings(o.metrics, source, fresh, reposts)
	return len(raw), fresh
}

// writeRecord hands the record to the tracker and the repository. The orchestrator is the
// only run record writer.
func (o *Orchestrator) writeRecord(ctx context.Context, rec model.RunRecord) {
	if err := o.tracker.RecordRun(ctx, rec); err != nil {
		o.logger.ErrorContext(ctx, "record run in tracker failed", "source", rec.Source, "error", err)
	}
	if o.runs == nil {
		return
	}
	if err := o.runs.Insert(ctx, &rec); err != nil {
		o.logger.ErrorContext(ctx, "persist run record failed", "source", rec.Source, "run_id", rec.ID, "error", err)
		metrics.EmitStorageFailure(o.metrics, rec.Source, stageRunRecord, err)
	}
}

func (o *Orchestrator) emitCanceled(source string, attempts int) {
	metrics.EmitCycle(o.metrics, metrics.CycleMetric{
		Source:   source,
		Result:   metrics.ResultCanceled,
		Attempts: attempts,
	})
}
