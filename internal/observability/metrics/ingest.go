// Package metrics holds the metric names and tag conventions shared by the ingestion services.
package metrics

import (
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	obserrors "github.com/target/mmk-job-ingest/internal/observability/errors"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNoop     = "noop"
	ResultCanceled = "canceled"
)

// Metric names emitted by the ingestion core.
const (
	CycleCount        = "ingest.cycle"
	CycleDuration     = "ingest.cycle.duration"
	CycleAttempts     = "ingest.cycle.attempts"
	PostingsObserved  = "ingest.postings"
	StorageFailures   = "ingest.storage_failure"
	LimiterWait       = "ratelimit.wait"
	SmokeTestCount    = "health.smoke_test"
	HealthTransitions = "health.transition"
)

// CycleMetric captures the outcome of one ingestion cycle for metric emission.
type CycleMetric struct {
	Source   string
	Result   string
	Category model.ErrorCategory
	Attempts int
	Duration time.Duration
	Err      error
}

// EmitCycle emits the standard per-cycle metrics.
func EmitCycle(sink statsd.Sink, in CycleMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"source": in.Source,
		"result": in.Result,
	}
	if in.Category != "" && in.Category != model.ErrorCategoryNone {
		tags["error_category"] = string(in.Category)
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(CycleCount, 1, tags)

	if in.Attempts > 0 {
		sink.Gauge(CycleAttempts, float64(in.Attempts), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing(CycleDuration, in.Duration, CloneTags(tags))
	}
}

// EmitPostings counts new and reposted postings observed in a cycle.
func EmitPostings(sink statsd.Sink, source string, fresh, reposts int) {
	if sink == nil {
		return
	}
	if fresh > 0 {
		sink.Count(PostingsObserved, int64(fresh), map[string]string{"source": source, "kind": "new"})
	}
	if reposts > 0 {
		sink.Count(PostingsObserved, int64(reposts), map[string]string{"source": source, "kind": "repost"})
	}
}

// EmitStorageFailure counts a dedup or sink failure that did not fail the run.
func EmitStorageFailure(sink statsd.Sink, source, stage string, err error) {
	if sink == nil {
		return
	}
	tags := map[string]string{"source": source, "stage": stage}
	if class := obserrors.Classify(err); class != "" {
		tags["error_class"] = class
	}
	sink.Count(StorageFailures, 1, tags)
}

// EmitLimiterWait records how long a source waited for a token.
func EmitLimiterWait(sink statsd.Sink, source string, wait time.Duration) {
	if sink == nil {
		return
	}
	sink.Timing(LimiterWait, wait, map[string]string{"source": source})
}

// EmitSmokeTest counts a completed smoke test.
func EmitSmokeTest(sink statsd.Sink, res model.SmokeTestResult) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"source": res.Source,
		"result": string(res.Result),
	}
	if res.ErrorCategory != "" && res.ErrorCategory != model.ErrorCategoryNone {
		tags["error_category"] = string(res.ErrorCategory)
	}
	sink.Count(SmokeTestCount, 1, tags)
}

// EmitHealthTransition counts a status change for a source.
func EmitHealthTransition(sink statsd.Sink, source string, from, to model.HealthStatus) {
	if sink == nil {
		return
	}
	sink.Count(HealthTransitions, 1, map[string]string{
		"source": source,
		"from":   string(from),
		"to":     string(to),
	})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
