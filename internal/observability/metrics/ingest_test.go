package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
)

func TestEmitCycle(t *testing.T) {
	var rec statsd.Recorder

	EmitCycle(&rec, CycleMetric{
		Source:   "acme",
		Result:   ResultError,
		Category: model.ErrorCategoryAuthFailed,
		Attempts: 1,
		Duration: 20 * time.Millisecond,
		Err:      failure.AuthFailed("401"),
	})

	got := rec.Metrics()
	assert.Len(t, got, 3)
	assert.Equal(t, CycleCount, got[0].Name)
	assert.Equal(t, map[string]string{
		"source":         "acme",
		"result":         ResultError,
		"error_category": "auth_failed",
		"error_class":    "auth_failed",
	}, got[0].Tags)
	assert.InDelta(t, 20.0, rec.Sum(CycleDuration, nil), 0.001)
}

func TestEmitCycleSuccessOmitsErrorTags(t *testing.T) {
	var rec statsd.Recorder

	EmitCycle(&rec, CycleMetric{Source: "acme", Result: ResultSuccess, Category: model.ErrorCategoryNone})

	got := rec.Metrics()
	assert.Len(t, got, 1)
	assert.Equal(t, map[string]string{"source": "acme", "result": ResultSuccess}, got[0].Tags)
}

func TestEmitPostings(t *testing.T) {
	var rec statsd.Recorder

	EmitPostings(&rec, "acme", 3, 0)
	EmitPostings(&rec, "acme", 0, 2)

	assert.Equal(t, 3.0, rec.Sum(PostingsObserved, map[string]string{"kind": "new"}))
	assert.Equal(t, 2.0, rec.Sum(PostingsObserved, map[string]string{"kind": "repost"}))
	assert.Len(t, rec.Metrics(), 2)
}

func TestEmitStorageFailure(t *testing.T) {
	var rec statsd.Recorder

	EmitStorageFailure(&rec, "acme", "sink", errors.New("db down"))

	assert.Equal(t, 1.0, rec.Sum(StorageFailures, map[string]string{"stage": "sink", "source": "acme"}))
}

func TestNilSinkIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitCycle(nil, CycleMetric{Source: "acme"})
		EmitPostings(nil, "acme", 1, 1)
		EmitStorageFailure(nil, "acme", "dedup", errors.New("x"))
		EmitLimiterWait(nil, "acme", time.Second)
		EmitSmokeTest(nil, model.SmokeTestResult{})
		EmitHealthTransition(nil, "acme", model.HealthStatusHealthy, model.HealthStatusDown)
	})
}

func TestCloneTags(t *testing.T) {
	assert.Nil(t, CloneTags(nil))

	src := map[string]string{"a": "1"}
	cp := CloneTags(src)
	cp["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
