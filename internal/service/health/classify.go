package health

import (
	"fmt"
	"time"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// snapshot is everything Compute needs for one source, copied out from under its lock.
type snapshot struct {
	Source     string
	Runs       []model.RunRecord // ordered by CompletedAt ascending
	Disabled   bool
	Credential *model.CredentialHealth
	RateLimit  *model.BucketSnapshot
	LastSmoke  *model.SmokeTestResult
}

// compute derives SourceHealth from a snapshot at now.
//
// Status order: disabled, most recent run auth_failed, expired credential,
// too few samples, then success-rate thresholds.
func compute(cfg config.HealthConfig, in snapshot, now time.Time) model.SourceHealth {
	out := model.SourceHealth{
		Source:     in.Source,
		Credential: in.Credential,
		RateLimit:  in.RateLimit,
		ComputedAt: now,
	}
	if in.LastSmoke != nil {
		smoke := *in.LastSmoke
		out.LastSmokeTest = &smoke
	}

	windowStart := now.Add(-cfg.Window)
	dayStart := now.Add(-24 * time.Hour)

	var (
		successes   int
		totalMs     int64
		lastFailure *model.RunRecord
		last        *model.RunRecord
	)
	for i := range in.Runs {
		rec := &in.Runs[i]
		if rec.CompletedAt.Before(windowStart) {
			continue
		}
		out.SampleCount++
		totalMs += rec.DurationMs
		last = rec
		if rec.Succeeded() {
			successes++
			out.ConsecutiveFailures = 0
			continue
		}
		out.ConsecutiveFailures++
		lastFailure = rec
		if !rec.CompletedAt.Before(dayStart) {
			out.ErrorCount24h++
		}
	}

	if out.SampleCount > 0 {
		out.SuccessRate = float64(successes) / float64(out.SampleCount)
		out.AvgDurationMs = totalMs / int64(out.SampleCount)
		lastRun := last.CompletedAt
		out.LastRunAt = &lastRun
	}

	if in.Credential != nil {
		out.CredentialWarning = in.Credential.ExpiresWithin(now)
	}

	credentialExpired := in.Credential != nil && in.Credential.Expired(now)
	lastAuthFailed := last != nil && last.ErrorCategory == model.ErrorCategoryAuthFailed

	switch {
	case in.Disabled:
		out.Status = model.HealthStatusDisabled
	case lastAuthFailed:
		out.Status = model.HealthStatusDown
	case credentialExpired:
		out.Status = model.HealthStatusDown
	case out.SampleCount < cfg.MinSamples:
		out.Status = model.HealthStatusUnknown
	case out.SuccessRate >= cfg.HealthyThreshold:
		out.Status = model.HealthStatusHealthy
	case out.SuccessRate >= cfg.DegradedThreshold:
		out.Status = model.HealthStatusDegraded
	default:
		out.Status = model.HealthStatusDown
	}

	switch {
	case credentialExpired && !lastAuthFailed:
		out.Reason = &model.HealthReason{
			Category: model.ErrorCategoryAuthFailed,
			Detail:   fmt.Sprintf("credential expired at %s", in.Credential.ExpiresAt.UTC().Format(time.RFC3339)),
			At:       in.Credential.ExpiresAt,
		}
	case lastFailure != nil && needsReason(out):
		out.Reason = &model.HealthReason{
			Category: lastFailure.ErrorCategory,
			Detail:   lastFailure.ErrorDetail,
			At:       lastFailure.CompletedAt,
		}
	case out.CredentialWarning && !in.Disabled:
		// Raised before the source starts rejecting the credential.
		out.Reason = &model.HealthReason{
			Category: model.ErrorCategoryAuthFailed,
			Detail:   fmt.Sprintf("credential expires at %s", in.Credential.ExpiresAt.UTC().Format(time.RFC3339)),
			At:       in.Credential.ExpiresAt,
		}
	}

	return out
}

// needsReason reports whether the last failure explains the current status.
func needsReason(h model.SourceHealth) bool {
	if h.ConsecutiveFailures > 0 {
		return true
	}
	return h.Status == model.HealthStatusDegraded || h.Status == model.HealthStatusDown
}
