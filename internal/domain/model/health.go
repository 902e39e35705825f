package model

import "time"

// HealthStatus is the derived operational state of a source.
type HealthStatus string

const (
	// HealthStatusHealthy means the success rate is at or above the healthy threshold.
	HealthStatusHealthy HealthStatus = "healthy"
	// HealthStatusDegraded means the success rate is between the degraded and healthy thresholds.
	HealthStatusDegraded HealthStatus = "degraded"
	// HealthStatusDown means the source is failing, or its credential has been rejected.
	HealthStatusDown HealthStatus = "down"
	// HealthStatusDisabled is an operator override.
	HealthStatusDisabled HealthStatus = "disabled"
	// HealthStatusUnknown means there are too few runs in the window to judge.
	HealthStatusUnknown HealthStatus = "unknown"
)

// HealthReason surfaces the most recent failure behind a non-healthy status.
type HealthReason struct {
	Category ErrorCategory `json:"category"`
	Detail   string        `json:"detail,omitempty"`
	At       time.Time     `json:"at"`
}

// CredentialHealth describes credential validity metadata for a source.
// The secret itself is never part of this type.
type CredentialHealth struct {
	Source               string    `json:"source"                 db:"source"`
	CredentialType       string    `json:"credential_type"        db:"credential_type"`
	IssuedAt             time.Time `json:"issued_at"              db:"issued_at"`
	ExpiresAt            time.Time `json:"expires_at"             db:"expires_at"`
	WarningThresholdDays int       `json:"warning_threshold_days" db:"warning_threshold_days"`
}

// ExpiresWithin reports whether the credential expires before now plus its warning threshold.
func (c CredentialHealth) ExpiresWithin(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	threshold := time.Duration(c.WarningThresholdDays) * 24 * time.Hour
	return c.ExpiresAt.Sub(now) < threshold
}

// Expired reports whether the credential is past its expiry at now.
func (c CredentialHealth) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// BucketSnapshot is a read-only view of a source's token bucket.
type BucketSnapshot struct {
	Capacity        int       `json:"capacity"`
	Tokens          float64   `json:"tokens"`
	RefillPerSecond float64   `json:"refill_per_second"`
	At              time.Time `json:"at"`
}

// SourceHealth is computed on read from the run window plus current credential and limiter state.
type SourceHealth struct {
	Source              string            `json:"source"`
	Status              HealthStatus      `json:"status"`
	SuccessRate         float64           `json:"success_rate"`
	SampleCount         int               `json:"sample_count"`
	AvgDurationMs       int64             `json:"avg_duration_ms"`
	ErrorCount24h       int               `json:"error_count_24h"`
	LastRunAt           *time.Time        `json:"last_run_at,omitempty"`
	ConsecutiveFailures int               `json:"consecutive_failures"`
	Reason              *HealthReason     `json:"reason,omitempty"`
	CredentialWarning   bool              `json:"credential_warning"`
	Credential          *CredentialHealth `json:"credential,omitempty"`
	RateLimit           *BucketSnapshot   `json:"rate_limit,omitempty"`
	LastSmokeTest       *SmokeTestResult  `json:"last_smoke_test,omitempty"`
	ComputedAt          time.Time         `json:"computed_at"`
}

// SmokeOutcome is the pass/fail result of a smoke test.
type SmokeOutcome string

const (
	// SmokePass indicates the probe succeeded.
	SmokePass SmokeOutcome = "pass"
	// SmokeFail indicates the probe failed.
	SmokeFail SmokeOutcome = "fail"
)

// SmokeTestResult records an on-demand probe. Smoke tests never count toward the run success rate.
type SmokeTestResult struct {
	ID            string        `json:"id"             db:"id"`
	Source        string        `json:"source"         db:"source"`
	Result        SmokeOutcome  `json:"result"         db:"result"`
	DurationMs    int64         `json:"duration_ms"    db:"duration_ms"`
	Detail        string        `json:"detail"         db:"detail"`
	ErrorCategory ErrorCategory `json:"error_category" db:"error_category"`
	RanAt         time.Time     `json:"ran_at"         db:"ran_at"`
}
