// Package retry runs one logical source operation with bounded exponential backoff.
package retry

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// Policy controls how often and how quickly an operation is retried.
type Policy struct {
	MaxAttempts         int
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	BackoffMultiplier   float64
	RetryableCategories []model.ErrorCategory
	// JitterFraction adds up to this fraction of each delay at random. Zero disables jitter.
	JitterFraction float64
}

// DefaultRetryableCategories are the categories that can succeed on a repeated call.
func DefaultRetryableCategories() []model.ErrorCategory {
	return []model.ErrorCategory{
		model.ErrorCategoryTimeout,
		model.ErrorCategoryServiceUnavailable,
		model.ErrorCategoryRateLimited,
	}
}

// DefaultPolicy returns 5 attempts starting at 1s, doubling, capped at 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         5,
		InitialDelay:        time.Second,
		MaxDelay:            30 * time.Second,
		BackoffMultiplier:   2,
		RetryableCategories: DefaultRetryableCategories(),
		JitterFraction:      0.2,
	}
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	var errs []error
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be >= 1, got %d", p.MaxAttempts))
	}
	if p.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("initial delay must not be negative, got %s", p.InitialDelay))
	}
	if p.MaxDelay < p.InitialDelay {
		errs = append(errs, fmt.Errorf("max delay %s is below initial delay %s", p.MaxDelay, p.InitialDelay))
	}
	if p.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("backoff multiplier must be >= 1, got %v", p.BackoffMultiplier))
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		errs = append(errs, fmt.Errorf("jitter fraction must be within [0,1], got %v", p.JitterFraction))
	}
	for _, c := range p.RetryableCategories {
		if !c.Valid() || c == model.ErrorCategoryNone {
			errs = append(errs, fmt.Errorf("invalid retryable category %q", c))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("retry policy: %w", errors.Join(errs...))
	}
	return nil
}

// Delay returns the backoff before attempt+1, after attempt has failed, without jitter:
// min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := p.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if d >= float64(p.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Retryable reports whether a failure of category c may be retried under p.
// Auth, selector, and unclassified failures are never retried.
func (p Policy) Retryable(c model.ErrorCategory) bool {
	switch c {
	case model.ErrorCategoryNone,
		model.ErrorCategoryAuthFailed,
		model.ErrorCategorySelectorMismatch,
		model.ErrorCategoryUnknown:
		return false
	}
	return slices.Contains(p.RetryableCategories, c)
}
