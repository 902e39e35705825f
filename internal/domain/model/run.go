// Package model defines the core data types shared by the job ingestion service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCategory classifies why a source operation failed.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type ErrorCategory string

const (
	// ErrorCategoryNone marks a successful run.
	ErrorCategoryNone ErrorCategory = "none"
	// ErrorCategoryRateLimited means the remote source rejected the request due to its own limits.
	ErrorCategoryRateLimited ErrorCategory = "rate_limited"
	// ErrorCategoryAuthFailed means the source rejected our credential.
	ErrorCategoryAuthFailed ErrorCategory = "auth_failed"
	// ErrorCategoryTimeout means the adapter call or remote request timed out.
	ErrorCategoryTimeout ErrorCategory = "timeout"
	// ErrorCategoryServiceUnavailable covers remote 5xx-class responses.
	ErrorCategoryServiceUnavailable ErrorCategory = "service_unavailable"
	// ErrorCategorySelectorMismatch means the adapter could not find the structure it expected.
	ErrorCategorySelectorMismatch ErrorCategory = "selector_mismatch"
	// ErrorCategoryUnknown is any failure that could not be classified.
	ErrorCategoryUnknown ErrorCategory = "unknown"
)

// AllErrorCategories returns every failure category (excludes None).
func AllErrorCategories() []ErrorCategory {
	return []ErrorCategory{
		ErrorCategoryRateLimited,
		ErrorCategoryAuthFailed,
		ErrorCategoryTimeout,
		ErrorCategoryServiceUnavailable,
		ErrorCategorySelectorMismatch,
		ErrorCategoryUnknown,
	}
}

// Valid reports whether c is a known category, including None.
func (c ErrorCategory) Valid() bool {
	if c == ErrorCategoryNone {
		return true
	}
	for _, known := range AllErrorCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler so categories can be parsed from env and YAML.
// An empty value decodes as None.
func (c *ErrorCategory) UnmarshalText(text []byte) error {
	v := ErrorCategory(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		v = ErrorCategoryNone
	}
	if !v.Valid() {
		return fmt.Errorf("invalid ErrorCategory: %q", string(text))
	}
	*c = v
	return nil
}

// RunStatus is the final outcome of one logical ingestion cycle.
type RunStatus string

const (
	// RunStatusSuccess indicates the adapter returned postings.
	RunStatusSuccess RunStatus = "success"
	// RunStatusFailed indicates the cycle ended with a classified failure.
	RunStatusFailed RunStatus = "failed"
)

// RunRecord is the immutable outcome of one logical ingestion cycle for a source.
type RunRecord struct {
	ID            string        `json:"id"             db:"id"`
	Source        string        `json:"source"         db:"source"`
	StartedAt     time.Time     `json:"started_at"     db:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"   db:"completed_at"`
	Status        RunStatus     `json:"status"         db:"status"`
	DurationMs    int64         `json:"duration_ms"    db:"duration_ms"`
	PostingsFound int           `json:"postings_found" db:"postings_found"`
	PostingsNew   int           `json:"postings_new"   db:"postings_new"`
	ErrorCategory ErrorCategory `json:"error_category" db:"error_category"`
	ErrorDetail   string        `json:"error_detail"   db:"error_detail"`
	Attempts      int           `json:"attempts"       db:"attempts"`
}

// Succeeded reports whether the run finished successfully.
func (r RunRecord) Succeeded() bool {
	return r.Status == RunStatusSuccess
}
