// Package testutil provides testing utilities and helpers for the job ingestion service.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// RunRecordBuilder provides a fluent interface for building RunRecords for testing.
type RunRecordBuilder struct {
	rec model.RunRecord
}

// NewRunRecord creates a successful one-second run for source completing at completedAt.
func NewRunRecord(source string, completedAt time.Time) *RunRecordBuilder {
	return &RunRecordBuilder{
		rec: model.RunRecord{
			ID:            uuid.NewString(),
			Source:        source,
			StartedAt:     completedAt.Add(-time.Second),
			CompletedAt:   completedAt,
			Status:        model.RunStatusSuccess,
			DurationMs:    1000,
			ErrorCategory: model.ErrorCategoryNone,
			Attempts:      1,
		},
	}
}

// Failed marks the run failed with category and detail.
func (b *RunRecordBuilder) Failed(category model.ErrorCategory, detail string) *RunRecordBuilder {
	b.rec.Status = model.RunStatusFailed
	b.rec.ErrorCategory = category
	b.rec.ErrorDetail = detail
	return b
}

// WithDuration sets the run duration.
func (b *RunRecordBuilder) WithDuration(d time.Duration) *RunRecordBuilder {
	b.rec.DurationMs = d.Milliseconds()
	b.rec.StartedAt = b.rec.CompletedAt.Add(-d)
	return b
}

// WithPostings sets found and new posting counts.
func (b *RunRecordBuilder) WithPostings(found, fresh int) *RunRecordBuilder {
	b.rec.PostingsFound = found
	b.rec.PostingsNew = fresh
	return b
}

// WithAttempts sets the attempt count.
func (b *RunRecordBuilder) WithAttempts(n int) *RunRecordBuilder {
	b.rec.Attempts = n
	return b
}

// Build returns the constructed RunRecord.
func (b *RunRecordBuilder) Build() model.RunRecord {
	return b.rec
}

// RunHistory builds successes successful runs followed by failures failed runs of category,
// one minute apart, with the last completing at end.
func RunHistory(source string, end time.Time, successes, failures int, category model.ErrorCategory) []model.RunRecord {
	total := successes + failures
	out := make([]model.RunRecord, 0, total)
	for i := range total {
		at := end.Add(-time.Duration(total-1-i) * time.Minute)
		b := NewRunRecord(source, at)
		if i >= successes {
			b.Failed(category, "test failure")
		}
		out = append(out, b.Build())
	}
	return out
}

// NewPosting returns a RawPosting with the given fields.
func NewPosting(title, company, location, url string) model.RawPosting {
	return model.RawPosting{Title: title, Company: company, Location: location, URL: url}
}
