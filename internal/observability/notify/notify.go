// Package notify defines the source health notification payload and the delivery helpers
// shared by the Slack and PagerDuty sinks.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// AlertKind identifies why a source alert was raised.
type AlertKind string

const (
	// AlertSourceDown fires when a source transitions into down.
	AlertSourceDown AlertKind = "source_down"
	// AlertSourceRecovered fires when a down source leaves down.
	AlertSourceRecovered AlertKind = "source_recovered"
	// AlertCredentialExpiring fires when a credential enters its warning window.
	AlertCredentialExpiring AlertKind = "credential_expiring"
)

// SourceAlertPayload captures the data we emit for source health notifications.
type SourceAlertPayload struct {
	Kind                AlertKind
	Source              string
	Status              model.HealthStatus
	PreviousStatus      model.HealthStatus
	SuccessRate         float64
	SampleCount         int
	ErrorCategory       model.ErrorCategory
	Detail              string
	CredentialExpiresAt time.Time
	HealthURL           string
	Severity            string
	OccurredAt          time.Time
	Metadata            map[string]string
}

// Sink describes a destination capable of consuming source health notifications.
type Sink interface {
	SendSourceAlert(ctx context.Context, payload SourceAlertPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload SourceAlertPayload) error

// SendSourceAlert implements the Sink interface.
func (f SinkFunc) SendSourceAlert(ctx context.Context, payload SourceAlertPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// FallbackString returns fallback when value is blank.
func FallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
