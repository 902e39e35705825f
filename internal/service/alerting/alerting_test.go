package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/notify"
	"github.com/target/mmk-job-ingest/internal/testutil"
)

type capture struct {
	mu       sync.Mutex
	payloads []notify.SourceAlertPayload
	ch       chan notify.SourceAlertPayload
}

func newCapture() *capture {
	return &capture{ch: make(chan notify.SourceAlertPayload, 16)}
}

func (c *capture) sink() notify.Sink {
	return notify.SinkFunc(func(_ context.Context, payload notify.SourceAlertPayload) error {
		c.mu.Lock()
		c.payloads = append(c.payloads, payload)
		c.mu.Unlock()
		c.ch <- payload
		return nil
	})
}

func health(status model.HealthStatus) model.SourceHealth {
	return model.SourceHealth{
		Source:     "acme-jobs",
		Status:     status,
		ComputedAt: testutil.TestTime(),
	}
}

func TestServiceNotify(t *testing.T) {
	c := newCapture()
	svc := NewService(Options{Sinks: []SinkRegistration{{Name: "capture", Sink: c.sink()}}})

	svc.Notify(context.Background(), notify.SourceAlertPayload{Source: "acme-jobs"})

	if len(c.payloads) != 1 {
		t.Fatalf("expected 1 payload, got %d", len(c.payloads))
	}
	if c.payloads[0].Severity != notify.SeverityCritical {
		t.Fatalf("expected severity to default to critical, got %s", c.payloads[0].Severity)
	}
}

func TestServiceDisabled(t *testing.T) {
	svc := NewService(Options{Sinks: []SinkRegistration{{Name: "nil", Sink: nil}}})
	if svc.Enabled() {
		t.Fatal("expected Enabled() to be false when no sinks registered")
	}
	// Must not block or panic without sinks.
	svc.HandleTransition(health(model.HealthStatusHealthy), health(model.HealthStatusDown))
}

func TestServiceLogsErrors(t *testing.T) {
	svc := NewService(Options{
		Sinks: []SinkRegistration{{
			Name: "fail",
			Sink: notify.SinkFunc(func(context.Context, notify.SourceAlertPayload) error {
				return errors.New("boom")
			}),
		}},
	})

	svc.Notify(context.Background(), notify.SourceAlertPayload{Source: "acme-jobs"})
}

func TestAlertsFor(t *testing.T) {
	svc := NewService(Options{BaseURL: "https://ingest.example.test/"})

	down := health(model.HealthStatusDown)
	down.Reason = &model.HealthReason{Category: model.ErrorCategoryAuthFailed, Detail: "feed returned 401"}
	down.ConsecutiveFailures = 3

	expires := testutil.TestTime().Add(5 * 24 * time.Hour)
	warning := health(model.HealthStatusHealthy)
	warning.CredentialWarning = true
	warning.Credential = &model.CredentialHealth{Source: "acme-jobs", CredentialType: "api_key", ExpiresAt: expires}

	tests := []struct {
		name  string
		prev  model.SourceHealth
		cur   model.SourceHealth
		kinds []notify.AlertKind
	}{
		{name: "healthy to down", prev: health(model.HealthStatusHealthy), cur: down, kinds: []notify.AlertKind{notify.AlertSourceDown}},
		{name: "unknown to down", prev: health(model.HealthStatusUnknown), cur: down, kinds: []notify.AlertKind{notify.AlertSourceDown}},
		{name: "down to healthy", prev: down, cur: health(model.HealthStatusHealthy), kinds: []notify.AlertKind{notify.AlertSourceRecovered}},
		{name: "down to degraded", prev: down, cur: health(model.HealthStatusDegraded), kinds: []notify.AlertKind{notify.AlertSourceRecovered}},
		{name: "down to disabled", prev: down, cur: health(model.HealthStatusDisabled)},
		{name: "healthy to degraded", prev: health(model.HealthStatusHealthy), cur: health(model.HealthStatusDegraded)},
		{name: "credential warning on", prev: health(model.HealthStatusHealthy), cur: warning, kinds: []notify.AlertKind{notify.AlertCredentialExpiring}},
		{name: "credential warning stays on", prev: warning, cur: warning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.alertsFor(tt.prev, tt.cur)
			if len(got) != len(tt.kinds) {
				t.Fatalf("expected %d alerts, got %d (%+v)", len(tt.kinds), len(got), got)
			}
			for i, kind := range tt.kinds {
				if got[i].Kind != kind {
					t.Errorf("alert %d: expected kind %s, got %s", i, kind, got[i].Kind)
				}
				if got[i].HealthURL != "https://ingest.example.test/api/sources/acme-jobs/health" {
					t.Errorf("unexpected health url %q", got[i].HealthURL)
				}
			}
		})
	}

	got := svc.alertsFor(health(model.HealthStatusHealthy), down)
	if got[0].ErrorCategory != model.ErrorCategoryAuthFailed || got[0].Detail != "feed returned 401" {
		t.Errorf("down alert should carry the reason, got %+v", got[0])
	}
	if got[0].Metadata["consecutive_failures"] != "3" {
		t.Errorf("expected consecutive_failures metadata, got %v", got[0].Metadata)
	}
	if got[0].Severity != notify.SeverityCritical {
		t.Errorf("expected critical severity, got %s", got[0].Severity)
	}

	got = svc.alertsFor(health(model.HealthStatusHealthy), warning)
	if !got[0].CredentialExpiresAt.Equal(expires) || got[0].Severity != notify.SeverityWarning {
		t.Errorf("unexpected credential alert %+v", got[0])
	}
}

func TestServiceRunDeliversQueuedAlerts(t *testing.T) {
	c := newCapture()
	svc := NewService(Options{Sinks: []SinkRegistration{{Name: "capture", Sink: c.sink()}}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	svc.HandleTransition(health(model.HealthStatusHealthy), health(model.HealthStatusDown))

	select {
	case payload := <-c.ch:
		if payload.Kind != notify.AlertSourceDown || payload.Source != "acme-jobs" {
			t.Fatalf("unexpected payload %+v", payload)
		}
		if payload.PreviousStatus != model.HealthStatusHealthy {
			t.Errorf("expected previous status healthy, got %s", payload.PreviousStatus)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not delivered")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("expected nil error on shutdown, got %v", err)
	}
}

func TestServiceDropsWhenQueueFull(t *testing.T) {
	c := newCapture()
	svc := NewService(Options{QueueSize: 1, Sinks: []SinkRegistration{{Name: "capture", Sink: c.sink()}}})

	for range 3 {
		svc.HandleTransition(health(model.HealthStatusHealthy), health(model.HealthStatusDown))
	}
	if len(svc.queue) != 1 {
		t.Fatalf("expected queue to hold 1 alert, got %d", len(svc.queue))
	}
}
