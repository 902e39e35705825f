// Package alerting turns source health transitions into Slack and PagerDuty notifications.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/notify"
)

const defaultQueueSize = 64

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the alerting service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
	// BaseURL is the public operator API address used to build health links. Optional.
	BaseURL string
	// QueueSize bounds pending alerts; transitions beyond it are dropped and logged.
	QueueSize int
	Now       func() time.Time
}

// Service queues alerts from health transitions and fans them out to every sink.
type Service struct {
	logger  *slog.Logger
	sinks   []SinkRegistration
	baseURL string
	now     func() time.Time
	queue   chan notify.SourceAlertPayload
}

// NewService constructs an alerting service.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "source_alerting")

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		sinks = append(sinks, SinkRegistration{
			Name: notify.FallbackString(entry.Name, "sink"),
			Sink: entry.Sink,
		})
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		logger:  logger,
		sinks:   sinks,
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		now:     now,
		queue:   make(chan notify.SourceAlertPayload, size),
	}
}

// Enabled reports whether the service has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// HandleTransition matches health.TransitionFunc. It never blocks the caller: alerts are
// queued for Run to deliver.
func (s *Service) HandleTransition(prev, cur model.SourceHealth) {
	if !s.Enabled() {
		return
	}
	for _, payload := range s.alertsFor(prev, cur) {
		select {
		case s.queue <- payload:
		default:
			s.logger.Warn("alert queue full, dropping alert",
				"source", payload.Source,
				"kind", payload.Kind,
			)
		}
	}
}

// Run delivers queued alerts until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting source alerting", "sinks", len(s.sinks))
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "source alerting stopping", "pending", len(s.queue))
			return nil
		case payload := <-s.queue:
			s.Notify(ctx, payload)
		}
	}
}

// Notify fans the payload out to all sinks and waits for every delivery.
func (s *Service) Notify(ctx context.Context, payload notify.SourceAlertPayload) {
	if len(s.sinks) == 0 {
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendSourceAlert(ctx, payload); err != nil {
				s.logger.ErrorContext(ctx, "alert delivery failed",
					"sink", entry.Name,
					"source", payload.Source,
					"kind", payload.Kind,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// alertsFor maps one transition to zero or more alerts. A source entering down pages,
// leaving down for a scored status resolves, and a credential entering its warning
// window warns. Other status changes are visible through the API only.
func (s *Service) alertsFor(prev, cur model.SourceHealth) []notify.SourceAlertPayload {
	var out []notify.SourceAlertPayload

	switch {
	case cur.Status == model.HealthStatusDown && prev.Status != model.HealthStatusDown:
		p := s.basePayload(prev, cur, notify.AlertSourceDown, notify.SeverityCritical)
		if cur.Reason != nil {
			p.ErrorCategory = cur.Reason.Category
			p.Detail = cur.Reason.Detail
		}
		out = append(out, p)
	case prev.Status == model.HealthStatusDown && scored(cur.Status):
		out = append(out, s.basePayload(prev, cur, notify.AlertSourceRecovered, notify.SeverityInfo))
	}

	if cur.CredentialWarning && !prev.CredentialWarning && cur.Credential != nil {
		p := s.basePayload(prev, cur, notify.AlertCredentialExpiring, notify.SeverityWarning)
		p.CredentialExpiresAt = cur.Credential.ExpiresAt
		p.Detail = fmt.Sprintf("%s credential expires %s",
			notify.FallbackString(cur.Credential.CredentialType, "source"),
			cur.Credential.ExpiresAt.UTC().Format(time.RFC3339))
		out = append(out, p)
	}
	return out
}

func (s *Service) basePayload(prev, cur model.SourceHealth, kind notify.AlertKind, severity string) notify.SourceAlertPayload {
	occurred := cur.ComputedAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	p := notify.SourceAlertPayload{
		Kind:           kind,
		Source:         cur.Source,
		Status:         cur.Status,
		PreviousStatus: prev.Status,
		SuccessRate:    cur.SuccessRate,
		SampleCount:    cur.SampleCount,
		Severity:       severity,
		OccurredAt:     occurred,
	}
	if s.baseURL != "" {
		p.HealthURL = s.baseURL + "/api/sources/" + cur.Source + "/health"
	}
	if cur.ConsecutiveFailures > 0 {
		p.Metadata = map[string]string{"consecutive_failures": strconv.Itoa(cur.ConsecutiveFailures)}
	}
	return p
}

func scored(status model.HealthStatus) bool {
	return status == model.HealthStatusHealthy || status == model.HealthStatusDegraded
}
