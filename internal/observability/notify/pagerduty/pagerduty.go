// Package pagerduty publishes source health alerts through the PagerDuty Events API v2.
package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/mmk-job-ingest/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint (tests).
	Endpoint string
}

// Client publishes events via PagerDuty's Events API v2.
// Down alerts trigger an incident per source; recoveries resolve it.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	poster     notify.JSONPoster
}

var _ notify.Sink = (*Client)(nil)

// NewClient constructs a PagerDuty events client from config. Callers must provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     notify.FallbackString(strings.TrimSpace(cfg.Source), "mmk-job-ingest"),
		component:  notify.FallbackString(strings.TrimSpace(cfg.Component), "mmk-job-ingest"),
		endpoint:   notify.FallbackString(cfg.Endpoint, APIEndpoint),
		poster: notify.JSONPoster{
			Name:       "pagerduty api",
			Client:     hc,
			RetryLimit: cfg.RetryLimit,
		},
	}, nil
}

// SendSourceAlert submits a trigger or resolve event to PagerDuty.
func (c *Client) SendSourceAlert(ctx context.Context, payload notify.SourceAlertPayload) error {
	return c.poster.Post(ctx, c.endpoint, c.buildEvent(payload))
}

func (c *Client) buildEvent(payload notify.SourceAlertPayload) map[string]any {
	event := map[string]any{
		"routing_key":  c.routingKey,
		"event_action": "trigger",
		"dedup_key":    dedupKey(payload),
	}
	if payload.Kind == notify.AlertSourceRecovered {
		event["event_action"] = "resolve"
		return event
	}

	severity := strings.ToLower(notify.FallbackString(payload.Severity, notify.SeverityCritical))

	occurredAt := payload.OccurredAt.UTC()
	if payload.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	custom := map[string]any{
		"source":          payload.Source,
		"status":          string(payload.Status),
		"previous_status": string(payload.PreviousStatus),
		"success_rate":    payload.SuccessRate,
		"sample_count":    payload.SampleCount,
		"error_category":  string(payload.ErrorCategory),
		"detail":          payload.Detail,
	}
	if !payload.CredentialExpiresAt.IsZero() {
		custom["credential_expires_at"] = payload.CredentialExpiresAt.UTC().Format(time.RFC3339)
	}
	for k, v := range payload.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}

	body := map[string]any{
		"summary":        summary(payload),
		"severity":       severity,
		"source":         c.source,
		"component":      c.component,
		"timestamp":      occurredAt.Format(time.RFC3339),
		"custom_details": custom,
	}
	event["payload"] = body
	if payload.HealthURL != "" {
		event["links"] = []map[string]string{{"href": payload.HealthURL, "text": "Source health"}}
	}
	return event
}

// dedupKey groups down and recovered alerts for a source into one incident.
func dedupKey(payload notify.SourceAlertPayload) string {
	family := "health"
	if payload.Kind == notify.AlertCredentialExpiring {
		family = "credential"
	}
	return fmt.Sprintf("mmk-job-ingest:%s:%s", notify.FallbackString(payload.Source, "unknown"), family)
}

func summary(payload notify.SourceAlertPayload) string {
	source := notify.FallbackString(payload.Source, "unknown")
	if payload.Kind == notify.AlertCredentialExpiring {
		return fmt.Sprintf("Credential for source %s expires soon", source)
	}
	if payload.ErrorCategory != "" {
		return fmt.Sprintf("Source %s is %s (%s)", source, payload.Status, payload.ErrorCategory)
	}
	return fmt.Sprintf("Source %s is %s", source, payload.Status)
}
