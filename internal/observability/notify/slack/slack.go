// Package slack delivers source health alerts to a Slack incoming webhook.
package slack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-job-ingest/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers source alerts to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	poster     notify.JSONPoster
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   notify.FallbackString(cfg.Username, "mmk-job-ingest"),
		poster: notify.JSONPoster{
			Name:       "slack webhook",
			Client:     hc,
			RetryLimit: cfg.RetryLimit,
		},
	}, nil
}

// SendSourceAlert posts a formatted message to Slack.
func (c *Client) SendSourceAlert(ctx context.Context, payload notify.SourceAlertPayload) error {
	return c.poster.Post(ctx, c.webhookURL, c.formatMessage(payload))
}

func (c *Client) formatMessage(payload notify.SourceAlertPayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var text strings.Builder
	writeHeader(&text, payload)
	for _, field := range detailFields(payload) {
		appendField(&text, field[0], field[1])
	}
	appendMetadata(&text, payload.Metadata)
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func writeHeader(text *strings.Builder, payload notify.SourceAlertPayload) {
	switch payload.Kind {
	case notify.AlertSourceRecovered:
		text.WriteString("*Source recovered*")
	case notify.AlertCredentialExpiring:
		text.WriteString("*Source credential expiring*")
	default:
		text.WriteString("*Source down*")
	}
	if payload.Source != "" {
		text.WriteString(" `")
		text.WriteString(escapeText(payload.Source))
		text.WriteByte('`')
	}
	text.WriteByte('\n')
}

func detailFields(payload notify.SourceAlertPayload) [][2]string {
	status := string(payload.Status)
	if payload.PreviousStatus != "" && payload.PreviousStatus != payload.Status {
		status = fmt.Sprintf("%s → %s", payload.PreviousStatus, payload.Status)
	}

	var rate string
	if payload.SampleCount > 0 {
		rate = fmt.Sprintf("%s%% over %d runs",
			strconv.FormatFloat(payload.SuccessRate*100, 'f', 1, 64), payload.SampleCount)
	}

	var expires string
	if !payload.CredentialExpiresAt.IsZero() {
		expires = payload.CredentialExpiresAt.UTC().Format(time.RFC3339)
	}

	health := ""
	if payload.HealthURL != "" {
		health = "<" + payload.HealthURL + "|health>"
	}

	return [][2]string{
		{"Severity", notify.FallbackString(payload.Severity, notify.SeverityCritical)},
		{"Status", status},
		{"Success rate", rate},
		{"Error category", string(payload.ErrorCategory)},
		{"Detail", escapeText(payload.Detail)},
		{"Credential expires", expires},
		{"Details", health},
	}
}

func escapeText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func appendField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func appendMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		text.WriteString("    • ")
		text.WriteString(k)
		text.WriteString(": ")
		text.WriteString(metadata[k])
		text.WriteByte('\n')
	}
}
