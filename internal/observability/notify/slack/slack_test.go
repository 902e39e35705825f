package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when webhook url missing")
	}
}

func TestFormatMessageIncludesFields(t *testing.T) {
	client, err := NewClient(Config{
		WebhookURL: "https://hooks.slack.com/services/test",
		Channel:    "#ingest-alerts",
		Username:   "bot",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg := client.formatMessage(notify.SourceAlertPayload{
		Kind:           notify.AlertSourceDown,
		Source:         "acme-jobs",
		Status:         model.HealthStatusDown,
		PreviousStatus: model.HealthStatusHealthy,
		SuccessRate:    0.5,
		SampleCount:    10,
		ErrorCategory:  model.ErrorCategoryAuthFailed,
		Detail:         "401 <unauthorized>",
		HealthURL:      "https://ingest.example.com/api/sources/acme-jobs/health",
	})

	if msg["username"] != "bot" {
		t.Fatalf("expected username to be preserved, got %v", msg["username"])
	}
	if msg["channel"] != "#ingest-alerts" {
		t.Fatalf("expected channel to be set, got %v", msg["channel"])
	}

	text, ok := msg["text"].(string)
	if !ok {
		t.Fatalf("expected text field")
	}
	for _, want := range []string{
		"*Source down* `acme-jobs`",
		"healthy → down",
		"50.0% over 10 runs",
		"auth_failed",
		"401 &lt;unauthorized&gt;",
		"<https://ingest.example.com/api/sources/acme-jobs/health|health>",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("message text missing %q: %s", want, text)
		}
	}
}

func TestFormatMessageCredentialExpiring(t *testing.T) {
	client, err := NewClient(Config{WebhookURL: "https://hooks.slack.com/services/test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expires := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	msg := client.formatMessage(notify.SourceAlertPayload{
		Kind:                notify.AlertCredentialExpiring,
		Source:              "widgets",
		Severity:            notify.SeverityWarning,
		CredentialExpiresAt: expires,
	})

	text, _ := msg["text"].(string)
	if !strings.Contains(text, "Source credential expiring") || !strings.Contains(text, "2026-03-01T00:00:00Z") {
		t.Fatalf("unexpected text: %s", text)
	}
	if !strings.Contains(text, "Severity: warning") {
		t.Fatalf("expected warning severity: %s", text)
	}
	if _, ok := msg["channel"]; ok {
		t.Fatal("channel should be omitted when not configured")
	}
}

func TestSendSourceAlertPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(Config{WebhookURL: srv.URL, Client: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.SendSourceAlert(context.Background(), notify.SourceAlertPayload{Source: "acme-jobs"}); err != nil {
		t.Fatalf("SendSourceAlert: %v", err)
	}
	if got["username"] != "mmk-job-ingest" {
		t.Fatalf("expected default username, got %v", got["username"])
	}
}
