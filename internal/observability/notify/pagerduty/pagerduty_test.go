package pagerduty

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
		t.Fatal("expected error when routing key missing")
	}
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{
		RoutingKey: "key",
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.SourceAlertPayload{
		Kind:          notify.AlertSourceDown,
		Source:        "acme-jobs",
		Status:        model.HealthStatusDown,
		ErrorCategory: model.ErrorCategoryAuthFailed,
		Detail:        "401",
	})

	if event["event_action"] != "trigger" {
		t.Fatalf("expected trigger action, got %v", event["event_action"])
	}
	payloadSection, ok := event["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload section")
	}
	if payloadSection["severity"] != notify.SeverityCritical {
		t.Fatalf("expected default severity, got %v", payloadSection["severity"])
	}
	if payloadSection["source"] != "mmk-job-ingest" {
		t.Fatalf("expected default source, got %v", payloadSection["source"])
	}
	if summary, _ := payloadSection["summary"].(string); !strings.Contains(summary, "auth_failed") {
		t.Fatalf("expected summary to mention category, got %q", summary)
	}

	custom, ok := payloadSection["custom_details"].(map[string]any)
	if !ok {
		t.Fatalf("expected custom details")
	}
	for _, key := range []string{"source", "status", "error_category", "detail"} {
		if _, exists := custom[key]; !exists {
			t.Fatalf("expected key %s in custom details", key)
		}
	}

	if event["dedup_key"] != "mmk-job-ingest:acme-jobs:health" {
		t.Fatalf("unexpected dedup key %v", event["dedup_key"])
	}
}

func TestBuildEventRecoveryResolvesSameIncident(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	down := client.buildEvent(notify.SourceAlertPayload{Kind: notify.AlertSourceDown, Source: "acme-jobs"})
	recovered := client.buildEvent(notify.SourceAlertPayload{Kind: notify.AlertSourceRecovered, Source: "acme-jobs"})

	if recovered["event_action"] != "resolve" {
		t.Fatalf("expected resolve action, got %v", recovered["event_action"])
	}
	if recovered["dedup_key"] != down["dedup_key"] {
		t.Fatalf("recovery dedup key %v does not match %v", recovered["dedup_key"], down["dedup_key"])
	}
	if _, ok := recovered["payload"]; ok {
		t.Fatal("resolve events carry no payload")
	}

	cred := client.buildEvent(notify.SourceAlertPayload{Kind: notify.AlertCredentialExpiring, Source: "acme-jobs"})
	if cred["dedup_key"] == down["dedup_key"] {
		t.Fatal("credential alerts must not share the health incident")
	}
}

func TestSendSourceAlertUsesEndpoint(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "key", Endpoint: srv.URL, Client: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.SendSourceAlert(context.Background(), notify.SourceAlertPayload{
		Kind:   notify.AlertSourceDown,
		Source: "acme-jobs",
		Status: model.HealthStatusDown,
	})
	if err != nil {
		t.Fatalf("SendSourceAlert: %v", err)
	}
	if got["routing_key"] != "key" {
		t.Fatalf("expected routing key in body, got %v", got["routing_key"])
	}
}
