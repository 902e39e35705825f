package httpx

import (
	"context"
	"net/http"

	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// SourceService is the orchestrator surface the operator API drives.
type SourceService interface {
	Sources() []string
	State(source string) (model.SourceState, error)
	Health(ctx context.Context, source string) (model.SourceHealth, error)
	HealthAll(ctx context.Context) []model.SourceHealth
	CredentialHealth(ctx context.Context, source string) (*model.CredentialHealth, error)
	SetEnabled(ctx context.Context, source string, enabled bool) error
	RunSmokeTest(ctx context.Context, source string) (model.SmokeTestResult, error)
	ResetRateLimit(ctx context.Context, source string) error
	TriggerNow(ctx context.Context, source string) error
}

// SourceHandlers serves source health and operator actions.
type SourceHandlers struct {
	Svc SourceService
}

type sourceSummary struct {
	Source string             `json:"source"`
	State  model.SourceState  `json:"state"`
	Status model.HealthStatus `json:"status"`
}

type actionResponse struct {
	Source string `json:"source"`
	Action string `json:"action"`
	Status string `json:"status"`
}

// List returns every source with its cycle state and health status.
func (h *SourceHandlers) List(w http.ResponseWriter, r *http.Request) {
	all := h.Svc.HealthAll(r.Context())
	out := make([]sourceSummary, 0, len(all))
	for _, sh := range all {
		state, err := h.Svc.State(sh.Source)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out = append(out, sourceSummary{Source: sh.Source, State: state, Status: sh.Status})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"sources": out})
}

// HealthAll returns the full health report for every source.
func (h *SourceHandlers) HealthAll(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"sources": h.Svc.HealthAll(r.Context())})
}

// Health returns one source's health report.
func (h *SourceHandlers) Health(w http.ResponseWriter, r *http.Request) {
	sh, err := h.Svc.Health(r.Context(), r.PathValue("source"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sh)
}

// Credential returns credential validity metadata. 404 when none is on file.
func (h *SourceHandlers) Credential(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	cred, err := h.Svc.CredentialHealth(r.Context(), source)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if cred == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{
			"error":   "no_credential",
			"message": "no credential metadata on file for " + source,
		})
		return
	}
	WriteJSON(w, http.StatusOK, cred)
}

// Enable clears an operator disable.
func (h *SourceHandlers) Enable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// Disable parks the source until it is re-enabled.
func (h *SourceHandlers) Disable(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *SourceHandlers) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	source := r.PathValue("source")
	if err := h.Svc.SetEnabled(r.Context(), source, enabled); err != nil {
		writeServiceError(w, r, err)
		return
	}
	action := "disable"
	if enabled {
		action = "enable"
	}
	WriteJSON(w, http.StatusOK, actionResponse{Source: source, Action: action, Status: "ok"})
}

// SmokeTest probes the source once and returns the result. A failing probe is still 200;
// the outcome is in the body.
func (h *SourceHandlers) SmokeTest(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.RunSmokeTest(r.Context(), r.PathValue("source"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// ResetRateLimit refills the source's token bucket.
func (h *SourceHandlers) ResetRateLimit(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if err := h.Svc.ResetRateLimit(r.Context(), source); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, actionResponse{Source: source, Action: "reset_rate_limit", Status: "ok"})
}

// Trigger runs the source's next cycle now. The cycle runs asynchronously.
func (h *SourceHandlers) Trigger(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")
	if err := h.Svc.TriggerNow(r.Context(), source); err != nil {
		writeServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, actionResponse{Source: source, Action: "trigger", Status: "queued"})
}
