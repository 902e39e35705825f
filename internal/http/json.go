// Package httpx serves the operator API for source health and control.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/target/mmk-job-ingest/internal/errors"
	"github.com/target/mmk-job-ingest/internal/service/health"
	"github.com/target/mmk-job-ingest/internal/service/ingest"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// ErrorParams groups parameters for WriteError to adhere to the ≤3 params guideline.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, map[string]string{"error": p.ErrCode, "message": p.Err.Error()})
}

// writeServiceError maps orchestrator and repository errors onto status codes. Internal
// failures are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ingest.ErrUnknownSource), errors.Is(err, health.ErrUnknownSource):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "unknown_source", Err: err})
	case errors.Is(err, ingest.ErrSourceDisabled):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "source_disabled", Err: err})
	case errors.Is(err, health.ErrNoProbe):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "no_probe", Err: err})
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code != apperrors.ErrCodeInternal {
			WriteError(w, ErrorParams{
				Code:    apperrors.HTTPStatus(err),
				ErrCode: string(appErr.Code),
				Err:     errors.New(appErr.Message),
			})
			return
		}
		slog.Default().ErrorContext(r.Context(), "operator request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: string(apperrors.ErrCodeInternal),
			Err:     errors.New(http.StatusText(http.StatusInternalServerError)),
		})
	}
}
