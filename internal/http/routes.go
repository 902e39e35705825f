package httpx

import (
	"net/http"
	"time"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Sources SourceService
	// Verifier guards /api routes. Nil disables authentication (AUTH_MODE=none).
	Verifier       TokenVerifier
	RequestTimeout time.Duration
	// Readiness checks reported by /healthz, keyed by store name.
	Readiness map[string]ReadinessCheck
}

// NewRouter creates and configures the operator API router. Logging and Recover are
// applied by the caller.
func NewRouter(services RouterServices) http.Handler {
	api := http.NewServeMux()
	registerSourceRoutes(api, &SourceHandlers{Svc: services.Sources})

	var apiHandler http.Handler = api
	if services.Verifier != nil {
		apiHandler = RequireBearer(services.Verifier)(apiHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", healthHandler(services.Readiness))
	mux.Handle("/api/", apiHandler)

	return Timeout(services.RequestTimeout)(mux)
}

func registerSourceRoutes(mux *http.ServeMux, h *SourceHandlers) {
	mux.HandleFunc("GET /api/sources", h.List)
	mux.HandleFunc("GET /api/sources/health", h.HealthAll)
	mux.HandleFunc("GET /api/sources/{source}/health", h.Health)
	mux.HandleFunc("GET /api/sources/{source}/credential", h.Credential)
	mux.HandleFunc("POST /api/sources/{source}/enable", h.Enable)
	mux.HandleFunc("POST /api/sources/{source}/disable", h.Disable)
	mux.HandleFunc("POST /api/sources/{source}/smoke-test", h.SmokeTest)
	mux.HandleFunc("POST /api/sources/{source}/rate-limit/reset", h.ResetRateLimit)
	mux.HandleFunc("POST /api/sources/{source}/trigger", h.Trigger)
}
