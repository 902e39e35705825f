package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-job-ingest/config"
	httpx "github.com/target/mmk-job-ingest/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	HTTP        config.HTTPConfig
	Sources     httpx.SourceService
	Verifier    httpx.TokenVerifier
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := buildHTTPHandler(logger, cfg)
	return startServer(logger, handler, cfg.HTTP)
}

func buildHTTPHandler(logger *slog.Logger, cfg *HTTPServerConfig) http.Handler {
	readiness := map[string]httpx.ReadinessCheck{}
	if cfg.DB != nil {
		readiness["postgres"] = cfg.DB.PingContext
	}
	if cfg.RedisClient != nil {
		client := cfg.RedisClient
		readiness["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Sources:        cfg.Sources,
		Verifier:       cfg.Verifier,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Readiness:      readiness,
	})

	// Order: Recover -> Logging -> Router
	h := httpx.Logging(logger)(router)
	return httpx.Recover(logger)(h)
}

func startServer(logger *slog.Logger, handler http.Handler, cfg config.HTTPConfig) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}
	return nil
}
