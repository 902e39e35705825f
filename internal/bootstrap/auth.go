package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/adapters/oidc"
	httpx "github.com/target/mmk-job-ingest/internal/http"
)

// BuildVerifier returns the operator API token verifier for the configured auth mode.
// AUTH_MODE=none yields nil, which leaves the API open.
//
//nolint:ireturn // nil is a meaningful result for AUTH_MODE=none.
func BuildVerifier(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (httpx.TokenVerifier, error) {
	if cfg.Mode == config.AuthModeNone {
		if logger != nil {
			logger.WarnContext(ctx, "operator API authentication disabled", "auth_mode", cfg.Mode)
		}
		return nil, nil
	}

	v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
		IssuerURL:     cfg.OIDC.IssuerURL,
		Audience:      cfg.OIDC.Audience,
		RequiredGroup: cfg.OIDC.RequiredGroup,
		GroupsClaim:   cfg.OIDC.GroupsClaim,
	})
	if err != nil {
		return nil, fmt.Errorf("create oidc verifier: %w", err)
	}
	return v, nil
}
