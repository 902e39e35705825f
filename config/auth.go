package config

import (
	"fmt"
	"strings"
)

// AuthMode represents the authentication mode for the operator API.
type AuthMode string

const (
	// AuthModeOIDC verifies bearer tokens issued by an OIDC provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeNone disables operator API authentication (for development only).
	AuthModeNone AuthMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "none":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, none)", v)
	}
}

// OIDCConfig contains bearer token verification settings.
type OIDCConfig struct {
	// IssuerURL is the OIDC issuer used for discovery.
	IssuerURL string `env:"ISSUER_URL"`
	// Audience is the expected "aud" claim, usually the operator client ID.
	Audience string `env:"AUDIENCE" envDefault:"mmk-job-ingest"`
	// RequiredGroup, when set, must appear in the token's groups claim.
	RequiredGroup string `env:"REQUIRED_GROUP"`
	// GroupsClaim names the claim holding group membership.
	GroupsClaim string `env:"GROUPS_CLAIM" envDefault:"groups"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines how operator API requests are authenticated.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"AUTH_OIDC_"`

	// Client configures the admin CLI's client-credentials grant against the same issuer.
	Client ClientCredentialsConfig `envPrefix:"AUTH_CLIENT_"`
}

// ClientCredentialsConfig holds the OAuth2 client used by mmk-job-ingest-admin to call
// the operator API.
type ClientCredentialsConfig struct {
	ID       string   `env:"ID"`
	Secret   string   `env:"SECRET"`
	TokenURL string   `env:"TOKEN_URL"`
	Scopes   []string `env:"SCOPES"    envDefault:"openid"`
}

// Enabled reports whether enough is configured to request a token.
func (c ClientCredentialsConfig) Enabled() bool {
	return strings.TrimSpace(c.ID) != "" && strings.TrimSpace(c.TokenURL) != ""
}

// Validate checks that the selected mode has what it needs.
func (c AuthConfig) Validate() error {
	if c.Mode == AuthModeOIDC && strings.TrimSpace(c.OIDC.IssuerURL) == "" {
		return fmt.Errorf("AUTH_OIDC_ISSUER_URL is required when AUTH_MODE=%s", AuthModeOIDC)
	}
	return nil
}
