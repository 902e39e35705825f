// Package oidc verifies operator bearer tokens issued by an OIDC provider.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ErrForbidden is returned when a valid token lacks the required group.
var ErrForbidden = errors.New("oidc: token is missing the required group")

// Principal is the authenticated operator behind a request.
type Principal struct {
	Subject   string
	Email     string
	Groups    []string
	ExpiresAt time.Time
}

// VerifierConfig holds configuration for the bearer token verifier.
type VerifierConfig struct {
	IssuerURL     string
	Audience      string
	RequiredGroup string       // Optional: empty admits any valid token
	GroupsClaim   string       // Optional: defaults to "groups"
	HTTPClient    *http.Client // Optional, defaults to a client with a 30s timeout
}

// Verifier checks signature, issuer, audience, and expiry through go-oidc, then applies
// the group requirement.
type Verifier struct {
	verifier      *gooidc.IDTokenVerifier
	requiredGroup string
	groupsClaim   string
}

// NewVerifier discovers the issuer's keys and constructs a Verifier.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return newVerifier(op.Verifier(&gooidc.Config{ClientID: cfg.Audience}), cfg), nil
}

// NewVerifierWithKeySet builds a Verifier against a fixed key set, skipping discovery.
func NewVerifierWithKeySet(keySet gooidc.KeySet, cfg VerifierConfig) *Verifier {
	return newVerifier(gooidc.NewVerifier(cfg.IssuerURL, keySet, &gooidc.Config{ClientID: cfg.Audience}), cfg)
}

func newVerifier(v *gooidc.IDTokenVerifier, cfg VerifierConfig) *Verifier {
	groupsClaim := cfg.GroupsClaim
	if groupsClaim == "" {
		groupsClaim = "groups"
	}
	return &Verifier{verifier: v, requiredGroup: cfg.RequiredGroup, groupsClaim: groupsClaim}
}

// Verify validates a raw bearer token and returns its principal.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Principal, error) {
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Principal{}, fmt.Errorf("verify token: %w", err)
	}

	var claims map[string]any
	if err := tok.Claims(&claims); err != nil {
		return Principal{}, fmt.Errorf("parse token claims: %w", err)
	}
	p := principalFromClaims(tok.Subject, claims, v.groupsClaim)
	p.ExpiresAt = tok.Expiry
	if err := v.authorize(p); err != nil {
		return Principal{}, err
	}
	return p, nil
}

func (v *Verifier) authorize(p Principal) error {
	if v.requiredGroup == "" || slices.Contains(p.Groups, v.requiredGroup) {
		return nil
	}
	return ErrForbidden
}

// principalFromClaims maps raw claims into a Principal. Groups may be a list or a single
// string, depending on the provider.
func principalFromClaims(subject string, claims map[string]any, groupsClaim string) Principal {
	p := Principal{Subject: subject}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	switch g := claims[groupsClaim].(type) {
	case []any:
		for _, item := range g {
			if s, ok := item.(string); ok && s != "" {
				p.Groups = append(p.Groups, s)
			}
		}
	case string:
		if g != "" {
			p.Groups = []string{g}
		}
	}
	return p
}
