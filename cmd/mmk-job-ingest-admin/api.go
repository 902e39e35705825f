package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

const apiTimeout = 90 * time.Second

// apiClient calls the operator API. When client credentials are configured every request
// carries a bearer token from the client-credentials grant.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(ctx context.Context, base string, creds config.ClientCredentialsConfig) (*apiClient, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if _, err := url.ParseRequestURI(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid API base URL %q", base)
	}

	hc := &http.Client{Timeout: apiTimeout}
	if creds.Enabled() {
		cc := clientcredentials.Config{
			ClientID:     creds.ID,
			ClientSecret: creds.Secret,
			TokenURL:     creds.TokenURL,
			Scopes:       creds.Scopes,
		}
		hc = cc.Client(ctx)
		hc.Timeout = apiTimeout
	}
	return &apiClient{base: base, http: hc}, nil
}

// apiError is the operator API's error body.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("operator API returned %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("operator API returned %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type apiOptions struct {
	API    string
	Source string
	JSON   bool
}

func parseAPIFlags(name string, args []string, cfg config.AppConfig, requireSource bool) (apiOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts apiOptions
	fs.StringVar(&opts.API, "api", cfg.HTTP.BaseURL, "Operator API base URL")
	fs.StringVar(&opts.Source, "source", "", "Source name")
	fs.BoolVar(&opts.JSON, "json", false, "Print the raw JSON response")

	if err := fs.Parse(args); err != nil {
		return apiOptions{}, err
	}
	opts.Source = strings.TrimSpace(opts.Source)
	if requireSource && opts.Source == "" {
		return apiOptions{}, errors.New("--source is required")
	}
	return opts, nil
}

func runHealth(cmdCtx *commandContext, args []string) error {
	opts, err := parseAPIFlags("health", args, cmdCtx.Config, false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, apiTimeout)
	defer cancel()

	client, err := newAPIClient(ctx, opts.API, cmdCtx.Config.Auth.Client)
	if err != nil {
		return err
	}

	var all []model.SourceHealth
	if opts.Source != "" {
		var one model.SourceHealth
		if err := client.do(ctx, http.MethodGet, "/api/sources/"+url.PathEscape(opts.Source)+"/health", &one); err != nil {
			return err
		}
		all = []model.SourceHealth{one}
	} else {
		var body struct {
			Sources []model.SourceHealth `json:"sources"`
		}
		if err := client.do(ctx, http.MethodGet, "/api/sources/health", &body); err != nil {
			return err
		}
		all = body.Sources
	}

	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}
	return printHealth(cmdCtx.Stdout, all)
}

func printHealth(w io.Writer, all []model.SourceHealth) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if err := writef(tw, "SOURCE\tSTATUS\tSUCCESS\tSAMPLES\tFAILS\tERRORS_24H\tAVG\tCREDENTIAL\tREASON\n"); err != nil {
		return err
	}
	for _, h := range all {
		reason := ""
		if h.Reason != nil {
			reason = string(h.Reason.Category)
			if h.Reason.Detail != "" {
				reason += ": " + truncate(h.Reason.Detail, 60)
			}
		}
		cred := "-"
		if h.Credential != nil {
			cred = h.Credential.ExpiresAt.UTC().Format(time.DateOnly)
			if h.CredentialWarning {
				cred += " (expiring)"
			}
		}
		if err := writef(tw, "%s\t%s\t%.1f%%\t%d\t%d\t%d\t%dms\t%s\t%s\n",
			h.Source,
			h.Status,
			h.SuccessRate*100,
			h.SampleCount,
			h.ConsecutiveFailures,
			h.ErrorCount24h,
			h.AvgDurationMs,
			cred,
			reason,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// sourceAction builds a command that POSTs to /api/sources/{source}<suffix> and prints
// the response.
func sourceAction(name, suffix string) commandFn {
	return func(cmdCtx *commandContext, args []string) error {
		opts, err := parseAPIFlags(name, args, cmdCtx.Config, true)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmdCtx.Ctx, apiTimeout)
		defer cancel()

		client, err := newAPIClient(ctx, opts.API, cmdCtx.Config.Auth.Client)
		if err != nil {
			return err
		}

		var out json.RawMessage
		path := "/api/sources/" + url.PathEscape(opts.Source) + suffix
		if err := client.do(ctx, http.MethodPost, path, &out); err != nil {
			return err
		}

		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
}
