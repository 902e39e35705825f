// Package jsonfeed fetches postings from JSON endpoints. JMESPath expressions locate the
// item list and each posting field, so new boards are onboarded through configuration.
package jsonfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// maxBodyBytes caps the response size read from a feed.
const maxBodyBytes = 16 << 20

// userAgent identifies the ingester to job boards.
const userAgent = "mmk-job-ingest/1.0"

var (
	_ core.SourceAdapter = (*Adapter)(nil)
	_ core.Prober        = (*Adapter)(nil)
)

// Options groups optional dependencies for Adapter.
type Options struct {
	Client *http.Client            // Optional: defaults to a client without a global timeout
	Getenv func(key string) string // Optional: defaults to os.Getenv
	Logger *slog.Logger            // Optional
}

// Adapter is a core.SourceAdapter for one JSON feed source.
type Adapter struct {
	name   string
	feed   model.FeedConfig
	client *http.Client
	getenv func(string) string
	logger *slog.Logger
}

// New validates the feed's JMESPath expressions and constructs an Adapter.
func New(cfg model.SourceConfig, opts Options) (*Adapter, error) {
	if cfg.Kind != model.SourceKindJSONFeed {
		return nil, fmt.Errorf("source %s: jsonfeed cannot serve kind %q", cfg.Name, cfg.Kind)
	}
	for field, expr := range map[string]string{
		"items_path":    cfg.Feed.ItemsPath,
		"title_path":    cfg.Feed.TitlePath,
		"company_path":  cfg.Feed.CompanyPath,
		"location_path": cfg.Feed.LocationPath,
		"url_path":      cfg.Feed.URLPath,
	} {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("source %s: invalid feed.%s %q: %w", cfg.Name, field, expr, err)
		}
	}

	client := opts.Client
	if client == nil {
		// Per-attempt deadlines come from the caller's context.
		client = &http.Client{}
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		name:   cfg.Name,
		feed:   cfg.Feed,
		client: client,
		getenv: getenv,
		logger: logger.With("component", "jsonfeed", "source", cfg.Name),
	}, nil
}

// Name implements core.SourceAdapter.
func (a *Adapter) Name() string { return a.name }

// Fetch implements core.SourceAdapter. Items missing a title or URL are skipped; a page
// where every item is missing them means the paths no longer match the feed.
func (a *Adapter) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	body, err := a.get(ctx, a.feed.URL)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, failure.Wrap(err, model.ErrorCategorySelectorMismatch, "response is not valid JSON")
	}

	items, err := a.items(doc)
	if err != nil {
		return nil, err
	}

	postings := make([]model.RawPosting, 0, len(items))
	for _, item := range items {
		p := model.RawPosting{
			Title:    a.field(a.feed.TitlePath, item),
			Company:  a.field(a.feed.CompanyPath, item),
			Location: a.field(a.feed.LocationPath, item),
			URL:      a.field(a.feed.URLPath, item),
		}
		if p.Title == "" || p.URL == "" {
			continue
		}
		postings = append(postings, p)
	}

	if len(items) > 0 && len(postings) == 0 {
		return nil, failure.SelectorMismatch(fmt.Sprintf(
			"none of %d items matched title_path %q and url_path %q", len(items), a.feed.TitlePath, a.feed.URLPath))
	}
	if skipped := len(items) - len(postings); skipped > 0 {
		a.logger.WarnContext(ctx, "skipped items without title or url", "skipped", skipped, "items", len(items))
	}
	return postings, nil
}

// Probe implements core.Prober. With a probe URL configured only reachability and
// authorization are checked; otherwise the feed itself is fetched and parsed.
func (a *Adapter) Probe(ctx context.Context) error {
	if a.feed.ProbeURL == "" {
		_, err := a.Fetch(ctx)
		return err
	}
	_, err := a.get(ctx, a.feed.ProbeURL)
	return err
}

func (a *Adapter) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, failure.Wrap(err, model.ErrorCategoryUnknown, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range a.feed.Headers {
		req.Header.Set(k, v)
	}
	if a.feed.TokenEnv != "" {
		token := a.getenv(a.feed.TokenEnv)
		if token == "" {
			return nil, failure.AuthFailed(fmt.Sprintf("credential %s is not set", a.feed.TokenEnv))
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				return nil, failure.Wrap(err, model.ErrorCategoryTimeout, "request timed out")
			}
			return nil, ctxErr
		}
		return nil, failure.Wrap(err, failure.Classify(err), "request failed")
	}
	defer resp.Body.Close()

	if ferr := failure.FromStatus(resp.StatusCode, statusDetail(resp)); ferr != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, ferr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, failure.Wrap(err, failure.Classify(err), "read response body")
	}
	return body, nil
}

func (a *Adapter) items(doc any) ([]any, error) {
	list := doc
	if a.feed.ItemsPath != "" {
		var err error
		list, err = jmespath.Search(a.feed.ItemsPath, doc)
		if err != nil {
			return nil, failure.Wrap(err, model.ErrorCategorySelectorMismatch, "evaluate items_path")
		}
	}
	items, ok := list.([]any)
	if !ok {
		return nil, failure.SelectorMismatch(fmt.Sprintf("items_path %q did not select a list", a.feed.ItemsPath))
	}
	return items, nil
}

// field evaluates expr against item and renders scalars as strings. Missing or
// non-scalar values are empty.
func (a *Adapter) field(expr string, item any) string {
	if expr == "" {
		return ""
	}
	v, err := jmespath.Search(expr, item)
	if err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func statusDetail(resp *http.Response) string {
	detail := fmt.Sprintf("GET %s returned %s", resp.Request.URL.Redacted(), resp.Status)
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil {
			detail += fmt.Sprintf(", retry after %s", time.Duration(secs)*time.Second)
		}
	}
	return detail
}
