package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxNameLen is the maximum allowed length for source names in characters.
	maxNameLen = 255
)

// sourceNamePattern keeps names safe for URL paths, metric tags, and log keys.
var sourceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// SourceKind selects the adapter implementation for a source.
type SourceKind string

const (
	// SourceKindJSONFeed is the generic JSON feed adapter.
	SourceKindJSONFeed SourceKind = "jsonfeed"
)

// SourceConfig is the per-source configuration loaded from the sources file.
type SourceConfig struct {
	Name     string        `yaml:"name"     json:"name"`
	Kind     SourceKind    `yaml:"kind"     json:"kind"`
	Disabled bool          `yaml:"disabled" json:"disabled"`
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Timeout bounds each adapter attempt, independent of the limiter and retry policy.
	Timeout   time.Duration   `yaml:"timeout"    json:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Feed      FeedConfig      `yaml:"feed"       json:"feed"`
}

// RateLimitConfig is a source's token bucket size and refill rate.
type RateLimitConfig struct {
	Capacity        int     `yaml:"capacity"          json:"capacity"`
	RefillPerSecond float64 `yaml:"refill_per_second" json:"refill_per_second"`
}

// FeedConfig configures the JSON feed adapter. Paths are JMESPath expressions.
type FeedConfig struct {
	URL          string            `yaml:"url"           json:"url"`
	ItemsPath    string            `yaml:"items_path"    json:"items_path"`
	TitlePath    string            `yaml:"title_path"    json:"title_path"`
	CompanyPath  string            `yaml:"company_path"  json:"company_path"`
	LocationPath string            `yaml:"location_path" json:"location_path"`
	URLPath      string            `yaml:"url_path"      json:"url_path"`
	ProbeURL     string            `yaml:"probe_url"     json:"probe_url,omitempty"`
	TokenEnv     string            `yaml:"token_env"     json:"token_env,omitempty"`
	Headers      map[string]string `yaml:"headers"       json:"headers,omitempty"`
}

// ApplyDefaults fills zero interval and timeout values.
func (c *SourceConfig) ApplyDefaults(interval, timeout time.Duration) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Kind == "" {
		c.Kind = SourceKindJSONFeed
	}
	if c.Interval <= 0 {
		c.Interval = interval
	}
	if c.Timeout <= 0 {
		c.Timeout = timeout
	}
}

// Validate validates the SourceConfig fields.
func (c *SourceConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(c.Name) > maxNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	if !sourceNamePattern.MatchString(c.Name) {
		return fmt.Errorf("name %q must be lowercase letters, digits, '.', '_' or '-'", c.Name)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("source %s: interval must be positive", c.Name)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("source %s: timeout must be positive", c.Name)
	}
	if c.RateLimit.Capacity < 1 {
		return fmt.Errorf("source %s: rate_limit.capacity must be >= 1", c.Name)
	}
	if c.RateLimit.RefillPerSecond <= 0 {
		return fmt.Errorf("source %s: rate_limit.refill_per_second must be positive", c.Name)
	}

	switch c.Kind {
	case SourceKindJSONFeed:
		return c.Feed.validate(c.Name)
	default:
		return fmt.Errorf("source %s: unsupported kind %q", c.Name, c.Kind)
	}
}

func (f FeedConfig) validate(source string) error {
	if strings.TrimSpace(f.URL) == "" {
		return fmt.Errorf("source %s: feed.url is required", source)
	}
	if strings.TrimSpace(f.TitlePath) == "" || strings.TrimSpace(f.URLPath) == "" {
		return fmt.Errorf("source %s: feed.title_path and feed.url_path are required", source)
	}
	return nil
}

// SourceState is the orchestrator's per-source cycle state.
type SourceState string

const (
	// SourceStateIdle waits for the next cycle.
	SourceStateIdle SourceState = "idle"
	// SourceStateAcquiring waits on the rate limiter.
	SourceStateAcquiring SourceState = "acquiring"
	// SourceStateRunning invokes the adapter through the retry executor.
	SourceStateRunning SourceState = "running"
	// SourceStateRecording dedups postings and writes the run record.
	SourceStateRecording SourceState = "recording"
	// SourceStateDisabled is parked until an operator re-enables the source.
	SourceStateDisabled SourceState = "disabled"
)

// SourceOverride is the persisted operator enable/disable toggle for a source.
type SourceOverride struct {
	Source    string    `json:"source"     db:"source"`
	Enabled   bool      `json:"enabled"    db:"enabled"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
