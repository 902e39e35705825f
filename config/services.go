package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/domain/retry"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the operator HTTP API. It drives the in-process orchestrator, so it
	// requires ServiceModeIngest in the same process.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeIngest runs the ingestion orchestrator.
	ServiceModeIngest ServiceMode = "ingest"
	// ServiceModeReaper runs retention cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeIngest,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeIngest, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, ingest, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	if services[ServiceModeHTTP] && !services[ServiceModeIngest] {
		return nil, errors.New("service http requires ingest in the same process")
	}

	return services, nil
}

// DedupStoreKind selects the fingerprint store backend.
type DedupStoreKind string

const (
	// DedupStoreMemory keeps fingerprints in process.
	DedupStoreMemory DedupStoreKind = "memory"
	// DedupStoreRedis shares fingerprints across replicas through Redis.
	DedupStoreRedis DedupStoreKind = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for DedupStoreKind.
func (k *DedupStoreKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch DedupStoreKind(v) {
	case DedupStoreMemory, DedupStoreRedis:
		*k = DedupStoreKind(v)
		return nil
	default:
		return fmt.Errorf("invalid DedupStoreKind: %q (valid options: memory, redis)", v)
	}
}

// IngestConfig contains orchestrator configuration.
type IngestConfig struct {
	// SourcesFile is the YAML file listing every source.
	SourcesFile string `env:"INGEST_SOURCES_FILE" envDefault:"config/sources.yaml"`

	// DefaultInterval applies to sources without an explicit interval.
	DefaultInterval time.Duration `env:"INGEST_DEFAULT_INTERVAL" envDefault:"15m"`

	// DefaultTimeout bounds each adapter attempt for sources without an explicit timeout.
	DefaultTimeout time.Duration `env:"INGEST_DEFAULT_TIMEOUT" envDefault:"30s"`

	// Retry policy applied around every adapter call.
	RetryMaxAttempts    int                   `env:"INGEST_RETRY_MAX_ATTEMPTS"    envDefault:"5"`
	RetryInitialDelay   time.Duration         `env:"INGEST_RETRY_INITIAL_DELAY"   envDefault:"1s"`
	RetryMaxDelay       time.Duration         `env:"INGEST_RETRY_MAX_DELAY"       envDefault:"30s"`
	RetryMultiplier     float64               `env:"INGEST_RETRY_MULTIPLIER"      envDefault:"2"`
	RetryJitterFraction float64               `env:"INGEST_RETRY_JITTER_FRACTION" envDefault:"0.2"`
	RetryableCategories []model.ErrorCategory `env:"INGEST_RETRYABLE_CATEGORIES"  envDefault:"timeout,service_unavailable,rate_limited"`

	// DedupStore selects where fingerprints live.
	DedupStore DedupStoreKind `env:"INGEST_DEDUP_STORE" envDefault:"memory"`

	// DedupKeyPrefix namespaces fingerprint keys in Redis.
	DedupKeyPrefix string `env:"INGEST_DEDUP_KEY_PREFIX" envDefault:"mmk:ingest:fp:"`

	// DedupTTL expires Redis fingerprints that have not been seen for this long. Zero keeps
	// them forever, matching the in-memory store.
	DedupTTL time.Duration `env:"INGEST_DEDUP_TTL" envDefault:"0"`

	// StartJitter spreads the first cycle of each source across this fraction of its interval.
	StartJitter float64 `env:"INGEST_START_JITTER" envDefault:"0.1"`
}

// Sanitize applies guardrails to ingest configuration values.
func (c *IngestConfig) Sanitize() {
	if c.DefaultInterval < 10*time.Second {
		c.DefaultInterval = 10 * time.Second
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = 30 * time.Second
	}
	if c.RetryMaxAttempts < 1 {
		c.RetryMaxAttempts = 1
	}
	if c.RetryInitialDelay < 0 {
		c.RetryInitialDelay = 0
	}
	if c.RetryMaxDelay < c.RetryInitialDelay {
		c.RetryMaxDelay = c.RetryInitialDelay
	}
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = 1
	}
	c.RetryJitterFraction = clamp01(c.RetryJitterFraction)
	c.StartJitter = clamp01(c.StartJitter)
	if c.DedupStore == "" {
		c.DedupStore = DedupStoreMemory
	}
	switch {
	case c.DedupTTL <= 0:
		c.DedupTTL = 0
	case c.DedupTTL < 24*time.Hour:
		c.DedupTTL = 24 * time.Hour
	}
}

// RetryPolicy converts the retry settings into a retry.Policy.
func (c IngestConfig) RetryPolicy() retry.Policy {
	categories := c.RetryableCategories
	if len(categories) == 0 {
		categories = retry.DefaultRetryableCategories()
	}
	return retry.Policy{
		MaxAttempts:         c.RetryMaxAttempts,
		InitialDelay:        c.RetryInitialDelay,
		MaxDelay:            c.RetryMaxDelay,
		BackoffMultiplier:   c.RetryMultiplier,
		RetryableCategories: categories,
		JitterFraction:      c.RetryJitterFraction,
	}
}

// HealthConfig contains health tracker configuration.
type HealthConfig struct {
	// Window is how far back run records count toward the success rate.
	Window time.Duration `env:"HEALTH_WINDOW" envDefault:"720h"` // 30 days

	// MinSamples is the number of runs required before a status other than unknown is reported.
	MinSamples int `env:"HEALTH_MIN_SAMPLES" envDefault:"5"`

	// HealthyThreshold and DegradedThreshold are success-rate cut-offs.
	HealthyThreshold  float64 `env:"HEALTH_HEALTHY_THRESHOLD"  envDefault:"0.90"`
	DegradedThreshold float64 `env:"HEALTH_DEGRADED_THRESHOLD" envDefault:"0.70"`

	// CredentialWarningDays applies to credentials that do not carry their own threshold.
	CredentialWarningDays int `env:"HEALTH_CREDENTIAL_WARNING_DAYS" envDefault:"30"`

	// SmokeTestTimeout bounds a single smoke test probe.
	SmokeTestTimeout time.Duration `env:"HEALTH_SMOKE_TEST_TIMEOUT" envDefault:"15s"`

	// MaxRecordsPerSource bounds the in-memory run window per source.
	MaxRecordsPerSource int `env:"HEALTH_MAX_RECORDS_PER_SOURCE" envDefault:"5000"`

	// HydrateOnStart loads the run window and operator overrides from Postgres at startup.
	HydrateOnStart bool `env:"HEALTH_HYDRATE_ON_START" envDefault:"true"`
}

// DefaultHealthConfig returns the documented defaults, for callers that do not load from env.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Window:                30 * 24 * time.Hour,
		MinSamples:            5,
		HealthyThreshold:      0.90,
		DegradedThreshold:     0.70,
		CredentialWarningDays: 30,
		SmokeTestTimeout:      15 * time.Second,
		MaxRecordsPerSource:   5000,
		HydrateOnStart:        true,
	}
}

// Sanitize applies guardrails to health configuration values.
func (c *HealthConfig) Sanitize() {
	if c.Window < time.Hour {
		c.Window = time.Hour
	}
	if c.MinSamples < 1 {
		c.MinSamples = 1
	}
	c.HealthyThreshold = clamp01(c.HealthyThreshold)
	c.DegradedThreshold = clamp01(c.DegradedThreshold)
	if c.DegradedThreshold > c.HealthyThreshold {
		c.DegradedThreshold = c.HealthyThreshold
	}
	if c.CredentialWarningDays < 0 {
		c.CredentialWarningDays = 0
	}
	if c.SmokeTestTimeout <= 0 {
		c.SmokeTestTimeout = 15 * time.Second
	}
	if c.MaxRecordsPerSource < c.MinSamples {
		c.MaxRecordsPerSource = c.MinSamples
	}
}

// ReaperConfig contains retention reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1h"`

	// RunRecordMaxAge is the retention window for run records.
	RunRecordMaxAge time.Duration `env:"REAPER_RUN_RECORD_MAX_AGE" envDefault:"720h"` // 30 days

	// SmokeTestMaxAge is the retention window for smoke test results.
	SmokeTestMaxAge time.Duration `env:"REAPER_SMOKE_TEST_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to delete per statement.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.RunRecordMaxAge < 24*time.Hour {
		r.RunRecordMaxAge = 24 * time.Hour
	}
	if r.SmokeTestMaxAge < 24*time.Hour {
		r.SmokeTestMaxAge = 24 * time.Hour
	}

	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
