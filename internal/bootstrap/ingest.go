package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/adapters/jsonfeed"
	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/data"
	"github.com/target/mmk-job-ingest/internal/domain/dedup"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/domain/ratelimit"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
	"github.com/target/mmk-job-ingest/internal/service/health"
	"github.com/target/mmk-job-ingest/internal/service/ingest"
)

// IngestDeps groups dependencies for the ingestion stack.
type IngestDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // Required when INGEST_DEDUP_STORE=redis
	Metrics     statsd.Sink
	Logger      *slog.Logger
	// Sources overrides INGEST_SOURCES_FILE. Optional.
	Sources []model.SourceConfig
}

// IngestStack is the wired orchestrator plus the pieces other services share.
type IngestStack struct {
	Orchestrator *ingest.Orchestrator
	Tracker      *health.Tracker
	Limiter      *ratelimit.Limiter
}

// BuildIngest loads the sources and wires the limiter, tracker, deduplicator, posting sink,
// and orchestrator. With HEALTH_HYDRATE_ON_START the tracker is seeded from Postgres.
func BuildIngest(ctx context.Context, deps IngestDeps) (*IngestStack, error) {
	if deps.Config == nil {
		return nil, errors.New("ingest config is required")
	}
	if deps.DB == nil {
		return nil, errors.New("database connection is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := deps.Sources
	if sources == nil {
		loaded, err := config.LoadSources(cfg.Ingest.SourcesFile, cfg.Ingest)
		if err != nil {
			return nil, err
		}
		sources = loaded
	}

	bound, err := buildSourceAdapters(sources, logger)
	if err != nil {
		return nil, err
	}

	store, err := buildFingerprintStore(cfg.Ingest, deps.RedisClient)
	if err != nil {
		return nil, err
	}
	dd, err := dedup.New(dedup.Options{Store: store})
	if err != nil {
		return nil, fmt.Errorf("create deduplicator: %w", err)
	}

	runs := data.NewRunRecordRepo(deps.DB)
	limiter := ratelimit.New(ratelimit.Options{})
	tracker := health.NewTracker(health.TrackerOptions{
		Config:      cfg.Health,
		Logger:      logger,
		Metrics:     deps.Metrics,
		Credentials: data.NewCredentialRepo(deps.DB),
		SmokeTests:  data.NewSmokeTestRepo(deps.DB),
		States:      data.NewSourceStateRepo(deps.DB),
		Runs:        runs,
		Limiter:     limiter,
	})

	orch, err := ingest.New(ingest.Options{
		Config:  cfg.Ingest,
		Sources: bound,
		Limiter: limiter,
		Dedup:   dd,
		Tracker: tracker,
		Sink:    data.NewPostingRepo(deps.DB),
		Runs:    runs,
		Metrics: deps.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	if cfg.Health.HydrateOnStart {
		start := time.Now()
		if err := tracker.Hydrate(ctx); err != nil {
			// A partial window is still useful; statuses settle as new runs arrive.
			logger.WarnContext(ctx, "health tracker hydration incomplete", "error", err)
		} else {
			logger.InfoContext(ctx, "health tracker hydrated",
				"sources", len(bound),
				"duration", time.Since(start),
			)
		}
	}

	return &IngestStack{Orchestrator: orch, Tracker: tracker, Limiter: limiter}, nil
}

func buildSourceAdapters(sources []model.SourceConfig, logger *slog.Logger) ([]ingest.Source, error) {
	out := make([]ingest.Source, 0, len(sources))
	var errs []error
	for _, src := range sources {
		adapter, err := newSourceAdapter(src, logger)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, ingest.Source{Config: src, Adapter: adapter})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

//nolint:ireturn // adapter kind is chosen from configuration.
func newSourceAdapter(src model.SourceConfig, logger *slog.Logger) (core.SourceAdapter, error) {
	switch src.Kind {
	case model.SourceKindJSONFeed:
		return jsonfeed.New(src, jsonfeed.Options{Logger: logger})
	default:
		return nil, fmt.Errorf("source %s: unsupported kind %q", src.Name, src.Kind)
	}
}

//nolint:ireturn // the backend is chosen from configuration.
func buildFingerprintStore(cfg config.IngestConfig, client redis.UniversalClient) (dedup.Store, error) {
	switch cfg.DedupStore {
	case config.DedupStoreRedis:
		if client == nil {
			return nil, errors.New("INGEST_DEDUP_STORE=redis requires a redis connection")
		}
		store, err := data.NewRedisFingerprintStore(data.RedisFingerprintStoreOptions{
			Client:    client,
			KeyPrefix: cfg.DedupKeyPrefix,
			TTL:       cfg.DedupTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis fingerprint store: %w", err)
		}
		return store, nil
	default:
		return dedup.NewMemoryStore(), nil
	}
}
