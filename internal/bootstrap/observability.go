package bootstrap

import (
	"log/slog"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/observability/notify/pagerduty"
	"github.com/target/mmk-job-ingest/internal/observability/notify/slack"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
	"github.com/target/mmk-job-ingest/internal/service/alerting"
)

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// MetricsSink is nil when metrics are disabled; every emitter tolerates that.
	MetricsSink statsd.Sink
	Alerting    *alerting.Service
}

// BuildObservability configures metrics and source health notification adapters.
func BuildObservability(logger *slog.Logger, cfg *config.AppConfig) ObservabilityContainer {
	if logger == nil {
		logger = slog.Default()
	}

	var out ObservabilityContainer
	if cfg.Observability.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Observability.Metrics.StatsdAddress,
			Prefix:  cfg.Observability.Metrics.Prefix,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.MetricsSink = client
		}
	}

	out.Alerting = buildAlerting(logger, cfg.Observability.Notifications, cfg.HTTP.BaseURL)
	return out
}

func buildAlerting(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig, baseURL string) *alerting.Service {
	if !cfg.AnySinkEnabled() {
		return alerting.NewService(alerting.Options{Logger: logger})
	}

	sinks := make([]alerting.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, alerting.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			logger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, alerting.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return alerting.NewService(alerting.Options{
		Logger:    logger,
		Sinks:     sinks,
		BaseURL:   baseURL,
		QueueSize: cfg.QueueSize,
	})
}
