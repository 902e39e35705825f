package ingest

import (
	"context"
	"strings"

	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/service/health"
)

// probeFor returns the smoke test for r. Adapters implementing core.Prober supply their
// own check; otherwise the probe is a single fetch plus a shape check of the first posting.
// Probes bypass the rate limiter and retry policy.
func (o *Orchestrator) probeFor(r *runner) health.ProbeFunc {
	if p, ok := r.adapter.(core.Prober); ok {
		return p.Probe
	}
	return func(ctx context.Context) error {
		postings, err := o.fetch(ctx, r)
		if err != nil {
			return err
		}
		if len(postings) == 0 {
			return nil
		}
		first := postings[0]
		if strings.TrimSpace(first.Title) == "" || strings.TrimSpace(first.URL) == "" {
			return failure.SelectorMismatch("first posting is missing title or url")
		}
		return nil
	}
}
