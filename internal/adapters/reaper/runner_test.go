package reaper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/core"
)

type countingRepo struct{ n int64 }

func (r *countingRepo) DeleteBefore(context.Context, core.DeleteBeforeParams) (int64, error) {
	n := r.n
	r.n = 0
	return n, nil
}

func TestNewRunner_RequiresDBOrRepos(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	assert.Error(t, err)
}

func TestRunner_RunOnceWithInjectedRepos(t *testing.T) {
	r, err := NewRunner(RunnerOptions{
		Config: config.ReaperConfig{
			Interval:        time.Hour,
			RunRecordMaxAge: 24 * time.Hour,
			SmokeTestMaxAge: 24 * time.Hour,
			BatchSize:       10,
		},
		RunRecords: &countingRepo{n: 7},
		SmokeTests: &countingRepo{n: 2},
	})
	require.NoError(t, err)

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), report.RunRecords)
	assert.Equal(t, int64(2), report.SmokeTests)
}
