package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-job-ingest/internal/testutil"
)

func TestSourceStateRepo_SetEnabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	clock := NewFixedTimeProvider(baseTime)
	repo := NewSourceStateRepoWithTimeProvider(db, clock)
	ctx := context.Background()

	got, err := repo.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, got, "no override before the first toggle")

	require.NoError(t, repo.SetEnabled(ctx, "acme", false))
	require.NoError(t, repo.SetEnabled(ctx, "beta", true))

	clock.AddTime(time.Hour)
	require.NoError(t, repo.SetEnabled(ctx, "acme", true))

	got, err = repo.Get(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Enabled)
	assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Hour)))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "acme", all[0].Source)
	assert.Equal(t, "beta", all[1].Source)
}

func TestSourceStateRepo_SetEnabledRequiresSource(t *testing.T) {
	repo := NewSourceStateRepo(nil)
	assert.ErrorIs(t, repo.SetEnabled(context.Background(), "", true), ErrSourceRequired)
}
