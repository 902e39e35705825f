package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	apperrors "github.com/target/mmk-job-ingest/internal/errors"
	"github.com/target/mmk-job-ingest/internal/testutil"
)

func TestCredentialRepo_UpsertAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewCredentialRepoWithTimeProvider(db, NewFixedTimeProvider(baseTime))
	ctx := context.Background()

	got, err := repo.Get(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, got)

	cred := &model.CredentialHealth{
		Source:               "acme",
		CredentialType:       "api_token",
		ExpiresAt:            baseTime.Add(90 * 24 * time.Hour),
		WarningThresholdDays: 14,
	}
	require.NoError(t, repo.Upsert(ctx, cred))
	assert.True(t, cred.IssuedAt.Equal(baseTime), "zero issued_at is stamped with now")

	got, err = repo.Get(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "api_token", got.CredentialType)
	assert.Equal(t, 14, got.WarningThresholdDays)
	assert.True(t, got.ExpiresAt.Equal(cred.ExpiresAt))

	rotated := &model.CredentialHealth{
		Source:         "acme",
		CredentialType: "oauth_client",
		IssuedAt:       baseTime.Add(24 * time.Hour),
		ExpiresAt:      baseTime.Add(365 * 24 * time.Hour),
	}
	require.NoError(t, repo.Upsert(ctx, rotated))

	got, err = repo.Get(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "oauth_client", got.CredentialType)
	assert.Equal(t, 0, got.WarningThresholdDays)
	assert.True(t, got.IssuedAt.Equal(rotated.IssuedAt))
}

func TestCredentialRepo_UpsertValidation(t *testing.T) {
	repo := NewCredentialRepo(nil)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Upsert(ctx, nil), ErrCredentialInvalid)
	assert.ErrorIs(t, repo.Upsert(ctx, &model.CredentialHealth{Source: "acme"}), ErrCredentialInvalid)
	assert.ErrorIs(t, repo.Upsert(ctx, &model.CredentialHealth{ExpiresAt: baseTime}), ErrSourceRequired)

	err := repo.Upsert(ctx, &model.CredentialHealth{Source: "acme", ExpiresAt: baseTime, WarningThresholdDays: -1})
	assert.True(t, apperrors.IsValidation(err))
}
