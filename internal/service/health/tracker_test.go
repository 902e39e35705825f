package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/mmk-job-ingest/config"
	"github.com/target/mmk-job-ingest/internal/core"
	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
	"github.com/target/mmk-job-ingest/internal/mocks"
	"github.com/target/mmk-job-ingest/internal/observability/statsd"
	"github.com/target/mmk-job-ingest/internal/testutil"
)

const src = "acme-jobs"

type trackerFixture struct {
	tracker *Tracker
	clock   *testutil.Clock
	metrics *statsd.Recorder
}

func newFixture(t *testing.T, mutate func(*TrackerOptions)) trackerFixture {
	t.Helper()
	clock := testutil.NewClock(testutil.TestTime())
	rec := &statsd.Recorder{}
	opts := TrackerOptions{
		Config:  config.DefaultHealthConfig(),
		Metrics: rec,
		Now:     clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	tr := NewTracker(opts)
	tr.Register(src, nil, false)
	return trackerFixture{tracker: tr, clock: clock, metrics: rec}
}

func (f trackerFixture) record(t *testing.T, recs ...model.RunRecord) {
	t.Helper()
	for _, rec := range recs {
		require.NoError(t, f.tracker.RecordRun(context.Background(), rec))
	}
}

func TestHealth_NineteenOfTwentyIsHealthy(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()

	history := testutil.RunHistory(src, now, 19, 1, model.ErrorCategoryTimeout)
	f.record(t, history...)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusHealthy, h.Status)
	assert.InDelta(t, 0.95, h.SuccessRate, 1e-9)
	assert.Equal(t, 20, h.SampleCount)
	assert.Equal(t, 1, h.ErrorCount24h)
	assert.Equal(t, 1, h.ConsecutiveFailures)
	assert.Equal(t, int64(1000), h.AvgDurationMs)
	require.NotNil(t, h.LastRunAt)
	assert.Equal(t, now, *h.LastRunAt)
	require.NotNil(t, h.Reason)
	assert.Equal(t, model.ErrorCategoryTimeout, h.Reason.Category)
}

func TestHealth_ThresholdBands(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		failures  int
		want      model.HealthStatus
	}{
		{name: "exactly healthy threshold", successes: 9, failures: 1, want: model.HealthStatusHealthy},
		{name: "degraded", successes: 8, failures: 2, want: model.HealthStatusDegraded},
		{name: "exactly degraded threshold", successes: 7, failures: 3, want: model.HealthStatusDegraded},
		{name: "down", successes: 6, failures: 4, want: model.HealthStatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.record(t, testutil.RunHistory(src, f.clock.Now(), tt.successes, tt.failures,
				model.ErrorCategoryServiceUnavailable)...)

			h, err := f.tracker.Health(context.Background(), src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, h.Status)
		})
	}
}

func TestHealth_BelowMinSamplesIsUnknown(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, testutil.RunHistory(src, f.clock.Now(), 4, 0, "")...)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusUnknown, h.Status)
	assert.Equal(t, 4, h.SampleCount)
	assert.Nil(t, h.Reason)
}

func TestHealth_MostRecentAuthFailureIsDown(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()
	f.record(t, testutil.RunHistory(src, now.Add(-time.Minute), 30, 0, "")...)
	f.record(t, testutil.NewRunRecord(src, now).Failed(model.ErrorCategoryAuthFailed, "401 from feed").Build())

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusDown, h.Status)
	assert.Greater(t, h.SuccessRate, 0.9)
	require.NotNil(t, h.Reason)
	assert.Equal(t, model.ErrorCategoryAuthFailed, h.Reason.Category)
	assert.Equal(t, "401 from feed", h.Reason.Detail)

	// A single auth failure is enough even below the sample minimum.
	g := newFixture(t, nil)
	g.record(t, testutil.NewRunRecord(src, g.clock.Now()).Failed(model.ErrorCategoryAuthFailed, "").Build())
	h, err = g.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusDown, h.Status)
}

func TestHealth_RecoversAfterAuthFailureIsFollowedBySuccess(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()
	f.record(t, testutil.RunHistory(src, now.Add(-time.Minute), 19, 1, model.ErrorCategoryAuthFailed)...)
	f.record(t, testutil.NewRunRecord(src, now).Build())

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusHealthy, h.Status)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.Nil(t, h.Reason)
}

func TestHealth_WindowExcludesOldRuns(t *testing.T) {
	f := newFixture(t, nil)
	f.record(t, testutil.RunHistory(src, f.clock.Now(), 10, 0, "")...)

	f.clock.Advance(31 * 24 * time.Hour)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 0, h.SampleCount)
	assert.Equal(t, model.HealthStatusUnknown, h.Status)
	assert.Nil(t, h.LastRunAt)
}

func TestHealth_ErrorCount24hOnlyCountsLastDay(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()
	f.record(t,
		testutil.NewRunRecord(src, now.Add(-48*time.Hour)).Failed(model.ErrorCategoryTimeout, "").Build(),
		testutil.NewRunRecord(src, now.Add(-2*time.Hour)).Failed(model.ErrorCategoryTimeout, "").Build(),
		testutil.NewRunRecord(src, now).Build(),
	)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, h.ErrorCount24h)
	assert.Equal(t, 3, h.SampleCount)
}

func TestRecordRun_RejectsOutOfOrderAndUnknown(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()
	f.record(t, testutil.NewRunRecord(src, now).Build())

	err := f.tracker.RecordRun(context.Background(), testutil.NewRunRecord(src, now.Add(-time.Second)).Build())
	require.ErrorIs(t, err, ErrOutOfOrder)

	// Same completion time is accepted.
	require.NoError(t, f.tracker.RecordRun(context.Background(), testutil.NewRunRecord(src, now).Build()))

	err = f.tracker.RecordRun(context.Background(), testutil.NewRunRecord("nope", now).Build())
	require.ErrorIs(t, err, ErrUnknownSource)

	_, err = f.tracker.Health(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestRecordRun_CapsRecordsPerSource(t *testing.T) {
	f := newFixture(t, func(o *TrackerOptions) { o.Config.MaxRecordsPerSource = 10 })
	f.record(t, testutil.RunHistory(src, f.clock.Now(), 15, 5, model.ErrorCategoryTimeout)...)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 10, h.SampleCount)
	assert.InDelta(t, 0.5, h.SuccessRate, 1e-9)
}

func TestCredentialWarning(t *testing.T) {
	tests := []struct {
		name        string
		expiresIn   time.Duration
		threshold   int
		wantWarning bool
		wantStatus  model.HealthStatus
	}{
		{
			name:        "expires in 5 days with 30 day threshold",
			expiresIn:   5 * 24 * time.Hour,
			threshold:   30,
			wantWarning: true,
			wantStatus:  model.HealthStatusHealthy,
		},
		{
			name:       "expires in 45 days with 30 day threshold",
			expiresIn:  45 * 24 * time.Hour,
			threshold:  30,
			wantStatus: model.HealthStatusHealthy,
		},
		{
			name:        "zero threshold falls back to configured default",
			expiresIn:   10 * 24 * time.Hour,
			threshold:   0,
			wantWarning: true,
			wantStatus:  model.HealthStatusHealthy,
		},
		{
			name:        "expired credential is down",
			expiresIn:   -time.Hour,
			threshold:   30,
			wantWarning: true,
			wantStatus:  model.HealthStatusDown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			creds := mocks.NewMockCredentialStore(ctrl)

			f := newFixture(t, func(o *TrackerOptions) { o.Credentials = creds })
			now := f.clock.Now()
			creds.EXPECT().Get(gomock.Any(), src).Return(&model.CredentialHealth{
				Source:               src,
				CredentialType:       "api_token",
				IssuedAt:             now.Add(-300 * 24 * time.Hour),
				ExpiresAt:            now.Add(tt.expiresIn),
				WarningThresholdDays: tt.threshold,
			}, nil).AnyTimes()

			f.record(t, testutil.RunHistory(src, now, 20, 0, "")...)

			h, err := f.tracker.Health(context.Background(), src)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWarning, h.CredentialWarning)
			assert.Equal(t, tt.wantStatus, h.Status)
			require.NotNil(t, h.Credential)
			assert.Equal(t, 30, h.Credential.WarningThresholdDays)

			switch {
			case tt.wantStatus == model.HealthStatusDown:
				require.NotNil(t, h.Reason)
				assert.Equal(t, model.ErrorCategoryAuthFailed, h.Reason.Category)
				assert.Contains(t, h.Reason.Detail, "credential expired")
			case tt.wantWarning:
				require.NotNil(t, h.Reason, "a healthy source still reports the upcoming expiry")
				assert.Equal(t, model.ErrorCategoryAuthFailed, h.Reason.Category)
				assert.Contains(t, h.Reason.Detail, "credential expires at")
				assert.WithinDuration(t, now.Add(tt.expiresIn), h.Reason.At, time.Second)
			default:
				assert.Nil(t, h.Reason)
			}
		})
	}
}

func TestCredentialHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockCredentialStore(ctrl)
	f := newFixture(t, func(o *TrackerOptions) { o.Credentials = creds })

	creds.EXPECT().Get(gomock.Any(), src).Return(nil, nil)
	got, err := f.tracker.CredentialHealth(context.Background(), src)
	require.NoError(t, err)
	assert.Nil(t, got)

	boom := errors.New("db down")
	creds.EXPECT().Get(gomock.Any(), src).Return(nil, boom)
	_, err = f.tracker.CredentialHealth(context.Background(), src)
	require.ErrorIs(t, err, boom)

	_, err = f.tracker.CredentialHealth(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestHealth_CredentialLookupFailureDoesNotFailHealth(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockCredentialStore(ctrl)
	creds.EXPECT().Get(gomock.Any(), src).Return(nil, errors.New("db down")).AnyTimes()
	f := newFixture(t, func(o *TrackerOptions) { o.Credentials = creds })
	f.record(t, testutil.RunHistory(src, f.clock.Now(), 5, 0, "")...)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusHealthy, h.Status)
	assert.Nil(t, h.Credential)
}

func TestSetEnabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	states := mocks.NewMockSourceStateRepository(ctrl)
	f := newFixture(t, func(o *TrackerOptions) { o.States = states })
	f.record(t, testutil.RunHistory(src, f.clock.Now(), 10, 0, "")...)

	states.EXPECT().SetEnabled(gomock.Any(), src, false).Return(nil)
	require.NoError(t, f.tracker.SetEnabled(context.Background(), src, false))
	assert.False(t, f.tracker.IsEnabled(src))

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.HealthStatusDisabled, h.Status)
	assert.InDelta(t, 1.0, h.SuccessRate, 1e-9)

	states.EXPECT().SetEnabled(gomock.Any(), src, true).Return(errors.New("db down"))
	require.Error(t, f.tracker.SetEnabled(context.Background(), src, true))
	assert.False(t, f.tracker.IsEnabled(src), "failed persist must not change state")

	states.EXPECT().SetEnabled(gomock.Any(), src, true).Return(nil)
	require.NoError(t, f.tracker.SetEnabled(context.Background(), src, true))
	assert.True(t, f.tracker.IsEnabled(src))

	require.ErrorIs(t, f.tracker.SetEnabled(context.Background(), "nope", true), ErrUnknownSource)
	assert.False(t, f.tracker.IsEnabled("nope"))
}

func TestOnTransition(t *testing.T) {
	f := newFixture(t, nil)

	var mu sync.Mutex
	var got [][2]model.HealthStatus
	f.tracker.OnTransition(func(prev, cur model.SourceHealth) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, [2]model.HealthStatus{prev.Status, cur.Status})
	})

	now := f.clock.Now()
	f.record(t, testutil.RunHistory(src, now.Add(-time.Minute), 5, 0, "")...)
	f.record(t, testutil.NewRunRecord(src, now).Failed(model.ErrorCategoryAuthFailed, "").Build())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][2]model.HealthStatus{
		{model.HealthStatusUnknown, model.HealthStatusHealthy},
		{model.HealthStatusHealthy, model.HealthStatusDown},
	}, got)
	assert.Equal(t, 1.0, f.metrics.Sum("health.transition", map[string]string{"to": "down"}))
}

func TestHealthAll_SortedWithLimiterSnapshot(t *testing.T) {
	f := newFixture(t, func(o *TrackerOptions) {
		o.Limiter = bucketReaderFunc(func(source string) (model.BucketSnapshot, bool) {
			if source != src {
				return model.BucketSnapshot{}, false
			}
			return model.BucketSnapshot{Capacity: 5, Tokens: 2.5, RefillPerSecond: 1}, true
		})
	})
	f.tracker.Register("zeta", nil, false)
	f.tracker.Register("alpha", nil, true)

	all := f.tracker.HealthAll(context.Background())
	require.Len(t, all, 3)
	assert.Equal(t, []string{"acme-jobs", "alpha", "zeta"}, []string{all[0].Source, all[1].Source, all[2].Source})
	require.NotNil(t, all[0].RateLimit)
	assert.InDelta(t, 2.5, all[0].RateLimit.Tokens, 1e-9)
	assert.Nil(t, all[2].RateLimit)
	assert.Equal(t, model.HealthStatusDisabled, all[1].Status)
}

type bucketReaderFunc func(source string) (model.BucketSnapshot, bool)

func (f bucketReaderFunc) Snapshot(source string) (model.BucketSnapshot, bool) { return f(source) }

func TestRunSmokeTest_ExcludedFromSuccessRate(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockSmokeTestRepository(ctrl)
	f := newFixture(t, func(o *TrackerOptions) { o.SmokeTests = repo })
	f.tracker.Register(src, func(context.Context) error {
		return failure.FromStatus(503, "maintenance")
	}, false)
	f.record(t, testutil.RunHistory(src, f.clock.Now(), 5, 0, "")...)

	repo.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, res *model.SmokeTestResult) error {
			assert.Equal(t, src, res.Source)
			assert.NotEmpty(t, res.ID)
			return nil
		})

	res, err := f.tracker.RunSmokeTest(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.SmokeFail, res.Result)
	assert.Equal(t, model.ErrorCategoryServiceUnavailable, res.ErrorCategory)
	assert.Equal(t, "maintenance", res.Detail)

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 5, h.SampleCount)
	assert.InDelta(t, 1.0, h.SuccessRate, 1e-9)
	assert.Equal(t, model.HealthStatusHealthy, h.Status)
	require.NotNil(t, h.LastSmokeTest)
	assert.Equal(t, res.ID, h.LastSmokeTest.ID)
	assert.Equal(t, 1.0, f.metrics.Sum("health.smoke_test", map[string]string{"result": "fail"}))
}

func TestRunSmokeTest_Pass(t *testing.T) {
	f := newFixture(t, nil)
	f.tracker.Register(src, func(context.Context) error { return nil }, false)

	res, err := f.tracker.RunSmokeTest(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.SmokePass, res.Result)
	assert.Equal(t, model.ErrorCategoryNone, res.ErrorCategory)
	assert.Equal(t, f.clock.Now(), res.RanAt)
}

func TestRunSmokeTest_Errors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.tracker.RunSmokeTest(context.Background(), src)
	require.ErrorIs(t, err, ErrNoProbe)

	_, err = f.tracker.RunSmokeTest(context.Background(), "nope")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestRunSmokeTest_TimesOut(t *testing.T) {
	f := newFixture(t, func(o *TrackerOptions) { o.Config.SmokeTestTimeout = 20 * time.Millisecond })
	f.tracker.Register(src, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, false)

	res, err := f.tracker.RunSmokeTest(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, model.SmokeFail, res.Result)
	assert.Equal(t, model.ErrorCategoryTimeout, res.ErrorCategory)
}

func TestRunSmokeTest_CollapsesConcurrentCalls(t *testing.T) {
	f := newFixture(t, nil)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	f.tracker.Register(src, func(context.Context) error {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return nil
	}, false)

	const callers = 5
	results := make([]model.SmokeTestResult, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := f.tracker.RunSmokeTest(context.Background(), src)
		assert.NoError(t, err)
		results[0] = res
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.tracker.RunSmokeTest(context.Background(), src)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results[1:] {
		assert.Equal(t, results[0].ID, res.ID)
	}
}

func TestRunSmokeTest_CallerCancelDoesNotAbortProbe(t *testing.T) {
	f := newFixture(t, nil)

	release := make(chan struct{})
	finished := make(chan struct{})
	f.tracker.Register(src, func(ctx context.Context) error {
		defer close(finished)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, false)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.tracker.RunSmokeTest(ctx, src)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	<-finished

	require.Eventually(t, func() bool {
		h, err := f.tracker.Health(context.Background(), src)
		return err == nil && h.LastSmokeTest != nil && h.LastSmokeTest.Result == model.SmokePass
	}, time.Second, 5*time.Millisecond)
}

func TestHydrate(t *testing.T) {
	ctrl := gomock.NewController(t)
	runs := mocks.NewMockRunRecordRepository(ctrl)
	states := mocks.NewMockSourceStateRepository(ctrl)
	smokes := mocks.NewMockSmokeTestRepository(ctrl)

	f := newFixture(t, func(o *TrackerOptions) {
		o.Runs = runs
		o.States = states
		o.SmokeTests = smokes
	})
	f.tracker.Register("widgets", nil, false)
	now := f.clock.Now()

	var transitions atomic.Int32
	f.tracker.OnTransition(func(_, _ model.SourceHealth) { transitions.Add(1) })

	history := testutil.RunHistory(src, now, 18, 2, model.ErrorCategoryTimeout)
	history = append(history, testutil.RunHistory("retired-source", now, 3, 0, "")...)

	runs.EXPECT().ListSince(gomock.Any(), core.ListRunRecordsParams{Since: now.Add(-30 * 24 * time.Hour)}).
		Return(history, nil)
	states.EXPECT().List(gomock.Any()).Return([]model.SourceOverride{
		{Source: "widgets", Enabled: false, UpdatedAt: now},
		{Source: "retired-source", Enabled: false, UpdatedAt: now},
	}, nil)
	smokes.EXPECT().Latest(gomock.Any(), src).Return(&model.SmokeTestResult{ID: "s1", Source: src, Result: model.SmokePass}, nil)
	smokes.EXPECT().Latest(gomock.Any(), "widgets").Return(nil, nil)

	require.NoError(t, f.tracker.Hydrate(context.Background()))

	h, err := f.tracker.Health(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 20, h.SampleCount)
	assert.Equal(t, model.HealthStatusHealthy, h.Status)
	require.NotNil(t, h.LastSmokeTest)
	assert.Equal(t, "s1", h.LastSmokeTest.ID)

	assert.False(t, f.tracker.IsEnabled("widgets"))
	assert.Equal(t, int32(0), transitions.Load(), "hydration sets a baseline without alerts")

	// The next run after hydration compares against the hydrated baseline.
	f.record(t, testutil.NewRunRecord(src, now.Add(time.Minute)).Build())
	assert.Equal(t, int32(0), transitions.Load())
}

func TestHydrate_ReportsRepositoryErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	runs := mocks.NewMockRunRecordRepository(ctrl)
	f := newFixture(t, func(o *TrackerOptions) { o.Runs = runs })

	runs.EXPECT().ListSince(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	err := f.tracker.Hydrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load run records")
}
