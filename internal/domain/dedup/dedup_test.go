package dedup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-job-ingest/internal/domain/canonical"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

func newTestDeduplicator(t *testing.T) (*Deduplicator, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	d, err := New(Options{Store: store})
	require.NoError(t, err)
	return d, store
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestFingerprintIsStableSHA256(t *testing.T) {
	d, _ := newTestDeduplicator(t)
	h := d.Fingerprint("Senior Software Engineer", "Acme", "Remote", "https://jobs.acme.com/1")
	assert.Len(t, h, 64)
	assert.Equal(t, h, d.Fingerprint("Senior Software Engineer", "Acme", "Remote", "https://jobs.acme.com/1"))
}

func TestFingerprintCollapsesVariants(t *testing.T) {
	d, _ := newTestDeduplicator(t)
	base := d.Fingerprint("Sr. SWE", "Acme Corp", "SF", "https://jobs.acme.com/roles/77")

	tests := []struct {
		name                     string
		title, company, loc, url string
	}{
		{"tracking params", "Sr. SWE", "Acme Corp", "SF", "https://jobs.acme.com/roles/77?utm_source=linkedin&gclid=1"},
		{"url case and slash", "Sr. SWE", "Acme Corp", "SF", "HTTPS://JOBS.ACME.COM/roles/77/"},
		{"location alias", "Sr. SWE", "Acme Corp", "San Francisco, California", "https://jobs.acme.com/roles/77"},
		{"location casing", "Sr. SWE", "Acme Corp", "san francisco, CA", "https://jobs.acme.com/roles/77"},
		{"title expansion", "Senior Software Engineer", "Acme Corp", "SF", "https://jobs.acme.com/roles/77"},
		{"company whitespace", "Sr. SWE", "  ACME  corp. ", "SF", "https://jobs.acme.com/roles/77"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, base, d.Fingerprint(tt.title, tt.company, tt.loc, tt.url))
		})
	}
}

func TestFingerprintSeparatesDistinctPostings(t *testing.T) {
	d, _ := newTestDeduplicator(t)
	base := d.Fingerprint("Data Engineer", "Acme", "Austin, TX", "https://jobs.acme.com/9")

	assert.NotEqual(t, base, d.Fingerprint("Data Engineer", "Acme", "Denver, CO", "https://jobs.acme.com/9"),
		"location must be part of the fingerprint")
	assert.NotEqual(t, base, d.Fingerprint("Data Engineer", "Globex", "Austin, TX", "https://jobs.acme.com/9"))
	assert.NotEqual(t, base, d.Fingerprint("Data Engineer", "Acme", "Austin, TX", "https://jobs.acme.com/9?id=2"))
	// Field boundaries are not ambiguous.
	assert.NotEqual(t,
		d.Fingerprint("a b", "c", "", ""),
		d.Fingerprint("a", "b c", "", ""),
	)
}

func TestFingerprintPostingMatchesFields(t *testing.T) {
	d, _ := newTestDeduplicator(t)
	p := model.RawPosting{Title: "QA Eng", Company: "Initech", Location: "NYC", URL: "https://initech.example/j/3"}
	assert.Equal(t, d.Fingerprint(p.Title, p.Company, p.Location, p.URL), d.FingerprintPosting(p))
	assert.Equal(t, Fingerprint(canonical.Default(), p.Title, p.Company, p.Location, p.URL), d.FingerprintPosting(p))
}

func TestObserve(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDeduplicator(t)
	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)

	res, err := d.Observe(ctx, "abc123", t0)
	require.NoError(t, err)
	assert.Equal(t, ObserveResult{IsNew: true, RepostCount: 1}, res)

	res, err = d.Observe(ctx, "abc123", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ObserveResult{IsNew: false, RepostCount: 2}, res)

	res, err = d.Observe(ctx, "abc123", t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, res.RepostCount)

	fp, ok, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, t0, fp.FirstSeenAt)
	assert.Equal(t, t0.Add(2*time.Hour), fp.LastSeenAt)
}

func TestObserveRejectsEmptyHash(t *testing.T) {
	d, _ := newTestDeduplicator(t)
	_, err := d.Observe(context.Background(), "", time.Now())
	assert.ErrorIs(t, err, ErrEmptyHash)
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, string, time.Time) (model.JobFingerprint, bool, error) {
	return model.JobFingerprint{}, false, errors.New("store offline")
}

func (failingStore) Get(context.Context, string) (model.JobFingerprint, bool, error) {
	return model.JobFingerprint{}, false, nil
}

func TestObserveWrapsStoreErrors(t *testing.T) {
	d, err := New(Options{Store: failingStore{}})
	require.NoError(t, err)
	_, err = d.Observe(context.Background(), "abc", time.Now())
	assert.ErrorContains(t, err, "store offline")
}

func TestMemoryStoreConcurrentUpsertInsertsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Now()

	const workers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := store.Upsert(ctx, "f00d", now.Add(time.Duration(i)*time.Second))
			assert.NoError(t, err)
			if isNew {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	fp, ok, _ := store.Get(ctx, "f00d")
	require.True(t, ok)
	assert.Equal(t, workers, fp.RepostCount)
	assert.Equal(t, now, fp.FirstSeenAt)
	assert.Equal(t, now.Add((workers-1)*time.Second), fp.LastSeenAt)
}

func TestMemoryStoreSpreadsAcrossShards(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := range 256 {
		_, _, err := store.Upsert(ctx, fmt.Sprintf("%02x", i), time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 256, store.Len())
	for i := range store.shards {
		assert.Len(t, store.shards[i].fps, 16, "shard %d", i)
	}
}

func TestMemoryStoreHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewMemoryStore().Upsert(ctx, "abc", time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}
