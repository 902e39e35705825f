// Package ratelimit provides per-source token buckets that gate outbound requests.
//
// Each source owns an independent bucket with its own capacity and refill rate; buckets are
// never shared. Tokens are fractional and never go negative. Acquisition is either non-blocking
// (TryAcquire) or blocks until the next token is due (WaitAndAcquire).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/model"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownSource is returned for sources that were never registered.
	ErrUnknownSource = errors.New("rate limiter: unknown source")
	// ErrInvalidConfig is returned when capacity or refill rate is not positive.
	ErrInvalidConfig = errors.New("rate limiter: invalid bucket config")
)

// minWait keeps the blocking path from spinning on rounding error.
const minWait = time.Millisecond

// BucketConfig is the per-source limit.
type BucketConfig struct {
	Capacity        int
	RefillPerSecond float64
}

// Validate checks that the bucket can ever grant a token.
func (c BucketConfig) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be >= 1, got %d", ErrInvalidConfig, c.Capacity)
	}
	if c.RefillPerSecond <= 0 || math.IsInf(c.RefillPerSecond, 0) || math.IsNaN(c.RefillPerSecond) {
		return fmt.Errorf("%w: refill rate must be a positive number, got %v", ErrInvalidConfig, c.RefillPerSecond)
	}
	return nil
}

// Options configures a Limiter.
type Options struct {
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Limiter holds one token bucket per source.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	now     func() time.Time
}

// New constructs an empty Limiter.
func New(opts Options) *Limiter {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		now:     now,
	}
}

// Register creates or replaces the bucket for source. A new bucket starts full.
func (l *Limiter) Register(source string, cfg BucketConfig) error {
	if source == "" {
		return errors.New("rate limiter: source name is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("register %s: %w", source, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[source] = newBucket(cfg)
	return nil
}

// Sources returns the registered source names.
func (l *Limiter) Sources() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.buckets))
	for name := range l.buckets {
		out = append(out, name)
	}
	return out
}

// TryAcquire consumes one token if available. Unknown sources never acquire.
func (l *Limiter) TryAcquire(source string) bool {
	b, ok := l.lookup(source)
	if !ok {
		return false
	}
	_, ok = b.tryAcquire(l.now())
	return ok
}

// WaitAndAcquire blocks until a token is available for source, consumes it, and returns the
// acquisition time. It returns ctx.Err() if the context ends first.
func (l *Limiter) WaitAndAcquire(ctx context.Context, source string) (time.Time, error) {
	b, ok := l.lookup(source)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	for {
		now := l.now()
		wait, ok := b.tryAcquire(now)
		if ok {
			return now, nil
		}
		if err := sleep(ctx, wait); err != nil {
			return time.Time{}, err
		}
	}
}

// Reset refills the bucket for source to capacity.
func (l *Limiter) Reset(source string) error {
	b, ok := l.lookup(source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	b.reset()
	return nil
}

// Snapshot reads the current bucket state without consuming tokens.
func (l *Limiter) Snapshot(source string) (model.BucketSnapshot, bool) {
	b, ok := l.lookup(source)
	if !ok {
		return model.BucketSnapshot{}, false
	}
	return b.snapshot(l.now()), true
}

func (l *Limiter) lookup(source string) (*bucket, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.buckets[source]
	return b, ok
}

// bucket wraps a rate.Limiter so Reset can swap in a full one atomically.
type bucket struct {
	mu  sync.Mutex
	cfg BucketConfig
	lim *rate.Limiter
}

func newBucket(cfg BucketConfig) *bucket {
	return &bucket{
		cfg: cfg,
		lim: rate.NewLimiter(rate.Limit(cfg.RefillPerSecond), cfg.Capacity),
	}
}

// tryAcquire consumes a token at now, or returns how long until one is due.
// A failed AllowN leaves the limiter untouched, so tokens never go negative.
func (b *bucket) tryAcquire(now time.Time) (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lim.AllowN(now, 1) {
		return 0, true
	}

	tokens := b.lim.TokensAt(now)
	missing := 1 - tokens
	if missing <= 0 {
		return minWait, false
	}
	wait := time.Duration(math.Ceil(missing / b.cfg.RefillPerSecond * float64(time.Second)))
	return max(wait, minWait), false
}

func (b *bucket) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lim = rate.NewLimiter(rate.Limit(b.cfg.RefillPerSecond), b.cfg.Capacity)
}

func (b *bucket) snapshot(now time.Time) model.BucketSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.BucketSnapshot{
		Capacity:        b.cfg.Capacity,
		Tokens:          math.Max(0, b.lim.TokensAt(now)),
		RefillPerSecond: b.cfg.RefillPerSecond,
		At:              now,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
