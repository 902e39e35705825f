package retry

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/target/mmk-job-ingest/internal/domain/failure"
	"github.com/target/mmk-job-ingest/internal/domain/model"
)

// Op is one attempt of the wrapped operation. attempt starts at 1.
type Op func(ctx context.Context, attempt int) error

// Result is the final, classified outcome of Execute.
type Result struct {
	// Attempts is the number of times the operation ran.
	Attempts int
	// Category is None on success, otherwise the category of the last failure.
	Category model.ErrorCategory
	// Err is the last failure, unmodified.
	Err error
	// Elapsed is the summed duration of all attempts, excluding backoff sleeps.
	Elapsed time.Duration
	// Canceled is set when the caller's context ended before a final outcome.
	Canceled bool
	// Delays holds the backoff actually slept before each retry, jitter included.
	Delays []time.Duration
}

// Succeeded reports whether the last attempt returned nil.
func (r Result) Succeeded() bool {
	return !r.Canceled && r.Err == nil && r.Attempts > 0
}

// Options configures an Executor. All fields are optional.
type Options struct {
	Logger *slog.Logger
	// Now overrides the clock used to time attempts.
	Now func() time.Time
	// Sleep overrides the backoff sleep; it must return ctx.Err() when ctx ends first.
	Sleep func(ctx context.Context, d time.Duration) error
	// Float64 returns a value in [0,1) for jitter.
	Float64 func() float64
}

// Executor applies a Policy to an Op.
type Executor struct {
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
	randFloat func() float64
}

// NewExecutor constructs an Executor.
func NewExecutor(opts Options) *Executor {
	e := &Executor{
		now:       opts.Now,
		sleep:     opts.Sleep,
		randFloat: opts.Float64,
	}
	if opts.Logger != nil {
		e.logger = opts.Logger.With("component", "retry_executor")
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	if e.randFloat == nil {
		e.randFloat = rand.Float64
	}
	return e
}

// Execute runs op until it succeeds, fails with a non-retryable category, runs out of
// attempts, or ctx ends. The error returned by op is never replaced or swallowed.
func (e *Executor) Execute(ctx context.Context, p Policy, op Op) Result {
	maxAttempts := max(p.MaxAttempts, 1)
	var res Result

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			res.Canceled = true
			return res
		}

		start := e.now()
		err := op(ctx, attempt)
		res.Elapsed += e.now().Sub(start)
		res.Attempts = attempt

		if err == nil {
			res.Category = model.ErrorCategoryNone
			res.Err = nil
			return res
		}
		res.Err = err

		// A cancelled caller context yields no classified outcome.
		if ctx.Err() != nil || failure.IsCancellation(err) {
			res.Canceled = true
			return res
		}

		res.Category = failure.Classify(err)
		if !p.Retryable(res.Category) || attempt == maxAttempts {
			return res
		}

		delay := e.jitter(p.Delay(attempt), p.JitterFraction)
		if e.logger != nil {
			e.logger.DebugContext(ctx, "retrying after failure",
				"attempt", attempt,
				"error_category", res.Category,
				"delay", delay,
				"error", err,
			)
		}
		if err := e.sleep(ctx, delay); err != nil {
			res.Canceled = true
			return res
		}
		res.Delays = append(res.Delays, delay)
	}
	return res
}

func (e *Executor) jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*fraction*e.randFloat())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
