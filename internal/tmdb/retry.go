package tmdb

import (
	"context"
	"time"

	"github.com/air-gapped/moviego/internal/fetch"
)

// Outcome is the verdict on one attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeTerminal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "terminal"
	}
}

// Attempt is the result of one request.
type Attempt struct {
	Outcome Outcome
	Class   Classification
	Status  int
	Body    []byte
	Err     error
	Result  *fetch.Result
}

// Backoff computes exponential delays: Base, 2·Base, 4·Base, ... capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	d := b.Base
	for i := 1; i < n; i++ {
		if d >= b.Max/2 {
			return b.Max
		}
		d *= 2
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// Retrier runs an operation until it succeeds, fails terminally or the
// retry budget is spent.
type Retrier struct {
	MaxRetries int
	Backoff    Backoff

	// OnRetry, if set, is called before each wait.
	OnRetry func(retry int, delay time.Duration, a Attempt)

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetrier retries 3 times, starting at 1s and capped at 30s.
func DefaultRetrier() *Retrier {
	return &Retrier{
		MaxRetries: 3,
		Backoff:    Backoff{Base: time.Second, Max: 30 * time.Second},
	}
}

// SetSleepForTest replaces the wait between attempts.
func (r *Retrier) SetSleepForTest(sleep func(ctx context.Context, d time.Duration) error) {
	r.sleep = sleep
}

// budget is the number of retries allowed for a failure kind. Unclassified
// failures get a single retry.
func (r *Retrier) budget(kind Kind) int {
	if kind == KindUnknown && r.MaxRetries > 1 {
		return 1
	}
	return r.MaxRetries
}

// Do runs op and returns the final Attempt and the number of attempts made.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) Attempt) (Attempt, int) {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; ; attempt++ {
		a := op(ctx)
		if a.Outcome != OutcomeRetryable {
			return a, attempt
		}
		if attempt > r.budget(a.Class.Kind) {
			return a, attempt
		}

		delay := r.Backoff.Delay(attempt)
		if r.OnRetry != nil {
			r.OnRetry(attempt, delay, a)
		}
		if err := sleep(ctx, delay); err != nil {
			return Attempt{
				Outcome: OutcomeTerminal,
				Class:   Classify(0, err),
				Status:  a.Status,
				Err:     err,
			}, attempt
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
