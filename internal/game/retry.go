package game

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy is the explicit bounded retry used for answer submissions in
// place of retry-by-recursion: a fixed attempt budget with linear backoff,
// aborting early on errors a retry can never fix.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 250 * time.Millisecond}
}

// Do runs fn up to MaxAttempts times. Authentication failures and
// already-answered conflicts are terminal: retrying cannot succeed and, for
// the latter, must not be allowed to double-count a question.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * p.Backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrAlreadyAnswered) {
			return err
		}
	}
	return err
}
