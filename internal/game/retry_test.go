package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestRetryPolicySucceedsAfterTransientFailures(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("%w: flaky network", ErrSubmission)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestRetryPolicyExhaustsAttempts(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return fmt.Errorf("%w: still down", ErrSubmission)
	})
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("Do=%v, want last ErrSubmission", err)
	}
	if calls != 3 {
		t.Fatalf("fn called %d times, want 3", calls)
	}
}

func TestRetryPolicyTerminalErrors(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, Backoff: time.Millisecond}

	for _, terminal := range []error{ErrUnauthenticated, ErrAlreadyAnswered} {
		calls := 0
		err := p.Do(context.Background(), func(context.Context) error {
			calls++
			return fmt.Errorf("wrapped: %w", terminal)
		})
		if !errors.Is(err, terminal) {
			t.Fatalf("Do=%v, want %v", err, terminal)
		}
		if calls != 1 {
			t.Fatalf("%v retried %d times, want a single attempt", terminal, calls)
		}
	}
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 10, Backoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(context.Context) error {
		return fmt.Errorf("%w: down", ErrSubmission)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Do=%v, want context.Canceled", err)
	}
}

func TestRetryPolicyZeroAttemptsStillRunsOnce(t *testing.T) {
	p := RetryPolicy{}

	calls := 0
	if err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
}
