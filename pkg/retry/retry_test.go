package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestExecutor returns an executor with deterministic jitter (1.0)
// and recorded sleeps instead of real ones.
func newTestExecutor(config Config, slept *[]time.Duration) *Executor {
	e := NewExecutor(config)
	e.jitter = func() float64 { return 1.0 }
	e.sleep = func(ctx context.Context, d time.Duration) error {
		if slept != nil {
			*slept = append(*slept, d)
		}
		return ctx.Err()
	}
	return e
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	e := newTestExecutor(Config{MaxRetries: 3}, nil)

	err := e.Do(context.Background(), "dep", func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	var slept []time.Duration
	e := newTestExecutor(Config{
		MaxRetries:        5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
	}, &slept)

	err := e.Do(context.Background(), "dep", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	if slept[0] != 100*time.Millisecond || slept[1] != 200*time.Millisecond {
		t.Errorf("sleep schedule = %v, want [100ms 200ms]", slept)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	calls := 0
	opErr := errors.New("still broken")
	e := newTestExecutor(Config{MaxRetries: 2}, nil)

	err := e.Do(context.Background(), "dep", func(ctx context.Context) error {
		calls++
		return opErr
	})
	if !errors.Is(err, opErr) {
		t.Errorf("Do() error = %v, want %v", err, opErr)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3 (initial + 2 retries)", calls)
	}
}

func TestDoNonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	fatal := errors.New("bad config")
	e := newTestExecutor(Config{
		MaxRetries: 5,
		Retryable:  func(err error) bool { return !errors.Is(err, fatal) },
	}, nil)

	err := e.Do(context.Background(), "dep", func(ctx context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) {
		t.Errorf("Do() error = %v, want %v", err, fatal)
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
}

func TestDoDeadlineAbortsMidRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewExecutor(Config{MaxRetries: 10, BaseDelay: time.Millisecond})
	e.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := e.Do(ctx, "dep", func(ctx context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Do() error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want wrapped context.Canceled", err)
	}
}

func TestDoExpiredContextBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	e := newTestExecutor(Config{MaxRetries: 2}, nil)
	err := e.Do(ctx, "dep", func(ctx context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Do() error = %v, want ErrTimeout", err)
	}
	if calls != 0 {
		t.Errorf("operation called %d times, want 0", calls)
	}
}

func TestBaseDelayForBackoffBounds(t *testing.T) {
	e := NewExecutor(Config{
		MaxRetries:        5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		BackoffMultiplier: 2,
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second}, // capped: 1600ms -> 1000ms
		{6, time.Second},
	}
	for _, tt := range tests {
		if got := e.BaseDelayFor(tt.attempt); got != tt.want {
			t.Errorf("BaseDelayFor(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestJitterRange(t *testing.T) {
	e := NewExecutor(Config{})
	for i := 0; i < 1000; i++ {
		j := e.jitter()
		if j < 0.5 || j >= 1.5 {
			t.Fatalf("jitter = %v, want in [0.5, 1.5)", j)
		}
	}
}
