package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func retryOnly(attempts int) Config {
	return Config{
		RetryMaxAttempts:    attempts,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}
}

func TestExecuteRetriesRetryableFailure(t *testing.T) {
	exec := NewExecutor(retryOnly(3))

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "embed", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestFailFastProfileNeverRetries(t *testing.T) {
	cfg := DefaultConfig().FailFast()
	cfg.BreakerEnabled = false
	exec := NewExecutor(cfg)

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "embed", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected single attempt, got %d", attempts)
	}
}

func TestDoReturnsValue(t *testing.T) {
	exec := NewExecutor(retryOnly(1))
	got, err := Do(context.Background(), exec, "search", func(context.Context) ([]int, error) {
		return []int{1, 2}, nil
	}, nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %v", got)
	}
}

func TestDoWithNilExecutorCallsDirectly(t *testing.T) {
	got, err := Do(context.Background(), nil, "search", func(context.Context) (string, error) {
		return "ok", nil
	}, nil)
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q err=%v", got, err)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:        1,
		RetryInitialBackoff:     1 * time.Millisecond,
		RetryMaxBackoff:         1 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	})

	errDown := errors.New("index down")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
			return errDown
		}, nil)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected index error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "qdrant.search", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Fatalf("IsCircuitOpen() = false for %v", err)
	}
}

func TestFailFastProfileKeepsBreakerSettings(t *testing.T) {
	base := DefaultConfig()
	base.BreakerMinRequests = 4
	got := base.FailFast()
	if got.Name != "query" || got.RetryMaxAttempts != 1 {
		t.Fatalf("unexpected fail-fast profile: %+v", got)
	}
	if got.BreakerMinRequests != 4 || !got.BreakerEnabled {
		t.Fatalf("breaker settings must carry over: %+v", got)
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	got := Config{RetryInitialBackoff: time.Second, RetryMaxBackoff: time.Millisecond}.normalize()
	def := DefaultConfig()
	if got.Name != def.Name || got.RetryMaxAttempts != def.RetryMaxAttempts {
		t.Fatalf("expected defaults, got %+v", got)
	}
	if got.RetryMaxBackoff != time.Second {
		t.Fatalf("max backoff must not be below initial backoff, got %v", got.RetryMaxBackoff)
	}
	if got.BreakerFailureRatio != def.BreakerFailureRatio || got.BreakerHalfOpenMaxCalls != def.BreakerHalfOpenMaxCalls {
		t.Fatalf("breaker defaults missing: %+v", got)
	}
}

func TestExecuteStopsRetryingWhenContextEnds(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    5,
		RetryInitialBackoff: time.Hour,
		RetryMaxBackoff:     time.Hour,
		BreakerEnabled:      false,
	})
	ctx, cancel := context.WithCancel(context.Background())
	errTemp := errors.New("temporary")

	attempts := 0
	err := exec.Execute(ctx, "embed", func(context.Context) error {
		attempts++
		cancel()
		return errTemp
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if !errors.Is(err, errTemp) || attempts != 1 {
		t.Fatalf("expected one attempt and the upstream error, got %d attempts err=%v", attempts, err)
	}
}
