package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sells-group/zoning-cli/internal/config"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls, retries int
	cfg := fastRetry()
	cfg.OnRetry = func(int, error) { retries++ }

	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 502)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("expected 2 retries, got %d", retries)
	}
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return errors.New("zoning type not recognised")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	cfg.OnRetry = func(int, error) { cancel() }

	var calls int
	start := time.Now()
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("temporary"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if time.Since(start) > time.Second {
		t.Error("cancellation should interrupt the backoff sleep")
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	sentinel := errors.New("retry me")
	cfg := fastRetry()
	cfg.ShouldRetry = func(err error) bool { return errors.Is(err, sentinel) }

	var calls int
	_ = Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoVal_ReturnsValue(t *testing.T) {
	var calls int
	v, err := DoVal(context.Background(), fastRetry(), func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, NewTransientError(errors.New("temporary"), 429)
		}
		return []string{"Residential"}, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != 1 || v[0] != "Residential" {
		t.Errorf("unexpected value %v", v)
	}
}

func TestBackoff_CappedAndNonNegative(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     10,
		JitterFraction: 0.5,
	}.withDefaults()

	for attempt := 0; attempt < 6; attempt++ {
		d := cfg.backoff(attempt)
		if d < 0 || d > 1500*time.Millisecond {
			t.Errorf("attempt %d: backoff %s out of range", attempt, d)
		}
	}
}

func TestRetryFromConfig(t *testing.T) {
	rc := RetryFromConfig(config.ClientConfig{MaxAttempts: 5, InitialBackoffMs: 10, MaxBackoffMs: 100})
	if rc.MaxAttempts != 5 || rc.InitialBackoff != 10*time.Millisecond || rc.MaxBackoff != 100*time.Millisecond {
		t.Errorf("unexpected config: %+v", rc)
	}

	rc = RetryFromConfig(config.ClientConfig{})
	if rc.MaxAttempts != DefaultRetryConfig().MaxAttempts {
		t.Errorf("expected default attempts, got %d", rc.MaxAttempts)
	}
}

func TestBreakerFromConfig(t *testing.T) {
	bc := BreakerFromConfig(config.ClientConfig{FailureThreshold: 2, ResetTimeoutSecs: 4})
	if bc.FailureThreshold != 2 || bc.ResetTimeout != 4*time.Second {
		t.Errorf("unexpected config: %+v", bc)
	}
}

func TestRetryLogger(t *testing.T) {
	RetryLogger("get parcels")(1, errors.New("boom"))
}
