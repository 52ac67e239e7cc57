package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/logger"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second},
		{9, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := backoff.NextDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}
	for i := 0; i < 50; i++ {
		d := backoff.NextDelay(2)
		if d < 140*time.Millisecond || d > 260*time.Millisecond {
			t.Fatalf("jittered delay %v outside bounds", d)
		}
	}
}

func fastConfig(max int) *Config {
	return &Config{
		MaxAttempts: max,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func TestRetryUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.ErrorTypeServerError, 503, "unavailable")
		}
		return nil
	}, fastConfig(5))

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryIsCapped(t *testing.T) {
	attempts := 0
	var retries []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		retries = append(retries, attempt)
	}

	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, 0, "reset by peer")
	}, cfg)

	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(retries) != 2 {
		t.Errorf("Expected OnRetry between attempts only, got %v", retries)
	}
	if !errs.Is(err, errs.ErrorTypeNetwork) {
		t.Errorf("Expected wrapped network error, got %v", err)
	}
}

func TestNonRetryableReturnsImmediately(t *testing.T) {
	for _, et := range []errs.ErrorType{errs.ErrorTypeCredentialInvalid, errs.ErrorTypeAPIQueryFailed, errs.ErrorTypeParsing} {
		attempts := 0
		err := Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errs.New(et, 0, "nope")
		}, fastConfig(5))

		if attempts != 1 {
			t.Errorf("%s: expected 1 attempt, got %d", et, attempts)
		}
		if !errs.Is(err, et) {
			t.Errorf("%s: expected original error back, got %v", et, err)
		}
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(0)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	attempts := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeRateLimit, 429, "slow down")
	}, cfg)

	if !errs.Is(err, errs.ErrorTypeCancelled) {
		t.Errorf("Expected cancelled error, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected a single attempt, got %d", attempts)
	}
}

func TestDefaultRetryIf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"untyped", errors.New("boom"), false},
		{"canceled", context.Canceled, false},
		{"network", errs.New(errs.ErrorTypeNetwork, 0, "x"), true},
		{"rate limit", errs.New(errs.ErrorTypeRateLimit, 429, "x"), true},
		{"credential", errs.New(errs.ErrorTypeCredentialInvalid, 100, "x"), false},
	}
	for _, tt := range tests {
		if got := DefaultRetryIf(tt.err); got != tt.want {
			t.Errorf("%s: DefaultRetryIf = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPerTypeBackoffSelectsStrategy(t *testing.T) {
	b := NewPerTypeBackoff(time.Second, 30*time.Second)
	if b.For(errs.ErrorTypeRateLimit) != b.Strategies[errs.ErrorTypeRateLimit] {
		t.Error("rate limit strategy not selected")
	}
	if b.For(errs.ErrorTypeParsing) != b.Fallback {
		t.Error("fallback strategy not selected")
	}

	d := nextDelay(b, 1, errs.New(errs.ErrorTypeRateLimit, 429, "x"))
	if d < 20*time.Second {
		t.Errorf("Expected long rate limit delay, got %v", d)
	}
	if d := nextDelay(b, 1, errs.New(errs.ErrorTypeNetwork, 0, "x")); d > 2*time.Second {
		t.Errorf("Expected short network delay, got %v", d)
	}
}

func TestFromSettingsUsesPerTypeBackoff(t *testing.T) {
	cfg := FromSettings(4, 10*time.Millisecond, 100*time.Millisecond, logger.NewNopLogger())
	if cfg.MaxAttempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", cfg.MaxAttempts)
	}
	b, ok := cfg.Backoff.(*PerTypeBackoff)
	if !ok {
		t.Fatalf("Expected *PerTypeBackoff, got %T", cfg.Backoff)
	}
	if d := b.DelayFor(1, errs.New(errs.ErrorTypeRateLimit, 429, "x")); d < 70*time.Millisecond {
		t.Errorf("Expected rate limit delay near max delay, got %v", d)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errs.New(errs.ErrorTypeNetwork, 0, "x")
		}
		return 42, nil
	}, fastConfig(3))

	if err != nil || got != 42 {
		t.Errorf("Expected 42, nil; got %d, %v", got, err)
	}
}
