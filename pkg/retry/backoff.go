package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "flickrharvest/pkg/errors"
)

// BackoffStrategy computes the delay before retry number attempt
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// ErrorAwareBackoff lets a strategy look at the failure it is backing off from
type ErrorAwareBackoff interface {
	DelayFor(attempt int, err error) time.Duration
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to MaxDelay
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads delays by up to this fraction either way
	JitterFactor float64
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := math.Min(
		float64(eb.BaseDelay)*math.Pow(eb.Multiplier, float64(attempt-1)),
		float64(eb.MaxDelay),
	)
	if eb.JitterFactor > 0 {
		spread := delay * eb.JitterFactor
		delay += spread * (2*rand.Float64() - 1)
	}
	return time.Duration(math.Max(delay, 0))
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// PerTypeBackoff picks a strategy from the failing error's type, using
// Fallback for types without one.
type PerTypeBackoff struct {
	Strategies map[errs.ErrorType]BackoffStrategy
	Fallback   BackoffStrategy
}

// NewPerTypeBackoff scales every strategy from the configured base and max
// delays. Network failures retry quickly, server errors a little slower,
// and rate limits start at maxDelay and grow past it.
func NewPerTypeBackoff(base, maxDelay time.Duration) *PerTypeBackoff {
	return &PerTypeBackoff{
		Strategies: map[errs.ErrorType]BackoffStrategy{
			errs.ErrorTypeNetwork: &ExponentialBackoff{
				BaseDelay: base, MaxDelay: maxDelay, Multiplier: 2, JitterFactor: 0.2,
			},
			errs.ErrorTypeServerError: &ExponentialBackoff{
				BaseDelay: 2 * base, MaxDelay: maxDelay, Multiplier: 2, JitterFactor: 0.1,
			},
			errs.ErrorTypeRateLimit: &ExponentialBackoff{
				BaseDelay: maxDelay, MaxDelay: 4 * maxDelay, Multiplier: 1.5, JitterFactor: 0.3,
			},
		},
		Fallback: &ExponentialBackoff{
			BaseDelay: base, MaxDelay: maxDelay, Multiplier: 2, JitterFactor: 0.1,
		},
	}
}

// NextDelay uses the fallback strategy
func (b *PerTypeBackoff) NextDelay(attempt int) time.Duration {
	return b.Fallback.NextDelay(attempt)
}

// DelayFor uses the strategy registered for err's type
func (b *PerTypeBackoff) DelayFor(attempt int, err error) time.Duration {
	return b.For(errs.TypeOf(err)).NextDelay(attempt)
}

// For returns the strategy for an error type
func (b *PerTypeBackoff) For(t errs.ErrorType) BackoffStrategy {
	if s, ok := b.Strategies[t]; ok && s != nil {
		return s
	}
	return b.Fallback
}

// Wait blocks for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
