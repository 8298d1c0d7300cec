package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/donation-ledger/pkg/retry/backoff"
)

// Strategy decides, after a failed attempt, whether another attempt should be
// made. Strategies may sleep before returning.
type Strategy func(attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of targets via errors.Is.
func RetriableErrors(targets ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(uint, error) bool {
		return ctx.Err() == nil
	}
}

// Backoff sleeps for the strategy's delay, capped at maxBackoff, and always
// allows another attempt.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithJitter(strategy, maxBackoff, 0)
}

// BackoffWithJitter is Backoff with the capped delay randomly shifted by up
// to ±jitter of itself, so 100ms with a jitter of 0.1 sleeps 90ms to 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := strategy(attempts)
		if delay > maxBackoff {
			delay = maxBackoff
		}
		if jitter > 0 {
			delay = time.Duration(float64(delay) * (1 + jitter*(2*rand.Float64()-1)))
		}

		sleeperImpl.Sleep(delay)
		return true
	}
}

type sleeper interface {
	Sleep(time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

var sleeperImpl sleeper = realSleeper{}
