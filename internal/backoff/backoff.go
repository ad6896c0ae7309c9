// Package backoff provides exponential backoff with jitter for the
// retry loops around model calls.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrAttemptsExhausted is returned when every retry attempt has failed.
var ErrAttemptsExhausted = errors.New("backoff: attempts exhausted")

// Policy parameterizes the exponential backoff curve. Durations are in
// milliseconds; Jitter is a randomization fraction in [0, 1].
type Policy struct {
	InitialMs float64
	MaxMs     float64
	Factor    float64
	Jitter    float64
}

// DefaultPolicy suits model-call retries: 500ms initial, 15s cap,
// doubling, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		InitialMs: 500,
		MaxMs:     15000,
		Factor:    2,
		Jitter:    0.2,
	}
}

// Compute returns the delay before the given attempt's retry. Attempts
// are 1-indexed; the delay grows as initial * factor^(attempt-1) plus
// jitter, clamped to the policy maximum.
func Compute(policy Policy, attempt int) time.Duration {
	return computeWithRand(policy, attempt, rand.Float64()) // #nosec G404 -- jitter needs no cryptographic randomness
}

func computeWithRand(policy Policy, attempt int, random float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := policy.InitialMs * math.Pow(policy.Factor, exp)
	total := math.Min(policy.MaxMs, base+base*policy.Jitter*random)
	return time.Duration(math.Round(total)) * time.Millisecond
}

// Sleep blocks for the attempt's backoff delay, returning early with
// ctx.Err() if the context is cancelled.
func Sleep(ctx context.Context, policy Policy, attempt int) error {
	duration := Compute(policy, attempt)
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn up to maxAttempts times, sleeping per the policy
// between failures. fn receives the 1-indexed attempt number. The
// last failure is wrapped under ErrAttemptsExhausted.
func Retry[T any](ctx context.Context, policy Policy, maxAttempts int, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if attempt < maxAttempts {
			if err := Sleep(ctx, policy, attempt); err != nil {
				return zero, err
			}
		}
	}
	return zero, errors.Join(ErrAttemptsExhausted, lastErr)
}
