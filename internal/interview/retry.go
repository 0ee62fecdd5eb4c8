package interview

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines retry behavior for LLM collaborator calls.
type RetryPolicy struct {
	MaxRetries   int           // maximum retry attempts (0 = no retries)
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // delay cap
	Multiplier   float64       // exponential backoff multiplier
	Jitter       bool          // add random jitter to delays
}

// DefaultRetryPolicy suits interactive requests: a couple of quick
// retries, never long enough for the client to give up.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     4 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// retryGenerate executes fn with retries per the policy. Errors classified
// non-retryable return immediately; "maybe" errors get a single retry
// regardless of the remaining budget.
func retryGenerate(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		class := ClassifyGenerationError(err)
		if class == RetryClassNonRetryable {
			return "", err
		}

		budget := policy.MaxRetries
		if class == RetryClassMaybe && budget > 1 {
			budget = 1
		}
		if attempt >= budget {
			return "", lastErr
		}

		select {
		case <-time.After(retryDelay(policy, attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// retryDelay computes the backoff for the given attempt.
func retryDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		// Up to 25% random jitter to avoid thundering herds.
		delay += delay * 0.25 * rand.Float64()
	}
	return time.Duration(delay)
}
