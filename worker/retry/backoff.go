package retry

import "time"

// BackoffStrategyRetry grows the delay geometrically after each failed attempt.
type BackoffStrategyRetry struct {
	maxAttempts  int
	initialDelay float64
	multiplier   float64
}

func newBackoffStrategyRetry() *BackoffStrategyRetry {
	return &BackoffStrategyRetry{
		maxAttempts:  3,
		initialDelay: 5,
		multiplier:   2,
	}
}

func WithBackoff(maxAttempts int, initialDelay float64, multiplier float64) Option {
	return func(r Retry) {
		retry := r.(*BackoffStrategyRetry)
		retry.maxAttempts = maxAttempts
		retry.initialDelay = initialDelay
		retry.multiplier = multiplier
	}
}

func (r *BackoffStrategyRetry) NextDelay(attempts int) time.Duration {
	if attempts < 1 || IsTerminal(attempts, r.maxAttempts) {
		return Stop
	}
	return Seconds(NextDelaySeconds(attempts, r.initialDelay, r.multiplier))
}
