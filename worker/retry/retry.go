package retry

import (
	"math"
	"time"

	"github.com/hookrelay/hookrelay/constants"
)

type Strategy string

const (
	FixedStrategy   Strategy = "fixed"
	BackoffStrategy Strategy = "backoff"
)

const Stop time.Duration = -1

type Retry interface {
	// NextDelay returns the delay before the attempt following the given
	// number of finished attempts, or Stop once no further attempt is allowed.
	NextDelay(attempts int) time.Duration
}

type Option func(Retry)

func NewRetry(strategy Strategy, opts ...Option) Retry {
	var retry Retry
	switch strategy {
	case FixedStrategy:
		retry = newFixedStrategyRetry()
	case BackoffStrategy:
		retry = newBackoffStrategyRetry()
	default:
		panic("invalid strategy: " + strategy)
	}
	for _, opt := range opts {
		opt(retry)
	}
	return retry
}

// NextDelaySeconds is initialDelay * multiplier^(attempt-1).
func NextDelaySeconds(attempt int, initialDelay float64, multiplier float64) float64 {
	if attempt < 1 {
		attempt = 1
	}
	return initialDelay * math.Pow(multiplier, float64(attempt-1))
}

func IsTerminal(attempt int, maxAttempts int) bool {
	return attempt >= maxAttempts
}

// Seconds converts a delay in seconds to a duration capped at constants.MaxRetryDelay.
func Seconds(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	if math.IsInf(seconds, 1) || seconds >= constants.MaxRetryDelay.Seconds() {
		return constants.MaxRetryDelay
	}
	return time.Duration(seconds * float64(time.Second))
}
