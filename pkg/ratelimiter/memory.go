package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"golang.org/x/time/rate"
)

const (
	defaultMemoryLimiterSize = 10000
	defaultMemoryLimiterTTL  = 10 * time.Minute
)

// MemoryLimiter is a per process token bucket for each key. Idle keys are
// evicted after a TTL.
type MemoryLimiter struct {
	mux      sync.Mutex
	clock    clock.Clock
	limiters *expirable.LRU[string, *rate.Limiter]
}

func NewMemoryLimiter(c clock.Clock) *MemoryLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &MemoryLimiter{
		clock:    c,
		limiters: expirable.NewLRU[string, *rate.Limiter](defaultMemoryLimiterSize, nil, defaultMemoryLimiterTTL),
	}
}

func (l *MemoryLimiter) get(key string, quota int, duration time.Duration) *rate.Limiter {
	// a changed quota gets a fresh bucket
	k := fmt.Sprintf("%s|%d|%d", key, quota, duration)

	l.mux.Lock()
	defer l.mux.Unlock()
	if lim, ok := l.limiters.Get(k); ok {
		return lim
	}
	every := duration / time.Duration(quota)
	lim := rate.NewLimiter(rate.Every(every), quota)
	l.limiters.Add(k, lim)
	return lim
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string, quota int, duration time.Duration) (Result, error) {
	if quota <= 0 || duration <= 0 {
		return Result{Allowed: false}, fmt.Errorf("invalid quota %d per %s", quota, duration)
	}
	now := l.clock.Now()
	lim := l.get(key, quota, duration)

	reservation := lim.ReserveN(now, 1)
	if !reservation.OK() {
		return Result{Allowed: false, RetryAfter: duration}, nil
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Result{Allowed: false, RetryAfter: delay, Reset: delay}, nil
	}

	tokens := lim.TokensAt(now)
	missing := float64(quota) - tokens
	reset := time.Duration(missing * float64(duration) / float64(quota))
	return Result{Allowed: true, Remaining: int(tokens), Reset: reset}, nil
}
