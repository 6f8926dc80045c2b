package loglimiter

import (
	"sync"
	"time"

	"github.com/hookrelay/hookrelay/pkg/clock"
)

// Limiter lets one log line per key through every window.
type Limiter struct {
	mux    sync.Mutex
	window time.Duration
	clock  clock.Clock
	logs   map[string]time.Time
}

func NewLimiter(window time.Duration, c clock.Clock) *Limiter {
	return &Limiter{
		window: window,
		clock:  c,
		logs:   make(map[string]time.Time),
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mux.Lock()
	defer l.mux.Unlock()

	now := l.clock.Now()
	last, ok := l.logs[key]
	if !ok || now.Sub(last) >= l.window {
		l.logs[key] = now
		return true
	}

	return false
}
