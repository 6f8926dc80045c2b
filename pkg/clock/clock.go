package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by the queue and the worker.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real returns the wall clock.
func Real() Clock { return realClock{} }

// Mock is a manually advanced clock for tests.
type Mock struct {
	mux sync.RWMutex
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.now
}

func (m *Mock) Advance(d time.Duration) time.Time {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

func (m *Mock) Set(now time.Time) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.now = now
}
