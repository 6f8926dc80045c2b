package stats

import (
	"maps"
	"sync"
	"time"
)

type Provider interface {
	Stats() map[string]interface{}
}

type ProviderFunc func() map[string]interface{}

func (f ProviderFunc) Stats() map[string]interface{} {
	return f()
}

// Collector merges the stats of registered providers.
type Collector struct {
	mux       sync.RWMutex
	providers []Provider
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Register(p Provider) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.providers = append(c.providers, p)
}

func (c *Collector) Collect() Stats {
	c.mux.RLock()
	defer c.mux.RUnlock()

	stats := make(map[string]interface{})
	for _, p := range c.providers {
		maps.Copy(stats, p.Stats())
	}
	return stats
}

type Stats map[string]interface{}

func (m Stats) Int(key string) int {
	v, ok := m[key].(int)
	if !ok {
		return 0
	}
	return v
}

func (m Stats) Int64(key string) int64 {
	v, ok := m[key].(int64)
	if !ok {
		return 0
	}
	return v
}

func (m Stats) Time(key string) time.Time {
	v, ok := m[key].(time.Time)
	if !ok {
		return time.Time{}
	}
	return v
}
