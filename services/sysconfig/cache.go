package sysconfig

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "reward_config_cache_hits_total"})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "reward_config_cache_miss_total"})
)

// configCache keeps the singleton RewardConfig hot; loads are deduplicated
// through singleflight so a cold cache does not stampede the database.
type configCache struct {
	mu        sync.RWMutex
	value     *RewardConfig
	updatedAt time.Time
	ttl       time.Duration
	group     singleflight.Group
}

func newConfigCache(ttl time.Duration) *configCache {
	return &configCache{ttl: ttl}
}

func (c *configCache) Get() (*RewardConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil || (c.ttl > 0 && time.Since(c.updatedAt) > c.ttl) {
		cacheMiss.Inc()
		return nil, false
	}
	cacheHits.Inc()
	return c.value, true
}

func (c *configCache) Set(v *RewardConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	c.updatedAt = time.Now()
}

func (c *configCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}
