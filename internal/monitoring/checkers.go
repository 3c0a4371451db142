package monitoring

import (
	"context"
	"fmt"
)

// Pinger is a connection that can be checked for liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseHealthChecker checks that ClickHouse answers
type DatabaseHealthChecker struct {
	db Pinger
}

func NewDatabaseHealthChecker(db Pinger) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

func (d *DatabaseHealthChecker) Name() string {
	return "database"
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) (*ComponentHealth, error) {
	if err := d.db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("database not reachable: %w", err)
	}
	return &ComponentHealth{
		Name:   d.Name(),
		Status: HealthStatusOK,
	}, nil
}

// CacheStatsFunc reports result cache statistics; ok is false when the
// cache is disabled
type CacheStatsFunc func() (hits, misses int64, size int, ok bool)

// CacheHealthChecker reports the result cache. A cold cache with a poor hit
// rate is degraded, never down.
type CacheHealthChecker struct {
	stats      CacheStatsFunc
	minHitRate float64
}

func NewCacheHealthChecker(stats CacheStatsFunc, minHitRate float64) *CacheHealthChecker {
	return &CacheHealthChecker{stats: stats, minHitRate: minHitRate}
}

func (c *CacheHealthChecker) Name() string {
	return "cache"
}

func (c *CacheHealthChecker) Check(_ context.Context) (*ComponentHealth, error) {
	health := &ComponentHealth{
		Name:    c.Name(),
		Status:  HealthStatusOK,
		Details: make(map[string]interface{}),
	}

	hits, misses, size, ok := c.stats()
	if !ok {
		health.Message = "result cache disabled"
		return health, nil
	}

	health.Details["hits"] = hits
	health.Details["misses"] = misses
	health.Details["size"] = size

	// Only judge the hit rate once there is enough traffic
	if total := hits + misses; total >= 100 {
		rate := float64(hits) / float64(total)
		health.Details["hit_rate"] = rate
		if rate < c.minHitRate {
			health.Status = HealthStatusDegraded
			health.Message = fmt.Sprintf("hit rate %.2f below %.2f", rate, c.minHitRate)
		}
	}
	return health, nil
}
