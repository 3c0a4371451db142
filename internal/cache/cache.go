package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/your-username/click-lite-discover/internal/models"
)

// QueryCache keeps query results for a fixed time
type QueryCache struct {
	items  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats represents cache statistics
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hit_rate"`
}

// NewQueryCache creates a result cache whose entries live for ttl
func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{
		items: gocache.New(ttl, 2*ttl),
	}
}

// GetQueryResult retrieves the cached result of org's query
func (qc *QueryCache) GetQueryResult(org string, q models.QuerySpec) (*models.QueryResult, bool) {
	value, found := qc.items.Get(generateKey(org, q))
	if !found {
		qc.misses.Add(1)
		return nil, false
	}
	result, ok := value.(*models.QueryResult)
	if !ok {
		qc.misses.Add(1)
		return nil, false
	}
	qc.hits.Add(1)
	return result, true
}

// SetQueryResult caches the result of org's query
func (qc *QueryCache) SetQueryResult(org string, q models.QuerySpec, result *models.QueryResult) {
	qc.items.SetDefault(generateKey(org, q), result)
}

// Clear removes all items from cache
func (qc *QueryCache) Clear() {
	qc.items.Flush()
}

// GetStats returns cache statistics
func (qc *QueryCache) GetStats() CacheStats {
	stats := CacheStats{
		Hits:   qc.hits.Load(),
		Misses: qc.misses.Load(),
		Size:   qc.items.ItemCount(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// generateKey creates a cache key from the organization and query
func generateKey(org string, q models.QuerySpec) string {
	data := map[string]interface{}{
		"org":   org,
		"query": q,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}
