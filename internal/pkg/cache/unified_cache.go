package cache

import (
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// CacheMetrics tracks cache performance
type CacheMetrics struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// UnifiedCache is a typed view over an in-process go-cache store.
type UnifiedCache[T any] struct {
	store  *gocache.Cache
	name   string
	logger *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// NewUnifiedCache creates a cache whose entries expire after ttl. Expired
// entries are purged every cleanup interval.
func NewUnifiedCache[T any](ttl, cleanup time.Duration, name string, logger *zap.Logger) *UnifiedCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnifiedCache[T]{
		store:  gocache.New(ttl, cleanup),
		name:   name,
		logger: logger,
	}
}

func (c *UnifiedCache[T]) Set(key string, value T) {
	c.store.SetDefault(key, value)
	c.sets.Add(1)
	c.logger.Debug("Cache set", zap.String("cache", c.name), zap.String("key", key))
}

func (c *UnifiedCache[T]) Get(key string) (T, bool) {
	var zero T
	raw, found := c.store.Get(key)
	if !found {
		c.misses.Add(1)
		c.logger.Debug("Cache miss", zap.String("cache", c.name), zap.String("key", key))
		return zero, false
	}
	value, ok := raw.(T)
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	c.logger.Debug("Cache hit", zap.String("cache", c.name), zap.String("key", key))
	return value, true
}

func (c *UnifiedCache[T]) Delete(key string) {
	c.store.Delete(key)
}

// DeletePrefix drops every key starting with prefix and returns how many went.
func (c *UnifiedCache[T]) DeletePrefix(prefix string) int {
	removed := 0
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("Cache invalidated",
			zap.String("cache", c.name),
			zap.String("prefix", prefix),
			zap.Int("removed", removed),
		)
	}
	return removed
}

func (c *UnifiedCache[T]) Clear() {
	c.store.Flush()
	c.logger.Info("Cache cleared", zap.String("cache", c.name))
}

func (c *UnifiedCache[T]) Size() int {
	return c.store.ItemCount()
}

func (c *UnifiedCache[T]) GetMetrics() CacheMetrics {
	return CacheMetrics{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Sets:   c.sets.Load(),
	}
}
