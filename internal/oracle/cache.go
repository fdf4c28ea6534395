package oracle

import (
	"container/list"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"geoquad/internal/metrics"
)

const (
	backendLRU   = "lru"
	backendRedis = "redis"
)

// LRUCache wraps an Oracle with an in-process, fixed-capacity least-
// recently-used cache keyed by lattice point. It is the default cache for
// local builds; RedisCache is used when the oracle is shared across
// build workers on different machines.
type LRUCache struct {
	inner Oracle
	cap   int

	mu    sync.Mutex
	ll    *list.List
	items map[Point]*list.Element
}

type lruEntry struct {
	key Point
	val uint16
}

// NewLRUCache wraps inner with an LRU of the given capacity. A capacity of
// 0 disables caching and simply forwards to inner.
func NewLRUCache(inner Oracle, capacity int) *LRUCache {
	return &LRUCache{
		inner: inner,
		cap:   capacity,
		ll:    list.New(),
		items: make(map[Point]*list.Element),
	}
}

func (c *LRUCache) Lookup(ctx context.Context, ilat, ilon int) (uint16, error) {
	if c.cap <= 0 {
		return c.inner.Lookup(ctx, ilat, ilon)
	}
	key := Point{ILat: ilat, ILon: ilon}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		val := el.Value.(*lruEntry).val
		c.mu.Unlock()
		metrics.CacheHitsTotal.WithLabelValues(backendLRU).Inc()
		return val, nil
	}
	c.mu.Unlock()
	metrics.CacheMissesTotal.WithLabelValues(backendLRU).Inc()

	val, err := c.inner.Lookup(ctx, ilat, ilon)
	if err != nil {
		return OceanID, err
	}

	c.mu.Lock()
	c.store(key, val)
	c.mu.Unlock()
	return val, nil
}

func (c *LRUCache) store(key Point, val uint16) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*lruEntry).val = val
		return
	}
	el := c.ll.PushFront(&lruEntry{key: key, val: val})
	c.items[key] = el
	for c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}

func (c *LRUCache) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	var miss []Point
	var missIdx []int

	c.mu.Lock()
	for i, p := range points {
		if el, ok := c.items[p]; ok {
			c.ll.MoveToFront(el)
			out[i] = el.Value.(*lruEntry).val
		} else {
			miss = append(miss, p)
			missIdx = append(missIdx, i)
		}
	}
	c.mu.Unlock()

	if hits := len(points) - len(miss); hits > 0 {
		metrics.CacheHitsTotal.WithLabelValues(backendLRU).Add(float64(hits))
	}
	if len(miss) > 0 {
		metrics.CacheMissesTotal.WithLabelValues(backendLRU).Add(float64(len(miss)))
	}

	if len(miss) == 0 {
		return out, nil
	}

	vals, err := c.inner.LookupBatch(ctx, miss)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for j, idx := range missIdx {
		out[idx] = vals[j]
		c.store(miss[j], vals[j])
	}
	c.mu.Unlock()
	return out, nil
}

func (c *LRUCache) CountryCodes() map[uint16]string { return c.inner.CountryCodes() }

// RedisCache wraps an Oracle with a shared cache in Redis, keyed by the
// lattice point at the oracle's precision so distinct builds at different
// precisions never collide on the same keyspace.
type RedisCache struct {
	inner  Oracle
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache wraps inner with a Redis-backed cache. keyPrefix should
// include the precision, e.g. "geoquad:p5:".
func NewRedisCache(inner Oracle, client *redis.Client, keyPrefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{inner: inner, client: client, prefix: keyPrefix, ttl: ttl}
}

func (c *RedisCache) key(ilat, ilon int) string {
	return c.prefix + strconv.Itoa(ilat) + ":" + strconv.Itoa(ilon)
}

func (c *RedisCache) Lookup(ctx context.Context, ilat, ilon int) (uint16, error) {
	k := c.key(ilat, ilon)
	if v, err := c.client.Get(ctx, k).Result(); err == nil {
		id, perr := strconv.ParseUint(v, 10, 16)
		if perr == nil {
			metrics.CacheHitsTotal.WithLabelValues(backendRedis).Inc()
			return uint16(id), nil
		}
	}
	metrics.CacheMissesTotal.WithLabelValues(backendRedis).Inc()

	id, err := c.inner.Lookup(ctx, ilat, ilon)
	if err != nil {
		return OceanID, err
	}
	if err := c.client.Set(ctx, k, strconv.Itoa(int(id)), c.ttl).Err(); err != nil {
		return id, fmt.Errorf("oracle: redis cache write: %w", err)
	}
	return id, nil
}

func (c *RedisCache) LookupBatch(ctx context.Context, points []Point) ([]uint16, error) {
	out := make([]uint16, len(points))
	keys := make([]string, len(points))
	for i, p := range points {
		keys[i] = c.key(p.ILat, p.ILon)
	}

	cached, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("oracle: redis batch read: %w", err)
	}

	var miss []Point
	var missIdx []int
	for i, v := range cached {
		if v == nil {
			miss = append(miss, points[i])
			missIdx = append(missIdx, i)
			continue
		}
		s, ok := v.(string)
		if !ok {
			miss = append(miss, points[i])
			missIdx = append(missIdx, i)
			continue
		}
		id, perr := strconv.ParseUint(s, 10, 16)
		if perr != nil {
			miss = append(miss, points[i])
			missIdx = append(missIdx, i)
			continue
		}
		out[i] = uint16(id)
	}

	if hits := len(points) - len(miss); hits > 0 {
		metrics.CacheHitsTotal.WithLabelValues(backendRedis).Add(float64(hits))
	}
	if len(miss) > 0 {
		metrics.CacheMissesTotal.WithLabelValues(backendRedis).Add(float64(len(miss)))
	}

	if len(miss) == 0 {
		return out, nil
	}

	vals, err := c.inner.LookupBatch(ctx, miss)
	if err != nil {
		return nil, err
	}

	pipe := c.client.Pipeline()
	for j, idx := range missIdx {
		out[idx] = vals[j]
		pipe.Set(ctx, c.key(miss[j].ILat, miss[j].ILon), strconv.Itoa(int(vals[j])), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return out, fmt.Errorf("oracle: redis batch write: %w", err)
	}
	return out, nil
}

func (c *RedisCache) CountryCodes() map[uint16]string { return c.inner.CountryCodes() }

// Flush deletes every key under this cache's prefix. It is what the
// CLI's --flush-cache flag calls before a build that should not see
// results left behind by a previous run sharing the same Redis instance.
func (c *RedisCache) Flush(ctx context.Context) error {
	return flushPrefix(ctx, c.client, c.prefix)
}

func flushPrefix(ctx context.Context, client *redis.Client, prefix string) error {
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return client.Del(ctx, keys...).Err()
}
