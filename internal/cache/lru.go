// Package cache provides the bounded LRU used to keep decoded images around
// while the same reference rows are shown as neighbors of several queries.
package cache

import (
	"container/list"
	"sync"

	"github.com/23skdu/aematch/internal/metrics"
)

type entry[T any] struct {
	key   string
	value T
}

// LRU is a capacity-bounded least-recently-used cache keyed by string.
type LRU[T any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List

	// name labels the cache metrics
	name string
}

// NewLRU returns a cache holding up to capacity entries. A capacity below 1
// disables caching: Put is a no-op and Get always misses.
func NewLRU[T any](capacity int, name string) *LRU[T] {
	return &LRU[T]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		name:     name,
	}
}

// Get returns the value stored under key and marks it recently used.
func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(c.name).Inc()
		var zero T
		return zero, false
	}
	c.lru.MoveToFront(elem)
	metrics.CacheHitsTotal.WithLabelValues(c.name).Inc()
	return elem.Value.(*entry[T]).value, true
}

// Put stores value under key, evicting the least recently used entry when full.
func (c *LRU[T]) Put(key string, value T) {
	if c.capacity < 1 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*entry[T]).value = value
		return
	}

	c.items[key] = c.lru.PushFront(&entry[T]{key: key, value: value})
	if c.lru.Len() > c.capacity {
		c.evictOldest()
	}
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(c.lru.Len()))
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Errors are not cached.
func (c *LRU[T]) GetOrLoad(key string, load func() (T, error)) (T, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Put(key, v)
	return v, nil
}

// Len reports the number of cached entries.
func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *LRU[T]) evictOldest() {
	elem := c.lru.Back()
	if elem != nil {
		c.lru.Remove(elem)
		delete(c.items, elem.Value.(*entry[T]).key)
		metrics.CacheEvictionsTotal.WithLabelValues(c.name).Inc()
	}
}
