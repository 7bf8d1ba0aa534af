package cache

import "sync"

// MemoryCache is a thread-safe map.
type MemoryCache[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]V
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache[K comparable, V any]() *MemoryCache[K, V] {
	return &MemoryCache[K, V]{data: make(map[K]V)}
}

// Set adds or replaces the value of key.
func (c *MemoryCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *MemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *MemoryCache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *MemoryCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Range calls fn for every value under the read lock until fn returns
// false. fn must not call back into the cache.
func (c *MemoryCache[K, V]) Range(fn func(K, V) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.data {
		if !fn(k, v) {
			return
		}
	}
}
