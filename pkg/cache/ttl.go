package cache

import (
	"sync"
	"time"
)

type ttlEntry[V any] struct {
	value    V
	expireAt time.Time
}

// TTLCache is a map whose entries expire after a fixed time-to-live.
// Expired entries are dropped lazily on access and by Purge.
type TTLCache[K comparable, V any] struct {
	mu   sync.Mutex
	ttl  time.Duration
	data map[K]ttlEntry[V]
	now  func() time.Time
}

// NewTTLCache creates a TTLCache. A non-positive ttl disables expiry.
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:  ttl,
		data: make(map[K]ttlEntry[V]),
		now:  time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (c *TTLCache[K, V]) WithClock(now func() time.Time) *TTLCache[K, V] {
	c.now = now
	return c
}

// Set stores value with the default ttl.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value with an explicit ttl.
func (c *TTLCache[K, V]) SetWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.data[key] = ttlEntry[V]{value: value, expireAt: exp}
}

// Get returns the value if present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.expired(e) {
		delete(c.data, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *TTLCache[K, V]) Del(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Len counts entries including ones that expired but were not purged yet.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Purge removes expired entries and returns how many were dropped.
func (c *TTLCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.data {
		if c.expired(e) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

func (c *TTLCache[K, V]) expired(e ttlEntry[V]) bool {
	return !e.expireAt.IsZero() && !c.now().Before(e.expireAt)
}
