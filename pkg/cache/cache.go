// Package cache provides small generic in-process caches.
//
// MemoryCache backs the in-process vector index, TTLCache is the local
// fallback of the result cache when no redis is configured.
package cache

// Cache is the common surface of MemoryCache and TTLCache.
type Cache[K comparable, V any] interface {
	Set(key K, value V)
	Get(key K) (V, bool)
	Del(key K)
	Len() int
}

var (
	_ Cache[int, int] = (*MemoryCache[int, int])(nil)
	_ Cache[int, int] = (*TTLCache[int, int])(nil)
)
