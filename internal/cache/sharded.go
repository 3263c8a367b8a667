// Package cache provides a sharded, size-bounded LRU cache.
//
// It keeps derived data that is expensive to build and reused across
// captions, such as resampling contributor tables.
//
//	c := cache.NewSharded[key, *table](64, hashKey)
//	t := c.GetOrCreate(k, func() *table { return build(k) })
//
// The cache is safe for concurrent use and must not be copied.
package cache

import (
	"hash/fnv"
	"sync"
)

const (
	// shardCount must be a power of two.
	shardCount = 16
	shardMask  = shardCount - 1

	defaultCapacity = 64
)

// Hasher computes the hash used for shard selection.
type Hasher[K any] func(K) uint64

// StringHasher hashes a string key with FNV-1a.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// ShardedCache is a concurrent LRU cache split into independently locked
// shards.
type ShardedCache[K comparable, V any] struct {
	shards   [shardCount]shard[K, V]
	hasher   Hasher[K]
	capacity int
}

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	lru     lruList[K]
}

type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// NewSharded creates a cache holding up to capacity entries per shard.
// If capacity <= 0, a default of 64 is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c := &ShardedCache[K, V]{hasher: hasher, capacity: capacity}
	for i := range c.shards {
		c.shards[i].entries = make(map[K]*entry[K, V])
	}
	return c
}

// GetOrCreate returns the cached value for key, calling create on a miss.
// create runs with the shard locked, so concurrent callers asking for the
// same key build the value once. A full shard drops its least recently
// used entry first.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() V) V {
	s := &c.shards[c.hasher(key)&shardMask]
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		s.lru.moveToFront(e.node)
		return e.value
	}
	v := create()
	for s.lru.len >= c.capacity {
		old, ok := s.lru.removeOldest()
		if !ok {
			break
		}
		delete(s.entries, old)
	}
	s.entries[key] = &entry[K, V]{value: v, node: s.lru.pushFront(key)}
	return v
}
