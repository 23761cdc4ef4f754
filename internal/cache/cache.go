package cache

import "sync"

// Cache is a thread-safe LRU cache with a soft limit. When the cache holds
// more than softLimit entries, the least recently used ones are evicted and
// released.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*entry[K, V]
	order     *lruList[K]
	softLimit int
	release   func(K, V)
}

type entry[K comparable, V any] struct {
	value V
	node  *lruNode[K]
}

// New creates a cache. A softLimit of 0 means unlimited. release may be nil.
func New[K comparable, V any](softLimit int, release func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*entry[K, V]),
		order:     newLRUList[K](),
		softLimit: softLimit,
		release:   release,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(e.node)
	return e.value, true
}

// Set stores a value. A previous value for the same key is released.
func (c *Cache[K, V]) Set(key K, value V) {
	var evicted []evictedEntry[K, V]

	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		evicted = append(evicted, evictedEntry[K, V]{key, old.value})
		old.value = value
		c.order.MoveToFront(old.node)
	} else {
		c.insert(key, value)
		evicted = c.evict(evicted)
	}
	c.mu.Unlock()

	c.releaseAll(evicted)
}

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. load runs under the cache lock, so concurrent callers for the
// same key load once. Errors are not cached.
func (c *Cache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	c.mu.Lock()

	if e, ok := c.entries[key]; ok {
		c.order.MoveToFront(e.node)
		c.mu.Unlock()
		return e.value, nil
	}

	value, err := load()
	if err != nil {
		c.mu.Unlock()
		var zero V
		return zero, err
	}
	c.insert(key, value)
	evicted := c.evict(nil)
	c.mu.Unlock()

	c.releaseAll(evicted)
	return value, nil
}

// Delete removes and releases an entry. It reports whether key was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		c.order.Remove(e.node)
	}
	c.mu.Unlock()

	if ok && c.release != nil {
		c.release(key, e.value)
	}
	return ok
}

// Clear removes and releases every entry, least recently used first.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	evicted := make([]evictedEntry[K, V], 0, len(c.entries))
	for {
		key, ok := c.order.RemoveOldest()
		if !ok {
			break
		}
		evicted = append(evicted, evictedEntry[K, V]{key, c.entries[key].value})
	}
	c.entries = make(map[K]*entry[K, V])
	c.mu.Unlock()

	c.releaseAll(evicted)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the soft limit.
func (c *Cache[K, V]) Capacity() int {
	return c.softLimit
}

type evictedEntry[K comparable, V any] struct {
	key   K
	value V
}

// insert adds a new entry. Caller must hold c.mu.
func (c *Cache[K, V]) insert(key K, value V) {
	c.entries[key] = &entry[K, V]{value: value, node: c.order.PushFront(key)}
}

// evict removes least recently used entries until the cache is within its
// soft limit and appends them to out. Caller must hold c.mu.
func (c *Cache[K, V]) evict(out []evictedEntry[K, V]) []evictedEntry[K, V] {
	if c.softLimit <= 0 {
		return out
	}
	for len(c.entries) > c.softLimit {
		key, ok := c.order.RemoveOldest()
		if !ok {
			break
		}
		out = append(out, evictedEntry[K, V]{key, c.entries[key].value})
		delete(c.entries, key)
	}
	return out
}

// releaseAll runs the release function outside the lock.
func (c *Cache[K, V]) releaseAll(evicted []evictedEntry[K, V]) {
	if c.release == nil {
		return
	}
	for _, e := range evicted {
		c.release(e.key, e.value)
	}
}
