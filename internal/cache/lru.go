package cache

import (
	"sync"
	"time"
)

// LRU is a size-bounded cache whose entries also expire after a TTL.
type LRU[K comparable, V any] struct {
	mu    sync.Mutex
	size  int
	ttl   time.Duration
	nodes map[K]*node[K, V]
	// root is the sentinel of a circular list; root.next is the most
	// recently used entry.
	root  node[K, V]
	now   func() time.Time
	stats Stats
}

var (
	_ Store[string, int] = (*LRU[string, int])(nil)
	_ Expirer            = (*LRU[string, int])(nil)
)

type node[K comparable, V any] struct {
	key        K
	value      V
	expires    time.Time
	prev, next *node[K, V]
}

// Stats counts cache traffic since creation.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewLRU holds at most capacity entries (minimum 1), each for ttl.
func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	c := &LRU[K, V]{
		size:  capacity,
		ttl:   ttl,
		nodes: make(map[K]*node[K, V], capacity),
		now:   time.Now,
	}
	c.root.prev, c.root.next = &c.root, &c.root
	return c
}

// SetClock replaces the time source, for tests.
func (c *LRU[K, V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[key]
	if ok && c.now().After(n.expires) {
		c.unlink(n)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	c.moveToFront(n)
	return n.value, true
}

// Set stores value under key, evicting the least recently used entry when
// the cache is full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if n, ok := c.nodes[key]; ok {
		n.value, n.expires = value, expires
		c.moveToFront(n)
		return
	}
	n := &node[K, V]{key: key, value: value, expires: expires}
	c.nodes[key] = n
	c.insertFront(n)
	if len(c.nodes) > c.size {
		c.unlink(c.root.prev)
		c.stats.Evictions++
	}
}

func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.nodes[key]; ok {
		c.unlink(n)
	}
}

// CleanExpired removes expired entries and reports how many went.
func (c *LRU[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for n := c.root.next; n != &c.root; {
		next := n.next
		if now.After(n.expires) {
			c.unlink(n)
			removed++
		}
		n = next
	}
	return removed
}

func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.nodes)
	c.root.prev, c.root.next = &c.root, &c.root
}

// Len counts entries, including expired ones not yet cleaned.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *LRU[K, V]) insertFront(n *node[K, V]) {
	n.prev, n.next = &c.root, c.root.next
	c.root.next.prev = n
	c.root.next = n
}

func (c *LRU[K, V]) moveToFront(n *node[K, V]) {
	if c.root.next == n {
		return
	}
	n.prev.next, n.next.prev = n.next, n.prev
	c.insertFront(n)
}

func (c *LRU[K, V]) unlink(n *node[K, V]) {
	n.prev.next, n.next.prev = n.next, n.prev
	n.prev, n.next = nil, nil
	delete(c.nodes, n.key)
}
