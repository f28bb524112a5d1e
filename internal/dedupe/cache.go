// ABOUTME: Thread-safe TTL cache for suppressing duplicate trigger deliveries
// ABOUTME: Keys are trigger message ids; entries expire or are evicted oldest-first

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks trigger message ids that have already been processed. The
// trigger transport redelivers events after reconnects, so the listener
// checks here before starting a turn and marks only after the turn
// succeeds (check → process → mark).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // insertion order, oldest at front
	ttl     time.Duration
	maxSize int
}

// New creates a dedupe cache. Entries older than ttl no longer count as
// seen; when maxSize is reached the oldest entry is evicted.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Check returns true if the key has been seen and has not expired.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[key]
	if !ok {
		return false
	}
	if time.Since(e.seenAt) >= c.ttl {
		c.removeLocked(key, e)
		return false
	}
	return true
}

// Mark records that a key has been processed. Re-marking refreshes the
// entry's age.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok {
		e.seenAt = time.Now()
		c.order.MoveToBack(e.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldestLocked()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &entry{seenAt: time.Now(), element: elem}
}

// Len returns the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) evictOldestLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	c.removeLocked(key, c.seen[key])
}

func (c *Cache) removeLocked(key string, e *entry) {
	if e == nil {
		return
	}
	c.order.Remove(e.element)
	delete(c.seen, key)
}
