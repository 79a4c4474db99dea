// ABOUTME: TTL cache of seen idempotency keys, size-bounded with FIFO eviction.
// ABOUTME: Prunes inline on access; no background goroutine to manage.

package reconcile

import (
	"container/list"
	"time"
)

// keyEntry stores the insertion time and list element for a cached key.
type keyEntry struct {
	seenAt  time.Time
	element *list.Element
}

// keyCache tracks idempotency keys the reconciler has already admitted.
// Expired entries are pruned inline on each access, keys in insertion
// order (oldest at front) for O(1) eviction. Callers hold the
// reconciler lock, so the cache itself is not synchronized.
type keyCache struct {
	seen    map[string]*keyEntry
	order   *list.List
	ttl     time.Duration
	maxSize int
}

func newKeyCache(ttl time.Duration, maxSize int) *keyCache {
	return &keyCache{
		seen:    make(map[string]*keyEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// checkAndMark reports whether the key was already seen and, if not,
// marks it. Expired entries count as unseen.
func (c *keyCache) checkAndMark(key string) bool {
	now := time.Now()
	c.pruneExpired(now)

	if entry, ok := c.seen[key]; ok && now.Sub(entry.seenAt) < c.ttl {
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(key)
	c.seen[key] = &keyEntry{seenAt: now, element: elem}
	return false
}

// pruneExpired removes entries older than the TTL from the front of the
// insertion-order list.
func (c *keyCache) pruneExpired(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		entry, ok := c.seen[key]
		if !ok {
			c.order.Remove(front)
			continue
		}
		if now.Sub(entry.seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}

// evictOldest removes the oldest entry. O(1) via the linked list.
func (c *keyCache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}
