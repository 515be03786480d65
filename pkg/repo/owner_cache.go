package repo

import (
	"sync"
	"time"

	"github.com/draftsmith/draftsmith/pkg/models"
)

const (
	ownerCacheTTL     = 5 * time.Minute
	ownerCacheMaxSize = 1024
)

type ownerCacheEntry struct {
	owner   models.UserID
	expires time.Time
}

// ownerCache remembers which owner a book belongs to, so saving a chapter
// does not refetch its parent book on every write. It is bounded in size,
// entries expire after a fixed TTL, and deletes invalidate eagerly; it is
// owned by the Repository rather than living as ambient global state.
type ownerCache struct {
	mu      sync.Mutex
	entries map[models.BookID]ownerCacheEntry
	now     func() time.Time
}

func newOwnerCache(now func() time.Time) *ownerCache {
	return &ownerCache{
		entries: make(map[models.BookID]ownerCacheEntry),
		now:     now,
	}
}

func (c *ownerCache) get(id models.BookID) (models.UserID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[id]
	if !ok {
		return models.UserID{}, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, id)
		return models.UserID{}, false
	}
	return entry.owner, true
}

func (c *ownerCache) put(id models.BookID, owner models.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= ownerCacheMaxSize {
		c.evictLocked()
	}
	c.entries[id] = ownerCacheEntry{owner: owner, expires: c.now().Add(ownerCacheTTL)}
}

func (c *ownerCache) invalidate(id models.BookID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// evictLocked drops expired entries first and, if the cache is still full,
// an arbitrary live one. Callers hold c.mu.
func (c *ownerCache) evictLocked() {
	now := c.now()
	for id, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, id)
		}
	}
	if len(c.entries) < ownerCacheMaxSize {
		return
	}
	for id := range c.entries {
		delete(c.entries, id)
		return
	}
}
