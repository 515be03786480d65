package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/draftsmith/draftsmith/pkg/models"
)

func TestOwnerCacheExpiry(t *testing.T) {
	now := time.Now()
	clock := &now
	c := newOwnerCache(func() time.Time { return *clock })

	id := models.NewBookID()
	owner := models.NewUserID()

	_, ok := c.get(id)
	assert.False(t, ok)

	c.put(id, owner)
	got, ok := c.get(id)
	assert.True(t, ok)
	assert.Equal(t, owner, got)

	later := now.Add(ownerCacheTTL + time.Second)
	clock = &later
	_, ok = c.get(id)
	assert.False(t, ok, "entries expire after the TTL")
}

func TestOwnerCacheInvalidate(t *testing.T) {
	c := newOwnerCache(time.Now)
	id := models.NewBookID()

	c.put(id, models.NewUserID())
	c.invalidate(id)
	_, ok := c.get(id)
	assert.False(t, ok)

	// Invalidating an unknown id is fine.
	c.invalidate(models.NewBookID())
}

func TestOwnerCacheStaysBounded(t *testing.T) {
	c := newOwnerCache(time.Now)
	for i := 0; i < ownerCacheMaxSize+10; i++ {
		c.put(models.NewBookID(), models.NewUserID())
	}
	assert.LessOrEqual(t, len(c.entries), ownerCacheMaxSize)
}
