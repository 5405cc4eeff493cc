package accountcache

import (
	"sync"

	"github.com/duskforge/vaultcache/internal/model"
)

// Cache holds one Bundle per account. It is read-mostly and bounded in
// cardinality (one entry per known account), so a sync.Map is a better
// fit than a map guarded by a single RWMutex: lookups never contend with
// each other, only Insert does.
type Cache struct {
	bundles sync.Map // model.AccountID -> *Bundle
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the bundle for id, if one has been cached.
func (c *Cache) Get(id model.AccountID) (*Bundle, bool) {
	v, ok := c.bundles.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Bundle), true
}

// Insert stores or replaces the bundle for id.
func (c *Cache) Insert(id model.AccountID, b *Bundle) {
	c.bundles.Store(id, b)
}

// Remove drops the bundle for id, if any.
func (c *Cache) Remove(id model.AccountID) {
	c.bundles.Delete(id)
}
