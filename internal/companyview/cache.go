package companyview

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// SnapshotTTL is how long a tenant's snapshot stays servable from cache.
const SnapshotTTL = 30 * time.Second

// Cache holds recent snapshots keyed by tenant ID.
type Cache struct {
	c   *ristretto.Cache[string, *Snapshot]
	ttl time.Duration
}

// NewCache creates the snapshot cache. maxTenants sizes the cache; each
// snapshot counts as cost 1.
func NewCache(maxTenants int64, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = SnapshotTTL
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *Snapshot]{
		NumCounters: maxTenants * 10,
		MaxCost:     maxTenants,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, ttl: ttl}, nil
}

// Get returns the cached snapshot for the tenant, or nil.
func (c *Cache) Get(tenantID string) *Snapshot {
	snap, ok := c.c.Get(tenantID)
	if !ok {
		return nil
	}
	return snap
}

// Set stores the tenant's snapshot for the cache TTL.
func (c *Cache) Set(tenantID string, snap *Snapshot) {
	c.c.SetWithTTL(tenantID, snap, 1, c.ttl)
	// Flush the admission buffer so the snapshot is visible to the next
	// request instead of eventually.
	c.c.Wait()
}

// Invalidate drops the tenant's snapshot.
func (c *Cache) Invalidate(tenantID string) {
	c.c.Del(tenantID)
}

// Close releases the cache's resources.
func (c *Cache) Close() {
	c.c.Close()
}
