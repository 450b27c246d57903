package cache

import (
	"context"
	"sync"

	"quoteit/internal/models"
	"quoteit/internal/observability"
)

// DefaultUserCacheSize is the number of profiles kept before the cache is cleared.
const DefaultUserCacheSize = 100

// UserLoader reads a user from the authoritative store.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// UserCache is a read-through cache of user profiles. When a new key arrives
// while the cache is full, every entry is dropped before the insert.
//
// A write to an id while it is being loaded bumps that load's generation, and
// Reset or eviction bumps the epoch. A load that finishes after either changed
// is returned but not cached.
type UserCache struct {
	mu       sync.Mutex
	entries  map[string]*models.User
	inflight map[string]*pendingLoad
	epoch    uint64
	capacity int
	loader   UserLoader
}

// pendingLoad tracks concurrent misses for one id.
type pendingLoad struct {
	loaders    int
	generation uint64
}

// NewUserCache creates a cache over loader holding at most capacity entries.
func NewUserCache(loader UserLoader, capacity int) *UserCache {
	if capacity <= 0 {
		capacity = DefaultUserCacheSize
	}
	return &UserCache{
		entries:  make(map[string]*models.User, capacity),
		inflight: make(map[string]*pendingLoad),
		capacity: capacity,
		loader:   loader,
	}
}

// Get returns a copy of the cached profile, loading it on a miss.
func (c *UserCache) Get(ctx context.Context, id string) (*models.User, error) {
	c.mu.Lock()
	if u, ok := c.entries[id]; ok {
		cp := *u
		c.mu.Unlock()
		observability.UserCacheEvents.WithLabelValues("hit").Inc()
		return &cp, nil
	}
	pending, ok := c.inflight[id]
	if !ok {
		pending = &pendingLoad{}
		c.inflight[id] = pending
	}
	pending.loaders++
	gen, epoch := pending.generation, c.epoch
	c.mu.Unlock()
	observability.UserCacheEvents.WithLabelValues("miss").Inc()

	u, err := c.loader.GetByID(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if pending.loaders--; pending.loaders == 0 {
		delete(c.inflight, id)
	}
	if err != nil {
		return nil, err
	}
	u.ApplyDefaults()

	if c.epoch != epoch || pending.generation != gen {
		// Written while loading: the loaded copy may predate that write.
		if cached, ok := c.entries[id]; ok {
			cp := *cached
			return &cp, nil
		}
		cp := *u
		return &cp, nil
	}
	c.insertLocked(u)

	cp := *u
	return &cp, nil
}

// Replace overwrites the entry for u.ID if, and only if, it is already cached.
func (c *UserCache) Replace(u *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLoadLocked(u.ID)
	if _, ok := c.entries[u.ID]; ok {
		cp := *u
		cp.ApplyDefaults()
		c.entries[u.ID] = &cp
	}
}

// Update applies fn to the cached entry for id, if present.
func (c *UserCache) Update(id string, fn func(u *models.User)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLoadLocked(id)
	if u, ok := c.entries[id]; ok {
		fn(u)
		u.ApplyDefaults()
	}
}

// Remove drops the entry for id.
func (c *UserCache) Remove(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.invalidateLoadLocked(id)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *UserCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset empties the cache.
func (c *UserCache) Reset() {
	c.mu.Lock()
	c.clearLocked()
	c.mu.Unlock()
}

func (c *UserCache) insertLocked(u *models.User) {
	if _, ok := c.entries[u.ID]; !ok && len(c.entries) >= c.capacity {
		c.clearLocked()
		observability.UserCacheEvents.WithLabelValues("evict").Inc()
	}
	c.entries[u.ID] = u
}

func (c *UserCache) clearLocked() {
	c.entries = make(map[string]*models.User, c.capacity)
	c.epoch++
}

func (c *UserCache) invalidateLoadLocked(id string) {
	if pending, ok := c.inflight[id]; ok {
		pending.generation++
	}
}
