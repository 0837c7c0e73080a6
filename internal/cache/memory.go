package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Domenick1991/courtbooking/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache serves a single process when no Redis address is configured.
type MemoryCache struct {
	store     *gocache.Cache
	venuesTTL time.Duration
	lockMu    sync.Mutex
}

func NewMemoryCache(venuesTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		store:     gocache.New(venuesTTL, 2*venuesTTL),
		venuesTTL: venuesTTL,
	}
}

func (c *MemoryCache) GetVenues(context.Context) ([]domain.Venue, error) {
	v, ok := c.store.Get(venuesKey())
	if !ok {
		return nil, nil
	}
	venues := v.([]domain.Venue)
	out := make([]domain.Venue, len(venues))
	copy(out, venues)
	return out, nil
}

func (c *MemoryCache) SetVenues(_ context.Context, venues []domain.Venue) error {
	stored := make([]domain.Venue, len(venues))
	copy(stored, venues)
	c.store.Set(venuesKey(), stored, c.venuesTTL)
	return nil
}

// AcquireSlotLock relies on Add failing for a key that is already present and unexpired.
func (c *MemoryCache) AcquireSlotLock(_ context.Context, key domain.SlotKey, owner string, ttl time.Duration) (bool, error) {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	if err := c.store.Add(slotLockKey(key), owner, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// ReleaseSlotLock leaves a lock alone once it belongs to another owner.
func (c *MemoryCache) ReleaseSlotLock(_ context.Context, key domain.SlotKey, owner string) error {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()

	if v, ok := c.store.Get(slotLockKey(key)); ok && v.(string) == owner {
		c.store.Delete(slotLockKey(key))
	}
	return nil
}
