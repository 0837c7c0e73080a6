package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/courtbooking/config"
	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client    *redis.Client
	venuesTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, venuesTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		venuesTTL: venuesTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) GetVenues(ctx context.Context) ([]domain.Venue, error) {
	data, err := c.client.Get(ctx, venuesKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var venues []domain.Venue
	if err := json.Unmarshal(data, &venues); err != nil {
		return nil, err
	}
	return venues, nil
}

func (c *RedisCache) SetVenues(ctx context.Context, venues []domain.Venue) error {
	payload, err := json.Marshal(venues)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, venuesKey(), payload, c.venuesTTL).Err()
}

// releaseScript deletes the lock only while it still names the caller as owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireSlotLock claims the court-hour for owner for the duration of a commit.
func (c *RedisCache) AcquireSlotLock(ctx context.Context, key domain.SlotKey, owner string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, slotLockKey(key), owner, ttl).Result()
}

// ReleaseSlotLock is a no-op when the lock expired and was taken over by another owner.
func (c *RedisCache) ReleaseSlotLock(ctx context.Context, key domain.SlotKey, owner string) error {
	return releaseScript.Run(ctx, c.client, []string{slotLockKey(key)}, owner).Err()
}

func venuesKey() string {
	return "cache:venues"
}

func slotLockKey(key domain.SlotKey) string {
	return fmt.Sprintf("lock:venue:%s:date:%s:time:%s:court:%s", key.VenueID, key.Date, key.StartTime, key.CourtName)
}
