package cache

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/civic-notify/internal/repository"
)

const settingsKey = "civic-notify:portal_settings"

// SettingsCache keeps the portal settings hash in Redis so envelope
// rendering does not hit Postgres for every recipient of a campaign.
// Redis errors fall back to the underlying repository.
type SettingsCache struct {
	rdb  *redis.Client
	next repository.SettingsRepositoryInterface
	ttl  time.Duration
}

func NewSettingsCache(rdb *redis.Client, next repository.SettingsRepositoryInterface, ttl time.Duration) *SettingsCache {
	return &SettingsCache{rdb: rdb, next: next, ttl: ttl}
}

func (c *SettingsCache) LoadAll(ctx context.Context) (map[string]string, error) {
	values, err := c.rdb.HGetAll(ctx, settingsKey).Result()
	if err == nil && len(values) > 0 {
		return values, nil
	}
	if err != nil {
		log.Println("⚠️ settings cache read failed:", err)
	}

	values, err = c.next.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return values, nil
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, settingsKey, values)
	pipe.Expire(ctx, settingsKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Println("⚠️ settings cache write failed:", err)
	}
	return values, nil
}

// Invalidate drops the cached hash; the next LoadAll repopulates it.
func (c *SettingsCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, settingsKey).Err()
}

// Close redis connection
func (c *SettingsCache) Close() error {
	return c.rdb.Close()
}

var _ repository.SettingsRepositoryInterface = (*SettingsCache)(nil)
