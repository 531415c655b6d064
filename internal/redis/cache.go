package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mindwell/session-scheduling/internal/schedule"
)

// AvailabilityCache is a read-through cache over an AvailabilityRepository.
// Windows and overrides are read-mostly, so the HTTP read path (slot listing,
// schedule projection) serves them from Redis with a short TTL. The
// coordinator's slot-freshness check is built on the uncached repository, so a
// stale cache can never let a booking through.
type AvailabilityCache struct {
	client *redis.Client
	inner  schedule.AvailabilityRepository
	ttl    time.Duration
}

func NewAvailabilityCache(client *redis.Client, inner schedule.AvailabilityRepository, ttl time.Duration) *AvailabilityCache {
	return &AvailabilityCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
	}
}

func (c *AvailabilityCache) GetWeeklyWindows(ctx context.Context, therapistID uuid.UUID, weekday time.Weekday) ([]schedule.AvailabilityWindow, error) {
	key := fmt.Sprintf("avail:windows:%s:%d", therapistID, int(weekday))

	var windows []schedule.AvailabilityWindow
	if ok := c.fetch(ctx, key, &windows); ok {
		return windows, nil
	}

	windows, err := c.inner.GetWeeklyWindows(ctx, therapistID, weekday)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, windows)
	return windows, nil
}

func (c *AvailabilityCache) GetOverride(ctx context.Context, therapistID uuid.UUID, date time.Time) (*schedule.AvailabilityOverride, error) {
	key := fmt.Sprintf("avail:override:%s:%s", therapistID, date.Format("2006-01-02"))

	// The absent-override case is cached too, as a JSON null.
	var override *schedule.AvailabilityOverride
	if ok := c.fetch(ctx, key, &override); ok {
		return override, nil
	}

	override, err := c.inner.GetOverride(ctx, therapistID, date)
	if err != nil {
		return nil, err
	}

	c.store(ctx, key, override)
	return override, nil
}

// Invalidate drops a therapist's cached availability after a windows or
// override write.
func (c *AvailabilityCache) Invalidate(ctx context.Context, therapistID uuid.UUID) {
	pattern := fmt.Sprintf("avail:*:%s:*", therapistID)

	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("availability cache invalidate %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("availability cache scan %s: %v", pattern, err)
	}
}

// fetch returns true on a usable cache hit. Redis trouble is logged and
// treated as a miss so the repository stays the source of truth.
func (c *AvailabilityCache) fetch(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("availability cache get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Printf("availability cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (c *AvailabilityCache) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		log.Printf("availability cache encode %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Printf("availability cache set %s: %v", key, err)
	}
}
