// Package cache keeps display names in Redis in front of the user directory.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// DefaultNameTTL is how long a cached display name is served
const DefaultNameTTL = 10 * time.Minute

const keyPrefix = "auction:user-name:"

// NameCache is a read-through auctions.Directory. Concurrent misses for
// the same user share one lookup. Redis failures fall back to the
// underlying directory.
type NameCache struct {
	rdb    redis.UniversalClient
	next   auctions.Directory
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

func NewNameCache(rdb redis.UniversalClient, next auctions.Directory, ttl time.Duration, logger *slog.Logger) *NameCache {
	if ttl <= 0 {
		ttl = DefaultNameTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &NameCache{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

func (c *NameCache) DisplayName(ctx context.Context, userID uuid.UUID) (string, error) {
	key := keyPrefix + userID.String()

	name, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Name cache read failed", "user_id", userID, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another flight may have filled it since our miss
		if name, err := c.rdb.Get(ctx, key).Result(); err == nil {
			return name, nil
		}
		name, err := c.next.DisplayName(ctx, userID)
		if err != nil {
			return "", err
		}
		if err := c.rdb.Set(ctx, key, name, c.ttl).Err(); err != nil {
			c.logger.Warn("Name cache write failed", "user_id", userID, "error", err)
		}
		return name, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to resolve display name: %w", err)
	}
	return v.(string), nil
}

// Invalidate drops a cached name, e.g. after a rename
func (c *NameCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, keyPrefix+userID.String()).Err()
}
