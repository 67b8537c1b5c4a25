package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const latestPriceKey = "solprice:latest"

// PriceCache is a cache-aside layer for the most recent price sample. A nil
// *PriceCache is valid and does nothing, so callers never branch on whether
// redis is configured.
type PriceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// Connect builds a PriceCache against addr and pings it once. Returns nil
// (cache disabled) if the ping fails.
func Connect(addr string, ttl time.Duration) *PriceCache {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithError(err).Warn("redis unreachable, price cache disabled")
		return nil
	}
	logrus.Infof("price cache connected to %s", addr)
	return &PriceCache{client: client, ttl: ttl}
}

// SetLatest stores the serialized latest sample.
func (c *PriceCache) SetLatest(ctx context.Context, payload string) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, latestPriceKey, payload, c.ttl).Err(); err != nil {
		logrus.WithError(err).Warn("price cache set failed")
	}
}

// Latest returns the cached sample and whether it was present.
func (c *PriceCache) Latest(ctx context.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	v, err := c.client.Get(ctx, latestPriceKey).Result()
	if err != nil {
		return "", false
	}
	return v, true
}
