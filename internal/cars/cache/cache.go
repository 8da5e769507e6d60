// Package cache is a read-through cache of car listings per category. Any
// availability transition invalidates the affected listings, and the TTL
// bounds how long a missed invalidation can serve stale data.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"carrental/internal/metrics"
	"carrental/pkg/model"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "carrental:cars:category:"
	allKey    = "_all"
)

type ListingCache interface {
	Get(ctx context.Context, category string) ([]*model.Car, bool, error)
	Set(ctx context.Context, category string, cars []*model.Car) error
	// Invalidate drops the listings of the given categories and the
	// unfiltered listing.
	Invalidate(ctx context.Context, categories ...string) error
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) ListingCache {
	return &redisCache{client: client, ttl: ttl}
}

func key(category string) string {
	if category == "" {
		category = allKey
	}
	return keyPrefix + category
}

func (c *redisCache) Get(ctx context.Context, category string) ([]*model.Car, bool, error) {
	data, err := c.client.Get(ctx, key(category)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.ListingCache.WithLabelValues("miss").Inc()
			return nil, false, nil
		}
		metrics.ListingCache.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var cars []*model.Car
	if err := json.Unmarshal(data, &cars); err != nil {
		metrics.ListingCache.WithLabelValues("error").Inc()
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	metrics.ListingCache.WithLabelValues("hit").Inc()
	return cars, true, nil
}

func (c *redisCache) Set(ctx context.Context, category string, cars []*model.Car) error {
	data, err := json.Marshal(cars)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, key(category), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *redisCache) Invalidate(ctx context.Context, categories ...string) error {
	keys := []string{key("")}
	for _, cat := range categories {
		if cat != "" {
			keys = append(keys, key(cat))
		}
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

type noopCache struct{}

// NewNoopCache returns a cache that never hits. Used when Redis is not
// configured.
func NewNoopCache() ListingCache {
	return noopCache{}
}

func (noopCache) Get(context.Context, string) ([]*model.Car, bool, error) {
	return nil, false, nil
}

func (noopCache) Set(context.Context, string, []*model.Car) error {
	return nil
}

func (noopCache) Invalidate(context.Context, ...string) error {
	return nil
}
