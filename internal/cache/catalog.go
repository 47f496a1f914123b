package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// catalogTTL bounds staleness of cached catalog listings. Catalogs are
// immutable at runtime, so a short TTL only matters across deploys.
const catalogTTL = 10 * time.Minute

// CatalogCache is a read-through Redis cache for catalog listings. A nil
// *CatalogCache is valid and disables caching.
type CatalogCache struct {
	client *redis.Client
}

func NewCatalogCache(client *redis.Client) *CatalogCache {
	if client == nil {
		return nil
	}
	return &CatalogCache{client: client}
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// Get unmarshals the cached value for key into dest. Returns false on miss
// or when caching is disabled.
func (c *CatalogCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, "catalog:"+key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// Set stores value under key with the catalog TTL. Failures are ignored; the
// cache is an optimization, never the source of truth.
func (c *CatalogCache) Set(ctx context.Context, key string, value any) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.client.Set(ctx, "catalog:"+key, raw, catalogTTL)
}
