// Package cache keeps short-lived dashboard snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mpesa-console/internal/dashboard"
)

const keyPrefix = "console:dashboard:"

// NewClient connects to the Redis instance at url and pings it.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// DashboardCache stores dashboard aggregates by view key.
type DashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDashboardCache creates a cache whose entries expire after ttl.
func NewDashboardCache(client *redis.Client, ttl time.Duration) *DashboardCache {
	return &DashboardCache{client: client, ttl: ttl}
}

// Get returns the cached aggregate for key. A miss is not an error.
func (c *DashboardCache) Get(ctx context.Context, key string) (dashboard.Aggregate, bool, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return dashboard.Aggregate{}, false, nil
	}
	if err != nil {
		return dashboard.Aggregate{}, false, fmt.Errorf("failed to read dashboard cache: %w", err)
	}

	var agg dashboard.Aggregate
	if err := json.Unmarshal(val, &agg); err != nil {
		return dashboard.Aggregate{}, false, fmt.Errorf("failed to decode dashboard cache: %w", err)
	}
	return agg, true, nil
}

// Set stores agg under key.
func (c *DashboardCache) Set(ctx context.Context, key string, agg dashboard.Aggregate) error {
	data, err := json.Marshal(agg)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard cache: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write dashboard cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached dashboard, e.g. after application names
// changed.
func (c *DashboardCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to invalidate dashboard cache: %w", err)
		}
	}
	return iter.Err()
}
