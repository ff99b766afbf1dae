package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/emis-scheduler-api/pkg/errors"
)

// GridCacheRepository caches resolved time grids in Redis. A grid only
// changes when its configuration changes, so a TTL cache is sufficient.
type GridCacheRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewGridCacheRepository constructs a grid cache repository.
func NewGridCacheRepository(client *redis.Client, logger *zap.Logger) *GridCacheRepository {
	return &GridCacheRepository{client: client, logger: logger}
}

// Key builds the cache key for an institution/term grid.
func (r *GridCacheRepository) Key(institutionID, termID string) string {
	return fmt.Sprintf("grid:%s:%s", institutionID, termID)
}

// Get retrieves and unmarshals the cached grid into dest.
func (r *GridCacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cached grid for %s: %w", key, err)
	}

	return nil
}

// Set marshals the grid and stores it with the given TTL.
func (r *GridCacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal grid for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Invalidate drops the cached grid, e.g. after a configuration change.
func (r *GridCacheRepository) Invalidate(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}
