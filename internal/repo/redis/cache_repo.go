package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// CacheRepo is a small JSON read-through cache. A decode failure is treated
// as a miss so a stale or corrupt entry never breaks a request.
type CacheRepo struct {
	client *goredis.Client
}

func NewCacheRepo(client *goredis.Client) *CacheRepo {
	return &CacheRepo{client: client}
}

func (r *CacheRepo) Get(ctx context.Context, key string, target any) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" || target == nil {
		return false, fmt.Errorf("invalid cache get payload")
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("get cache key: %w", err)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return false, nil
	}

	return true, nil
}

func (r *CacheRepo) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" || ttl <= 0 {
		return fmt.Errorf("invalid cache set payload")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set cache key: %w", err)
	}

	return nil
}
