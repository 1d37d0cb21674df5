package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

// GetCached returns the cached value for key, or "" when absent or redis is down.
func (r *Redis) GetCached(ctx context.Context, key string) string {
	if r == nil || r.Client == nil {
		return ""
	}
	val, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		return ""
	}
	return val
}

// SetCached stores value under key with the given TTL; failures are ignored,
// redis here is a best-effort cache, never the source of truth.
func (r *Redis) SetCached(ctx context.Context, key, value string, ttl time.Duration) {
	if r == nil || r.Client == nil {
		return
	}
	_ = r.Client.Set(ctx, key, value, ttl).Err()
}
