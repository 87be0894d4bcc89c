package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes a lease key only when it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLeaseStore claims region leases with SET NX PX
type RedisLeaseStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLeaseStore creates a lease store from a Redis URL
func NewRedisLeaseStore(ctx context.Context, redisURL, prefix string) (*RedisLeaseStore, error) {
	if redisURL == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisLeaseStoreWithClient(client, prefix), nil
}

// NewRedisLeaseStoreWithClient wraps an existing client
func NewRedisLeaseStoreWithClient(client redis.UniversalClient, prefix string) *RedisLeaseStore {
	if prefix == "" {
		prefix = "events:lease:"
	}
	return &RedisLeaseStore{client: client, prefix: prefix}
}

// AcquireLease claims a location key for ttl
func (r *RedisLeaseStore) AcquireLease(ctx context.Context, locationKey, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+locationKey, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	return ok, nil
}

// ReleaseLease releases a lease if owner still holds it
func (r *RedisLeaseStore) ReleaseLease(ctx context.Context, locationKey, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.prefix + locationKey}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (r *RedisLeaseStore) Close() error {
	return r.client.Close()
}
