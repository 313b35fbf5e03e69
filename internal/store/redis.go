package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const leasePrefix = "importbridge:lease:"

// releaseScript deletes the lease only if sessionID still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis shares leases across bridge replicas
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps an existing client
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// NewRedisFromURL connects using a redis:// URL
func NewRedisFromURL(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}

	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Acquire(ctx context.Context, owner, sessionID string, ttl time.Duration) error {
	ok, err := r.rdb.SetNX(ctx, leasePrefix+owner, sessionID, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return ErrLeaseHeld
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, owner, sessionID string) error {
	if err := releaseScript.Run(ctx, r.rdb, []string{leasePrefix + owner}, sessionID).Err(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

// Close closes the underlying client
func (r *Redis) Close() error {
	return r.rdb.Close()
}
