package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces dedupe keys in a shared Redis.
const DefaultPrefix = "perfumery-notify:"

// Redis is a claim set shared by every process using the same Redis,
// built on SET NX with an expiry.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis wraps an existing client.
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

// DialRedis connects to the Redis at addr and verifies it answers.
func DialRedis(ctx context.Context, addr, password string, db int) (*Redis, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, DefaultPrefix), rdb, nil
}

// Claim implements the claim-once contract with SET key 1 NX PX ttl.
func (r *Redis) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}
