package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eln-app/eln-api/internal/service"

	"github.com/redis/go-redis/v9"
)

var (
	// incrementWithinLimitScript - 检查上限后原子自增，仅首次创建时设置 TTL
	// KEYS[1] = counter key
	// ARGV[1] = limit
	// ARGV[2] = TTL in milliseconds
	// returns {count, incremented}
	incrementWithinLimitScript = redis.NewScript(`
		local current = redis.call('GET', KEYS[1])
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end

		if current >= tonumber(ARGV[1]) then
			return {current, 0}
		end

		local newVal = redis.call('INCR', KEYS[1])

		-- Only set TTL on creation so the window is fixed, and repair a
		-- counter that somehow lost its expiry
		if newVal == 1 or redis.call('PTTL', KEYS[1]) == -1 then
			redis.call('PEXPIRE', KEYS[1], ARGV[2])
		end

		return {newVal, 1}
	`)
)

type redisSharedCache struct {
	rdb *redis.Client
}

// NewRedisSharedCache returns a SharedCache backed by Redis. Counter updates
// run as a single Lua script, so concurrent callers across processes never
// lose an increment.
func NewRedisSharedCache(rdb *redis.Client) service.SharedCache {
	return &redisSharedCache{rdb: rdb}
}

func (c *redisSharedCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", service.ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisSharedCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

func (c *redisSharedCache) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

func (c *redisSharedCache) IncrementWithinLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (int64, bool, error) {
	vals, err := incrementWithinLimitScript.Run(ctx, c.rdb, []string{key}, limit, ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, err
	}
	if len(vals) != 2 {
		return 0, false, fmt.Errorf("increment script returned %d values", len(vals))
	}
	return vals[0], vals[1] == 1, nil
}

func (c *redisSharedCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// -1 / -2 for persistent / absent keys
	if d < 0 {
		return 0, nil
	}
	return d, nil
}
