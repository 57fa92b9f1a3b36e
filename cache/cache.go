package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

// ErrLockHeld is returned by WithLock when another caller holds the lock.
var ErrLockHeld = errors.New("lock is held by another operation")

var errNoClient = errors.New("Redis client is not initialized")

type Cache struct {
	client *redis.Client
}

// NewCache creates a new Cache instance, ensuring that client is not nil.
func NewCache(client *redis.Client) (*Cache, error) {
	if client == nil {
		return nil, errNoClient
	}
	return &Cache{client: client}, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.client == nil {
		return errNoClient
	}
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) DeleteAll(ctx context.Context, pattern string) error {
	if c.client == nil {
		return errNoClient
	}
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c.client == nil {
		return errNoClient
	}
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get returns "" and no error when key does not exist.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	if c.client == nil {
		return "", errNoClient
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// SetJSON stores value encoded as JSON.
func (c *Cache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, key, data, expiration)
}

// GetJSON decodes the value at key into dest and reports whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := c.Get(ctx, key)
	if err != nil || val == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

// Claim atomically reads and deletes key. Only one caller ever sees ok=true
// for a given value.
func (c *Cache) Claim(ctx context.Context, key string) (value string, ok bool, err error) {
	if c.client == nil {
		return "", false, errNoClient
	}
	value, err = c.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// NewLock acquires a distributed lock using Redis
func (c *Cache) NewLock(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	if c.client == nil {
		return false, errNoClient
	}
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

var releaseLock = redis.NewScript(releaseLockScript)

// ReleaseLock releases a lock only if value still owns it.
func (c *Cache) ReleaseLock(ctx context.Context, key string, value string) error {
	if c.client == nil {
		return errNoClient
	}
	result, err := releaseLock.Run(ctx, c.client, []string{key}, value).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return errors.New("lock release failed: not the lock owner")
	}
	return nil
}

// WithLock runs fn while holding key. It does not wait: a held lock returns
// ErrLockHeld immediately.
func (c *Cache) WithLock(ctx context.Context, key, owner string, ttl time.Duration, fn func() error) error {
	locked, err := c.NewLock(ctx, key, owner, ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return ErrLockHeld
	}
	defer func() {
		// fn may have been cancelled; release on a fresh context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.ReleaseLock(releaseCtx, key, owner)
	}()
	return fn()
}

// PoolStats exposes the client's connection pool statistics.
func (c *Cache) PoolStats() *redis.PoolStats {
	return c.client.PoolStats()
}
