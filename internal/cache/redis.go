package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

// NewPool returns a lazily dialing redigo pool for a redis:// URL.
// The pool is shared by the streak cache and the FalkorDB graph runner.
func NewPool(url string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     8,
		MaxActive:   32,
		IdleTimeout: 5 * time.Minute,
		Wait:        true,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, url,
				redis.DialConnectTimeout(2*time.Second),
				redis.DialReadTimeout(2*time.Second),
				redis.DialWriteTimeout(2*time.Second),
			)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Redis is a Store backed by a Redis server.
type Redis struct {
	pool *redis.Pool
}

// NewRedis wraps a pool. The pool is not dialed until first use.
func NewRedis(pool *redis.Pool) *Redis {
	return &Redis{pool: pool}
}

func (r *Redis) do(ctx context.Context, cmd string, args ...interface{}) (interface{}, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	defer conn.Close()
	return redis.DoContext(conn, ctx, cmd, args...)
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := redis.String(r.do(ctx, "GET", key))
	if errors.Is(err, redis.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements Store. The TTL is rounded down to whole seconds.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := r.do(ctx, "SET", key, value)
		return err
	}
	_, err := r.do(ctx, "SET", key, value, "EX", int64(ttl/time.Second))
	return err
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, key string) error {
	_, err := r.do(ctx, "DEL", key)
	return err
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	_, err := r.do(ctx, "PING")
	return err
}

// Close releases pooled connections.
func (r *Redis) Close() error {
	return r.pool.Close()
}
