package localstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCmdable is the subset of *redis.Client used here.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis stores keys under a per-device prefix.
type Redis struct {
	client  RedisCmdable
	prefix  string
	timeout time.Duration
	ttl     time.Duration
}

// NewRedis builds a store; ttl of 0 keeps keys forever.
func NewRedis(client RedisCmdable, prefix string, timeout, ttl time.Duration) *Redis {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Redis{client: client, prefix: prefix, timeout: timeout, ttl: ttl}
}

// NewRedisClient connects using redisURL when set, otherwise addr/password.
func NewRedisClient(ctx context.Context, redisURL, addr, password string) (*redis.Client, error) {
	var opt *redis.Options
	if redisURL != "" {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     addr,
			Password: password,
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Read(key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", r.prefix+key, err)
	}
	return data, true, nil
}

func (r *Redis) Write(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.prefix+key, err)
	}
	return nil
}

func (r *Redis) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", r.prefix+key, err)
	}
	return nil
}
