// Package cache keeps the encoded scenario list in Redis so the player
// landing page does not hit the store on every request. Changes to the
// scenario set invalidate the entry; otherwise it expires after a TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no list is cached.
var ErrMiss = errors.New("cache miss")

const scenarioListKey = "pcd:scenarios:list"

// ScenarioCache stores the encoded scenario list.
type ScenarioCache interface {
	Scenarios(ctx context.Context) ([]byte, error)
	SetScenarios(ctx context.Context, data []byte) error
	Invalidate(ctx context.Context) error
}

// RedisClient is the subset of go-redis used here.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

type Redis struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedis connects to the server at url (redis://host:port/db) and
// verifies it answers.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl), nil
}

func NewRedisWithClient(client RedisClient, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Scenarios(ctx context.Context) ([]byte, error) {
	data, err := c.client.Get(ctx, scenarioListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("reading scenario list: %w", err)
	}
	return data, nil
}

func (c *Redis) SetScenarios(ctx context.Context, data []byte) error {
	if err := c.client.Set(ctx, scenarioListKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing scenario list: %w", err)
	}
	return nil
}

func (c *Redis) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, scenarioListKey).Err(); err != nil {
		return fmt.Errorf("invalidating scenario list: %w", err)
	}
	return nil
}

// Check pings the server for the health probe.
func (c *Redis) Check(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

// Noop never holds anything. It stands in when Redis is not configured.
type Noop struct{}

func (Noop) Scenarios(context.Context) ([]byte, error)  { return nil, ErrMiss }
func (Noop) SetScenarios(context.Context, []byte) error { return nil }
func (Noop) Invalidate(context.Context) error           { return nil }
