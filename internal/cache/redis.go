package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is a thin JSON-marshaling wrapper over go-redis, used by
// ResponseCache to store the pipeline's final answers across process
// restarts and across replicas — the LLM gateway's own SQLite cache is
// per-process and keyed on individual model calls, not on the full
// (question -> Response) result.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient builds a client against addr (e.g. "localhost:6379").
func NewRedisClient(addr string, db int) *RedisClient {
	return &RedisClient{client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})}
}

// Set stores value JSON-serialized under key with expiration.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get deserializes the value stored under key into dest. It returns
// redis.Nil (unwrapped) when the key is missing, matching go-redis's own
// sentinel so callers can use errors.Is(err, redis.Nil).
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes key.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping checks connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
