package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions holds connection settings for the Redis backend.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// Redis caches the token in a Redis string key with a TTL.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedis wraps an existing client. An empty key or non-positive ttl use
// DefaultKey and DefaultTTL.
func NewRedis(client *redis.Client, key string, ttl time.Duration) *Redis {
	return &Redis{
		client: client,
		key:    keyOrDefault(key),
		ttl:    ttlOrDefault(ttl),
	}
}

// OpenRedis creates a client from opts. The connection is established lazily.
func OpenRedis(opts RedisOptions, key string, ttl time.Duration) *Redis {
	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedis(client, key, ttl)
}

func (r *Redis) Get(ctx context.Context) (string, bool, error) {
	token, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("tokenstore: redis get %s: %w", r.key, err)
	}
	return token, token != "", nil
}

func (r *Redis) Set(ctx context.Context, token string) error {
	if err := r.client.Set(ctx, r.key, token, r.ttl).Err(); err != nil {
		return fmt.Errorf("tokenstore: redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("tokenstore: redis del %s: %w", r.key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
