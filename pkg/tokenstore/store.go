// Package tokenstore caches a single bearer token for the smsdrop client.
//
// A Store holds at most one token under a fixed key. Backends are
// interchangeable: process memory, Redis, DynamoDB, or Null which never
// caches anything. Every method must be safe to call before any Set.
package tokenstore

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultKey is the key the token is cached under when none is configured.
const DefaultKey = "smsdrop:access_token"

// DefaultTTL bounds how long external backends keep a token.
const DefaultTTL = time.Hour

// Store is the token cache contract.
type Store interface {
	// Get returns the cached token. ok is false when nothing is cached.
	Get(ctx context.Context) (token string, ok bool, err error)
	// Set replaces the cached token.
	Set(ctx context.Context, token string) error
	// Clear removes the cached token. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendNone     = "none"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend string
	Key     string
	TTL     time.Duration

	Redis    RedisOptions
	DynamoDB DynamoDBOptions
}

// Open builds the Store named by opts.Backend. An empty backend means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendNone, "null", "dummy":
		return Null{}, nil
	case BackendRedis:
		return OpenRedis(opts.Redis, opts.Key, opts.TTL), nil
	case BackendDynamoDB:
		return OpenDynamoDB(ctx, opts.DynamoDB, opts.Key, opts.TTL)
	default:
		return nil, fmt.Errorf("tokenstore: unknown backend %q", opts.Backend)
	}
}

func keyOrDefault(key string) string {
	if key == "" {
		return DefaultKey
	}
	return key
}

func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
