// Package cache provides a cache-aside read path over a pluggable key-value
// store. The store is an advisory accelerator: every operation degrades to a
// no-op (or the underlying loader) when the store errors, so cache outages
// cost latency, never correctness.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is the minimal key-value surface the read cache needs. Implemented
// by the Redis client in infrastructure/redis.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// GetOrLoad returns the cached value under key if present, otherwise calls
// load, caches the result for ttl, and returns it.
//
// A nil store, a store error, or a decode error all fall through to load;
// failures populating the cache are logged and ignored.
func GetOrLoad[T any](ctx context.Context, store Store, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T

	if store == nil {
		return load(ctx)
	}

	if raw, err := store.Get(ctx, key); err == nil {
		var cached T
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
		log.Printf("cache: dropping undecodable entry %s", key)
	} else if !errors.Is(err, ErrMiss) {
		log.Printf("cache: get %s failed, falling back to source: %v", key, err)
	}

	value, err := load(ctx)
	if err != nil {
		return zero, err
	}

	if raw, err := json.Marshal(value); err == nil {
		if err := store.Set(ctx, key, string(raw), ttl); err != nil {
			log.Printf("cache: set %s failed: %v", key, err)
		}
	}

	return value, nil
}

// Put stores a value under key without going through a loader. Used to prime
// the cache right after a write. Errors are logged, never returned.
func Put(ctx context.Context, store Store, key string, value any, ttl time.Duration) {
	if store == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := store.Set(ctx, key, string(raw), ttl); err != nil {
		log.Printf("cache: set %s failed: %v", key, err)
	}
}

// Invalidate removes the given prefixes and keys. Errors are logged, never
// returned: a failed invalidation self-heals when the entry's TTL expires.
func Invalidate(ctx context.Context, store Store, prefixes []string, keys ...string) {
	if store == nil {
		return
	}
	for _, prefix := range prefixes {
		if err := store.DeletePrefix(ctx, prefix); err != nil {
			log.Printf("cache: invalidate prefix %s failed: %v", prefix, err)
		}
	}
	if len(keys) > 0 {
		if err := store.Delete(ctx, keys...); err != nil {
			log.Printf("cache: invalidate keys failed: %v", err)
		}
	}
}
