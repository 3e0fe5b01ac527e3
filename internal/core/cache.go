package core

import (
	"context"
	"time"
)

// CacheRepository is a byte-oriented TTL cache. The name resolver keeps
// chat display names in it; data.RedisCacheRepo is the production store.
type CacheRepository interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set with a zero ttl stores the key without expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	Health(ctx context.Context) error
}
