// Package cache caches search results per index snapshot, in process
// memory or in Redis.
package cache

import (
	"context"
	"time"
)

// Store is a byte-level key/value backend with expiry.
type Store interface {
	// Get returns the value and true, or false when the key is absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeletePrefix removes every key starting with prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}
