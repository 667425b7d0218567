// Package cache provides the small expiring key-value store used by the remote gateway.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque values under string keys. A zero ttl uses the implementation default.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
