// Package cache is a small TTL key-value store used for short-lived staging
// state, such as deposit entries awaiting payment confirmation.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns (nil, false, nil) for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Delete is a no-op when the key is absent.
	Delete(ctx context.Context, key string) error
}
