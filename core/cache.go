package core

import (
	"context"
	"time"
)

// Cache stores serialized responses. Keys are namespaced by resource prefix ("students:", ...).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// DeletePrefix deletes all keys starting with any of the prefixes.
	DeletePrefix(ctx context.Context, prefixes ...string) error
}
