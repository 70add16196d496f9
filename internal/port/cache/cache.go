// Package cache defines the caching port. Values are pre-serialized
// bytes; keys carry the tenant scope as a prefix (for example
// "tenant:acme" or "prompt:<tenant-id>:sales_agent") so entries for
// different tenants can never collide.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL'd byte store. Get reports a miss with ok=false and a
// nil error; implementations reserve the error return for backend
// failures. Delete of an absent key is a no-op.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
