// Package tiered layers the in-process cache over the shared NATS KV
// tier. Reads prefer the local copy; a hit in the shared tier is copied
// back locally so other instances' writes become visible everywhere.
package tiered

import (
	"context"
	"time"

	"github.com/Strob0t/SalesForge/internal/port/cache"
)

// Cache is a two-level cache. Writes and deletes go to both levels;
// local entries live at most l1Cap so invalidations from other
// instances are picked up within that window.
type Cache struct {
	local  cache.Cache
	shared cache.Cache
	l1Cap  time.Duration
}

// New builds a tiered cache over a local and a shared backend.
func New(local, shared cache.Cache, l1Cap time.Duration) *Cache {
	return &Cache{local: local, shared: shared, l1Cap: l1Cap}
}

func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.local.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.shared.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	_ = c.local.Set(ctx, key, val, c.l1Cap)
	return val, true, nil
}

// Set writes both levels. The local copy expires after min(ttl, l1Cap).
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	localTTL := ttl
	if c.l1Cap > 0 && localTTL > c.l1Cap {
		localTTL = c.l1Cap
	}
	if err := c.local.Set(ctx, key, value, localTTL); err != nil {
		return err
	}
	return c.shared.Set(ctx, key, value, ttl)
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.shared.Delete(ctx, key)
}
