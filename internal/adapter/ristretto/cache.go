// Package ristretto is the in-process cache tier. It holds hot tenant
// snapshots, active prompts, and knowledge context so steady-state chat
// traffic rarely touches Postgres.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache adapts a ristretto cache to the cache port. Entry cost is the
// payload size in bytes.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache bounded at maxBytes of stored payload. The
// admission counters assume entries around 1 KiB, the typical size of a
// serialized prompt or tenant snapshot.
func New(maxBytes int64) (*Cache, error) {
	counters := maxBytes / 1024 * 10
	if counters < 1e4 {
		counters = 1e4
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
