package tiered_test

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/SalesForge/internal/adapter/tiered"
)

// memCache is an in-memory cache that records the TTL of the last Set
// per key.
type memCache struct {
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func TestLocalHitSkipsShared(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	local.data["tenant:acme"] = []byte("snapshot")

	val, found, err := c.Get(context.Background(), "tenant:acme")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "snapshot" {
		t.Fatalf("Get = %s (found %v), want snapshot", val, found)
	}
}

func TestSharedHitBackfillsLocal(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)
	ctx := context.Background()

	// Written by another instance: only the shared tier has it.
	shared.data["prompt:t-1:sales_agent"] = []byte("v3")

	val, found, err := c.Get(ctx, "prompt:t-1:sales_agent")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "v3" {
		t.Fatalf("Get = %s (found %v), want v3", val, found)
	}
	if string(local.data["prompt:t-1:sales_agent"]) != "v3" {
		t.Error("expected backfill into the local tier")
	}
	if local.ttls["prompt:t-1:sales_agent"] != 5*time.Minute {
		t.Errorf("backfill TTL = %v, want the local cap", local.ttls["prompt:t-1:sales_agent"])
	}
}

func TestMissInBothTiers(t *testing.T) {
	c := tiered.New(newMemCache(), newMemCache(), 5*time.Minute)

	if _, found, err := c.Get(context.Background(), "missing"); err != nil || found {
		t.Fatalf("Get = found %v, err %v; want miss", found, err)
	}
}

func TestSetWritesBothAndCapsLocalTTL(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if _, ok := local.data["k"]; !ok {
		t.Fatal("missing from local tier")
	}
	if _, ok := shared.data["k"]; !ok {
		t.Fatal("missing from shared tier")
	}
	if local.ttls["k"] != 5*time.Minute {
		t.Errorf("local TTL = %v, want capped at 5m", local.ttls["k"])
	}
	if shared.ttls["k"] != time.Hour {
		t.Errorf("shared TTL = %v, want 1h", shared.ttls["k"])
	}
}

func TestDeleteRemovesBoth(t *testing.T) {
	local, shared := newMemCache(), newMemCache()
	c := tiered.New(local, shared, 5*time.Minute)

	local.data["k"] = []byte("v")
	shared.data["k"] = []byte("v")

	if err := c.Delete(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := local.data["k"]; ok {
		t.Error("still in local tier")
	}
	if _, ok := shared.data["k"]; ok {
		t.Error("still in shared tier")
	}
}
