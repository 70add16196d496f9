package service

import (
	"context"
	"sync"
	"time"

	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/domain/user"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/llm"
	"github.com/Strob0t/SalesForge/internal/port/notifier"
)

// userUpsert builds a minimal valid user identification block.
func userUpsert(key string) user.UpsertRequest {
	return user.UpsertRequest{UserKey: key, Name: "Test User"}
}

// tenantCtx puts a resolved tenant snapshot into the context the way the
// middleware does.
func tenantCtx(id, slug string) context.Context {
	cfg := tenant.DefaultConfig()
	return middleware.WithTenant(context.Background(), tenant.Context{
		ID:     id,
		Slug:   slug,
		Status: tenant.StatusActive,
		Config: cfg,
	})
}

// memCache is a TTL-less in-memory cache for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// fakeProvider returns scripted responses and records requests.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []llm.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &llm.Response{Content: "ok"}, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

// fakeNotifier records published handoff events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.HandoffEvent
	err    error
}

func (f *fakeNotifier) PublishHandoff(_ context.Context, ev notifier.HandoffEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}
