package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/middleware"
)

type fakeResolver struct {
	verifyCalls int
	bySlugCalls int
	tenants     map[string]*tenant.Context
	verifyErr   error
}

func (f *fakeResolver) Verify(_ context.Context, slug, _ string) (*tenant.Context, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	tc, ok := f.tenants[slug]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return tc, nil
}

func (f *fakeResolver) BySlug(_ context.Context, slug string) (*tenant.Context, error) {
	f.bySlugCalls++
	tc, ok := f.tenants[slug]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	return tc, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func multiTenantCfg() config.Tenancy {
	return config.Tenancy{
		MultiTenant:       true,
		TenantHeader:      "X-Tenant-ID",
		APIKeyHeader:      "X-API-Key",
		DefaultTenantSlug: "default",
	}
}

func acme() *tenant.Context {
	return &tenant.Context{ID: "t-1", Slug: "acme", Status: tenant.StatusActive}
}

func TestResolveTenantSuccess(t *testing.T) {
	resolver := &fakeResolver{tenants: map[string]*tenant.Context{"acme": acme()}}
	var got tenant.Context
	var ok bool
	handler := middleware.ResolveTenant(resolver, multiTenantCfg(), testLogger())(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got, ok = middleware.TenantFromContext(r.Context())
		}))

	req := httptest.NewRequest("POST", "/api/v1/chat", http.NoBody)
	req.Header.Set("X-Tenant-ID", "acme")
	req.Header.Set("X-API-Key", "ac_secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !ok || got.ID != "t-1" || got.Slug != "acme" {
		t.Fatalf("tenant context = %+v, resolved %v", got, ok)
	}
}

func TestResolveTenantMissingSlugHeader(t *testing.T) {
	resolver := &fakeResolver{tenants: map[string]*tenant.Context{"acme": acme()}}
	handler := middleware.ResolveTenant(resolver, multiTenantCfg(), testLogger())(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not run")
		}))

	req := httptest.NewRequest("POST", "/api/v1/chat", http.NoBody)
	req.Header.Set("X-API-Key", "ac_secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.ErrMissingTenantHeader.Error()) {
		t.Errorf("body = %q, want the missing-header message", rec.Body.String())
	}
	if resolver.verifyCalls != 0 {
		t.Fatal("verify should not be called without a slug")
	}
}

func TestResolveTenantMissingAPIKey(t *testing.T) {
	resolver := &fakeResolver{tenants: map[string]*tenant.Context{"acme": acme()}}
	handler := middleware.ResolveTenant(resolver, multiTenantCfg(), testLogger())(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not run")
		}))

	req := httptest.NewRequest("POST", "/api/v1/chat", http.NoBody)
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.ErrMissingAPIKey.Error()) {
		t.Errorf("body = %q, want the missing-key message", rec.Body.String())
	}
}

func TestResolveTenantUnknownAndSuspendedIndistinguishable(t *testing.T) {
	unknown := &fakeResolver{tenants: map[string]*tenant.Context{}}
	suspended := &fakeResolver{verifyErr: domain.ErrTenantSuspended}

	var bodies []string
	var codes []int
	for _, resolver := range []*fakeResolver{unknown, suspended} {
		handler := middleware.ResolveTenant(resolver, multiTenantCfg(), testLogger())(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		req := httptest.NewRequest("POST", "/api/v1/chat", http.NoBody)
		req.Header.Set("X-Tenant-ID", "ghost")
		req.Header.Set("X-API-Key", "gh_key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		bodies = append(bodies, rec.Body.String())
		codes = append(codes, rec.Code)
	}

	if codes[0] != http.StatusNotFound || codes[1] != http.StatusNotFound {
		t.Fatalf("codes = %v, want both 404", codes)
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("response bodies differ: %q vs %q", bodies[0], bodies[1])
	}
}

func TestResolveTenantBadKey(t *testing.T) {
	resolver := &fakeResolver{verifyErr: domain.ErrInvalidCredentials}
	handler := middleware.ResolveTenant(resolver, multiTenantCfg(), testLogger())(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not run")
		}))

	req := httptest.NewRequest("POST", "/api/v1/chat", http.NoBody)
	req.Header.Set("X-Tenant-ID", "acme")
	req.Header.Set("X-API-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestResolveTenantSingleTenantModeIgnoresHeaders(t *testing.T) {
	resolver := &fakeResolver{tenants: map[string]*tenant.Context{
		"default": {ID: "t-default", Slug: "default", Status: tenant.StatusActive},
	}}
	cfg := multiTenantCfg()
	cfg.MultiTenant = false

	var got tenant.Context
	handler := middleware.ResolveTenant(resolver, cfg, testLogger())(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			got, _ = middleware.TenantFromContext(r.Context())
		}))

	// Headers naming another tenant must be ignored in single-tenant mode.
	req := httptest.NewRequest("POST", "/api/v1/chat", http.NoBody)
	req.Header.Set("X-Tenant-ID", "acme")
	req.Header.Set("X-API-Key", "ac_secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got.ID != "t-default" {
		t.Fatalf("resolved tenant = %+v, want default", got)
	}
	if resolver.verifyCalls != 0 {
		t.Fatal("verify should not run in single-tenant mode")
	}
}

func TestTenantIDFromContextMissing(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	if got := middleware.TenantIDFromContext(req.Context()); got != "" {
		t.Fatalf("expected empty tenant ID for unresolved context, got %s", got)
	}
}
