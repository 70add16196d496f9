package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/SalesForge/internal/config"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
)

type tenantCtxKey struct{}

// TenantResolver is the slice of the tenant service the resolution
// middleware needs.
type TenantResolver interface {
	// Verify checks slug + API key and returns a tenant snapshot on
	// success. The snapshot never carries credential material.
	Verify(ctx context.Context, slug, apiKey string) (*tenant.Context, error)
	// BySlug looks a tenant up without credential verification. Used only
	// in single-tenant mode for the configured default tenant.
	BySlug(ctx context.Context, slug string) (*tenant.Context, error)
}

// ResolveTenant returns middleware that resolves every request to exactly
// one tenant before any handler runs.
//
// Multi-tenant mode reads the tenant slug and API key headers and verifies
// the credentials. Single-tenant mode resolves the configured default
// tenant and ignores the headers entirely. Unknown and suspended tenants
// produce identical 404 responses so probing cannot distinguish them.
func ResolveTenant(resolver TenantResolver, cfg config.Tenancy, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.MultiTenant {
				tc, err := resolver.BySlug(r.Context(), cfg.DefaultTenantSlug)
				if err != nil {
					log.Error("default tenant unavailable", "slug", cfg.DefaultTenantSlug, "error", err)
					http.Error(w, `{"error":"service unavailable"}`, http.StatusServiceUnavailable)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), *tc)))
				return
			}

			slug := r.Header.Get(cfg.TenantHeader)
			if slug == "" {
				writeError(w, http.StatusBadRequest, domain.ErrMissingTenantHeader)
				return
			}
			apiKey := r.Header.Get(cfg.APIKeyHeader)
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, domain.ErrMissingAPIKey)
				return
			}

			tc, err := resolver.Verify(r.Context(), slug, apiKey)
			if err != nil {
				writeVerifyError(w, log, slug, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), *tc)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, `{"error":"`+err.Error()+`"}`, status)
}

// writeVerifyError maps verification failures to responses. The raw key is
// never logged.
func writeVerifyError(w http.ResponseWriter, log *slog.Logger, slug string, err error) {
	switch {
	case errors.Is(err, domain.ErrTenantNotFound):
		log.Warn("tenant resolution failed", "slug", slug, "reason", "unknown")
		http.Error(w, `{"error":"tenant not found"}`, http.StatusNotFound)
	case errors.Is(err, domain.ErrTenantSuspended):
		// Same response body and status as unknown, distinct log line.
		log.Warn("tenant resolution failed", "slug", slug, "reason", "inactive")
		http.Error(w, `{"error":"tenant not found"}`, http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidCredentials):
		log.Warn("tenant resolution failed", "slug", slug, "reason", "bad_key")
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
	default:
		log.Error("tenant resolution error", "slug", slug, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
	}
}

// WithTenant stores the resolved tenant identity in ctx.
func WithTenant(ctx context.Context, tc tenant.Context) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tc)
}

// TenantFromContext returns the resolved tenant identity, if any.
func TenantFromContext(ctx context.Context) (tenant.Context, bool) {
	tc, ok := ctx.Value(tenantCtxKey{}).(tenant.Context)
	return tc, ok
}

// TenantIDFromContext returns the resolved tenant ID, or "" when the
// request was never resolved. Store queries treat "" as a non-matching
// tenant, never as a wildcard.
func TenantIDFromContext(ctx context.Context) string {
	tc, _ := ctx.Value(tenantCtxKey{}).(tenant.Context)
	return tc.ID
}
