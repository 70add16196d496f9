package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
	"github.com/Strob0t/SalesForge/internal/port/cache"
	"github.com/Strob0t/SalesForge/internal/port/database"
)

// apiKeyPrefixLen is how many characters of the raw key are stored for
// display. Enough to identify a key in a list, useless for authentication.
const apiKeyPrefixLen = 8

// TenantService manages the tenant directory and credential lifecycle. It
// implements the resolver interface used by the tenant middleware.
type TenantService struct {
	store    database.Store
	cache    cache.Cache
	cacheTTL time.Duration
	log      *slog.Logger
}

// NewTenantService creates a TenantService. cache may be nil to disable
// resolution caching.
func NewTenantService(store database.Store, c cache.Cache, cacheTTL time.Duration, log *slog.Logger) *TenantService {
	if log == nil {
		log = slog.Default()
	}
	return &TenantService{store: store, cache: c, cacheTTL: cacheTTL, log: log}
}

// Create onboards a new tenant and mints its API key. The raw key appears
// only in the response; the store keeps a bcrypt hash.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.CreateResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	rawKey, hash, err := mintAPIKey(req.Slug)
	if err != nil {
		return nil, fmt.Errorf("mint api key: %w", err)
	}

	t := &tenant.Tenant{
		Slug:         req.Slug,
		Name:         req.Name,
		Status:       req.Status,
		APIKeyHash:   hash,
		APIKeyPrefix: rawKey[:apiKeyPrefixLen],
		Config:       tenant.DefaultConfig(),
	}
	if t.Status == "" {
		t.Status = tenant.StatusTrial
	}
	if req.Config != nil {
		t.Config = *req.Config
	}

	if err := s.store.CreateTenant(ctx, t); err != nil {
		return nil, err
	}
	s.log.Info("tenant created", "slug", t.Slug, "status", t.Status, "key_prefix", t.APIKeyPrefix)
	return &tenant.CreateResponse{Tenant: *t, APIKey: rawKey}, nil
}

// Verify resolves a slug+key pair to a tenant snapshot. Unknown and
// suspended tenants both return errors that the middleware renders
// identically, so probing slugs reveals nothing.
func (s *TenantService) Verify(ctx context.Context, slug, apiKey string) (*tenant.Context, error) {
	t, err := s.lookup(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}

	if !t.Status.CanAuthenticate() {
		return nil, domain.ErrTenantSuspended
	}
	if t.ExpiresAt != nil && time.Now().After(*t.ExpiresAt) {
		return nil, domain.ErrTenantSuspended
	}

	if err := bcrypt.CompareHashAndPassword([]byte(t.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return &tenant.Context{ID: t.ID, Slug: t.Slug, Status: t.Status, Config: t.Config}, nil
}

// BySlug resolves a tenant without credentials. Used in single-tenant mode
// where the deployment itself is the trust boundary.
func (s *TenantService) BySlug(ctx context.Context, slug string) (*tenant.Context, error) {
	t, err := s.lookup(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &tenant.Context{ID: t.ID, Slug: t.Slug, Status: t.Status, Config: t.Config}, nil
}

// RotateKey mints a replacement API key. The old key stops working as soon
// as the store update commits.
func (s *TenantService) RotateKey(ctx context.Context, slug string) (*tenant.CreateResponse, error) {
	t, err := s.store.GetTenantBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	rawKey, hash, err := mintAPIKey(slug)
	if err != nil {
		return nil, fmt.Errorf("mint api key: %w", err)
	}
	if err := s.store.UpdateTenantKey(ctx, slug, hash, rawKey[:apiKeyPrefixLen]); err != nil {
		return nil, err
	}
	s.invalidate(ctx, slug)

	t.APIKeyHash = hash
	t.APIKeyPrefix = rawKey[:apiKeyPrefixLen]
	s.log.Info("tenant key rotated", "slug", slug, "key_prefix", t.APIKeyPrefix)
	return &tenant.CreateResponse{Tenant: *t, APIKey: rawKey}, nil
}

// Get returns a tenant by slug.
func (s *TenantService) Get(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return s.store.GetTenantBySlug(ctx, slug)
}

// List returns all tenants in the directory.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Update applies a partial update to a tenant. The slug is immutable.
func (s *TenantService) Update(ctx context.Context, slug string, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	t, err := s.store.GetTenantBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Status != "" {
		t.Status = req.Status
	}
	if req.Config != nil {
		t.Config = *req.Config
	}
	if req.ExpiresAt != nil {
		t.ExpiresAt = req.ExpiresAt
	}

	if err := s.store.UpdateTenant(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, slug)
	return t, nil
}

// Deactivate cancels a tenant. Rows are never deleted; in-flight
// requests finish and the next resolution attempt fails.
func (s *TenantService) Deactivate(ctx context.Context, slug string) error {
	_, err := s.Update(ctx, slug, tenant.UpdateRequest{Status: tenant.StatusCancelled})
	return err
}

// cachedTenant carries the credential hash explicitly, since the Tenant
// JSON tag hides it from API responses but the resolver needs it back.
type cachedTenant struct {
	Tenant     tenant.Tenant `json:"tenant"`
	APIKeyHash string        `json:"api_key_hash"`
}

// lookup fetches a tenant by slug through the resolution cache.
func (s *TenantService) lookup(ctx context.Context, slug string) (*tenant.Tenant, error) {
	key := "tenant:" + slug
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var ct cachedTenant
			if err := json.Unmarshal(data, &ct); err == nil {
				ct.Tenant.APIKeyHash = ct.APIKeyHash
				return &ct.Tenant, nil
			}
		}
	}

	t, err := s.store.GetTenantBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(cachedTenant{Tenant: *t, APIKeyHash: t.APIKeyHash}); err == nil {
			_ = s.cache.Set(ctx, key, data, s.cacheTTL)
		}
	}
	return t, nil
}

func (s *TenantService) invalidate(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, "tenant:"+slug); err != nil {
		s.log.Warn("tenant cache invalidation failed", "slug", slug, "error", err)
	}
}

// mintAPIKey returns a raw key of the form <slug-fragment>_<32 hex chars>
// and its bcrypt hash.
func mintAPIKey(slug string) (raw, hash string, err error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	frag := slug
	if len(frag) > 2 {
		frag = frag[:2]
	}
	raw = frag + "_" + hex.EncodeToString(b)

	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return raw, string(h), nil
}
