package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/tenant"
)

// Tenant directory operations run at platform level and are keyed by slug,
// not by the request context. Tenants are never hard-deleted.

const tenantCols = `id, slug, name, config, api_key_hash, api_key_prefix, status, expires_at, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	var configJSON []byte
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &configJSON, &t.APIKeyHash, &t.APIKeyPrefix,
		&t.Status, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if configJSON != nil {
		// Unknown config keys are dropped on decode.
		_ = json.Unmarshal(configJSON, &t.Config)
	}
	return t, nil
}

func (s *Store) CreateTenant(ctx context.Context, t *tenant.Tenant) error {
	configJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("marshal tenant config: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO tenants (slug, name, config, api_key_hash, api_key_prefix, status, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		t.Slug, t.Name, configJSON, t.APIKeyHash, t.APIKeyPrefix, t.Status, nullTime(timeOrZero(t.ExpiresAt)),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create tenant %s: %w", t.Slug, domain.ErrConflict)
		}
		return fmt.Errorf("create tenant %s: %w", t.Slug, err)
	}
	return nil
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantCols+` FROM tenants WHERE slug = $1`, slug)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", slug)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tenantCols+` FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) UpdateTenant(ctx context.Context, t *tenant.Tenant) error {
	configJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("marshal tenant config: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET name = $2, config = $3, status = $4, expires_at = $5, updated_at = now()
		 WHERE slug = $1`,
		t.Slug, t.Name, configJSON, t.Status, nullTime(timeOrZero(t.ExpiresAt)))
	return execExpectOne(tag, err, "update tenant %s", t.Slug)
}

// UpdateTenantKey replaces the stored credential hash, invalidating the
// previous key immediately.
func (s *Store) UpdateTenantKey(ctx context.Context, slug, keyHash, keyPrefix string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET api_key_hash = $2, api_key_prefix = $3, updated_at = now()
		 WHERE slug = $1`,
		slug, keyHash, keyPrefix)
	return execExpectOne(tag, err, "rotate key for tenant %s", slug)
}
