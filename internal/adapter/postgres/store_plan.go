package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/plan"
)

const planCols = `id, tenant_id, name, slug, price, billing_cycle, features, description, is_active, created_at, updated_at`

func scanPlan(row scannable) (plan.Plan, error) {
	var p plan.Plan
	var featuresJSON []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Slug, &p.Price, &p.BillingCycle,
		&featuresJSON, &p.Description, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if featuresJSON != nil {
		_ = json.Unmarshal(featuresJSON, &p.Features)
	}
	return p, nil
}

func (s *Store) ListPlans(ctx context.Context, activeOnly bool) ([]plan.Plan, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+planCols+` FROM plans
		 WHERE tenant_id = $1 AND ($2 = FALSE OR is_active)
		 ORDER BY price ASC`,
		tenantFromCtx(ctx), activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []plan.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *Store) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+planCols+` FROM plans WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx))
	p, err := scanPlan(row)
	if err != nil {
		return nil, notFoundWrap(err, "get plan %s", id)
	}
	return &p, nil
}

func (s *Store) CreatePlan(ctx context.Context, req plan.CreateRequest) (*plan.Plan, error) {
	featuresJSON, err := json.Marshal(orEmpty(req.Features))
	if err != nil {
		return nil, fmt.Errorf("marshal features: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO plans (tenant_id, name, slug, price, billing_cycle, features, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+planCols,
		tenantFromCtx(ctx), req.Name, req.Slug, req.Price, req.BillingCycle, featuresJSON, req.Description)
	p, err := scanPlan(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create plan %s: %w", req.Slug, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create plan: %w", err)
	}
	return &p, nil
}
