package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/plan"
	"github.com/Strob0t/SalesForge/internal/port/database"
)

// PlanService manages a tenant's sellable plans.
type PlanService struct {
	store database.Store
	log   *slog.Logger
}

// NewPlanService creates a PlanService.
func NewPlanService(store database.Store, log *slog.Logger) *PlanService {
	if log == nil {
		log = slog.Default()
	}
	return &PlanService{store: store, log: log}
}

// List returns the tenant's plans, active ones only unless includeInactive.
func (s *PlanService) List(ctx context.Context, includeInactive bool) ([]plan.Plan, error) {
	return s.store.ListPlans(ctx, !includeInactive)
}

// Get returns one plan by ID.
func (s *PlanService) Get(ctx context.Context, id string) (*plan.Plan, error) {
	return s.store.GetPlan(ctx, id)
}

// Create adds a plan to the tenant's catalog.
func (s *PlanService) Create(ctx context.Context, req plan.CreateRequest) (*plan.Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}
	p, err := s.store.CreatePlan(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("plan created", "plan_id", p.ID, "slug", p.Slug)
	return p, nil
}
