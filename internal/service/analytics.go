package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/analytics"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/database"
)

const (
	defaultAnalyticsWindow = 30 * 24 * time.Hour
	maxAnalyticsLimit      = 50
)

// AnalyticsService serves the tenant reporting read models. Every call is
// gated on the requesting user being a tenant administrator.
type AnalyticsService struct {
	store database.Store
	log   *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(store database.Store, log *slog.Logger) *AnalyticsService {
	if log == nil {
		log = slog.Default()
	}
	return &AnalyticsService{store: store, log: log}
}

// authorize resolves userKey within the tenant and checks admin access.
// Unknown users and non-admins are both forbidden; analytics must also be
// enabled for the tenant.
func (s *AnalyticsService) authorize(ctx context.Context, userKey string) error {
	tc, _ := middleware.TenantFromContext(ctx)
	if !tc.Config.Features.EnableAnalytics {
		return fmt.Errorf("%w: analytics is disabled for this tenant", domain.ErrForbidden)
	}
	if userKey == "" {
		return fmt.Errorf("%w: user_key is required", domain.ErrForbidden)
	}

	u, err := s.store.GetUserByKey(ctx, userKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: unknown user", domain.ErrForbidden)
		}
		return err
	}
	if !u.IsAdmin() {
		return fmt.Errorf("%w: admin access required", domain.ErrForbidden)
	}
	return nil
}

// Funnel returns the stage distribution and conversion rates for
// conversations created in [start, end). A zero window defaults to the
// last 30 days.
func (s *AnalyticsService) Funnel(ctx context.Context, userKey string, start, end time.Time) (*analytics.FunnelReport, error) {
	if err := s.authorize(ctx, userKey); err != nil {
		return nil, err
	}

	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultAnalyticsWindow)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", domain.ErrValidation)
	}

	counts, err := s.store.CountConversationsByStage(ctx, start, end)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return &analytics.FunnelReport{
		Start:       start,
		End:         end,
		StageCounts: counts,
		Conversions: analytics.BuildConversions(counts),
		Total:       total,
	}, nil
}

// Plans returns interest and conversion counts per plan.
func (s *AnalyticsService) Plans(ctx context.Context, userKey string) ([]analytics.PlanPerformance, error) {
	if err := s.authorize(ctx, userKey); err != nil {
		return nil, err
	}
	return s.store.PlanPerformance(ctx)
}

// Objections returns the most frequent objections across the tenant's
// leads.
func (s *AnalyticsService) Objections(ctx context.Context, userKey string, limit int) ([]analytics.ObjectionCount, error) {
	if err := s.authorize(ctx, userKey); err != nil {
		return nil, err
	}
	return s.store.ObjectionCounts(ctx, clampLimit(limit))
}

// RecentLeads returns the merged view of explicit leads and escalated
// conversations without one.
func (s *AnalyticsService) RecentLeads(ctx context.Context, userKey string, limit int) ([]analytics.RecentLead, error) {
	if err := s.authorize(ctx, userKey); err != nil {
		return nil, err
	}
	return s.store.RecentLeads(ctx, clampLimit(limit))
}

// Conversations lists recent conversations, optionally filtered to one
// funnel stage.
func (s *AnalyticsService) Conversations(ctx context.Context, userKey string, stage conversation.Stage, limit int) ([]conversation.Conversation, error) {
	if err := s.authorize(ctx, userKey); err != nil {
		return nil, err
	}
	if stage != "" && !conversation.ValidStages[stage] {
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, stage)
	}
	return s.store.ListConversationsByStage(ctx, stage, clampLimit(limit))
}

func clampLimit(n int) int {
	if n < 1 {
		return 10
	}
	if n > maxAnalyticsLimit {
		return maxAnalyticsLimit
	}
	return n
}
