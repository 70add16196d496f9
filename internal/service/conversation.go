package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/SalesForge/internal/adapter/otel"
	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
	"github.com/Strob0t/SalesForge/internal/middleware"
	"github.com/Strob0t/SalesForge/internal/port/database"
	"github.com/Strob0t/SalesForge/internal/port/notifier"
)

// ConversationService owns funnel transitions, human handoff, and lead
// synthesis. The funnel only moves forward on the main path; closed_lost
// is reachable from any non-terminal stage.
type ConversationService struct {
	store    database.Store
	notifier notifier.Notifier
	metrics  *otel.Metrics
	log      *slog.Logger
}

// NewConversationService creates a ConversationService. notifier and
// metrics may be nil.
func NewConversationService(store database.Store, n notifier.Notifier, m *otel.Metrics, log *slog.Logger) *ConversationService {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationService{store: store, notifier: n, metrics: m, log: log}
}

// Get returns a conversation by ID within the request's tenant.
func (s *ConversationService) Get(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.store.GetConversation(ctx, id)
}

// History returns the most recent messages of a conversation in
// chronological order.
func (s *ConversationService) History(ctx context.Context, id string, limit int) ([]conversation.Message, error) {
	if _, err := s.store.GetConversation(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id, limit)
}

// AdvanceStage moves the conversation toward target. Backward and repeat
// targets are ignored without error; the stored stage is a high-water
// mark. Returns the conversation after the attempt.
func (s *ConversationService) AdvanceStage(ctx context.Context, id string, target conversation.Stage) (*conversation.Conversation, error) {
	if !conversation.ValidStages[target] {
		return nil, fmt.Errorf("%w: unknown stage %q", domain.ErrValidation, target)
	}

	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	next, moved := conversation.Advance(c.Stage, target)
	if !moved {
		return c, nil
	}

	from := c.Stage
	c.Stage = next
	if err := s.store.UpdateConversation(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StageTransitions.Add(ctx, 1)
	}
	s.log.Info("funnel stage advanced", "conversation_id", id, "from", from, "to", next)
	return c, nil
}

// RequestHandoff escalates a conversation to a human operator. The status
// change commits first; the operator notification is best-effort.
func (s *ConversationService) RequestHandoff(ctx context.Context, id string, req conversation.HandoffRequest) (*conversation.Conversation, error) {
	tc, _ := middleware.TenantFromContext(ctx)
	if !tc.Config.Features.EnableHandoff {
		return nil, fmt.Errorf("%w: handoff is disabled for this tenant", domain.ErrForbidden)
	}

	ctx, span := otel.StartHandoffSpan(ctx, tc.Slug, id, req.Reason)
	defer span.End()

	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AwaitingHuman() {
		return c, nil
	}
	if c.Status == conversation.StatusClosed {
		return nil, fmt.Errorf("%w: conversation is closed", domain.ErrValidation)
	}

	now := time.Now().UTC()
	c.Status = conversation.StatusAwaitingHuman
	c.HandoffReason = req.Reason
	c.HandoffRequestedAt = &now
	if req.Summary != "" {
		c.ContextSummary = req.Summary
	}
	if err := s.store.UpdateConversation(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Handoffs.Add(ctx, 1)
	}

	if err := s.synthesizeLead(ctx, c); err != nil {
		s.log.Warn("lead synthesis failed after handoff", "conversation_id", id, "error", err)
	}

	if s.notifier != nil {
		ev := notifier.HandoffEvent{
			TenantSlug:     tc.Slug,
			ConversationID: c.ID,
			UserID:         c.UserID,
			Reason:         req.Reason,
			Summary:        c.ContextSummary,
			FunnelStage:    string(c.Stage),
			RequestedAt:    now,
		}
		if err := s.notifier.PublishHandoff(ctx, ev); err != nil && !errors.Is(err, notifier.ErrNotConfigured) {
			s.log.Error("handoff notification failed", "conversation_id", c.ID, "error", err)
		}
	}

	s.log.Info("conversation escalated", "conversation_id", c.ID, "reason", req.Reason, "stage", c.Stage)
	return c, nil
}

// Resolve returns an escalated conversation to the agent.
func (s *ConversationService) Resolve(ctx context.Context, id string) (*conversation.Conversation, error) {
	c, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.AwaitingHuman() {
		return nil, fmt.Errorf("%w: conversation is not awaiting a human", domain.ErrValidation)
	}
	c.Status = conversation.StatusActive
	c.HandoffReason = ""
	c.HandoffRequestedAt = nil
	if err := s.store.UpdateConversation(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CloseWon marks the conversation converted and closes it.
func (s *ConversationService) CloseWon(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.closeAs(ctx, id, conversation.StageClosedWon)
}

// CloseLost marks the conversation lost. Valid from any non-terminal stage.
func (s *ConversationService) CloseLost(ctx context.Context, id string) (*conversation.Conversation, error) {
	return s.closeAs(ctx, id, conversation.StageClosedLost)
}

func (s *ConversationService) closeAs(ctx context.Context, id string, terminal conversation.Stage) (*conversation.Conversation, error) {
	c, err := s.AdvanceStage(ctx, id, terminal)
	if err != nil {
		return nil, err
	}
	if c.Stage == terminal && c.Status != conversation.StatusClosed {
		c.Status = conversation.StatusClosed
		if err := s.store.UpdateConversation(ctx, c); err != nil {
			return nil, err
		}
	}
	if terminal == conversation.StageClosedWon {
		if err := s.convertLead(ctx, c); err != nil {
			s.log.Warn("lead conversion failed after close", "conversation_id", id, "error", err)
		}
	}
	return c, nil
}

// UpsertLead applies an explicit lead update, typically from an agent tool
// call. Omitted fields fall back to values synthesized from the funnel
// stage; the store keeps stage and score monotonic.
func (s *ConversationService) UpsertLead(ctx context.Context, conversationID string, req lead.UpsertRequest) (*lead.Lead, error) {
	c, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	stage, score := lead.Synthesize(c.Stage)
	if req.Stage != "" {
		if !lead.ValidStages[req.Stage] {
			return nil, fmt.Errorf("%w: unknown lead stage %q", domain.ErrValidation, req.Stage)
		}
		stage = req.Stage
	}
	if req.Score != nil {
		score = lead.ClampScore(*req.Score)
	}

	l := &lead.Lead{
		ConversationID:  c.ID,
		UserID:          c.UserID,
		Stage:           stage,
		Score:           score,
		Objections:      req.Objections,
		PreferredPlanID: req.PreferredPlanID,
		NextAction:      req.NextAction,
	}
	out, err := s.store.UpsertLead(ctx, l)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LeadsUpserted.Add(ctx, 1)
	}
	return out, nil
}

// synthesizeLead records a lead when a handoff fires. This and the
// explicit agent tool call are the only paths that create leads; the
// monotonic upsert keeps an existing lead's stage and score.
func (s *ConversationService) synthesizeLead(ctx context.Context, c *conversation.Conversation) error {
	stage, score := lead.Synthesize(c.Stage)
	l := &lead.Lead{
		ConversationID:  c.ID,
		UserID:          c.UserID,
		Stage:           stage,
		Score:           score,
		PreferredPlanID: c.InterestedPlanID,
	}
	if _, err := s.store.UpsertLead(ctx, l); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.LeadsUpserted.Add(ctx, 1)
	}
	return nil
}

// convertLead marks an already-recorded lead converted after a won close.
// Conversations that never produced a lead stay lead-free.
func (s *ConversationService) convertLead(ctx context.Context, c *conversation.Conversation) error {
	l, err := s.store.GetLeadByConversation(ctx, c.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	l.Stage = lead.StageConverted
	l.Score = 100
	_, err = s.store.UpsertLead(ctx, l)
	return err
}
