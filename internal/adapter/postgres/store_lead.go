package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/SalesForge/internal/domain/lead"
)

const leadCols = `id, tenant_id, conversation_id, user_id, stage, score, objections,
	preferred_plan_id, next_action, created_at, updated_at`

func scanLead(row scannable) (lead.Lead, error) {
	var l lead.Lead
	var objectionsJSON []byte
	var planID *string
	err := row.Scan(&l.ID, &l.TenantID, &l.ConversationID, &l.UserID, &l.Stage, &l.Score,
		&objectionsJSON, &planID, &l.NextAction, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return l, err
	}
	if objectionsJSON != nil {
		_ = json.Unmarshal(objectionsJSON, &l.Objections)
	}
	if planID != nil {
		l.PreferredPlanID = *planID
	}
	return l, nil
}

func (s *Store) GetLeadByConversation(ctx context.Context, conversationID string) (*lead.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadCols+` FROM leads WHERE conversation_id = $1 AND tenant_id = $2`,
		conversationID, tenantFromCtx(ctx))
	l, err := scanLead(row)
	if err != nil {
		return nil, notFoundWrap(err, "get lead for conversation %s", conversationID)
	}
	return &l, nil
}

// UpsertLead inserts or updates the single lead of a conversation. On
// update the score never decreases and the stage only moves forward in
// list order (cold < warm < hot < qualified < converted); objections are
// merged, not replaced.
func (s *Store) UpsertLead(ctx context.Context, l *lead.Lead) (*lead.Lead, error) {
	objectionsJSON, err := json.Marshal(orEmpty(l.Objections))
	if err != nil {
		return nil, fmt.Errorf("marshal objections: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO leads (tenant_id, conversation_id, user_id, stage, score, objections, preferred_plan_id, next_action)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (conversation_id) DO UPDATE SET
		     stage = CASE
		         WHEN array_position(ARRAY['cold','warm','hot','qualified','converted'], EXCLUDED.stage)
		            > array_position(ARRAY['cold','warm','hot','qualified','converted'], leads.stage)
		         THEN EXCLUDED.stage ELSE leads.stage END,
		     score             = GREATEST(leads.score, EXCLUDED.score),
		     objections        = (
		         SELECT COALESCE(jsonb_agg(DISTINCT o), '[]'::jsonb)
		         FROM jsonb_array_elements(leads.objections || EXCLUDED.objections) AS o
		     ),
		     preferred_plan_id = COALESCE(EXCLUDED.preferred_plan_id, leads.preferred_plan_id),
		     next_action       = COALESCE(NULLIF(EXCLUDED.next_action, ''), leads.next_action),
		     updated_at        = now()
		 RETURNING `+leadCols,
		tenantFromCtx(ctx), l.ConversationID, l.UserID, l.Stage, l.Score, objectionsJSON,
		nullIfEmpty(l.PreferredPlanID), l.NextAction)
	created, err := scanLead(row)
	if err != nil {
		return nil, fmt.Errorf("upsert lead: %w", err)
	}
	return &created, nil
}
