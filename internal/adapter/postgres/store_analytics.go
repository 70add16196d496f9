package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/SalesForge/internal/domain/analytics"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
)

// CountConversationsByStage returns current-stage counts for conversations
// created inside [start, end).
func (s *Store) CountConversationsByStage(ctx context.Context, start, end time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT funnel_stage, count(*) FROM conversations
		 WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
		 GROUP BY funnel_stage`,
		tenantFromCtx(ctx), start, end)
	if err != nil {
		return nil, fmt.Errorf("count conversations by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[stage] = n
	}
	return counts, rows.Err()
}

// PlanPerformance reports, per plan, how many conversations showed interest
// in it and how many of those converted.
func (s *Store) PlanPerformance(ctx context.Context) ([]analytics.PlanPerformance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name,
		     count(c.id) AS interested,
		     count(c.id) FILTER (WHERE c.funnel_stage = 'closed_won') AS conversions
		 FROM plans p
		 LEFT JOIN conversations c ON c.interested_plan_id = p.id AND c.tenant_id = p.tenant_id
		 WHERE p.tenant_id = $1
		 GROUP BY p.id, p.name
		 ORDER BY interested DESC, p.name`,
		tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("plan performance: %w", err)
	}
	defer rows.Close()

	var result []analytics.PlanPerformance
	for rows.Next() {
		var pp analytics.PlanPerformance
		if err := rows.Scan(&pp.PlanID, &pp.PlanName, &pp.Interested, &pp.Conversions); err != nil {
			return nil, fmt.Errorf("scan plan performance: %w", err)
		}
		result = append(result, pp)
	}
	return result, rows.Err()
}

// ObjectionCounts aggregates objection strings across the tenant's leads.
func (s *Store) ObjectionCounts(ctx context.Context, limit int) ([]analytics.ObjectionCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT o.objection, count(*) AS n
		 FROM leads l, jsonb_array_elements_text(l.objections) AS o(objection)
		 WHERE l.tenant_id = $1
		 GROUP BY o.objection
		 ORDER BY n DESC, o.objection
		 LIMIT $2`,
		tenantFromCtx(ctx), limit)
	if err != nil {
		return nil, fmt.Errorf("objection counts: %w", err)
	}
	defer rows.Close()

	var result []analytics.ObjectionCount
	for rows.Next() {
		var oc analytics.ObjectionCount
		if err := rows.Scan(&oc.Objection, &oc.Count); err != nil {
			return nil, fmt.Errorf("scan objection count: %w", err)
		}
		result = append(result, oc)
	}
	return result, rows.Err()
}

func (s *Store) ListConversationsByStage(ctx context.Context, stage conversation.Stage, limit int) ([]conversation.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationCols+` FROM conversations
		 WHERE tenant_id = $1 AND ($2 = '' OR funnel_stage = $2)
		 ORDER BY updated_at DESC
		 LIMIT $3`,
		tenantFromCtx(ctx), string(stage), limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations by stage: %w", err)
	}
	defer rows.Close()

	var result []conversation.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// RecentLeads merges explicit leads with awaiting_human conversations that
// never produced a lead. A conversation with both appears once, as its
// explicit lead.
func (s *Store) RecentLeads(ctx context.Context, limit int) ([]analytics.RecentLead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT l.id, l.conversation_id, l.user_id, u.name, l.stage, l.score,
		        (c.status = 'awaiting_human') AS awaiting_human, FALSE AS synthesized, l.updated_at
		 FROM leads l
		 JOIN conversations c ON c.id = l.conversation_id
		 JOIN users u ON u.id = l.user_id
		 WHERE l.tenant_id = $1
		 UNION ALL
		 SELECT NULL, c.id, c.user_id, u.name, 'warm', 50, TRUE, TRUE, c.updated_at
		 FROM conversations c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.tenant_id = $1 AND c.status = 'awaiting_human'
		   AND NOT EXISTS (SELECT 1 FROM leads l2 WHERE l2.conversation_id = c.id)
		 ORDER BY updated_at DESC
		 LIMIT $2`,
		tenantFromCtx(ctx), limit)
	if err != nil {
		return nil, fmt.Errorf("recent leads: %w", err)
	}
	defer rows.Close()

	var result []analytics.RecentLead
	for rows.Next() {
		var rl analytics.RecentLead
		var leadID *string
		if err := rows.Scan(&leadID, &rl.ConversationID, &rl.UserID, &rl.UserName,
			&rl.Stage, &rl.Score, &rl.AwaitingHuman, &rl.Synthesized, &rl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan recent lead: %w", err)
		}
		if leadID != nil {
			rl.LeadID = *leadID
		}
		result = append(result, rl)
	}
	return result, rows.Err()
}
