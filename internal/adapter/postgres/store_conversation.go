package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/SalesForge/internal/domain"
	"github.com/Strob0t/SalesForge/internal/domain/conversation"
)

const conversationCols = `id, tenant_id, user_id, status, funnel_stage, interested_plan_id,
	context_summary, handoff_reason, handoff_requested_at, created_at, updated_at`

func scanConversation(row scannable) (conversation.Conversation, error) {
	var c conversation.Conversation
	var planID *string
	err := row.Scan(&c.ID, &c.TenantID, &c.UserID, &c.Status, &c.Stage, &planID,
		&c.ContextSummary, &c.HandoffReason, &c.HandoffRequestedAt, &c.CreatedAt, &c.UpdatedAt)
	if planID != nil {
		c.InterestedPlanID = *planID
	}
	return c, err
}

// CreateConversation starts a new active conversation at the awareness
// stage. The user must belong to the request's tenant; a mismatch is an
// isolation violation, not a not-found.
func (s *Store) CreateConversation(ctx context.Context, userID string) (*conversation.Conversation, error) {
	tid := tenantFromCtx(ctx)

	var owner string
	err := s.pool.QueryRow(ctx,
		`SELECT tenant_id FROM users WHERE id = $1`, userID).Scan(&owner)
	if err != nil {
		return nil, notFoundWrap(err, "create conversation: user %s", userID)
	}
	if owner != tid {
		return nil, fmt.Errorf("create conversation: user %s: %w", userID, domain.ErrIsolation)
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (tenant_id, user_id)
		 VALUES ($1, $2)
		 RETURNING `+conversationCols,
		tid, userID)
	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationCols+` FROM conversations WHERE id = $1 AND tenant_id = $2`,
		id, tenantFromCtx(ctx))
	c, err := scanConversation(row)
	if err != nil {
		return nil, notFoundWrap(err, "get conversation %s", id)
	}
	return &c, nil
}

func (s *Store) UpdateConversation(ctx context.Context, c *conversation.Conversation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $3, funnel_stage = $4, interested_plan_id = $5,
		     context_summary = $6, handoff_reason = $7, handoff_requested_at = $8, updated_at = now()
		 WHERE id = $1 AND tenant_id = $2`,
		c.ID, tenantFromCtx(ctx), c.Status, c.Stage, nullIfEmpty(c.InterestedPlanID),
		c.ContextSummary, c.HandoffReason, c.HandoffRequestedAt)
	return execExpectOne(tag, err, "update conversation %s", c.ID)
}

func (s *Store) ListMessages(ctx context.Context, conversationID string, limit int) ([]conversation.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, conversation_id, role, content, tool_calls, created_at
		 FROM (
		     SELECT id, tenant_id, conversation_id, role, content, tool_calls, created_at
		     FROM messages
		     WHERE conversation_id = $1 AND tenant_id = $2
		     ORDER BY created_at DESC
		     LIMIT $3
		 ) recent
		 ORDER BY created_at ASC`,
		conversationID, tenantFromCtx(ctx), limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var result []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ConversationID, &m.Role, &m.Content,
			&m.ToolCalls, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// AppendMessages writes a batch of messages in one transaction, holding a
// row lock on the conversation so concurrent appends to the same
// conversation serialize. Timestamps are forced strictly past the previous
// newest message, which keeps per-conversation ordering total even within
// one clock tick.
func (s *Store) AppendMessages(ctx context.Context, conversationID string, msgs []conversation.Message) ([]conversation.Message, error) {
	tid := tenantFromCtx(ctx)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("append messages: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx,
		`SELECT id FROM conversations WHERE id = $1 AND tenant_id = $2 FOR UPDATE`,
		conversationID, tid).Scan(&locked)
	if err != nil {
		return nil, notFoundWrap(err, "append messages: conversation %s", conversationID)
	}

	out := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		var created conversation.Message
		err := tx.QueryRow(ctx,
			`INSERT INTO messages (tenant_id, conversation_id, role, content, tool_calls, created_at)
			 SELECT $1, $2, $3, $4, $5,
			     GREATEST(clock_timestamp(), COALESCE(
			         (SELECT max(created_at) FROM messages WHERE conversation_id = $2),
			         '-infinity'::timestamptz) + interval '1 microsecond')
			 RETURNING id, tenant_id, conversation_id, role, content, tool_calls, created_at`,
			tid, conversationID, m.Role, m.Content, m.ToolCalls,
		).Scan(&created.ID, &created.TenantID, &created.ConversationID, &created.Role,
			&created.Content, &created.ToolCalls, &created.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("append message: %w", err)
		}
		out = append(out, created)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		conversationID, tid); err != nil {
		return nil, fmt.Errorf("append messages: touch conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("append messages: commit: %w", err)
	}
	return out, nil
}
