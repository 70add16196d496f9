// Package conversation defines chat conversations, their messages, and the
// sales funnel state machine that tracks buyer progress.
package conversation

import (
	"encoding/json"
	"time"
)

// Status is the operational state of a conversation, orthogonal to the
// funnel stage.
type Status string

const (
	StatusActive        Status = "active"
	StatusAwaitingHuman Status = "awaiting_human"
	StatusClosed        Status = "closed"
)

// ValidStatuses is the set of all valid conversation statuses.
var ValidStatuses = map[Status]bool{
	StatusActive:        true,
	StatusAwaitingHuman: true,
	StatusClosed:        true,
}

// Conversation represents a chat thread between one user and the agent.
type Conversation struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenant_id"`
	UserID             string     `json:"user_id"`
	Status             Status     `json:"status"`
	Stage              Stage      `json:"funnel_stage"`
	InterestedPlanID   string     `json:"interested_plan_id,omitempty"`
	ContextSummary     string     `json:"context_summary,omitempty"`
	HandoffReason      string     `json:"handoff_reason,omitempty"`
	HandoffRequestedAt *time.Time `json:"handoff_requested_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// AwaitingHuman reports whether the agent is blocked pending a human
// operator.
func (c *Conversation) AwaitingHuman() bool {
	return c.Status == StatusAwaitingHuman
}

// Message represents a single message in a conversation. Messages are
// append-only; TenantID is denormalized so message queries stay
// tenant-scoped without a join.
type Message struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenant_id"`
	ConversationID string          `json:"conversation_id"`
	Role           string          `json:"role"` // "user", "assistant", "system"
	Content        string          `json:"content"`
	ToolCalls      json.RawMessage `json:"tool_calls,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// HandoffRequest records why a conversation was escalated to a human.
type HandoffRequest struct {
	Reason  string `json:"reason"`
	Summary string `json:"summary,omitempty"`
}
