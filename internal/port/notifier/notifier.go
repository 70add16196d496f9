// Package notifier defines the operator-notification port. Events flow to
// human operators when a conversation is escalated out of the agent.
package notifier

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// HandoffEvent is published when a conversation enters awaiting_human.
type HandoffEvent struct {
	TenantSlug     string    `json:"tenant_slug"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Reason         string    `json:"reason"`
	Summary        string    `json:"summary,omitempty"`
	FunnelStage    string    `json:"funnel_stage"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Notifier is the port interface for delivering handoff events.
type Notifier interface {
	// PublishHandoff delivers a handoff event. Failures are logged by the
	// caller but never fail the handoff itself.
	PublishHandoff(ctx context.Context, ev HandoffEvent) error
}
