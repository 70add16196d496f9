// Package lead defines sales leads captured from conversations.
package lead

import (
	"time"

	"github.com/Strob0t/SalesForge/internal/domain/conversation"
)

// Stage is the lead qualification stage.
type Stage string

const (
	StageCold      Stage = "cold"
	StageWarm      Stage = "warm"
	StageHot       Stage = "hot"
	StageQualified Stage = "qualified"
	StageConverted Stage = "converted"
)

// ValidStages is the set of all valid lead stages.
var ValidStages = map[Stage]bool{
	StageCold:      true,
	StageWarm:      true,
	StageHot:       true,
	StageQualified: true,
	StageConverted: true,
}

// Lead represents a qualified sales contact. At most one lead exists per
// conversation; updates upsert on conversation ID.
type Lead struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	ConversationID  string    `json:"conversation_id"`
	UserID          string    `json:"user_id"`
	Stage           Stage     `json:"stage"`
	Score           int       `json:"score"`
	Objections      []string  `json:"objections,omitempty"`
	PreferredPlanID string    `json:"preferred_plan_id,omitempty"`
	NextAction      string    `json:"next_action,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ClampScore bounds a lead score to the 0-100 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Synthesize derives a lead's stage and score from the funnel stage of the
// conversation it was captured from. Scores are monotonic in funnel depth.
func Synthesize(funnel conversation.Stage) (Stage, int) {
	switch funnel {
	case conversation.StageNegotiation:
		return StageHot, 80
	case conversation.StageConsideration:
		return StageWarm, 60
	case conversation.StageInterest:
		return StageWarm, 50
	default:
		return StageCold, 30
	}
}

// UpsertRequest is the tool-call payload for creating or updating a lead.
type UpsertRequest struct {
	Stage           Stage    `json:"stage,omitempty"`
	Score           *int     `json:"score,omitempty"`
	Objections      []string `json:"objections,omitempty"`
	PreferredPlanID string   `json:"preferred_plan_id,omitempty"`
	NextAction      string   `json:"next_action,omitempty"`
}
