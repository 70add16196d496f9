// Package analytics defines the read models returned by the analytics
// endpoints. All values are computed per tenant.
package analytics

import (
	"time"

	"github.com/Strob0t/SalesForge/internal/domain/conversation"
	"github.com/Strob0t/SalesForge/internal/domain/lead"
)

// FunnelReport is the stage distribution and conversion rates for
// conversations created inside a time window. Counts reflect current
// stages, not historical transitions.
type FunnelReport struct {
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	StageCounts map[string]int       `json:"stage_counts"`
	Conversions []ConversionRateStep `json:"conversions"`
	Total       int                  `json:"total"`
}

// ConversionRateStep is the percentage of conversations at one main-path
// stage relative to the preceding stage. Rate is 0 when the denominator is 0.
type ConversionRateStep struct {
	From Stage   `json:"from"`
	To   Stage   `json:"to"`
	Rate float64 `json:"rate"`
}

// Stage aliases the funnel stage for report payloads.
type Stage = conversation.Stage

// PlanPerformance counts interest and conversions attributed to one plan.
type PlanPerformance struct {
	PlanID      string `json:"plan_id"`
	PlanName    string `json:"plan_name"`
	Interested  int    `json:"interested"`
	Conversions int    `json:"conversions"`
}

// ObjectionCount is one aggregated objection across a tenant's leads.
type ObjectionCount struct {
	Objection string `json:"objection"`
	Count     int    `json:"count"`
}

// RecentLead is one row of the merged leads view: explicit leads plus
// conversations flagged awaiting_human that have no lead yet.
type RecentLead struct {
	LeadID         string     `json:"lead_id,omitempty"`
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	UserName       string     `json:"user_name,omitempty"`
	Stage          lead.Stage `json:"stage"`
	Score          int        `json:"score"`
	AwaitingHuman  bool       `json:"awaiting_human"`
	Synthesized    bool       `json:"synthesized"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// BuildConversions derives consecutive conversion rates from current-stage
// counts: count(next stage) / count(stage) * 100 for each main-path pair.
func BuildConversions(counts map[string]int) []ConversionRateStep {
	path := conversation.MainPath
	steps := make([]ConversionRateStep, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		cur := counts[string(path[i])]
		next := counts[string(path[i+1])]
		var rate float64
		if cur > 0 {
			rate = float64(next) / float64(cur) * 100
		}
		steps = append(steps, ConversionRateStep{From: path[i], To: path[i+1], Rate: rate})
	}
	return steps
}
