package conversation

import "fmt"

// Stage is a sales funnel stage. The main path orders strictly; closed_lost
// is a terminal side branch reachable from any stage.
type Stage string

const (
	StageAwareness     Stage = "awareness"
	StageInterest      Stage = "interest"
	StageConsideration Stage = "consideration"
	StageNegotiation   Stage = "negotiation"
	StageClosedWon     Stage = "closed_won"
	StageClosedLost    Stage = "closed_lost"
)

// MainPath is the forward funnel order, used for conversion-rate pairing.
var MainPath = []Stage{
	StageAwareness,
	StageInterest,
	StageConsideration,
	StageNegotiation,
	StageClosedWon,
}

// stageRank orders the main path. closed_lost has no rank; it is handled
// explicitly by Advance.
var stageRank = map[Stage]int{
	StageAwareness:     0,
	StageInterest:      1,
	StageConsideration: 2,
	StageNegotiation:   3,
	StageClosedWon:     4,
}

// ValidStages is the set of all valid funnel stages.
var ValidStages = map[Stage]bool{
	StageAwareness:     true,
	StageInterest:      true,
	StageConsideration: true,
	StageNegotiation:   true,
	StageClosedWon:     true,
	StageClosedLost:    true,
}

// Terminal reports whether no further stage movement is possible.
func (s Stage) Terminal() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// ParseStage validates a raw stage string.
func ParseStage(raw string) (Stage, error) {
	s := Stage(raw)
	if !ValidStages[s] {
		return "", fmt.Errorf("unknown funnel stage %q", raw)
	}
	return s, nil
}

// Advance applies the funnel's monotonic progression rule: the stage is a
// high-water mark, so a target at or behind the current stage is a no-op
// rather than an error. closed_lost is always honored from a non-terminal
// stage. The second return reports whether the stage actually moved.
func Advance(current, target Stage) (Stage, bool) {
	if current.Terminal() {
		return current, false
	}
	if target == StageClosedLost {
		return StageClosedLost, true
	}
	if stageRank[target] > stageRank[current] {
		return target, true
	}
	return current, false
}
