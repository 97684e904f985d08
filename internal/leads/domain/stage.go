// Package domain provides core business rules for the leads bounded context.
package domain

// Stage is a lead's position in the sales funnel. The funnel is presented to
// users as an ordered kanban, but manual moves may jump between any two
// stages; only automatic advances are constrained by the order.
type Stage string

const (
	StageNewLead            Stage = "new_lead"
	StageContacted          Stage = "contacted"
	StageDiscoveryScheduled Stage = "discovery_scheduled"
	StageDiscoveryCompleted Stage = "discovery_completed"
	StageProposalSent       Stage = "proposal_sent"
	StageNegotiation        Stage = "negotiation"
	StageContractSigned     Stage = "contract_signed"
	StageActiveClient       Stage = "active_client"
	StageProjectDelivered   Stage = "project_delivered"
	StageRetention          Stage = "retention"
)

// stageRank assigns each stage its funnel position. Automatic advances use
// this total order so a cascade can never move a lead backward.
var stageRank = map[Stage]int{
	StageNewLead:            0,
	StageContacted:          1,
	StageDiscoveryScheduled: 2,
	StageDiscoveryCompleted: 3,
	StageProposalSent:       4,
	StageNegotiation:        5,
	StageContractSigned:     6,
	StageActiveClient:       7,
	StageProjectDelivered:   8,
	StageRetention:          9,
}

// ValidStage reports whether the value is a known pipeline stage.
func ValidStage(stage Stage) bool {
	_, ok := stageRank[stage]
	return ok
}

// StageRank returns the funnel position of a stage, or -1 for unknown values.
func StageRank(stage Stage) int {
	rank, ok := stageRank[stage]
	if !ok {
		return -1
	}
	return rank
}

// CanAutoAdvance reports whether an automatic cascade may move a lead from
// current to target. Advances are idempotent: a lead already at or past the
// target stays put, so replaying a cascade is a no-op rather than a
// regression.
func CanAutoAdvance(current, target Stage) bool {
	currentRank, ok := stageRank[current]
	if !ok {
		// Unknown current stage (legacy data); allow the advance to repair it.
		return ValidStage(target)
	}
	targetRank, ok := stageRank[target]
	if !ok {
		return false
	}
	return targetRank > currentRank
}

// Score is the qualitative lead score attached by analysis.
type Score string

const (
	ScoreHigh   Score = "high"
	ScoreMedium Score = "medium"
	ScoreLow    Score = "low"
)

// ValidScore reports whether the value is a known score.
func ValidScore(score Score) bool {
	switch score {
	case ScoreHigh, ScoreMedium, ScoreLow:
		return true
	}
	return false
}
