package model

import "time"

// NEUTRAL_CONFIDENCE is the starting score for a freshly seen action and
// the score every preference returns to on reset.
const NEUTRAL_CONFIDENCE = 50

type AutonomyPreference struct {
	Workspace      string    `json:"workspace"`
	Action         string    `json:"action"`
	Confidence     int       `json:"confidence"`
	ApprovalCount  int       `json:"approvalCount"`
	RejectionCount int       `json:"rejectionCount"`
	AutoExecute    bool      `json:"autoExecute"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func NewAutonomyPreference(workspace string, action string) *AutonomyPreference {
	return &AutonomyPreference{
		Workspace:  workspace,
		Action:     action,
		Confidence: NEUTRAL_CONFIDENCE,
		UpdatedAt:  time.Now(),
	}
}
