package model

import "time"

type ApprovalStatus string

const (
	APPROVAL_PENDING  ApprovalStatus = "pending"
	APPROVAL_APPROVED ApprovalStatus = "approved"
	APPROVAL_REJECTED ApprovalStatus = "rejected"
)

type ApprovalRequest struct {
	Id              string         `json:"id"`
	Workspace       string         `json:"workspace"`
	ExecutionId     string         `json:"executionId"`
	WorkflowId      string         `json:"workflowId"`
	StepId          string         `json:"stepId"`
	StepExecutionId string         `json:"stepExecutionId"`
	Action          string         `json:"action"`
	Tier            RiskTier       `json:"tier"`
	Summary         string         `json:"summary"`
	Status          ApprovalStatus `json:"status"`
	DecidedBy       string         `json:"decidedBy,omitempty"`
	Comment         string         `json:"comment,omitempty"`
	Moot            bool           `json:"moot,omitempty"`
	Expired         bool           `json:"expired,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	DecidedAt       *time.Time     `json:"decidedAt,omitempty"`
}

type BulkDecisionResult struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}
