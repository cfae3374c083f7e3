package model

import "time"

type AuditEventType string

const (
	AUDIT_EXECUTION_STARTED  AuditEventType = "execution-started"
	AUDIT_EXECUTION_FINISHED AuditEventType = "execution-finished"
	AUDIT_STEP_ATTEMPT       AuditEventType = "step-attempt"
)

// AuditRecord is one append-only row in the execution log.
type AuditRecord struct {
	Id          string         `json:"id"`
	Type        AuditEventType `json:"type"`
	Workspace   string         `json:"workspace"`
	WorkflowId  string         `json:"workflowId"`
	ExecutionId string         `json:"executionId"`
	StepId      string         `json:"stepId,omitempty"`
	Attempt     int            `json:"attempt,omitempty"`
	State       string         `json:"state,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"durationMs,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type AuditFilter struct {
	Workspace   string
	WorkflowId  string
	ExecutionId string
	From        time.Time
	To          time.Time
}
