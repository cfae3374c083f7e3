package model

import "time"

type ExecutionState string

const (
	EXECUTION_PENDING   ExecutionState = "pending"
	EXECUTION_RUNNING   ExecutionState = "running"
	EXECUTION_COMPLETED ExecutionState = "completed"
	EXECUTION_FAILED    ExecutionState = "failed"
	EXECUTION_CANCELLED ExecutionState = "cancelled"
)

func (s ExecutionState) Terminal() bool {
	return s == EXECUTION_COMPLETED || s == EXECUTION_FAILED || s == EXECUTION_CANCELLED
}

type StepState string

const (
	STEP_QUEUED           StepState = "queued"
	STEP_RUNNING          StepState = "running"
	STEP_WAITING_APPROVAL StepState = "waiting-approval"
	STEP_SUCCEEDED        StepState = "succeeded"
	STEP_FAILED           StepState = "failed"
	STEP_SKIPPED          StepState = "skipped"
	STEP_CANCELLED        StepState = "cancelled"
)

type WorkflowExecution struct {
	Id          string         `json:"id"`
	WorkflowId  string         `json:"workflowId"`
	Version     int            `json:"version"`
	Workspace   string         `json:"workspace"`
	TriggerType TriggerType    `json:"triggerType"`
	TriggerData map[string]any `json:"triggerData,omitempty"`
	TriggeredBy string         `json:"triggeredBy"`
	State       ExecutionState `json:"state"`
	TotalSteps  int            `json:"totalSteps"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
}

// ExecutionContext is the durable bag threaded through steps. CurrentSteps
// maps a live step id to its attempt number; ExecutedSteps guards against
// dispatching the same step twice when branches converge.
type ExecutionContext struct {
	ExecutionId   string          `json:"executionId"`
	Data          map[string]any  `json:"data"`
	CurrentSteps  map[string]int  `json:"currentSteps"`
	ExecutedSteps map[string]bool `json:"executedSteps"`
	// WaitingSteps maps a suspended step id to its waiting-approval
	// StepExecution row.
	WaitingSteps map[string]string `json:"waitingSteps"`
	// ApprovedSteps holds gates a human already satisfied; retry
	// attempts of those steps dispatch without re-queueing an approval.
	ApprovedSteps map[string]bool `json:"approvedSteps"`
	Attempts      int             `json:"attempts"`
}

type StepExecution struct {
	Id          string         `json:"id"`
	ExecutionId string         `json:"executionId"`
	StepId      string         `json:"stepId"`
	Attempt     int            `json:"attempt"`
	State       StepState      `json:"state"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Error       string         `json:"error,omitempty"`
	DurationMs  int64          `json:"durationMs"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`
}
