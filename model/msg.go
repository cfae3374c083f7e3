package model

type RequestType int

const (
	NEW_STEP_EXECUTION RequestType = iota
	RETRY_STEP_EXECUTION
	RESUME_STEP_EXECUTION
	CANCEL_EXECUTION
)

// StepExecutionRequest is the unit of work consumed by the engine loop.
type StepExecutionRequest struct {
	ExecutionId string
	StepId      string
	Attempt     int
	RequestType RequestType
	// Approved carries the human decision on RESUME_STEP_EXECUTION.
	Approved bool
	Actor    string
}

type RetryMessage struct {
	ExecutionId string `json:"executionId"`
	StepId      string `json:"stepId"`
	Attempt     int    `json:"attempt"`
}
