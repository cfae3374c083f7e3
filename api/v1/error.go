package api_v1

import "fmt"

// ErrorKind is the machine-checkable classification carried on every
// structured error returned by the service.
type ErrorKind string

const (
	KindValidation       ErrorKind = "ValidationFailed"
	KindNotFound         ErrorKind = "NotFound"
	KindNotActive        ErrorKind = "NotActive"
	KindConflict         ErrorKind = "Conflict"
	KindTimeout          ErrorKind = "Timeout"
	KindStepFailed       ErrorKind = "StepFailed"
	KindApprovalRejected ErrorKind = "ApprovalRejected"
	KindStorage          ErrorKind = "Storage"
)

type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e ValidationError) Kind() ErrorKind { return KindValidation }

type NotFoundError struct {
	Entity string
	Id     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Id)
}

func (e NotFoundError) Kind() ErrorKind { return KindNotFound }

type InactiveWorkflowError struct {
	WorkflowId string
	Status     string
}

func (e InactiveWorkflowError) Error() string {
	return fmt.Sprintf("workflow %s is %s, only active workflows can execute", e.WorkflowId, e.Status)
}

func (e InactiveWorkflowError) Kind() ErrorKind { return KindNotActive }

// StepExecutionError wraps a failure from the agent-action dispatcher.
// Transient failures feed the retry path, terminal failures fail the step
// immediately regardless of remaining retry budget.
type StepExecutionError struct {
	StepId   string
	Message  string
	Terminal bool
}

func (e StepExecutionError) Error() string {
	return fmt.Sprintf("step %s failed: %s", e.StepId, e.Message)
}

func (e StepExecutionError) Kind() ErrorKind { return KindStepFailed }

type TimeoutError struct {
	StepId string
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("step %s timed out", e.StepId)
}

func (e TimeoutError) Kind() ErrorKind { return KindTimeout }

// ApprovalRejectedError is a valid terminal outcome for a branch, not a
// system failure; the engine routes it through the failure edge.
type ApprovalRejectedError struct {
	RequestId string
}

func (e ApprovalRejectedError) Error() string {
	return fmt.Sprintf("approval request %s was rejected", e.RequestId)
}

func (e ApprovalRejectedError) Kind() ErrorKind { return KindApprovalRejected }

type DuplicateApprovalError struct {
	RequestId string
}

func (e DuplicateApprovalError) Error() string {
	return fmt.Sprintf("approval request %s already pending or decided", e.RequestId)
}

func (e DuplicateApprovalError) Kind() ErrorKind { return KindConflict }

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

func (e StorageLayerError) Kind() ErrorKind { return KindStorage }

// KindOf extracts the kind from any service error, falling back to Storage.
func KindOf(err error) ErrorKind {
	type kinder interface{ Kind() ErrorKind }
	if k, ok := err.(kinder); ok {
		return k.Kind()
	}
	return KindStorage
}
