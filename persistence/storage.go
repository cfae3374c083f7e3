package persistence

import (
	"context"
	"time"

	"github.com/warden-io/warden/model"
)

// WorkflowStorage persists live workflow definitions and their append-only
// version history. Version rows are immutable once written.
type WorkflowStorage interface {
	SaveWorkflowDefinition(ctx context.Context, wf *model.WorkflowDefinition) error
	GetWorkflowDefinition(ctx context.Context, workspace string, workflowId string) (*model.WorkflowDefinition, error)
	SaveVersion(ctx context.Context, version *model.WorkflowVersion) error
	GetVersion(ctx context.Context, workspace string, workflowId string, version int) (*model.WorkflowVersion, error)
	ListVersions(ctx context.Context, workspace string, workflowId string) ([]model.WorkflowVersion, error)
}

type ExecutionStorage interface {
	SaveExecution(ctx context.Context, execution *model.WorkflowExecution) error
	GetExecution(ctx context.Context, executionId string) (*model.WorkflowExecution, error)
	// TryTerminate performs the single allowed terminal transition. It
	// returns false when the execution is already terminal.
	TryTerminate(ctx context.Context, executionId string, state model.ExecutionState, endedAt time.Time) (bool, error)
	SaveExecutionContext(ctx context.Context, flowCtx *model.ExecutionContext) error
	GetExecutionContext(ctx context.Context, executionId string) (*model.ExecutionContext, error)
	SaveStepExecution(ctx context.Context, stepExec *model.StepExecution) error
	ListStepExecutions(ctx context.Context, executionId string) ([]model.StepExecution, error)
}

type ApprovalStorage interface {
	// CreateIfAbsent fails with DuplicateApprovalError when a pending
	// request already exists for the same (execution, step) pair.
	CreateIfAbsent(ctx context.Context, req *model.ApprovalRequest) error
	Get(ctx context.Context, requestId string) (*model.ApprovalRequest, error)
	// Decide transitions pending -> approved/rejected exactly once; the
	// bool reports whether this call won the transition.
	Decide(ctx context.Context, requestId string, status model.ApprovalStatus, actor string, comment string, decidedAt time.Time) (*model.ApprovalRequest, bool, error)
	ListPending(ctx context.Context, workspace string) ([]model.ApprovalRequest, error)
	MarkMoot(ctx context.Context, executionId string) error
	MarkExpired(ctx context.Context, requestId string) error
}

type AutonomyStorage interface {
	Get(ctx context.Context, workspace string, action string) (*model.AutonomyPreference, error)
	// Update applies fn under a serialized read-modify-write on the
	// (workspace, action) key, creating the preference lazily.
	Update(ctx context.Context, workspace string, action string, fn func(*model.AutonomyPreference)) (*model.AutonomyPreference, error)
	List(ctx context.Context, workspace string) ([]model.AutonomyPreference, error)
	ResetAll(ctx context.Context, workspace string) (int, error)
}

type AuditStorage interface {
	Append(ctx context.Context, record *model.AuditRecord) error
	Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditRecord, error)
}

type DelayQueue interface {
	PushWithDelay(queueName string, delay time.Duration, message []byte) error
	Pop(queueName string) ([]string, error)
}

// Storage bundles every persistence concern behind one handle.
type Storage interface {
	Workflows() WorkflowStorage
	Executions() ExecutionStorage
	Approvals() ApprovalStorage
	Autonomy() AutonomyStorage
	Audit() AuditStorage
	DelayQueue() DelayQueue
}
