package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence/inmem"
)

func TestTrail(t *testing.T) {
	storage := inmem.NewStorage()
	logFile := filepath.Join(t.TempDir(), "audit.log")
	trail, err := NewTrail(storage.Audit(), logFile)
	require.NoError(t, err)

	ctx := context.Background()
	execution := &model.WorkflowExecution{
		Id:         "ex-1",
		WorkflowId: "wf-1",
		Workspace:  "ws-1",
		State:      model.EXECUTION_RUNNING,
	}
	trail.RecordExecutionStarted(ctx, execution)
	now := time.Now()
	trail.RecordStepAttempt(ctx, "ws-1", "wf-1", &model.StepExecution{
		Id:          "se-1",
		ExecutionId: "ex-1",
		StepId:      "a",
		Attempt:     1,
		State:       model.STEP_SUCCEEDED,
		EndedAt:     &now,
	})
	execution.State = model.EXECUTION_COMPLETED
	trail.RecordExecutionFinished(ctx, execution)

	records, err := trail.Query(ctx, model.AuditFilter{ExecutionId: "ex-1"})
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, model.AUDIT_EXECUTION_STARTED, records[0].Type)
	require.Equal(t, model.AUDIT_STEP_ATTEMPT, records[1].Type)
	require.Equal(t, model.AUDIT_EXECUTION_FINISHED, records[2].Type)
	for _, r := range records {
		require.NotEmpty(t, r.Id)
		require.False(t, r.Timestamp.IsZero())
	}

	// unrelated executions are filtered out
	records, err = trail.Query(ctx, model.AuditFilter{ExecutionId: "ex-other"})
	require.NoError(t, err)
	require.Empty(t, records)

	// the file collector mirrors every record
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	require.Contains(t, string(content), "execution-started")
	require.Contains(t, string(content), "step-attempt")
	require.Contains(t, string(content), "execution-finished")
}
