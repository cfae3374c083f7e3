package audit

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Trail is the append-only execution log: every step attempt and every
// workflow-level start/terminal event, durable in storage and mirrored to
// a structured log file when configured.
type Trail struct {
	storage   persistence.AuditStorage
	collector *zap.Logger
}

func NewTrail(storage persistence.AuditStorage, logFile string) (*Trail, error) {
	t := &Trail{storage: storage}
	if logFile != "" {
		collector, err := newFileCollector(logFile)
		if err != nil {
			return nil, err
		}
		t.collector = collector
	}
	return t, nil
}

func newFileCollector(fileName string) (*zap.Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel)
	return zap.New(core), nil
}

func (t *Trail) RecordExecutionStarted(ctx context.Context, execution *model.WorkflowExecution) {
	t.append(ctx, &model.AuditRecord{
		Type:        model.AUDIT_EXECUTION_STARTED,
		Workspace:   execution.Workspace,
		WorkflowId:  execution.WorkflowId,
		ExecutionId: execution.Id,
		State:       string(execution.State),
	})
}

func (t *Trail) RecordExecutionFinished(ctx context.Context, execution *model.WorkflowExecution) {
	t.append(ctx, &model.AuditRecord{
		Type:        model.AUDIT_EXECUTION_FINISHED,
		Workspace:   execution.Workspace,
		WorkflowId:  execution.WorkflowId,
		ExecutionId: execution.Id,
		State:       string(execution.State),
	})
}

func (t *Trail) RecordStepAttempt(ctx context.Context, workspace string, workflowId string, stepExec *model.StepExecution) {
	t.append(ctx, &model.AuditRecord{
		Type:        model.AUDIT_STEP_ATTEMPT,
		Workspace:   workspace,
		WorkflowId:  workflowId,
		ExecutionId: stepExec.ExecutionId,
		StepId:      stepExec.StepId,
		Attempt:     stepExec.Attempt,
		State:       string(stepExec.State),
		Input:       stepExec.Input,
		Output:      stepExec.Output,
		Error:       stepExec.Error,
		DurationMs:  stepExec.DurationMs,
	})
}

func (t *Trail) Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditRecord, error) {
	return t.storage.Query(ctx, filter)
}

func (t *Trail) append(ctx context.Context, record *model.AuditRecord) {
	record.Id = uuid.New().String()
	record.Timestamp = time.Now()
	// best effort: a failed audit write never fails the execution
	_ = t.storage.Append(ctx, record)
	if t.collector != nil {
		t.collector.Info(string(record.Type),
			zap.String("workspace", record.Workspace),
			zap.String("workflowId", record.WorkflowId),
			zap.String("executionId", record.ExecutionId),
			zap.String("stepId", record.StepId),
			zap.Int("attempt", record.Attempt),
			zap.String("state", record.State),
			zap.String("error", record.Error),
			zap.Int64("durationMs", record.DurationMs))
	}
}
