package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/approval"
	"github.com/warden-io/warden/audit"
	"github.com/warden-io/warden/autonomy"
	"github.com/warden-io/warden/config"
	"github.com/warden-io/warden/dispatch"
	"github.com/warden-io/warden/flow"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/metrics"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/risk"
	"github.com/warden-io/warden/store"
	"github.com/warden-io/warden/util"
	"go.uber.org/zap"
)

const RETRY_QUEUE = "step-retries"

const defaultStepTimeout = 60 * time.Second

// Engine walks the step graph of each execution: it evaluates conditions,
// consults the risk classifier and the autonomy model, gates steps behind
// the approval queue, dispatches agent actions with retry and timeout, and
// records every attempt in the audit trail.
//
// A single goroutine drains the request channel, so all state transitions
// of all executions are serialized; action dispatches run on a worker pool
// and report back through the outcome channel. Suspension never holds a
// worker: a gated step is persisted and the branch goes quiet until an
// approval decision posts a resume request.
type Engine struct {
	conf       config.EngineConfig
	storage    persistence.Storage
	metadata   *store.Service
	classifier *risk.Classifier
	autonomy   *autonomy.Service
	approvals  *approval.Service
	trail      *audit.Trail
	dispatcher dispatch.Dispatcher

	requestChannel chan model.StepExecutionRequest
	outcomeChannel chan stepOutcome
	dispatchPool   *util.Worker
	retryEncDec    util.EncoderDecoder[model.RetryMessage]
	stop           chan struct{}
	wg             *sync.WaitGroup
}

type stepOutcome struct {
	executionId string
	stepId      string
	stepExecId  string
	attempt     int
	output      map[string]any
	err         error
	durationMs  int64
}

type dispatchTask struct {
	execution *model.WorkflowExecution
	step      flow.Step
	attempt   int
	stepExec  *model.StepExecution
	timeout   time.Duration
}

func NewEngine(conf config.Config, storage persistence.Storage, metadata *store.Service,
	classifier *risk.Classifier, autonomyService *autonomy.Service, approvalService *approval.Service,
	trail *audit.Trail, dispatcher dispatch.Dispatcher, wg *sync.WaitGroup) *Engine {
	e := &Engine{
		conf:           conf.Engine,
		storage:        storage,
		metadata:       metadata,
		classifier:     classifier,
		autonomy:       autonomyService,
		approvals:      approvalService,
		trail:          trail,
		dispatcher:     dispatcher,
		requestChannel: make(chan model.StepExecutionRequest, 1000),
		outcomeChannel: make(chan stepOutcome, 1000),
		retryEncDec:    util.NewJsonEncoderDecoder[model.RetryMessage](),
		stop:           make(chan struct{}),
		wg:             wg,
	}
	e.dispatchPool = util.NewWorker("action-dispatch", wg, e.runDispatch, conf.DispatchCapacity)
	return e
}

var _ approval.Resumer = new(Engine)

func (e *Engine) Start() {
	e.dispatchPool.Start()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case req := <-e.requestChannel:
				switch req.RequestType {
				case model.RESUME_STEP_EXECUTION:
					e.resumeStep(req.ExecutionId, req.StepId, req.Approved)
				case model.CANCEL_EXECUTION:
					e.cancel(req.ExecutionId)
				default:
					e.runStep(req.ExecutionId, req.StepId, req.Attempt)
				}
			case outcome := <-e.outcomeChannel:
				e.handleOutcome(outcome)
			case <-e.stop:
				logger.Info("stopping execution engine")
				return
			}
		}
	}()
}

func (e *Engine) Stop() error {
	e.stop <- struct{}{}
	e.dispatchPool.Stop()
	return nil
}

// StartExecution validates the workflow, pins the execution to the current
// version and queues the entry step. totalSteps is fixed here; later edits
// to the live definition never touch an in-flight execution.
func (e *Engine) StartExecution(ctx context.Context, req model.WorkflowRunRequest) (*model.WorkflowExecution, error) {
	def, err := e.metadata.GetActive(ctx, req.Workspace, req.WorkflowId)
	if err != nil {
		return nil, err
	}
	version, err := e.metadata.LatestVersionNumber(ctx, req.Workspace, req.WorkflowId)
	if err != nil {
		return nil, err
	}
	fl, err := e.metadata.GetFlow(ctx, req.Workspace, req.WorkflowId, version)
	if err != nil {
		return nil, err
	}
	execution := &model.WorkflowExecution{
		Id:          uuid.New().String(),
		WorkflowId:  def.Id,
		Version:     version,
		Workspace:   req.Workspace,
		TriggerType: req.TriggerType,
		TriggerData: req.TriggerData,
		TriggeredBy: req.TriggeredBy,
		State:       model.EXECUTION_RUNNING,
		TotalSteps:  fl.ReachableCount(),
		StartedAt:   time.Now(),
	}
	data := make(map[string]any)
	for k, v := range req.InitialContext {
		data[k] = v
	}
	data["input"] = req.InitialContext
	if req.TriggerData != nil {
		data["trigger"] = req.TriggerData
	}
	flowCtx := &model.ExecutionContext{
		ExecutionId:   execution.Id,
		Data:          data,
		CurrentSteps:  map[string]int{fl.Entry: 1},
		ExecutedSteps: map[string]bool{},
		WaitingSteps:  map[string]string{},
		ApprovedSteps: map[string]bool{},
	}
	if err := e.storage.Executions().SaveExecution(ctx, execution); err != nil {
		return nil, err
	}
	if err := e.storage.Executions().SaveExecutionContext(ctx, flowCtx); err != nil {
		return nil, err
	}
	e.trail.RecordExecutionStarted(ctx, execution)
	metrics.ExecutionsStarted.Inc()
	logger.Info("execution started",
		zap.String("executionId", execution.Id),
		zap.String("workflowId", def.Id),
		zap.Int("version", version),
		zap.Int("totalSteps", execution.TotalSteps))
	e.requestChannel <- model.StepExecutionRequest{
		ExecutionId: execution.Id,
		StepId:      fl.Entry,
		Attempt:     1,
		RequestType: model.NEW_STEP_EXECUTION,
	}
	return execution, nil
}

// Resume is called by the approval service once a pending request is
// decided.
func (e *Engine) Resume(executionId string, stepId string, approved bool, actor string) {
	e.requestChannel <- model.StepExecutionRequest{
		ExecutionId: executionId,
		StepId:      stepId,
		RequestType: model.RESUME_STEP_EXECUTION,
		Approved:    approved,
		Actor:       actor,
	}
}

// ExecuteRetry is called by the retry executor when a scheduled attempt
// comes due.
func (e *Engine) ExecuteRetry(msg *model.RetryMessage) {
	e.requestChannel <- model.StepExecutionRequest{
		ExecutionId: msg.ExecutionId,
		StepId:      msg.StepId,
		Attempt:     msg.Attempt,
		RequestType: model.RETRY_STEP_EXECUTION,
	}
}

func (e *Engine) CancelExecution(executionId string) {
	e.requestChannel <- model.StepExecutionRequest{
		ExecutionId: executionId,
		RequestType: model.CANCEL_EXECUTION,
	}
}

func (e *Engine) validateAndGet(executionId string, stepId string) (*model.WorkflowExecution, *model.ExecutionContext, *flow.Flow, flow.Step, error) {
	ctx := context.Background()
	execution, err := e.storage.Executions().GetExecution(ctx, executionId)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if execution.State.Terminal() {
		return nil, nil, nil, nil, fmt.Errorf("execution %s already %s", executionId, execution.State)
	}
	flowCtx, err := e.storage.Executions().GetExecutionContext(ctx, executionId)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	fl, err := e.metadata.GetFlow(ctx, execution.Workspace, execution.WorkflowId, execution.Version)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	step, ok := fl.Steps[stepId]
	if !ok {
		return nil, nil, nil, nil, api.NotFoundError{Entity: "step", Id: stepId}
	}
	return execution, flowCtx, fl, step, nil
}

func (e *Engine) runStep(executionId string, stepId string, attempt int) {
	execution, flowCtx, fl, step, err := e.validateAndGet(executionId, stepId)
	if err != nil {
		logger.Debug("dropping step execution request", zap.String("executionId", executionId), zap.String("stepId", stepId), zap.Error(err))
		return
	}
	// a step both edges converged on runs exactly once
	if flowCtx.ExecutedSteps[stepId] {
		logger.Debug("step already executed", zap.String("executionId", executionId), zap.String("stepId", stepId))
		return
	}
	if flowCtx.Attempts >= e.conf.MaxAttemptsPerExecution {
		logger.Error("execution exceeded attempt bound", zap.String("executionId", executionId), zap.Int("bound", e.conf.MaxAttemptsPerExecution))
		e.finishExecution(execution, flowCtx, model.EXECUTION_FAILED)
		return
	}
	flowCtx.Attempts++
	flowCtx.CurrentSteps[stepId] = attempt

	if !flow.EvalConditions(step.Def().Conditions, step.Def().Match, flowCtx.Data) {
		stepExec := e.newStepExecution(executionId, step, attempt)
		stepExec.State = model.STEP_SKIPPED
		e.closeStepExecution(execution, stepExec)
		logger.Info("step conditions not met, skipping",
			zap.String("executionId", executionId), zap.String("stepId", stepId))
		e.moveForward(execution, flowCtx, fl, step, false, nil)
		return
	}

	switch st := step.(type) {
	case *flow.TransformStep:
		e.runTransform(execution, flowCtx, fl, st, attempt)
	case *flow.DelayStep:
		e.runDelay(execution, flowCtx, fl, st, attempt)
	case *flow.ActionStep:
		e.runAction(execution, flowCtx, fl, st, attempt)
	}
}

func (e *Engine) runTransform(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, fl *flow.Flow, step *flow.TransformStep, attempt int) {
	stepExec := e.newStepExecution(execution.Id, step, attempt)
	started := time.Now()
	output, err := step.Op(flowCtx.Data, step.Def().Input)
	stepExec.DurationMs = time.Since(started).Milliseconds()
	if err != nil {
		stepExec.State = model.STEP_FAILED
		stepExec.Error = err.Error()
		e.closeStepExecution(execution, stepExec)
		e.failStep(execution, flowCtx, fl, step)
		return
	}
	stepExec.State = model.STEP_SUCCEEDED
	stepExec.Output = output
	e.closeStepExecution(execution, stepExec)
	e.moveForward(execution, flowCtx, fl, step, true, output)
}

// runDelay parks the branch on the delay queue on first attempt and
// follows the success edge when the scheduled re-run fires.
func (e *Engine) runDelay(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, fl *flow.Flow, step *flow.DelayStep, attempt int) {
	if attempt == 1 {
		stepExec := e.newStepExecution(execution.Id, step, attempt)
		stepExec.State = model.STEP_RUNNING
		e.saveStepExecution(stepExec)
		if err := e.scheduleRetry(execution.Id, step.Id(), 2, step.Delay); err != nil {
			logger.Error("error scheduling delay step", zap.String("executionId", execution.Id), zap.String("stepId", step.Id()), zap.Error(err))
			e.failStep(execution, flowCtx, fl, step)
			return
		}
		flowCtx.CurrentSteps[step.Id()] = 1
		e.saveContext(flowCtx)
		return
	}
	stepExec := e.newStepExecution(execution.Id, step, attempt)
	stepExec.State = model.STEP_SUCCEEDED
	e.closeStepExecution(execution, stepExec)
	e.moveForward(execution, flowCtx, fl, step, true, nil)
}

func (e *Engine) runAction(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, fl *flow.Flow, step *flow.ActionStep, attempt int) {
	// a gate satisfied on an earlier attempt holds for the retry budget
	if flowCtx.ApprovedSteps[step.Id()] {
		e.saveContext(flowCtx)
		e.dispatchStep(execution, flowCtx, step, attempt)
		return
	}
	tier := e.classifier.Classify(step.Action, e.dispatcher.SideEffectOf(step.Action))
	ctx := context.Background()
	if e.autonomy.IsAutoExecutable(ctx, execution.Workspace, step.Action, tier) {
		metrics.StepsAutoExecuted.Inc()
		e.saveContext(flowCtx)
		e.dispatchStep(execution, flowCtx, step, attempt)
		return
	}
	// gate: persist the waiting row, enqueue the approval, suspend
	stepExec := e.newStepExecution(execution.Id, step, attempt)
	stepExec.State = model.STEP_WAITING_APPROVAL
	stepExec.Input = util.ResolveParams(flowCtx.Data, step.Def().Input)
	e.saveStepExecution(stepExec)
	_, err := e.approvals.Enqueue(ctx, approval.EnqueueRequest{
		Workspace:       execution.Workspace,
		ExecutionId:     execution.Id,
		WorkflowId:      execution.WorkflowId,
		StepId:          step.Id(),
		StepExecutionId: stepExec.Id,
		Action:          step.Action,
		Tier:            tier,
		Summary:         fmt.Sprintf("%s (%s)", step.Name(), step.Action),
	})
	if err != nil {
		var dup api.DuplicateApprovalError
		if errors.As(err, &dup) {
			logger.Debug("approval request already pending", zap.String("executionId", execution.Id), zap.String("stepId", step.Id()))
			return
		}
		logger.Error("error enqueueing approval request", zap.String("executionId", execution.Id), zap.String("stepId", step.Id()), zap.Error(err))
		return
	}
	metrics.StepsGated.Inc()
	flowCtx.WaitingSteps[step.Id()] = stepExec.Id
	e.saveContext(flowCtx)
	logger.Info("step suspended awaiting approval",
		zap.String("executionId", execution.Id),
		zap.String("stepId", step.Id()),
		zap.String("tier", tier.String()))
}

// dispatchStep hands the action to the worker pool; the outcome comes back
// through the outcome channel.
func (e *Engine) dispatchStep(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, step flow.Step, attempt int) {
	stepExec := e.newStepExecution(execution.Id, step, attempt)
	stepExec.State = model.STEP_RUNNING
	stepExec.Input = util.ResolveParams(flowCtx.Data, step.Def().Input)
	e.saveStepExecution(stepExec)
	timeout := defaultStepTimeout
	if step.Def().TimeoutMs > 0 {
		timeout = time.Duration(step.Def().TimeoutMs) * time.Millisecond
	}
	e.dispatchPool.Sender() <- dispatchTask{
		execution: execution,
		step:      step,
		attempt:   attempt,
		stepExec:  stepExec,
		timeout:   timeout,
	}
}

// runDispatch executes on the worker pool. The timeout budget runs from
// dispatch to completion of the external call.
func (e *Engine) runDispatch(task util.Task) error {
	dt := task.(dispatchTask)
	actionStep := dt.step.(*flow.ActionStep)
	ctx, cancel := context.WithTimeout(context.Background(), dt.timeout)
	defer cancel()
	started := time.Now()
	type result struct {
		output map[string]any
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		output, err := e.dispatcher.Dispatch(ctx, dispatch.ActionRequest{
			Workspace:   dt.execution.Workspace,
			ExecutionId: dt.execution.Id,
			StepId:      dt.step.Id(),
			Action:      actionStep.Action,
			Attempt:     dt.attempt,
			Input:       dt.stepExec.Input,
		})
		resultCh <- result{output: output, err: err}
	}()
	outcome := stepOutcome{
		executionId: dt.execution.Id,
		stepId:      dt.step.Id(),
		stepExecId:  dt.stepExec.Id,
		attempt:     dt.attempt,
	}
	select {
	case r := <-resultCh:
		outcome.output = r.output
		outcome.err = r.err
	case <-ctx.Done():
		outcome.err = api.TimeoutError{StepId: dt.step.Id()}
	}
	outcome.durationMs = time.Since(started).Milliseconds()
	e.outcomeChannel <- outcome
	return nil
}

func (e *Engine) handleOutcome(outcome stepOutcome) {
	execution, flowCtx, fl, step, err := e.validateAndGet(outcome.executionId, outcome.stepId)
	if err != nil {
		logger.Debug("dropping step outcome", zap.String("executionId", outcome.executionId), zap.String("stepId", outcome.stepId), zap.Error(err))
		return
	}
	stepExec := &model.StepExecution{
		Id:          outcome.stepExecId,
		ExecutionId: outcome.executionId,
		StepId:      outcome.stepId,
		Attempt:     outcome.attempt,
		Input:       util.ResolveParams(flowCtx.Data, step.Def().Input),
		DurationMs:  outcome.durationMs,
		StartedAt:   time.Now().Add(-time.Duration(outcome.durationMs) * time.Millisecond),
	}
	if outcome.err == nil {
		stepExec.State = model.STEP_SUCCEEDED
		stepExec.Output = outcome.output
		e.closeStepExecution(execution, stepExec)
		e.moveForward(execution, flowCtx, fl, step, true, outcome.output)
		return
	}
	stepExec.State = model.STEP_FAILED
	stepExec.Error = outcome.err.Error()
	e.closeStepExecution(execution, stepExec)

	retry := step.Def().Retry
	if isTransient(outcome.err) && retry != nil && outcome.attempt < retry.MaxAttempts {
		backoff := time.Duration(retry.BackoffMs) * time.Millisecond
		if retry.Policy == model.RETRY_POLICY_BACKOFF {
			backoff = time.Duration(retry.BackoffMs*outcome.attempt) * time.Millisecond
		}
		logger.Info("retrying step",
			zap.String("executionId", execution.Id),
			zap.String("stepId", step.Id()),
			zap.Int("attempt", outcome.attempt+1),
			zap.Duration("backoff", backoff))
		metrics.StepRetries.Inc()
		if err := e.scheduleRetry(execution.Id, step.Id(), outcome.attempt+1, backoff); err == nil {
			flowCtx.CurrentSteps[step.Id()] = outcome.attempt + 1
			e.saveContext(flowCtx)
			return
		}
		logger.Error("error scheduling retry", zap.String("executionId", execution.Id), zap.String("stepId", step.Id()))
	}
	logger.Error("step failed",
		zap.String("executionId", execution.Id),
		zap.String("stepId", step.Id()),
		zap.Int("attempt", outcome.attempt),
		zap.Error(outcome.err))
	e.failStep(execution, flowCtx, fl, step)
}

// resumeStep finishes a suspended step after a human decision. Approval
// dispatches the action; rejection marks the attempt skipped and routes
// the failure edge.
func (e *Engine) resumeStep(executionId string, stepId string, approved bool) {
	execution, flowCtx, fl, step, err := e.validateAndGet(executionId, stepId)
	if err != nil {
		logger.Debug("dropping resume request", zap.String("executionId", executionId), zap.String("stepId", stepId), zap.Error(err))
		return
	}
	stepExecId, waiting := flowCtx.WaitingSteps[stepId]
	if !waiting {
		logger.Debug("resume for step that is not waiting", zap.String("executionId", executionId), zap.String("stepId", stepId))
		return
	}
	delete(flowCtx.WaitingSteps, stepId)
	attempt := flowCtx.CurrentSteps[stepId]
	if attempt == 0 {
		attempt = 1
	}
	if approved {
		if flowCtx.ApprovedSteps == nil {
			flowCtx.ApprovedSteps = map[string]bool{}
		}
		flowCtx.ApprovedSteps[stepId] = true
		e.saveContext(flowCtx)
		actionStep, ok := step.(*flow.ActionStep)
		if !ok {
			logger.Error("waiting step is not an action step", zap.String("stepId", stepId))
			return
		}
		e.dispatchStepResumed(execution, flowCtx, actionStep, attempt, stepExecId)
		return
	}
	stepExec := &model.StepExecution{
		Id:          stepExecId,
		ExecutionId: executionId,
		StepId:      stepId,
		Attempt:     attempt,
		State:       model.STEP_SKIPPED,
		Error:       api.ApprovalRejectedError{}.Error(),
		StartedAt:   time.Now(),
	}
	e.closeStepExecution(execution, stepExec)
	logger.Info("step rejected by approver", zap.String("executionId", executionId), zap.String("stepId", stepId))
	e.moveForward(execution, flowCtx, fl, step, false, nil)
}

// dispatchStepResumed reuses the waiting row instead of opening a new one.
func (e *Engine) dispatchStepResumed(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, step *flow.ActionStep, attempt int, stepExecId string) {
	stepExec := &model.StepExecution{
		Id:          stepExecId,
		ExecutionId: execution.Id,
		StepId:      step.Id(),
		Attempt:     attempt,
		State:       model.STEP_RUNNING,
		Input:       util.ResolveParams(flowCtx.Data, step.Def().Input),
		StartedAt:   time.Now(),
	}
	e.saveStepExecution(stepExec)
	timeout := defaultStepTimeout
	if step.Def().TimeoutMs > 0 {
		timeout = time.Duration(step.Def().TimeoutMs) * time.Millisecond
	}
	e.dispatchPool.Sender() <- dispatchTask{
		execution: execution,
		step:      step,
		attempt:   attempt,
		stepExec:  stepExec,
		timeout:   timeout,
	}
}

// moveForward marks the step done and routes the matching edge. A branch
// with no matching edge simply ends; the execution completes once every
// branch has.
func (e *Engine) moveForward(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, fl *flow.Flow, step flow.Step, success bool, output map[string]any) {
	flowCtx.ExecutedSteps[step.Id()] = true
	delete(flowCtx.CurrentSteps, step.Id())
	delete(flowCtx.WaitingSteps, step.Id())
	delete(flowCtx.ApprovedSteps, step.Id())
	if output != nil {
		flowCtx.Data[step.Id()] = map[string]any{"output": output}
	}
	next := step.Def().OnFailure
	if success {
		next = step.Def().OnSuccess
	}
	if next != "" && !flowCtx.ExecutedSteps[next] {
		if _, running := flowCtx.CurrentSteps[next]; !running {
			flowCtx.CurrentSteps[next] = 1
			e.saveContext(flowCtx)
			e.requestChannel <- model.StepExecutionRequest{
				ExecutionId: execution.Id,
				StepId:      next,
				Attempt:     1,
				RequestType: model.NEW_STEP_EXECUTION,
			}
			return
		}
	}
	e.saveContext(flowCtx)
	if len(flowCtx.CurrentSteps) == 0 {
		e.finishExecution(execution, flowCtx, model.EXECUTION_COMPLETED)
	}
}

// failStep handles a hard step failure: route the failure edge when one
// exists, otherwise the execution fails.
func (e *Engine) failStep(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, fl *flow.Flow, step flow.Step) {
	if step.Def().OnFailure != "" {
		e.moveForward(execution, flowCtx, fl, step, false, nil)
		return
	}
	flowCtx.ExecutedSteps[step.Id()] = true
	delete(flowCtx.CurrentSteps, step.Id())
	delete(flowCtx.WaitingSteps, step.Id())
	delete(flowCtx.ApprovedSteps, step.Id())
	e.saveContext(flowCtx)
	e.finishExecution(execution, flowCtx, model.EXECUTION_FAILED)
}

func (e *Engine) cancel(executionId string) {
	ctx := context.Background()
	execution, err := e.storage.Executions().GetExecution(ctx, executionId)
	if err != nil {
		logger.Error("error cancelling execution", zap.String("executionId", executionId), zap.Error(err))
		return
	}
	won, err := e.storage.Executions().TryTerminate(ctx, executionId, model.EXECUTION_CANCELLED, time.Now())
	if err != nil || !won {
		logger.Debug("execution already terminal, cancel ignored", zap.String("executionId", executionId))
		return
	}
	execution.State = model.EXECUTION_CANCELLED
	if err := e.approvals.MarkMoot(ctx, executionId); err != nil {
		logger.Error("error marking approvals moot", zap.String("executionId", executionId), zap.Error(err))
	}
	e.trail.RecordExecutionFinished(ctx, execution)
	metrics.ExecutionsFinished.WithLabelValues(string(model.EXECUTION_CANCELLED)).Inc()
	logger.Info("execution cancelled", zap.String("executionId", executionId))
}

func (e *Engine) finishExecution(execution *model.WorkflowExecution, flowCtx *model.ExecutionContext, state model.ExecutionState) {
	ctx := context.Background()
	won, err := e.storage.Executions().TryTerminate(ctx, execution.Id, state, time.Now())
	if err != nil || !won {
		return
	}
	execution.State = state
	if state == model.EXECUTION_FAILED {
		if err := e.approvals.MarkMoot(ctx, execution.Id); err != nil {
			logger.Error("error marking approvals moot", zap.String("executionId", execution.Id), zap.Error(err))
		}
	}
	e.trail.RecordExecutionFinished(ctx, execution)
	metrics.ExecutionsFinished.WithLabelValues(string(state)).Inc()
	logger.Info("execution finished",
		zap.String("executionId", execution.Id),
		zap.String("workflowId", execution.WorkflowId),
		zap.String("state", string(state)))
}

func (e *Engine) scheduleRetry(executionId string, stepId string, attempt int, delay time.Duration) error {
	msg := model.RetryMessage{
		ExecutionId: executionId,
		StepId:      stepId,
		Attempt:     attempt,
	}
	data, err := e.retryEncDec.Encode(msg)
	if err != nil {
		return err
	}
	return e.storage.DelayQueue().PushWithDelay(RETRY_QUEUE, delay, data)
}

func (e *Engine) newStepExecution(executionId string, step flow.Step, attempt int) *model.StepExecution {
	return &model.StepExecution{
		Id:          uuid.New().String(),
		ExecutionId: executionId,
		StepId:      step.Id(),
		Attempt:     attempt,
		StartedAt:   time.Now(),
	}
}

func (e *Engine) saveStepExecution(stepExec *model.StepExecution) {
	if err := e.storage.Executions().SaveStepExecution(context.Background(), stepExec); err != nil {
		logger.Error("error saving step execution", zap.String("executionId", stepExec.ExecutionId), zap.String("stepId", stepExec.StepId), zap.Error(err))
	}
}

// closeStepExecution stamps the end time and writes both the row and the
// audit record.
func (e *Engine) closeStepExecution(execution *model.WorkflowExecution, stepExec *model.StepExecution) {
	now := time.Now()
	stepExec.EndedAt = &now
	e.saveStepExecution(stepExec)
	e.trail.RecordStepAttempt(context.Background(), execution.Workspace, execution.WorkflowId, stepExec)
}

func (e *Engine) saveContext(flowCtx *model.ExecutionContext) {
	if err := e.storage.Executions().SaveExecutionContext(context.Background(), flowCtx); err != nil {
		logger.Error("error saving execution context", zap.String("executionId", flowCtx.ExecutionId), zap.Error(err))
	}
}

func isTransient(err error) bool {
	var stepErr api.StepExecutionError
	if errors.As(err, &stepErr) {
		return !stepErr.Terminal
	}
	// timeouts and anything unclassified retry
	return true
}
