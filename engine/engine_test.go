package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/approval"
	"github.com/warden-io/warden/audit"
	"github.com/warden-io/warden/autonomy"
	"github.com/warden-io/warden/config"
	"github.com/warden-io/warden/dispatch"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence/inmem"
	"github.com/warden-io/warden/risk"
	"github.com/warden-io/warden/store"
	"github.com/warden-io/warden/util"
)

type harness struct {
	storage    *inmem.Storage
	metadata   *store.Service
	autonomy   *autonomy.Service
	approvals  *approval.Service
	trail      *audit.Trail
	dispatcher *dispatch.Registry
	engine     *Engine
	wg         sync.WaitGroup
}

func newHarness(t *testing.T) *harness {
	conf := config.Default()
	h := &harness{
		storage:    inmem.NewStorage(),
		dispatcher: dispatch.NewRegistry(),
	}
	h.metadata = store.NewService(h.storage.Workflows())
	h.autonomy = autonomy.NewService(h.storage.Autonomy(), conf.Autonomy)
	h.approvals = approval.NewService(h.storage.Approvals(), h.autonomy, nil, h.storage.DelayQueue(), 0)
	trail, err := audit.NewTrail(h.storage.Audit(), "")
	require.NoError(t, err)
	h.trail = trail
	h.engine = NewEngine(conf, h.storage, h.metadata, risk.NewClassifier(nil),
		h.autonomy, h.approvals, h.trail, h.dispatcher, &h.wg)
	h.approvals.SetResumer(h.engine)
	h.engine.Start()
	t.Cleanup(func() { h.engine.Stop() })
	return h
}

func (h *harness) register(action string, effect model.SideEffect, fn func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error)) {
	h.dispatcher.Register(action, dispatch.HandlerFunc{Fn: fn, Effect: effect})
}

func (h *harness) registerOk(action string, effect model.SideEffect) {
	h.register(action, effect, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		return map[string]any{"done": true}, nil
	})
}

func (h *harness) createWorkflow(t *testing.T, steps ...model.Step) *model.WorkflowDefinition {
	def, err := h.metadata.Create(context.Background(), &model.WorkflowDefinition{
		Workspace: "ws-1",
		Name:      "test-flow",
		Status:    model.WORKFLOW_STATUS_ACTIVE,
		Steps:     steps,
	}, "tester")
	require.NoError(t, err)
	return def
}

func (h *harness) run(t *testing.T, workflowId string) *model.WorkflowExecution {
	execution, err := h.engine.StartExecution(context.Background(), model.WorkflowRunRequest{
		WorkflowId:     workflowId,
		Workspace:      "ws-1",
		TriggerType:    model.TRIGGER_TYPE_MANUAL,
		TriggeredBy:    "tester",
		InitialContext: map[string]any{"score": 80},
	})
	require.NoError(t, err)
	return execution
}

// pumpRetries drains the retry queue the way the retry executor poller
// would.
func (h *harness) pumpRetries() {
	encDec := util.NewJsonEncoderDecoder[model.RetryMessage]()
	messages, err := h.storage.DelayQueue().Pop(RETRY_QUEUE)
	if err != nil {
		return
	}
	for _, message := range messages {
		if msg, err := encDec.Decode([]byte(message)); err == nil {
			h.engine.ExecuteRetry(msg)
		}
	}
}

func (h *harness) waitForState(t *testing.T, executionId string, state model.ExecutionState) *model.WorkflowExecution {
	var execution *model.WorkflowExecution
	require.Eventually(t, func() bool {
		h.pumpRetries()
		var err error
		execution, err = h.storage.Executions().GetExecution(context.Background(), executionId)
		return err == nil && execution.State == state
	}, 5*time.Second, 10*time.Millisecond)
	return execution
}

func (h *harness) pendingApproval(t *testing.T) *model.ApprovalRequest {
	var pending []model.ApprovalRequest
	require.Eventually(t, func() bool {
		var err error
		pending, err = h.approvals.ListPending(context.Background(), "ws-1", nil)
		return err == nil && len(pending) > 0
	}, 5*time.Second, 10*time.Millisecond)
	return &pending[0]
}

func (h *harness) stepStates(t *testing.T, executionId string) map[string]model.StepState {
	steps, err := h.storage.Executions().ListStepExecutions(context.Background(), executionId)
	require.NoError(t, err)
	states := make(map[string]model.StepState)
	for _, s := range steps {
		states[s.StepId] = s.State
	}
	return states
}

func TestLinearFlowCompletes(t *testing.T) {
	h := newHarness(t)
	h.registerOk("fetch-profile", model.SIDE_EFFECT_READ_ONLY)
	h.registerOk("read-report", model.SIDE_EFFECT_READ_ONLY)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Name: "fetch", Kind: model.STEP_KIND_ACTION, Action: "fetch-profile", OnSuccess: "b"},
		model.Step{Id: "b", Name: "read", Kind: model.STEP_KIND_ACTION, Action: "read-report"},
	)

	execution := h.run(t, def.Id)
	require.Equal(t, 2, execution.TotalSteps)

	done := h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	require.NotNil(t, done.EndedAt)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SUCCEEDED, states["a"])
	require.Equal(t, model.STEP_SUCCEEDED, states["b"])
}

func TestStepOutputFlowsToNextInput(t *testing.T) {
	h := newHarness(t)
	var got map[string]any
	var mu sync.Mutex
	h.register("fetch-profile", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		return map[string]any{"email": "ada@example.com"}, nil
	})
	h.register("read-report", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		mu.Lock()
		got = req.Input
		mu.Unlock()
		return nil, nil
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "fetch-profile", OnSuccess: "b"},
		model.Step{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "read-report",
			Input: map[string]any{"to": "$.a.output.email", "score": "$.score"}},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "ada@example.com", got["to"])
	require.EqualValues(t, 80, got["score"])
}

func TestHighTierStepGatesThenApproves(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_EXTERNAL_COMM)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Name: "notify", Kind: model.STEP_KIND_ACTION, Action: "send-email"},
	)

	execution := h.run(t, def.Id)
	req := h.pendingApproval(t)
	require.Equal(t, model.RISK_HIGH, req.Tier)
	require.Equal(t, "a", req.StepId)

	// suspended, not running
	running, err := h.storage.Executions().GetExecution(context.Background(), execution.Id)
	require.NoError(t, err)
	require.Equal(t, model.EXECUTION_RUNNING, running.State)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_WAITING_APPROVAL, states["a"])

	_, err = h.approvals.Decide(context.Background(), req.Id, true, "alice", "")
	require.NoError(t, err)

	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	states = h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SUCCEEDED, states["a"])
}

func TestRejectionRoutesFailureEdge(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_EXTERNAL_COMM)
	h.registerOk("log-outcome", model.SIDE_EFFECT_READ_ONLY)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email", OnFailure: "b"},
		model.Step{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "log-outcome"},
	)

	execution := h.run(t, def.Id)
	req := h.pendingApproval(t)
	_, err := h.approvals.Decide(context.Background(), req.Id, false, "alice", "too risky")
	require.NoError(t, err)

	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SKIPPED, states["a"])
	require.Equal(t, model.STEP_SUCCEEDED, states["b"])
}

func TestRejectionWithoutEdgeEndsBranch(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_EXTERNAL_COMM)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email"},
	)

	execution := h.run(t, def.Id)
	req := h.pendingApproval(t)
	_, err := h.approvals.Decide(context.Background(), req.Id, false, "alice", "")
	require.NoError(t, err)

	// a rejected branch ends normally, it does not fail the execution
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SKIPPED, states["a"])
}

func TestConditionSkip(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_READ_ONLY)
	h.registerOk("log-outcome", model.SIDE_EFFECT_READ_ONLY)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email", OnFailure: "b",
			Conditions: []model.Condition{{Field: "score", Operator: "greater_than", Value: 500}}},
		model.Step{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "log-outcome"},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SKIPPED, states["a"])
	require.Equal(t, model.STEP_SUCCEEDED, states["b"])
}

func TestTransientFailureRetriesThenSucceeds(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	calls := 0
	h.register("flaky", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return nil, api.StepExecutionError{StepId: req.StepId, Message: "upstream hiccup"}
		}
		return map[string]any{"done": true}, nil
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "flaky",
			Retry: &model.RetryConfig{MaxAttempts: 3, BackoffMs: 1, Policy: model.RETRY_POLICY_BACKOFF}},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, calls)
}

func TestApprovedGateHoldsAcrossRetries(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	calls := 0
	h.register("send-email", model.SIDE_EFFECT_EXTERNAL_COMM, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return nil, api.StepExecutionError{StepId: req.StepId, Message: "smtp flake"}
		}
		return map[string]any{"sent": true}, nil
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email",
			Retry: &model.RetryConfig{MaxAttempts: 3, BackoffMs: 1}},
	)

	execution := h.run(t, def.Id)
	req := h.pendingApproval(t)
	require.Equal(t, model.RISK_HIGH, req.Tier)
	_, err := h.approvals.Decide(context.Background(), req.Id, true, "alice", "")
	require.NoError(t, err)

	// a single approval covers every attempt in the retry budget
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 3, calls)
	pending, err := h.approvals.ListPending(context.Background(), "ws-1", nil)
	require.NoError(t, err)
	require.Empty(t, pending)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SUCCEEDED, states["a"])
}

func TestRetriesExhaustedFailsExecution(t *testing.T) {
	h := newHarness(t)
	h.register("flaky", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		return nil, api.StepExecutionError{StepId: req.StepId, Message: "upstream down"}
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "flaky",
			Retry: &model.RetryConfig{MaxAttempts: 2, BackoffMs: 1}},
	)

	execution := h.run(t, def.Id)
	done := h.waitForState(t, execution.Id, model.EXECUTION_FAILED)
	require.NotNil(t, done.EndedAt)
}

func TestTerminalFailureSkipsRetryBudget(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	calls := 0
	h.register("broken", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil, api.StepExecutionError{StepId: req.StepId, Message: "bad input", Terminal: true}
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "broken",
			Retry: &model.RetryConfig{MaxAttempts: 5, BackoffMs: 1}},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_FAILED)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestStepTimeout(t *testing.T) {
	h := newHarness(t)
	h.register("slow", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		select {
		case <-time.After(2 * time.Second):
			return map[string]any{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "slow", TimeoutMs: 20},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_FAILED)
	steps, err := h.storage.Executions().ListStepExecutions(context.Background(), execution.Id)
	require.NoError(t, err)
	require.Contains(t, steps[len(steps)-1].Error, "timed out")
}

func TestUnregisteredActionFailsTerminally(t *testing.T) {
	h := newHarness(t)
	def, err := h.metadata.Create(context.Background(), &model.WorkflowDefinition{
		Workspace: "ws-1",
		Name:      "test-flow",
		Status:    model.WORKFLOW_STATUS_ACTIVE,
		Steps: []model.Step{
			{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "no-such-action"},
		},
	}, "tester")
	require.NoError(t, err)

	// unregistered actions classify destructive, and critical pins to
	// approval under default config, so the step gates rather than runs
	execution := h.run(t, def.Id)
	req := h.pendingApproval(t)
	require.Equal(t, model.RISK_CRITICAL, req.Tier)
	_, err = h.approvals.Decide(context.Background(), req.Id, true, "alice", "")
	require.NoError(t, err)

	h.waitForState(t, execution.Id, model.EXECUTION_FAILED)
}

func TestDelayStepParksBranch(t *testing.T) {
	h := newHarness(t)
	h.registerOk("read-report", model.SIDE_EFFECT_READ_ONLY)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_DELAY, DelaySeconds: 1, OnSuccess: "b"},
		model.Step{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "read-report"},
	)

	started := time.Now()
	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	require.GreaterOrEqual(t, time.Since(started), time.Second)
	states := h.stepStates(t, execution.Id)
	require.Equal(t, model.STEP_SUCCEEDED, states["a"])
	require.Equal(t, model.STEP_SUCCEEDED, states["b"])
}

func TestTransformStepRuns(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	var got map[string]any
	h.register("read-report", model.SIDE_EFFECT_READ_ONLY, func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		mu.Lock()
		got = req.Input
		mu.Unlock()
		return nil, nil
	})
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_TRANSFORM, Transform: "template", OnSuccess: "b",
			Input: map[string]any{"key": "summary", "template": "score was {$.score}"}},
		model.Step{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "read-report",
			Input: map[string]any{"text": "$.a.output.summary"}},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "score was 80", got["text"])
}

func TestTotalStepsPinnedAtStart(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_EXTERNAL_COMM)
	h.registerOk("read-report", model.SIDE_EFFECT_READ_ONLY)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email"},
	)

	// gate on approval so the execution is alive while we edit
	execution := h.run(t, def.Id)
	require.Equal(t, 1, execution.TotalSteps)
	req := h.pendingApproval(t)

	_, err := h.metadata.Update(context.Background(), &model.WorkflowDefinition{
		Id:        def.Id,
		Workspace: "ws-1",
		Name:      "test-flow",
		Status:    model.WORKFLOW_STATUS_ACTIVE,
		Steps: []model.Step{
			{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email", OnSuccess: "b"},
			{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "read-report"},
		},
	}, "editor", "added a step")
	require.NoError(t, err)

	_, err = h.approvals.Decide(context.Background(), req.Id, true, "alice", "")
	require.NoError(t, err)

	// the in-flight execution still runs the pinned version: one step only
	done := h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	require.Equal(t, 1, done.TotalSteps)
	states := h.stepStates(t, execution.Id)
	require.Len(t, states, 1)

	// a fresh run picks up the new version
	fresh := h.run(t, def.Id)
	require.Equal(t, 2, fresh.TotalSteps)
	require.Equal(t, 2, fresh.Version)
	freshReq := h.pendingApproval(t)
	_, err = h.approvals.Decide(context.Background(), freshReq.Id, true, "alice", "")
	require.NoError(t, err)
	h.waitForState(t, fresh.Id, model.EXECUTION_COMPLETED)
}

func TestCancellation(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_EXTERNAL_COMM)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email"},
	)

	execution := h.run(t, def.Id)
	req := h.pendingApproval(t)

	h.engine.CancelExecution(execution.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_CANCELLED)

	// a late decision is recorded but resumes nothing
	decided, err := h.approvals.Decide(context.Background(), req.Id, true, "alice", "")
	require.NoError(t, err)
	require.True(t, decided.Moot)

	time.Sleep(50 * time.Millisecond)
	final, err := h.storage.Executions().GetExecution(context.Background(), execution.Id)
	require.NoError(t, err)
	require.Equal(t, model.EXECUTION_CANCELLED, final.State)
}

func TestInactiveWorkflowRefusesRun(t *testing.T) {
	h := newHarness(t)
	def, err := h.metadata.Create(context.Background(), &model.WorkflowDefinition{
		Workspace: "ws-1",
		Name:      "test-flow",
		Status:    model.WORKFLOW_STATUS_PAUSED,
		Steps:     []model.Step{{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "noop"}},
	}, "tester")
	require.NoError(t, err)

	_, err = h.engine.StartExecution(context.Background(), model.WorkflowRunRequest{
		WorkflowId: def.Id,
		Workspace:  "ws-1",
	})
	require.Error(t, err)
	require.Equal(t, api.KindNotActive, api.KindOf(err))
}

func TestPromotedActionRunsWithoutGate(t *testing.T) {
	h := newHarness(t)
	h.registerOk("send-email", model.SIDE_EFFECT_EXTERNAL_COMM)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "send-email"},
	)

	// five approvals promote the action under default thresholds
	for i := 0; i < 5; i++ {
		execution := h.run(t, def.Id)
		req := h.pendingApproval(t)
		_, err := h.approvals.Decide(context.Background(), req.Id, true, "alice", "")
		require.NoError(t, err)
		h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	}

	// the sixth run needs no human
	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	pending, err := h.approvals.ListPending(context.Background(), "ws-1", nil)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestConvergingBranchesRunOnce(t *testing.T) {
	h := newHarness(t)
	var mu sync.Mutex
	calls := map[string]int{}
	count := func(ctx context.Context, req dispatch.ActionRequest) (map[string]any, error) {
		mu.Lock()
		calls[req.StepId]++
		mu.Unlock()
		return nil, nil
	}
	h.register("read-report", model.SIDE_EFFECT_READ_ONLY, count)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "read-report", OnSuccess: "b", OnFailure: "c"},
		model.Step{Id: "b", Kind: model.STEP_KIND_ACTION, Action: "read-report", OnSuccess: "c"},
		model.Step{Id: "c", Kind: model.STEP_KIND_ACTION, Action: "read-report"},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, calls["c"])
}

func TestAuditTrailRecordsAttempts(t *testing.T) {
	h := newHarness(t)
	h.registerOk("read-report", model.SIDE_EFFECT_READ_ONLY)
	def := h.createWorkflow(t,
		model.Step{Id: "a", Kind: model.STEP_KIND_ACTION, Action: "read-report"},
	)

	execution := h.run(t, def.Id)
	h.waitForState(t, execution.Id, model.EXECUTION_COMPLETED)

	require.Eventually(t, func() bool {
		records, err := h.trail.Query(context.Background(), model.AuditFilter{ExecutionId: execution.Id})
		if err != nil {
			return false
		}
		var kinds []model.AuditEventType
		for _, r := range records {
			kinds = append(kinds, r.Type)
		}
		return contains(kinds, model.AUDIT_EXECUTION_STARTED) &&
			contains(kinds, model.AUDIT_STEP_ATTEMPT) &&
			contains(kinds, model.AUDIT_EXECUTION_FINISHED)
	}, 5*time.Second, 10*time.Millisecond)
}

func contains(kinds []model.AuditEventType, kind model.AuditEventType) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
