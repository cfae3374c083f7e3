package inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
)

// Storage is the mutex-guarded in-memory implementation used by tests and
// local development. Values are stored encoded so reads hand out copies,
// matching the redis implementation's aliasing behavior.
type Storage struct {
	workflows  *workflowStorage
	executions *executionStorage
	approvals  *approvalStorage
	autonomy   *autonomyStorage
	audit      *auditStorage
	delayQueue *delayQueue
}

var _ persistence.Storage = new(Storage)

func NewStorage() *Storage {
	return &Storage{
		workflows: &workflowStorage{
			definitions: make(map[string][]byte),
			versions:    make(map[string]map[int][]byte),
			defEncDec:   util.NewJsonEncoderDecoder[model.WorkflowDefinition](),
			verEncDec:   util.NewJsonEncoderDecoder[model.WorkflowVersion](),
		},
		executions: &executionStorage{
			executions: make(map[string][]byte),
			contexts:   make(map[string][]byte),
			steps:      make(map[string][][]byte),
			execEncDec: util.NewJsonEncoderDecoder[model.WorkflowExecution](),
			ctxEncDec:  util.NewJsonEncoderDecoder[model.ExecutionContext](),
			stepEncDec: util.NewJsonEncoderDecoder[model.StepExecution](),
		},
		approvals: &approvalStorage{
			requests: make(map[string]*model.ApprovalRequest),
			pending:  make(map[string]string),
		},
		autonomy: &autonomyStorage{
			prefs: make(map[string]map[string]*model.AutonomyPreference),
		},
		audit:      &auditStorage{},
		delayQueue: &delayQueue{queues: make(map[string][]delayed)},
	}
}

func (s *Storage) Workflows() persistence.WorkflowStorage   { return s.workflows }
func (s *Storage) Executions() persistence.ExecutionStorage { return s.executions }
func (s *Storage) Approvals() persistence.ApprovalStorage   { return s.approvals }
func (s *Storage) Autonomy() persistence.AutonomyStorage    { return s.autonomy }
func (s *Storage) Audit() persistence.AuditStorage          { return s.audit }
func (s *Storage) DelayQueue() persistence.DelayQueue       { return s.delayQueue }

func key(parts ...string) string {
	k := parts[0]
	for _, p := range parts[1:] {
		k = k + ":" + p
	}
	return k
}

type workflowStorage struct {
	mu          sync.Mutex
	definitions map[string][]byte
	versions    map[string]map[int][]byte
	defEncDec   util.EncoderDecoder[model.WorkflowDefinition]
	verEncDec   util.EncoderDecoder[model.WorkflowVersion]
}

func (ws *workflowStorage) SaveWorkflowDefinition(ctx context.Context, wf *model.WorkflowDefinition) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	data, err := ws.defEncDec.Encode(*wf)
	if err != nil {
		return err
	}
	ws.definitions[key(wf.Workspace, wf.Id)] = data
	return nil
}

func (ws *workflowStorage) GetWorkflowDefinition(ctx context.Context, workspace string, workflowId string) (*model.WorkflowDefinition, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	data, ok := ws.definitions[key(workspace, workflowId)]
	if !ok {
		return nil, api.NotFoundError{Entity: "workflow", Id: workflowId}
	}
	return ws.defEncDec.Decode(data)
}

func (ws *workflowStorage) SaveVersion(ctx context.Context, version *model.WorkflowVersion) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	k := key(version.Workspace, version.WorkflowId)
	if _, ok := ws.versions[k]; !ok {
		ws.versions[k] = make(map[int][]byte)
	}
	if _, ok := ws.versions[k][version.Version]; ok {
		return api.StorageLayerError{Message: fmt.Sprintf("version %d already exists", version.Version)}
	}
	data, err := ws.verEncDec.Encode(*version)
	if err != nil {
		return err
	}
	ws.versions[k][version.Version] = data
	return nil
}

func (ws *workflowStorage) GetVersion(ctx context.Context, workspace string, workflowId string, version int) (*model.WorkflowVersion, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	data, ok := ws.versions[key(workspace, workflowId)][version]
	if !ok {
		return nil, api.NotFoundError{Entity: "version", Id: fmt.Sprintf("%s/%d", workflowId, version)}
	}
	return ws.verEncDec.Decode(data)
}

func (ws *workflowStorage) ListVersions(ctx context.Context, workspace string, workflowId string) ([]model.WorkflowVersion, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	var versions []model.WorkflowVersion
	for _, data := range ws.versions[key(workspace, workflowId)] {
		v, err := ws.verEncDec.Decode(data)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version > versions[j].Version
	})
	return versions, nil
}

type executionStorage struct {
	mu         sync.Mutex
	executions map[string][]byte
	contexts   map[string][]byte
	steps      map[string][][]byte
	execEncDec util.EncoderDecoder[model.WorkflowExecution]
	ctxEncDec  util.EncoderDecoder[model.ExecutionContext]
	stepEncDec util.EncoderDecoder[model.StepExecution]
}

func (es *executionStorage) SaveExecution(ctx context.Context, execution *model.WorkflowExecution) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.saveExecutionLocked(execution)
}

func (es *executionStorage) saveExecutionLocked(execution *model.WorkflowExecution) error {
	data, err := es.execEncDec.Encode(*execution)
	if err != nil {
		return err
	}
	es.executions[execution.Id] = data
	return nil
}

func (es *executionStorage) GetExecution(ctx context.Context, executionId string) (*model.WorkflowExecution, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.getExecutionLocked(executionId)
}

func (es *executionStorage) getExecutionLocked(executionId string) (*model.WorkflowExecution, error) {
	data, ok := es.executions[executionId]
	if !ok {
		return nil, api.NotFoundError{Entity: "execution", Id: executionId}
	}
	return es.execEncDec.Decode(data)
}

func (es *executionStorage) TryTerminate(ctx context.Context, executionId string, state model.ExecutionState, endedAt time.Time) (bool, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	execution, err := es.getExecutionLocked(executionId)
	if err != nil {
		return false, err
	}
	if execution.State.Terminal() {
		return false, nil
	}
	execution.State = state
	execution.EndedAt = &endedAt
	return true, es.saveExecutionLocked(execution)
}

func (es *executionStorage) SaveExecutionContext(ctx context.Context, flowCtx *model.ExecutionContext) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	data, err := es.ctxEncDec.Encode(*flowCtx)
	if err != nil {
		return err
	}
	es.contexts[flowCtx.ExecutionId] = data
	return nil
}

func (es *executionStorage) GetExecutionContext(ctx context.Context, executionId string) (*model.ExecutionContext, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	data, ok := es.contexts[executionId]
	if !ok {
		return nil, api.NotFoundError{Entity: "execution context", Id: executionId}
	}
	return es.ctxEncDec.Decode(data)
}

func (es *executionStorage) SaveStepExecution(ctx context.Context, stepExec *model.StepExecution) error {
	es.mu.Lock()
	defer es.mu.Unlock()
	data, err := es.stepEncDec.Encode(*stepExec)
	if err != nil {
		return err
	}
	// an attempt row is replaced in place when its state advances
	for i, existing := range es.steps[stepExec.ExecutionId] {
		prev, err := es.stepEncDec.Decode(existing)
		if err != nil {
			continue
		}
		if prev.Id == stepExec.Id {
			es.steps[stepExec.ExecutionId][i] = data
			return nil
		}
	}
	es.steps[stepExec.ExecutionId] = append(es.steps[stepExec.ExecutionId], data)
	return nil
}

func (es *executionStorage) ListStepExecutions(ctx context.Context, executionId string) ([]model.StepExecution, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	var result []model.StepExecution
	for _, data := range es.steps[executionId] {
		stepExec, err := es.stepEncDec.Decode(data)
		if err != nil {
			return nil, err
		}
		result = append(result, *stepExec)
	}
	return result, nil
}

type approvalStorage struct {
	mu       sync.Mutex
	requests map[string]*model.ApprovalRequest
	// pending indexes (executionId, stepId) -> requestId for the
	// one-pending-per-step invariant
	pending map[string]string
}

func (as *approvalStorage) CreateIfAbsent(ctx context.Context, req *model.ApprovalRequest) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	pk := key(req.ExecutionId, req.StepId)
	if existing, ok := as.pending[pk]; ok {
		return api.DuplicateApprovalError{RequestId: existing}
	}
	cp := *req
	as.requests[req.Id] = &cp
	as.pending[pk] = req.Id
	return nil
}

func (as *approvalStorage) Get(ctx context.Context, requestId string) (*model.ApprovalRequest, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	req, ok := as.requests[requestId]
	if !ok {
		return nil, api.NotFoundError{Entity: "approval request", Id: requestId}
	}
	cp := *req
	return &cp, nil
}

func (as *approvalStorage) Decide(ctx context.Context, requestId string, status model.ApprovalStatus, actor string, comment string, decidedAt time.Time) (*model.ApprovalRequest, bool, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	req, ok := as.requests[requestId]
	if !ok {
		return nil, false, api.NotFoundError{Entity: "approval request", Id: requestId}
	}
	if req.Status != model.APPROVAL_PENDING {
		cp := *req
		return &cp, false, nil
	}
	req.Status = status
	req.DecidedBy = actor
	req.Comment = comment
	req.DecidedAt = &decidedAt
	delete(as.pending, key(req.ExecutionId, req.StepId))
	cp := *req
	return &cp, true, nil
}

func (as *approvalStorage) ListPending(ctx context.Context, workspace string) ([]model.ApprovalRequest, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	var result []model.ApprovalRequest
	for _, id := range as.pending {
		req := as.requests[id]
		if req.Workspace == workspace {
			result = append(result, *req)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (as *approvalStorage) MarkMoot(ctx context.Context, executionId string) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	for _, req := range as.requests {
		if req.ExecutionId == executionId && req.Status == model.APPROVAL_PENDING {
			req.Moot = true
		}
	}
	return nil
}

func (as *approvalStorage) MarkExpired(ctx context.Context, requestId string) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	req, ok := as.requests[requestId]
	if !ok {
		return api.NotFoundError{Entity: "approval request", Id: requestId}
	}
	req.Expired = true
	return nil
}

type autonomyStorage struct {
	mu    sync.Mutex
	prefs map[string]map[string]*model.AutonomyPreference
}

func (at *autonomyStorage) Get(ctx context.Context, workspace string, action string) (*model.AutonomyPreference, error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	pref, ok := at.prefs[workspace][action]
	if !ok {
		return nil, api.NotFoundError{Entity: "autonomy preference", Id: action}
	}
	cp := *pref
	return &cp, nil
}

func (at *autonomyStorage) Update(ctx context.Context, workspace string, action string, fn func(*model.AutonomyPreference)) (*model.AutonomyPreference, error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	if _, ok := at.prefs[workspace]; !ok {
		at.prefs[workspace] = make(map[string]*model.AutonomyPreference)
	}
	pref, ok := at.prefs[workspace][action]
	if !ok {
		pref = model.NewAutonomyPreference(workspace, action)
		at.prefs[workspace][action] = pref
	}
	fn(pref)
	pref.UpdatedAt = time.Now()
	cp := *pref
	return &cp, nil
}

func (at *autonomyStorage) List(ctx context.Context, workspace string) ([]model.AutonomyPreference, error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	var result []model.AutonomyPreference
	for _, pref := range at.prefs[workspace] {
		result = append(result, *pref)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Action < result[j].Action
	})
	return result, nil
}

func (at *autonomyStorage) ResetAll(ctx context.Context, workspace string) (int, error) {
	at.mu.Lock()
	defer at.mu.Unlock()
	count := 0
	for action := range at.prefs[workspace] {
		at.prefs[workspace][action] = model.NewAutonomyPreference(workspace, action)
		count++
	}
	return count, nil
}

type auditStorage struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func (au *auditStorage) Append(ctx context.Context, record *model.AuditRecord) error {
	au.mu.Lock()
	defer au.mu.Unlock()
	au.records = append(au.records, *record)
	return nil
}

func (au *auditStorage) Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditRecord, error) {
	au.mu.Lock()
	defer au.mu.Unlock()
	var result []model.AuditRecord
	for _, record := range au.records {
		if filter.Workspace != "" && record.Workspace != filter.Workspace {
			continue
		}
		if filter.WorkflowId != "" && record.WorkflowId != filter.WorkflowId {
			continue
		}
		if filter.ExecutionId != "" && record.ExecutionId != filter.ExecutionId {
			continue
		}
		if !filter.From.IsZero() && record.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && record.Timestamp.After(filter.To) {
			continue
		}
		result = append(result, record)
	}
	return result, nil
}

type delayed struct {
	due     time.Time
	message []byte
}

type delayQueue struct {
	mu     sync.Mutex
	queues map[string][]delayed
}

func (dq *delayQueue) PushWithDelay(queueName string, delay time.Duration, message []byte) error {
	dq.mu.Lock()
	defer dq.mu.Unlock()
	dq.queues[queueName] = append(dq.queues[queueName], delayed{
		due:     time.Now().Add(delay),
		message: message,
	})
	return nil
}

func (dq *delayQueue) Pop(queueName string) ([]string, error) {
	dq.mu.Lock()
	defer dq.mu.Unlock()
	now := time.Now()
	var due []string
	var remaining []delayed
	for _, d := range dq.queues[queueName] {
		if d.due.After(now) {
			remaining = append(remaining, d)
		} else {
			due = append(due, string(d.message))
		}
	}
	dq.queues[queueName] = remaining
	return due, nil
}
