package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/autonomy"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/metrics"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"go.uber.org/zap"
)

// Resumer is how a decision wakes the suspended step; the execution engine
// implements it.
type Resumer interface {
	Resume(executionId string, stepId string, approved bool, actor string)
}

// Notifier alerts humans of new pending requests. Delivery is an external
// collaborator; the no-op default keeps the queue usable without one.
type Notifier interface {
	NotifyPending(req *model.ApprovalRequest)
}

type NopNotifier struct{}

func (NopNotifier) NotifyPending(*model.ApprovalRequest) {}

const EXPIRY_QUEUE = "approval-expiry"

// Service is the durable human-decision queue for gated steps.
type Service struct {
	storage    persistence.ApprovalStorage
	autonomy   *autonomy.Service
	notifier   Notifier
	resumer    Resumer
	delayQueue persistence.DelayQueue
	expiry     time.Duration
}

func NewService(storage persistence.ApprovalStorage, autonomyService *autonomy.Service,
	notifier Notifier, delayQueue persistence.DelayQueue, expiry time.Duration) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Service{
		storage:    storage,
		autonomy:   autonomyService,
		notifier:   notifier,
		delayQueue: delayQueue,
		expiry:     expiry,
	}
}

// SetResumer wires the engine in after construction; the engine and this
// service reference each other.
func (s *Service) SetResumer(resumer Resumer) {
	s.resumer = resumer
}

type EnqueueRequest struct {
	Workspace       string
	ExecutionId     string
	WorkflowId      string
	StepId          string
	StepExecutionId string
	Action          string
	Tier            model.RiskTier
	Summary         string
}

// Enqueue creates the pending request for a suspended step. At most one
// pending request may exist per (execution, step); a second is rejected as
// a duplicate.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*model.ApprovalRequest, error) {
	approvalReq := &model.ApprovalRequest{
		Id:              uuid.New().String(),
		Workspace:       req.Workspace,
		ExecutionId:     req.ExecutionId,
		WorkflowId:      req.WorkflowId,
		StepId:          req.StepId,
		StepExecutionId: req.StepExecutionId,
		Action:          req.Action,
		Tier:            req.Tier,
		Summary:         req.Summary,
		Status:          model.APPROVAL_PENDING,
		CreatedAt:       time.Now(),
	}
	if err := s.storage.CreateIfAbsent(ctx, approvalReq); err != nil {
		return nil, err
	}
	metrics.ApprovalsPending.Inc()
	if s.expiry > 0 {
		if err := s.delayQueue.PushWithDelay(EXPIRY_QUEUE, s.expiry, []byte(approvalReq.Id)); err != nil {
			logger.Error("error scheduling approval expiry", zap.String("requestId", approvalReq.Id), zap.Error(err))
		}
	}
	s.notifier.NotifyPending(approvalReq)
	logger.Info("approval request enqueued",
		zap.String("requestId", approvalReq.Id),
		zap.String("executionId", req.ExecutionId),
		zap.String("stepId", req.StepId),
		zap.String("tier", req.Tier.String()))
	return approvalReq, nil
}

// Decide transitions the request exactly once. A second decision on an
// already-decided request returns a conflict and neither changes the
// recorded decision nor re-triggers resumption. Every accepted decision
// feeds the autonomy model; resumption is skipped for requests made moot
// by cancellation.
func (s *Service) Decide(ctx context.Context, requestId string, approved bool, actor string, comment string) (*model.ApprovalRequest, error) {
	status := model.APPROVAL_REJECTED
	if approved {
		status = model.APPROVAL_APPROVED
	}
	req, won, err := s.storage.Decide(ctx, requestId, status, actor, comment, time.Now())
	if err != nil {
		return nil, err
	}
	if !won {
		return req, api.DuplicateApprovalError{RequestId: requestId}
	}
	metrics.ApprovalsPending.Dec()
	metrics.ApprovalDecisions.WithLabelValues(string(status)).Inc()
	if _, err := s.autonomy.RecordDecision(ctx, req.Workspace, req.Action, approved); err != nil {
		logger.Error("error recording autonomy decision", zap.String("requestId", requestId), zap.Error(err))
	}
	if req.Moot {
		logger.Info("decision recorded on moot approval request", zap.String("requestId", requestId))
		return req, nil
	}
	if s.resumer != nil {
		s.resumer.Resume(req.ExecutionId, req.StepId, approved, actor)
	}
	logger.Info("approval request decided",
		zap.String("requestId", requestId),
		zap.Bool("approved", approved),
		zap.String("actor", actor))
	return req, nil
}

// BulkDecide applies the same decision to each request independently; a
// failure on one does not abort the rest.
func (s *Service) BulkDecide(ctx context.Context, requestIds []string, approved bool, actor string) model.BulkDecisionResult {
	result := model.BulkDecisionResult{Failed: make(map[string]string)}
	for _, requestId := range requestIds {
		if _, err := s.Decide(ctx, requestId, approved, actor, ""); err != nil {
			result.Failed[requestId] = string(api.KindOf(err))
			continue
		}
		result.Succeeded = append(result.Succeeded, requestId)
	}
	return result
}

type PendingFilter struct {
	Tier       *model.RiskTier
	WorkflowId string
}

func (s *Service) ListPending(ctx context.Context, workspace string, filter *PendingFilter) ([]model.ApprovalRequest, error) {
	pending, err := s.storage.ListPending(ctx, workspace)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return pending, nil
	}
	var result []model.ApprovalRequest
	for _, req := range pending {
		if filter.Tier != nil && req.Tier != *filter.Tier {
			continue
		}
		if filter.WorkflowId != "" && req.WorkflowId != filter.WorkflowId {
			continue
		}
		result = append(result, req)
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, requestId string) (*model.ApprovalRequest, error) {
	return s.storage.Get(ctx, requestId)
}

// MarkMoot flags every pending request of a cancelled execution: still
// decidable for audit, but no longer resumes anything.
func (s *Service) MarkMoot(ctx context.Context, executionId string) error {
	return s.storage.MarkMoot(ctx, executionId)
}

// Expire flags a request whose decision window has lapsed. Requests already
// decided are left untouched; an expired request stays pending and decidable,
// the flag only marks it overdue for escalation.
func (s *Service) Expire(ctx context.Context, requestId string) error {
	req, err := s.storage.Get(ctx, requestId)
	if err != nil {
		return err
	}
	if req.Status != model.APPROVAL_PENDING || req.Expired {
		return nil
	}
	if err := s.storage.MarkExpired(ctx, requestId); err != nil {
		return err
	}
	logger.Warn("approval request expired without a decision",
		zap.String("requestId", requestId),
		zap.String("executionId", req.ExecutionId),
		zap.String("stepId", req.StepId))
	return nil
}
