package redis

import (
	"github.com/warden-io/warden/persistence"
)

type Storage struct {
	workflows  *redisWorkflowDao
	executions *redisExecutionDao
	approvals  *redisApprovalDao
	autonomy   *redisAutonomyDao
	audit      *redisAuditDao
	delayQueue *redisDelayQueue
}

var _ persistence.Storage = new(Storage)

func NewStorage(conf Config) *Storage {
	base := newBaseDao(conf)
	return &Storage{
		workflows:  newRedisWorkflowDao(*base),
		executions: newRedisExecutionDao(*base),
		approvals:  newRedisApprovalDao(*base),
		autonomy:   newRedisAutonomyDao(*base),
		audit:      newRedisAuditDao(*base),
		delayQueue: newRedisDelayQueue(*base),
	}
}

func (s *Storage) Workflows() persistence.WorkflowStorage   { return s.workflows }
func (s *Storage) Executions() persistence.ExecutionStorage { return s.executions }
func (s *Storage) Approvals() persistence.ApprovalStorage   { return s.approvals }
func (s *Storage) Autonomy() persistence.AutonomyStorage    { return s.autonomy }
func (s *Storage) Audit() persistence.AuditStorage          { return s.audit }
func (s *Storage) DelayQueue() persistence.DelayQueue       { return s.delayQueue }
