package executor

import (
	"context"
	"sync"
	"time"

	"github.com/warden-io/warden/approval"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
	"go.uber.org/zap"
)

// ExpiryExecutor sweeps the approval-expiry queue and flags pending
// requests whose decision window has lapsed.
type ExpiryExecutor struct {
	delayQueue persistence.DelayQueue
	approvals  *approval.Service
	tw         *util.TickWorker
	stop       chan struct{}
	wg         *sync.WaitGroup
}

func NewExpiryExecutor(delayQueue persistence.DelayQueue, approvals *approval.Service, wg *sync.WaitGroup) *ExpiryExecutor {
	ex := &ExpiryExecutor{
		delayQueue: delayQueue,
		approvals:  approvals,
		stop:       make(chan struct{}),
		wg:         wg,
	}
	ex.tw = util.NewTickWorker("approval-expiry-executor", 10*time.Second, ex.stop, ex.handle, wg)
	return ex
}

func (ex *ExpiryExecutor) Name() string {
	return "approval-expiry-executor"
}

func (ex *ExpiryExecutor) Start() error {
	ex.tw.Start()
	return nil
}

func (ex *ExpiryExecutor) Stop() error {
	ex.stop <- struct{}{}
	return nil
}

func (ex *ExpiryExecutor) handle() {
	messages, err := ex.delayQueue.Pop(approval.EXPIRY_QUEUE)
	if err != nil {
		logger.Error("error polling approval expiry queue", zap.Error(err))
		return
	}
	ctx := context.Background()
	for _, requestId := range messages {
		if err := ex.approvals.Expire(ctx, requestId); err != nil {
			logger.Error("error expiring approval request", zap.String("requestId", requestId), zap.Error(err))
		}
	}
}
