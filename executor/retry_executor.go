package executor

import (
	"sync"
	"time"

	"github.com/warden-io/warden/engine"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
	"go.uber.org/zap"
)

// RetryExecutor polls the retry queue and re-posts due step attempts to the
// engine. Delay steps ride the same queue; their second attempt arriving
// here is what completes the delay.
type RetryExecutor struct {
	delayQueue persistence.DelayQueue
	engine     *engine.Engine
	encDec     util.EncoderDecoder[model.RetryMessage]
	tw         *util.TickWorker
	stop       chan struct{}
	wg         *sync.WaitGroup
}

func NewRetryExecutor(delayQueue persistence.DelayQueue, eng *engine.Engine, wg *sync.WaitGroup) *RetryExecutor {
	ex := &RetryExecutor{
		delayQueue: delayQueue,
		engine:     eng,
		encDec:     util.NewJsonEncoderDecoder[model.RetryMessage](),
		stop:       make(chan struct{}),
		wg:         wg,
	}
	ex.tw = util.NewTickWorker("retry-executor", 1*time.Second, ex.stop, ex.handle, wg)
	return ex
}

func (ex *RetryExecutor) Name() string {
	return "retry-executor"
}

func (ex *RetryExecutor) Start() error {
	ex.tw.Start()
	return nil
}

func (ex *RetryExecutor) Stop() error {
	ex.stop <- struct{}{}
	return nil
}

func (ex *RetryExecutor) handle() {
	messages, err := ex.delayQueue.Pop(engine.RETRY_QUEUE)
	if err != nil {
		logger.Error("error polling retry queue", zap.Error(err))
		return
	}
	for _, message := range messages {
		msg, err := ex.encDec.Decode([]byte(message))
		if err != nil {
			logger.Error("error decoding retry message", zap.Error(err))
			continue
		}
		ex.engine.ExecuteRetry(msg)
	}
}
