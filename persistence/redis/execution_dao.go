package redis

import (
	"context"
	"errors"
	"sort"
	"time"

	rd "github.com/go-redis/redis/v9"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
	"go.uber.org/zap"
)

const EXECUTION_KEY string = "EXECUTIONS"
const EXECUTION_CTX_KEY string = "EXECUTION_CTX"
const STEP_KEY string = "STEPS"

var _ persistence.ExecutionStorage = new(redisExecutionDao)

type redisExecutionDao struct {
	baseDao
	execEncDec util.EncoderDecoder[model.WorkflowExecution]
	ctxEncDec  util.EncoderDecoder[model.ExecutionContext]
	stepEncDec util.EncoderDecoder[model.StepExecution]
}

func newRedisExecutionDao(baseDao baseDao) *redisExecutionDao {
	return &redisExecutionDao{
		baseDao:    baseDao,
		execEncDec: util.NewJsonEncoderDecoder[model.WorkflowExecution](),
		ctxEncDec:  util.NewJsonEncoderDecoder[model.ExecutionContext](),
		stepEncDec: util.NewJsonEncoderDecoder[model.StepExecution](),
	}
}

func (re *redisExecutionDao) SaveExecution(ctx context.Context, execution *model.WorkflowExecution) error {
	key := re.getNamespaceKey(EXECUTION_KEY)
	data, err := re.execEncDec.Encode(*execution)
	if err != nil {
		return err
	}
	if err := re.redisClient.HSet(ctx, key, execution.Id, string(data)).Err(); err != nil {
		logger.Error("error saving execution", zap.String("executionId", execution.Id), zap.Error(err))
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (re *redisExecutionDao) GetExecution(ctx context.Context, executionId string) (*model.WorkflowExecution, error) {
	key := re.getNamespaceKey(EXECUTION_KEY)
	data, err := re.redisClient.HGet(ctx, key, executionId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.NotFoundError{Entity: "execution", Id: executionId}
		}
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return re.execEncDec.Decode([]byte(data))
}

// TryTerminate runs a WATCH transaction so only one caller wins the
// terminal transition.
func (re *redisExecutionDao) TryTerminate(ctx context.Context, executionId string, state model.ExecutionState, endedAt time.Time) (bool, error) {
	key := re.getNamespaceKey(EXECUTION_KEY)
	won := false
	txf := func(tx *rd.Tx) error {
		data, err := tx.HGet(ctx, key, executionId).Result()
		if err != nil {
			if errors.Is(err, rd.Nil) {
				return api.NotFoundError{Entity: "execution", Id: executionId}
			}
			return err
		}
		execution, err := re.execEncDec.Decode([]byte(data))
		if err != nil {
			return err
		}
		if execution.State.Terminal() {
			return nil
		}
		execution.State = state
		execution.EndedAt = &endedAt
		updated, err := re.execEncDec.Encode(*execution)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, key, executionId, string(updated))
			return nil
		})
		if err == nil {
			won = true
		}
		return err
	}
	for i := 0; i < 3; i++ {
		err := re.redisClient.Watch(ctx, txf, key)
		if err == nil {
			return won, nil
		}
		if errors.Is(err, rd.TxFailedErr) {
			continue
		}
		return false, err
	}
	return false, api.StorageLayerError{Message: "terminal transition contention"}
}

func (re *redisExecutionDao) SaveExecutionContext(ctx context.Context, flowCtx *model.ExecutionContext) error {
	key := re.getNamespaceKey(EXECUTION_CTX_KEY)
	data, err := re.ctxEncDec.Encode(*flowCtx)
	if err != nil {
		return err
	}
	if err := re.redisClient.HSet(ctx, key, flowCtx.ExecutionId, string(data)).Err(); err != nil {
		logger.Error("error saving execution context", zap.String("executionId", flowCtx.ExecutionId), zap.Error(err))
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (re *redisExecutionDao) GetExecutionContext(ctx context.Context, executionId string) (*model.ExecutionContext, error) {
	key := re.getNamespaceKey(EXECUTION_CTX_KEY)
	data, err := re.redisClient.HGet(ctx, key, executionId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.NotFoundError{Entity: "execution context", Id: executionId}
		}
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return re.ctxEncDec.Decode([]byte(data))
}

func (re *redisExecutionDao) SaveStepExecution(ctx context.Context, stepExec *model.StepExecution) error {
	key := re.getNamespaceKey(STEP_KEY, stepExec.ExecutionId)
	data, err := re.stepEncDec.Encode(*stepExec)
	if err != nil {
		return err
	}
	if err := re.redisClient.HSet(ctx, key, stepExec.Id, string(data)).Err(); err != nil {
		logger.Error("error saving step execution", zap.String("executionId", stepExec.ExecutionId), zap.String("stepId", stepExec.StepId), zap.Error(err))
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (re *redisExecutionDao) ListStepExecutions(ctx context.Context, executionId string) ([]model.StepExecution, error) {
	key := re.getNamespaceKey(STEP_KEY, executionId)
	entries, err := re.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	result := make([]model.StepExecution, 0, len(entries))
	for _, data := range entries {
		stepExec, err := re.stepEncDec.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		result = append(result, *stepExec)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result, nil
}
