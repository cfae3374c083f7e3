package redis

import (
	"context"
	"errors"
	"sort"
	"time"

	rd "github.com/go-redis/redis/v9"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
)

const APPROVAL_KEY string = "APPROVALS"
const APPROVAL_PENDING_KEY string = "APPROVALS_PENDING"

var _ persistence.ApprovalStorage = new(redisApprovalDao)

type redisApprovalDao struct {
	baseDao
	encDec util.EncoderDecoder[model.ApprovalRequest]
}

func newRedisApprovalDao(baseDao baseDao) *redisApprovalDao {
	return &redisApprovalDao{
		baseDao: baseDao,
		encDec:  util.NewJsonEncoderDecoder[model.ApprovalRequest](),
	}
}

func (ra *redisApprovalDao) CreateIfAbsent(ctx context.Context, req *model.ApprovalRequest) error {
	pendingKey := ra.getNamespaceKey(APPROVAL_PENDING_KEY, req.Workspace)
	pendingField := req.ExecutionId + ":" + req.StepId
	created, err := ra.redisClient.HSetNX(ctx, pendingKey, pendingField, req.Id).Result()
	if err != nil {
		return api.StorageLayerError{Message: err.Error()}
	}
	if !created {
		existing, _ := ra.redisClient.HGet(ctx, pendingKey, pendingField).Result()
		return api.DuplicateApprovalError{RequestId: existing}
	}
	data, err := ra.encDec.Encode(*req)
	if err != nil {
		return err
	}
	if err := ra.redisClient.HSet(ctx, ra.getNamespaceKey(APPROVAL_KEY), req.Id, string(data)).Err(); err != nil {
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ra *redisApprovalDao) Get(ctx context.Context, requestId string) (*model.ApprovalRequest, error) {
	data, err := ra.redisClient.HGet(ctx, ra.getNamespaceKey(APPROVAL_KEY), requestId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.NotFoundError{Entity: "approval request", Id: requestId}
		}
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return ra.encDec.Decode([]byte(data))
}

func (ra *redisApprovalDao) Decide(ctx context.Context, requestId string, status model.ApprovalStatus, actor string, comment string, decidedAt time.Time) (*model.ApprovalRequest, bool, error) {
	key := ra.getNamespaceKey(APPROVAL_KEY)
	var decided *model.ApprovalRequest
	won := false
	txf := func(tx *rd.Tx) error {
		data, err := tx.HGet(ctx, key, requestId).Result()
		if err != nil {
			if errors.Is(err, rd.Nil) {
				return api.NotFoundError{Entity: "approval request", Id: requestId}
			}
			return err
		}
		req, err := ra.encDec.Decode([]byte(data))
		if err != nil {
			return err
		}
		if req.Status != model.APPROVAL_PENDING {
			decided = req
			return nil
		}
		req.Status = status
		req.DecidedBy = actor
		req.Comment = comment
		req.DecidedAt = &decidedAt
		updated, err := ra.encDec.Encode(*req)
		if err != nil {
			return err
		}
		pendingKey := ra.getNamespaceKey(APPROVAL_PENDING_KEY, req.Workspace)
		pendingField := req.ExecutionId + ":" + req.StepId
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, key, requestId, string(updated))
			pipe.HDel(ctx, pendingKey, pendingField)
			return nil
		})
		if err == nil {
			decided = req
			won = true
		}
		return err
	}
	for i := 0; i < 3; i++ {
		err := ra.redisClient.Watch(ctx, txf, key)
		if err == nil {
			return decided, won, nil
		}
		if errors.Is(err, rd.TxFailedErr) {
			continue
		}
		return nil, false, err
	}
	return nil, false, api.StorageLayerError{Message: "decision contention"}
}

func (ra *redisApprovalDao) ListPending(ctx context.Context, workspace string) ([]model.ApprovalRequest, error) {
	pendingKey := ra.getNamespaceKey(APPROVAL_PENDING_KEY, workspace)
	pending, err := ra.redisClient.HGetAll(ctx, pendingKey).Result()
	if err != nil {
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	result := make([]model.ApprovalRequest, 0, len(pending))
	for _, requestId := range pending {
		req, err := ra.Get(ctx, requestId)
		if err != nil {
			continue
		}
		result = append(result, *req)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (ra *redisApprovalDao) MarkMoot(ctx context.Context, executionId string) error {
	key := ra.getNamespaceKey(APPROVAL_KEY)
	entries, err := ra.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return api.StorageLayerError{Message: err.Error()}
	}
	for id, data := range entries {
		req, err := ra.encDec.Decode([]byte(data))
		if err != nil {
			continue
		}
		if req.ExecutionId != executionId || req.Status != model.APPROVAL_PENDING {
			continue
		}
		req.Moot = true
		updated, err := ra.encDec.Encode(*req)
		if err != nil {
			continue
		}
		if err := ra.redisClient.HSet(ctx, key, id, string(updated)).Err(); err != nil {
			return api.StorageLayerError{Message: err.Error()}
		}
	}
	return nil
}

func (ra *redisApprovalDao) MarkExpired(ctx context.Context, requestId string) error {
	req, err := ra.Get(ctx, requestId)
	if err != nil {
		return err
	}
	req.Expired = true
	data, err := ra.encDec.Encode(*req)
	if err != nil {
		return err
	}
	if err := ra.redisClient.HSet(ctx, ra.getNamespaceKey(APPROVAL_KEY), requestId, string(data)).Err(); err != nil {
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}
