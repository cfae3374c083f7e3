package redis

import (
	"context"
	"errors"
	"sort"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/logger"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
	"go.uber.org/zap"
)

const WORKFLOW_KEY string = "WORKFLOWS"
const VERSION_KEY string = "VERSIONS"

var _ persistence.WorkflowStorage = new(redisWorkflowDao)

type redisWorkflowDao struct {
	baseDao
	defEncDec util.EncoderDecoder[model.WorkflowDefinition]
	verEncDec util.EncoderDecoder[model.WorkflowVersion]
}

func newRedisWorkflowDao(baseDao baseDao) *redisWorkflowDao {
	return &redisWorkflowDao{
		baseDao:   baseDao,
		defEncDec: util.NewJsonEncoderDecoder[model.WorkflowDefinition](),
		verEncDec: util.NewJsonEncoderDecoder[model.WorkflowVersion](),
	}
}

func (rw *redisWorkflowDao) SaveWorkflowDefinition(ctx context.Context, wf *model.WorkflowDefinition) error {
	key := rw.getNamespaceKey(WORKFLOW_KEY, wf.Workspace)
	data, err := rw.defEncDec.Encode(*wf)
	if err != nil {
		return err
	}
	if err := rw.redisClient.HSet(ctx, key, wf.Id, string(data)).Err(); err != nil {
		logger.Error("error saving workflow definition", zap.String("workflowId", wf.Id), zap.Error(err))
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (rw *redisWorkflowDao) GetWorkflowDefinition(ctx context.Context, workspace string, workflowId string) (*model.WorkflowDefinition, error) {
	key := rw.getNamespaceKey(WORKFLOW_KEY, workspace)
	data, err := rw.redisClient.HGet(ctx, key, workflowId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.NotFoundError{Entity: "workflow", Id: workflowId}
		}
		logger.Error("error getting workflow definition", zap.String("workflowId", workflowId), zap.Error(err))
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return rw.defEncDec.Decode([]byte(data))
}

func (rw *redisWorkflowDao) SaveVersion(ctx context.Context, version *model.WorkflowVersion) error {
	key := rw.getNamespaceKey(VERSION_KEY, version.Workspace, version.WorkflowId)
	data, err := rw.verEncDec.Encode(*version)
	if err != nil {
		return err
	}
	created, err := rw.redisClient.HSetNX(ctx, key, strconv.Itoa(version.Version), string(data)).Result()
	if err != nil {
		logger.Error("error saving workflow version", zap.String("workflowId", version.WorkflowId), zap.Int("version", version.Version), zap.Error(err))
		return api.StorageLayerError{Message: err.Error()}
	}
	if !created {
		return api.StorageLayerError{Message: "version already exists"}
	}
	return nil
}

func (rw *redisWorkflowDao) GetVersion(ctx context.Context, workspace string, workflowId string, version int) (*model.WorkflowVersion, error) {
	key := rw.getNamespaceKey(VERSION_KEY, workspace, workflowId)
	data, err := rw.redisClient.HGet(ctx, key, strconv.Itoa(version)).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.NotFoundError{Entity: "version", Id: strconv.Itoa(version)}
		}
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return rw.verEncDec.Decode([]byte(data))
}

func (rw *redisWorkflowDao) ListVersions(ctx context.Context, workspace string, workflowId string) ([]model.WorkflowVersion, error) {
	key := rw.getNamespaceKey(VERSION_KEY, workspace, workflowId)
	entries, err := rw.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	versions := make([]model.WorkflowVersion, 0, len(entries))
	for _, data := range entries {
		v, err := rw.verEncDec.Decode([]byte(data))
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
