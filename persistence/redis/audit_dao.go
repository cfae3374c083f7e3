package redis

import (
	"context"
	"strconv"

	rd "github.com/go-redis/redis/v9"
	api "github.com/warden-io/warden/api/v1"
	"github.com/warden-io/warden/model"
	"github.com/warden-io/warden/persistence"
	"github.com/warden-io/warden/util"
)

const AUDIT_KEY string = "AUDIT"

var _ persistence.AuditStorage = new(redisAuditDao)

// redisAuditDao keeps one time-scored sorted set per workspace; records are
// only ever added.
type redisAuditDao struct {
	baseDao
	encDec util.EncoderDecoder[model.AuditRecord]
}

func newRedisAuditDao(baseDao baseDao) *redisAuditDao {
	return &redisAuditDao{
		baseDao: baseDao,
		encDec:  util.NewJsonEncoderDecoder[model.AuditRecord](),
	}
}

func (ra *redisAuditDao) Append(ctx context.Context, record *model.AuditRecord) error {
	key := ra.getNamespaceKey(AUDIT_KEY, record.Workspace)
	data, err := ra.encDec.Encode(*record)
	if err != nil {
		return err
	}
	member := rd.Z{
		Score:  float64(record.Timestamp.UnixMilli()),
		Member: string(data),
	}
	if err := ra.redisClient.ZAdd(ctx, key, member).Err(); err != nil {
		return api.StorageLayerError{Message: err.Error()}
	}
	return nil
}

func (ra *redisAuditDao) Query(ctx context.Context, filter model.AuditFilter) ([]model.AuditRecord, error) {
	key := ra.getNamespaceKey(AUDIT_KEY, filter.Workspace)
	min := "0"
	max := "+inf"
	if !filter.From.IsZero() {
		min = strconv.FormatInt(filter.From.UnixMilli(), 10)
	}
	if !filter.To.IsZero() {
		max = strconv.FormatInt(filter.To.UnixMilli(), 10)
	}
	entries, err := ra.redisClient.ZRangeByScore(ctx, key, &rd.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	var result []model.AuditRecord
	for _, data := range entries {
		record, err := ra.encDec.Decode([]byte(data))
		if err != nil {
			continue
		}
		if filter.WorkflowId != "" && record.WorkflowId != filter.WorkflowId {
			continue
		}
		if filter.ExecutionId != "" && record.ExecutionId != filter.ExecutionId {
			continue
		}
		result = append(result, *record)
	}
	return result, nil
}
