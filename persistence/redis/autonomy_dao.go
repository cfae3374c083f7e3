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

const AUTONOMY_KEY string = "AUTONOMY"

var _ persistence.AutonomyStorage = new(redisAutonomyDao)

type redisAutonomyDao struct {
	baseDao
	encDec util.EncoderDecoder[model.AutonomyPreference]
}

func newRedisAutonomyDao(baseDao baseDao) *redisAutonomyDao {
	return &redisAutonomyDao{
		baseDao: baseDao,
		encDec:  util.NewJsonEncoderDecoder[model.AutonomyPreference](),
	}
}

func (rt *redisAutonomyDao) Get(ctx context.Context, workspace string, action string) (*model.AutonomyPreference, error) {
	key := rt.getNamespaceKey(AUTONOMY_KEY, workspace)
	data, err := rt.redisClient.HGet(ctx, key, action).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, api.NotFoundError{Entity: "autonomy preference", Id: action}
		}
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return rt.encDec.Decode([]byte(data))
}

// Update serializes concurrent writers on the same key with a WATCH retry
// loop so approval/rejection counts are never lost.
func (rt *redisAutonomyDao) Update(ctx context.Context, workspace string, action string, fn func(*model.AutonomyPreference)) (*model.AutonomyPreference, error) {
	key := rt.getNamespaceKey(AUTONOMY_KEY, workspace)
	var result *model.AutonomyPreference
	txf := func(tx *rd.Tx) error {
		pref := model.NewAutonomyPreference(workspace, action)
		data, err := tx.HGet(ctx, key, action).Result()
		if err != nil && !errors.Is(err, rd.Nil) {
			return err
		}
		if err == nil {
			decoded, err := rt.encDec.Decode([]byte(data))
			if err != nil {
				return err
			}
			pref = decoded
		}
		fn(pref)
		pref.UpdatedAt = time.Now()
		updated, err := rt.encDec.Encode(*pref)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.HSet(ctx, key, action, string(updated))
			return nil
		})
		if err == nil {
			result = pref
		}
		return err
	}
	for i := 0; i < 5; i++ {
		err := rt.redisClient.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, rd.TxFailedErr) {
			continue
		}
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	return nil, api.StorageLayerError{Message: "autonomy update contention"}
}

func (rt *redisAutonomyDao) List(ctx context.Context, workspace string) ([]model.AutonomyPreference, error) {
	key := rt.getNamespaceKey(AUTONOMY_KEY, workspace)
	entries, err := rt.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, api.StorageLayerError{Message: err.Error()}
	}
	result := make([]model.AutonomyPreference, 0, len(entries))
	for _, data := range entries {
		pref, err := rt.encDec.Decode([]byte(data))
		if err != nil {
			return nil, err
		}
		result = append(result, *pref)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Action < result[j].Action
	})
	return result, nil
}

func (rt *redisAutonomyDao) ResetAll(ctx context.Context, workspace string) (int, error) {
	key := rt.getNamespaceKey(AUTONOMY_KEY, workspace)
	entries, err := rt.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, api.StorageLayerError{Message: err.Error()}
	}
	count := 0
	for action := range entries {
		pref := model.NewAutonomyPreference(workspace, action)
		data, err := rt.encDec.Encode(*pref)
		if err != nil {
			return count, err
		}
		if err := rt.redisClient.HSet(ctx, key, action, string(data)).Err(); err != nil {
			return count, api.StorageLayerError{Message: err.Error()}
		}
		count++
	}
	return count, nil
}
