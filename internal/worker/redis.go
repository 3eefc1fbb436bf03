package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"omnigen/internal/models"
	"omnigen/internal/redis"
)

const (
	redisJobChannel    = "video:jobs"
	redisJobPrefix     = "video:job:"
	redisContentPrefix = "video:content:"
	redisOpTimeout     = 3 * time.Second
	maxMirroredContent = 64 << 20
)

type jobUpdate struct {
	Origin string          `json:"origin"`
	Job    models.VideoJob `json:"job"`
}

// stateRedis mirrors job records so any instance can answer status
// queries, and relays status updates over pub/sub.
type stateRedis struct {
	client *redis.Client
	ttl    time.Duration
	origin string
	logger *zap.Logger
}

func newStateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *stateRedis {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &stateRedis{client: client, ttl: ttl, origin: uuid.New().String(), logger: logger}
}

// startListener calls handler for updates published by other instances.
func (r *stateRedis) startListener(ctx context.Context, handler func(models.VideoJob)) error {
	if r == nil || handler == nil {
		return nil
	}
	return r.client.Subscribe(ctx, redisJobChannel, func(payload string) {
		var upd jobUpdate
		if err := json.Unmarshal([]byte(payload), &upd); err != nil {
			r.logger.Warn("decode job update failed", zap.Error(err))
			return
		}
		if upd.Origin == r.origin {
			return
		}
		handler(upd.Job)
	})
}

func (r *stateRedis) publishUpdate(job models.VideoJob) {
	if r == nil {
		return
	}
	payload, err := json.Marshal(jobUpdate{Origin: r.origin, Job: job})
	if err != nil {
		r.logger.Warn("encode job update failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, redisJobChannel, payload); err != nil {
		r.logger.Warn("publish job update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (r *stateRedis) cacheJob(job models.VideoJob) {
	if r == nil {
		return
	}
	data, err := json.Marshal(job)
	if err != nil {
		r.logger.Warn("encode job failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, redisJobPrefix+job.ID, data, r.ttl); err != nil {
		r.logger.Warn("mirror job failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (r *stateRedis) cacheContent(id string, data []byte) {
	if r == nil || len(data) == 0 || len(data) > maxMirroredContent {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, redisContentPrefix+id, data, r.ttl); err != nil {
		r.logger.Warn("mirror job content failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (r *stateRedis) loadJob(id string) (models.VideoJob, bool) {
	if r == nil {
		return models.VideoJob{}, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := r.client.Get(ctx, redisJobPrefix+id)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			r.logger.Warn("load job failed", zap.String("job_id", id), zap.Error(err))
		}
		return models.VideoJob{}, false
	}
	var job models.VideoJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		r.logger.Warn("decode job failed", zap.String("job_id", id), zap.Error(err))
		return models.VideoJob{}, false
	}
	return job, true
}

func (r *stateRedis) loadContent(id string) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	raw, err := r.client.Get(ctx, redisContentPrefix+id)
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			r.logger.Warn("load job content failed", zap.String("job_id", id), zap.Error(err))
		}
		return nil, false
	}
	return []byte(raw), true
}

func (r *stateRedis) invalidateJob(id string) {
	if r == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, redisJobPrefix+id, redisContentPrefix+id); err != nil {
		r.logger.Warn("invalidate job failed", zap.String("job_id", id), zap.Error(err))
	}
}
