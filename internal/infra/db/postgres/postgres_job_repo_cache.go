package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
	"persona-research/internal/infra/metrics"
	red "persona-research/internal/infra/redis"
)

var _ repository.JobRepository = (*jobRepoCacheDecorator)(nil)

// jobRepoCacheDecorator keeps terminal jobs in Redis. Completed and failed
// jobs never change again; queued and processing jobs always read through.
type jobRepoCacheDecorator struct {
	inner repository.JobRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewJobRepoCacheDecorator(inner repository.JobRepository, cache red.RedisClient, ttl time.Duration) repository.JobRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &jobRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func jobKey(id string) string { return "job:" + id }

func (d *jobRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	if val, err := d.cache.Get(ctx, jobKey(id)); err == nil {
		var job model.Job
		if json.Unmarshal([]byte(val), &job) == nil {
			metrics.IncCacheRequest("job", "hit")
			return &job, nil
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		metrics.IncCacheRequest("job", "error")
	}

	metrics.IncCacheRequest("job", "miss")
	job, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.remember(ctx, job)
	return job, nil
}

func (d *jobRepoCacheDecorator) remember(ctx context.Context, job *model.Job) {
	if job == nil || !job.Status.IsTerminal() {
		return
	}
	if b, err := json.Marshal(job); err == nil {
		_ = d.cache.Set(ctx, jobKey(job.ID), b, d.ttl)
	}
}

func (d *jobRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	_ = d.cache.Del(ctx, jobKey(job.ID))
	return d.inner.Save(ctx, tx, job)
}

func (d *jobRepoCacheDecorator) CompareAndSwap(ctx context.Context, job *model.Job, from model.JobStatus) error {
	_ = d.cache.Del(ctx, jobKey(job.ID))
	if err := d.inner.CompareAndSwap(ctx, job, from); err != nil {
		return err
	}
	d.remember(ctx, job)
	return nil
}

// ListRecent always reads through; recent lists include jobs still moving.
func (d *jobRepoCacheDecorator) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	return d.inner.ListRecent(ctx, tx, limit)
}

func (d *jobRepoCacheDecorator) Ping(ctx context.Context) error {
	if err := d.inner.Ping(ctx); err != nil {
		return err
	}
	return d.cache.Ping(ctx)
}
