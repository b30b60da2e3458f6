//go:build !integration

package postgres

import (
	"context"
	"time"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
	red "persona-research/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerJobRepo struct {
	SaveFunc           func(ctx context.Context, tx repository.Tx, job *model.Job) error
	FindByIDFunc       func(ctx context.Context, tx repository.Tx, id string) (*model.Job, error)
	CompareAndSwapFunc func(ctx context.Context, job *model.Job, from model.JobStatus) error
	ListRecentFunc     func(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error)
}

func (m *mockInnerJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	return m.SaveFunc(ctx, tx, job)
}
func (m *mockInnerJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerJobRepo) CompareAndSwap(ctx context.Context, job *model.Job, from model.JobStatus) error {
	return m.CompareAndSwapFunc(ctx, job, from)
}
func (m *mockInnerJobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	return m.ListRecentFunc(ctx, tx, limit)
}
func (m *mockInnerJobRepo) Ping(ctx context.Context) error { return nil }

// mockRedisClient mocks red.RedisClient; unset funcs behave like an empty cache.
type mockRedisClient struct {
	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = (*mockRedisClient)(nil)

func (m *mockRedisClient) Ping(ctx context.Context) error { return nil }
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return "", domain.ErrNotFound
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) HSet(ctx context.Context, key, field string, value interface{}) error {
	return nil
}
func (m *mockRedisClient) HGet(ctx context.Context, key, field string) (string, error) {
	return "", domain.ErrNotFound
}
func (m *mockRedisClient) HKeys(ctx context.Context, key string) ([]string, error) { return nil, nil }
func (m *mockRedisClient) ZAddNX(ctx context.Context, key string, score float64, member string) error {
	return nil
}
func (m *mockRedisClient) ZRangeByScore(ctx context.Context, key string, min, max string) ([]string, error) {
	return nil, nil
}
func (m *mockRedisClient) ZRem(ctx context.Context, key string, members ...string) error { return nil }
func (m *mockRedisClient) Close() error                                                 { return nil }
