package repository

import (
	"context"
	"time"

	"persona-research/internal/domain/model"
)

// ResultCache stores the latest CollectorResult per (jobID, source).
// Writes are last-write-wins.
type ResultCache interface {
	Put(ctx context.Context, r *model.CollectorResult) error
	// Get returns domain.ErrNotFound when no result was written.
	Get(ctx context.Context, jobID string, src model.SourceKey) (*model.CollectorResult, error)
	ListSources(ctx context.Context, jobID string) ([]model.SourceKey, error)
	ListJobs(ctx context.Context) ([]string, error)
	// EvictOlderThan drops every job whose first write predates cutoff.
	EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
}

// Locker is a best-effort mutual exclusion primitive shared across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
