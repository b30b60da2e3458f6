// Package cache holds the in-process ResultCache.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
	"persona-research/internal/infra/metrics"
)

var _ repository.ResultCache = (*MemoryCache)(nil)

type jobEntry struct {
	mu        sync.RWMutex
	createdAt time.Time
	results   map[model.SourceKey]*model.CollectorResult
}

type shard struct {
	mu   sync.RWMutex
	jobs map[string]*jobEntry
}

// MemoryCache is a sharded in-memory ResultCache. Jobs hash to shards, and
// each job guards its own result map, so writers for different jobs never
// share a lock.
type MemoryCache struct {
	shards []*shard
	now    func() time.Time
}

func NewMemoryCache(shards int) *MemoryCache {
	if shards <= 0 {
		shards = 32
	}
	c := &MemoryCache{shards: make([]*shard, shards), now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{jobs: make(map[string]*jobEntry)}
	}
	return c
}

func (c *MemoryCache) shardFor(jobID string) *shard {
	return c.shards[xxhash.Sum64String(jobID)%uint64(len(c.shards))]
}

func (c *MemoryCache) entry(jobID string, create bool) *jobEntry {
	s := c.shardFor(jobID)
	s.mu.RLock()
	e := s.jobs[jobID]
	s.mu.RUnlock()
	if e != nil || !create {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.jobs[jobID]; e == nil {
		e = &jobEntry{createdAt: c.now(), results: make(map[model.SourceKey]*model.CollectorResult)}
		s.jobs[jobID] = e
	}
	return e
}

func (c *MemoryCache) Put(ctx context.Context, r *model.CollectorResult) error {
	if r == nil || r.JobID == "" || r.Source == "" {
		return fmt.Errorf("%w: result needs job id and source", domain.ErrInvalidArgument)
	}
	e := c.entry(r.JobID, true)
	cp := cloneResult(r)
	e.mu.Lock()
	e.results[r.Source] = cp
	e.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(ctx context.Context, jobID string, src model.SourceKey) (*model.CollectorResult, error) {
	e := c.entry(jobID, false)
	if e == nil {
		metrics.IncCacheRequest("memory", "miss")
		return nil, domain.ErrNotFound
	}
	e.mu.RLock()
	r := e.results[src]
	e.mu.RUnlock()
	if r == nil {
		metrics.IncCacheRequest("memory", "miss")
		return nil, domain.ErrNotFound
	}
	metrics.IncCacheRequest("memory", "hit")
	return cloneResult(r), nil
}

func (c *MemoryCache) ListSources(ctx context.Context, jobID string) ([]model.SourceKey, error) {
	e := c.entry(jobID, false)
	if e == nil {
		return nil, nil
	}
	e.mu.RLock()
	out := make([]model.SourceKey, 0, len(e.results))
	for k := range e.results {
		out = append(out, k)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (c *MemoryCache) ListJobs(ctx context.Context) ([]string, error) {
	var out []string
	for _, s := range c.shards {
		s.mu.RLock()
		for id := range s.jobs {
			out = append(out, id)
		}
		s.mu.RUnlock()
	}
	sort.Strings(out)
	return out, nil
}

func (c *MemoryCache) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for id, e := range s.jobs {
			if e.createdAt.Before(cutoff) {
				delete(s.jobs, id)
				n++
			}
		}
		s.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return n, err
		}
	}
	metrics.AddCacheEvictions("memory", n)
	return n, nil
}

func (c *MemoryCache) Ping(ctx context.Context) error { return nil }

func cloneResult(r *model.CollectorResult) *model.CollectorResult {
	cp := *r
	cp.Items = append([]model.Item(nil), r.Items...)
	cp.Metadata.Keywords = append([]model.KeywordMetric(nil), r.Metadata.Keywords...)
	return &cp
}
