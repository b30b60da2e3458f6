//go:build !integration

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
)

func result(job string, src model.SourceKey, items ...string) *model.CollectorResult {
	var list []model.Item
	for _, t := range items {
		list = append(list, model.Item{Text: t})
	}
	return model.NewSucceededResult(job, src, "test", list, time.Now())
}

func TestMemoryCache_PutGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4)

	if _, err := c.Get(ctx, "job-1", model.SourceWebsite); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty cache, got %v", err)
	}

	if err := c.Put(ctx, result("job-1", model.SourceWebsite, "a")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Put(ctx, result("job-1", model.SourceWebsite, "b", "c")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := c.Get(ctx, "job-1", model.SourceWebsite)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ItemCount() != 2 || got.Items[0].Text != "b" {
		t.Errorf("expected last write to win, got %+v", got.Items)
	}

	got.Items[0].Text = "mutated"
	again, _ := c.Get(ctx, "job-1", model.SourceWebsite)
	if again.Items[0].Text != "b" {
		t.Error("mutating a returned result must not change the cache")
	}

	if err := c.Put(ctx, &model.CollectorResult{Source: model.SourceWebsite}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing job id, got %v", err)
	}
}

func TestMemoryCache_ListSourcesAndJobs(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(2)
	_ = c.Put(ctx, result("job-b", model.SourceVideo))
	_ = c.Put(ctx, result("job-a", model.SourceWebsite, "x"))
	_ = c.Put(ctx, result("job-a", model.SourceDiscussion))

	srcs, _ := c.ListSources(ctx, "job-a")
	if len(srcs) != 2 || srcs[0] != model.SourceDiscussion || srcs[1] != model.SourceWebsite {
		t.Errorf("unexpected sources %v", srcs)
	}
	if srcs, _ := c.ListSources(ctx, "missing"); len(srcs) != 0 {
		t.Errorf("expected no sources for unknown job, got %v", srcs)
	}
	jobs, _ := c.ListJobs(ctx)
	if len(jobs) != 2 || jobs[0] != "job-a" {
		t.Errorf("unexpected jobs %v", jobs)
	}
}

func TestMemoryCache_ConcurrentDistinctKeys(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, src := range model.CoreSources {
			wg.Add(1)
			go func(job string, src model.SourceKey) {
				defer wg.Done()
				_ = c.Put(ctx, result(job, src, "item"))
			}(fmt.Sprintf("job-%d", i), src)
		}
	}
	wg.Wait()

	jobs, _ := c.ListJobs(ctx)
	if len(jobs) != 50 {
		t.Fatalf("expected 50 jobs, got %d", len(jobs))
	}
	for _, j := range jobs {
		srcs, _ := c.ListSources(ctx, j)
		if len(srcs) != len(model.CoreSources) {
			t.Errorf("job %s: expected %d sources, got %v", j, len(model.CoreSources), srcs)
		}
	}
}

func TestMemoryCache_EvictOlderThan(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(4)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	c.now = func() time.Time { return base }
	_ = c.Put(ctx, result("old", model.SourceWebsite))
	c.now = func() time.Time { return base.Add(48 * time.Hour) }
	_ = c.Put(ctx, result("new", model.SourceWebsite))
	// a later write does not refresh the job's age
	_ = c.Put(ctx, result("old", model.SourceVideo))

	n, err := c.EvictOlderThan(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}
	jobs, _ := c.ListJobs(ctx)
	if len(jobs) != 1 || jobs[0] != "new" {
		t.Errorf("expected only the new job to survive, got %v", jobs)
	}
}
