//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"persona-research/internal/domain"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/domain/ports/repository"
)

// memJobRepo is an in-memory JobRepository that stores copies.
type memJobRepo struct {
	mu      sync.Mutex
	store   map[string]*model.Job
	saveErr error
	// casErr, when set, can reject a compare-and-swap before it applies.
	casErr func(job *model.Job, from model.JobStatus) error
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.Job)}
}

func copyJob(j *model.Job) *model.Job {
	cp := *j
	cp.Dispatched = append([]model.SourceKey(nil), j.Dispatched...)
	cp.Inputs.Keywords = append([]string(nil), j.Inputs.Keywords...)
	cp.Inputs.CompetitorURLs = append([]string(nil), j.Inputs.CompetitorURLs...)
	return &cp
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[job.ID] = copyJob(job)
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyJob(j), nil
}

func (m *memJobRepo) CompareAndSwap(ctx context.Context, job *model.Job, from model.JobStatus) error {
	if m.casErr != nil {
		if err := m.casErr(job, from); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[job.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Status != from {
		return domain.ErrInvalidTransition
	}
	m.store[job.ID] = copyJob(job)
	return nil
}

func (m *memJobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Job, 0, len(m.store))
	for _, j := range m.store {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) Ping(ctx context.Context) error { return nil }

// fakeCollector delegates to CollectFunc and records requests.
type fakeCollector struct {
	name        string
	CollectFunc func(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error)

	mu   sync.Mutex
	reqs []adapter.CollectRequest
}

func (f *fakeCollector) Name() string { return f.name }

func (f *fakeCollector) Collect(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.CollectFunc(ctx, req)
}

func (f *fakeCollector) calls() []adapter.CollectRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]adapter.CollectRequest(nil), f.reqs...)
}

func returning(items ...model.Item) func(context.Context, adapter.CollectRequest) (*model.CollectorResult, error) {
	return func(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
		return model.NewSucceededResult(req.JobID, req.Source, "fake", items, time.Now()), nil
	}
}

func failing(msg string) func(context.Context, adapter.CollectRequest) (*model.CollectorResult, error) {
	return func(ctx context.Context, req adapter.CollectRequest) (*model.CollectorResult, error) {
		return model.NewFailedResult(req.JobID, req.Source, "fake", errors.New(msg), time.Now()), nil
	}
}

type fakeSynth struct {
	SynthesizeFunc func(ctx context.Context, in model.SynthesisInput) (*model.PersonaDocument, error)

	mu    sync.Mutex
	calls int
	last  model.SynthesisInput
}

func (f *fakeSynth) Synthesize(ctx context.Context, in model.SynthesisInput) (*model.PersonaDocument, error) {
	f.mu.Lock()
	f.calls++
	f.last = in
	f.mu.Unlock()
	return f.SynthesizeFunc(ctx, in)
}

func okSynth() *fakeSynth {
	return &fakeSynth{SynthesizeFunc: func(ctx context.Context, in model.SynthesisInput) (*model.PersonaDocument, error) {
		return &model.PersonaDocument{Content: "# Persona", Confidence: model.ConfidenceMedium, SourcesUsed: in.SourcesWithData(model.CoreSources)}, nil
	}}
}

// captureScheduler keeps submitted tasks so tests run them synchronously.
type captureScheduler struct {
	tasks []func(ctx context.Context) error
	err   error
}

func (s *captureScheduler) Submit(task func(ctx context.Context) error) error {
	if s.err != nil {
		return s.err
	}
	s.tasks = append(s.tasks, task)
	return nil
}

type fakeLocker struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
	unlocked    []string
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return f.TryLockFunc(ctx, key, ttl)
}

func (f *fakeLocker) Unlock(ctx context.Context, key, token string) error {
	f.unlocked = append(f.unlocked, key)
	return nil
}
