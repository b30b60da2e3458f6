package collector

import (
	"sync"
	"time"

	"persona-research/internal/domain/model"
	"persona-research/internal/infra/metrics"
)

// KeywordTracker accumulates one KeywordMetric per keyword searched by a
// multi-keyword collector.
type KeywordTracker struct {
	source string

	mu    sync.Mutex
	order []string
	byKW  map[string]*keywordRun
}

type keywordRun struct {
	items    int
	searched int
	err      error
}

func NewKeywordTracker(source model.SourceKey) *KeywordTracker {
	return &KeywordTracker{source: string(source), byKW: make(map[string]*keywordRun)}
}

func (t *KeywordTracker) run(kw string) *keywordRun {
	r := t.byKW[kw]
	if r == nil {
		r = &keywordRun{}
		t.byKW[kw] = r
		t.order = append(t.order, kw)
	}
	return r
}

// Begin registers a keyword so it is reported even if nothing else is recorded.
func (t *KeywordTracker) Begin(kw string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run(kw)
}

func (t *KeywordTracker) AddItems(kw string, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run(kw).items += n
}

// Searched counts a sub-resource (thread, video) examined for the keyword.
func (t *KeywordTracker) Searched(kw string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.run(kw).searched++
}

// Fail records the first error seen for the keyword.
func (t *KeywordTracker) Fail(kw string, err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if r := t.run(kw); r.err == nil {
		r.err = err
	}
}

// Metrics returns the per-keyword outcomes in first-seen order.
func (t *KeywordTracker) Metrics() []model.KeywordMetric {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.KeywordMetric, 0, len(t.order))
	for _, kw := range t.order {
		r := t.byKW[kw]
		m := model.KeywordMetric{
			Keyword:              kw,
			ItemsFound:           r.items,
			SubResourcesSearched: r.searched,
			Status:               model.StatusFor(r.items, r.err),
		}
		if r.err != nil {
			m.Error = r.err.Error()
		}
		out = append(out, m)
	}
	return out
}

// Result folds the keyword outcomes into one CollectorResult: data when any
// keyword found items, failure only when every keyword failed.
func (t *KeywordTracker) Result(jobID string, src model.SourceKey, method string, items []model.Item, started time.Time) *model.CollectorResult {
	kms := t.Metrics()
	for _, m := range kms {
		metrics.IncKeywordOutcome(t.source, string(m.Status))
	}
	var res *model.CollectorResult
	if model.AllKeywordsFailed(kms) {
		res = model.NewFailedResult(jobID, src, method, firstKeywordError(kms), started)
	} else {
		res = model.NewSucceededResult(jobID, src, method, items, started)
		res.HasActualData = model.AnyKeywordData(kms) && len(items) > 0
	}
	res.Metadata.Keywords = kms
	return res
}

type keywordError struct{ msg string }

func (e keywordError) Error() string { return e.msg }

func firstKeywordError(kms []model.KeywordMetric) error {
	for _, m := range kms {
		if m.Error != "" {
			return keywordError{msg: "all keywords failed: " + m.Keyword + ": " + m.Error}
		}
	}
	return keywordError{msg: "all keywords failed"}
}
