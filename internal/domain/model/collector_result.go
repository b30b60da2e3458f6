package model

import (
	"fmt"
	"time"

	"persona-research/internal/domain"
)

// Item is one extracted record: a review, comment, post, page fragment or
// the synthesized persona itself.
type Item struct {
	Text        string     `json:"text"`
	Kind        string     `json:"kind,omitempty"`
	URL         string     `json:"url,omitempty"`
	Author      string     `json:"author,omitempty"`
	Rating      float64    `json:"rating,omitempty"`
	Keyword     string     `json:"keyword,omitempty"`
	Language    string     `json:"language,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type ResultMetadata struct {
	StartedAt  time.Time         `json:"startedAt"`
	FinishedAt time.Time         `json:"finishedAt"`
	ItemCount  int               `json:"itemCount"`
	Pages      int               `json:"pages,omitempty"`
	Keywords   []KeywordMetric   `json:"keywords,omitempty"`
	Languages  map[string]int    `json:"languages,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// CollectorResult is the single outcome a collector records for (JobID, Source).
type CollectorResult struct {
	JobID            string         `json:"jobId"`
	Source           SourceKey      `json:"sourceKey"`
	Succeeded        bool           `json:"succeeded"`
	HasActualData    bool           `json:"hasActualData"`
	Items            []Item         `json:"items"`
	ExtractionMethod string         `json:"extractionMethod"`
	Error            string         `json:"error,omitempty"`
	Metadata         ResultMetadata `json:"metadata"`
}

// NewSucceededResult records a completed collection. Data presence follows
// the item list, so an empty list yields a no-data result.
func NewSucceededResult(jobID string, src SourceKey, method string, items []Item, started time.Time) *CollectorResult {
	now := time.Now().UTC()
	return &CollectorResult{
		JobID:            jobID,
		Source:           src,
		Succeeded:        true,
		HasActualData:    len(items) > 0,
		Items:            items,
		ExtractionMethod: method,
		Metadata: ResultMetadata{
			StartedAt:  started.UTC(),
			FinishedAt: now,
			ItemCount:  len(items),
		},
	}
}

// NewFailedResult records a failed collection. Failed results never carry data.
func NewFailedResult(jobID string, src SourceKey, method string, cause error, started time.Time) *CollectorResult {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return &CollectorResult{
		JobID:            jobID,
		Source:           src,
		ExtractionMethod: method,
		Error:            msg,
		Metadata: ResultMetadata{
			StartedAt:  started.UTC(),
			FinishedAt: time.Now().UTC(),
		},
	}
}

// ItemCount is the number of items, falling back to the recorded count for
// results that carry only a tally.
func (r *CollectorResult) ItemCount() int {
	if r == nil {
		return 0
	}
	if len(r.Items) > 0 {
		return len(r.Items)
	}
	return r.Metadata.ItemCount
}

// Validate checks the data-presence invariants.
func (r *CollectorResult) Validate() error {
	if r == nil {
		return domain.ErrInvalidArgument
	}
	if r.JobID == "" || !r.Source.Valid() {
		return fmt.Errorf("%w: result needs a job id and a known source, got %q/%q", domain.ErrInvalidArgument, r.JobID, r.Source)
	}
	if !r.Succeeded && r.HasActualData {
		return fmt.Errorf("%w: failed result for %s claims data", domain.ErrInvalidArgument, r.Source)
	}
	if r.HasActualData && len(r.Items) == 0 {
		return fmt.Errorf("%w: result for %s claims data without items", domain.ErrInvalidArgument, r.Source)
	}
	return nil
}
