package model

import "time"

// ClassifiedStatus is the derived, user-facing state of one source. It is
// computed on demand and never stored.
type ClassifiedStatus string

const (
	StatusNotStarted      ClassifiedStatus = "not_started"
	StatusProcessing      ClassifiedStatus = "processing"
	StatusCompleted       ClassifiedStatus = "completed"
	StatusCompletedNoData ClassifiedStatus = "completed_no_data"
	StatusFailed          ClassifiedStatus = "failed"
)

// SourceStatus is one row of the status view.
type SourceStatus struct {
	Source           SourceKey        `json:"sourceKey"`
	Status           ClassifiedStatus `json:"classifiedStatus"`
	ItemCount        int              `json:"itemCount"`
	ExtractionMethod string           `json:"extractionMethod,omitempty"`
	Error            string           `json:"error,omitempty"`
	Keywords         []KeywordMetric  `json:"keywords,omitempty"`
}

// JobStatusView is the read-only status report for a job.
type JobStatusView struct {
	JobID       string         `json:"jobId"`
	Status      JobStatus      `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Sources     []SourceStatus `json:"sources"`
}
