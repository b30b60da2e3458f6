package usecase

import (
	"context"

	"persona-research/internal/domain/model"
)

// ResearchManager is the job-facing surface consumed by the HTTP API and CLI.
type ResearchManager interface {
	StartJob(ctx context.Context, in model.UserInputs) (string, error)
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*model.Job, error)
}

// StatusReporter builds read-only status views.
type StatusReporter interface {
	JobStatus(ctx context.Context, jobID string) (*model.JobStatusView, error)
	Debug(ctx context.Context, jobID string) (*model.JobStatusView, map[model.SourceKey]*model.CollectorResult, error)
}
