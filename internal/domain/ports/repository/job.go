package repository

import (
	"context"

	"persona-research/internal/domain/model"
)

type JobRepository interface {
	// Save creates or fully overwrites a job record.
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Job, error)
	// CompareAndSwap persists job only when the stored status still equals
	// from; otherwise it returns domain.ErrInvalidTransition.
	CompareAndSwap(ctx context.Context, job *model.Job, from model.JobStatus) error
	// ListRecent returns up to limit jobs, newest first.
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.Job, error)
	Ping(ctx context.Context) error
}
