package adapter

import (
	"context"

	"persona-research/internal/domain/model"
)

// CollectRequest carries what one collector needs for one job.
type CollectRequest struct {
	JobID    string
	Source   model.SourceKey
	URL      string
	Keywords []string
}

// Collector gathers raw material from one external source.
//
// Recoverable conditions (network failures, empty upstream responses, 4xx/5xx)
// are reported inside the returned result with Succeeded=false or
// HasActualData=false. A non-nil error is reserved for programming faults such
// as a missing job id.
type Collector interface {
	Name() string
	Collect(ctx context.Context, req CollectRequest) (*model.CollectorResult, error)
}
