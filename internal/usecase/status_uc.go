package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"persona-research/internal/domain"
	"persona-research/internal/domain/classify"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
	portuc "persona-research/internal/domain/ports/usecase"
)

var _ portuc.StatusReporter = (*StatusUseCase)(nil)

// StatusUseCase builds status and debug views from the job record and the
// result cache. It only reads.
type StatusUseCase struct {
	jobs  repository.JobRepository
	cache repository.ResultCache
	log   *zerolog.Logger
}

func NewStatusUseCase(jobs repository.JobRepository, cache repository.ResultCache, logger *zerolog.Logger) *StatusUseCase {
	l := logger.With().Str("component", "status-uc").Logger()
	return &StatusUseCase{jobs: jobs, cache: cache, log: &l}
}

func (uc *StatusUseCase) JobStatus(ctx context.Context, jobID string) (*model.JobStatusView, error) {
	view, _, err := uc.build(ctx, jobID)
	return view, err
}

// Debug returns the status view together with the raw cached results.
// Cache reads hand out copies, so callers may not affect stored state.
func (uc *StatusUseCase) Debug(ctx context.Context, jobID string) (*model.JobStatusView, map[model.SourceKey]*model.CollectorResult, error) {
	return uc.build(ctx, jobID)
}

func (uc *StatusUseCase) build(ctx context.Context, jobID string) (*model.JobStatusView, map[model.SourceKey]*model.CollectorResult, error) {
	if jobID == "" {
		return nil, nil, domain.ErrMissingJobID
	}
	job, err := uc.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return nil, nil, err
	}

	view := &model.JobStatusView{
		JobID:       job.ID,
		Status:      job.Status,
		Error:       job.LastError,
		CreatedAt:   job.CreatedAt,
		CompletedAt: job.CompletedAt,
	}
	raw := make(map[model.SourceKey]*model.CollectorResult)
	processing := job.Status == model.JobStatusProcessing

	for _, src := range job.KnownSources() {
		var readErr error
		r, err := uc.cache.Get(ctx, job.ID, src)
		switch {
		case err == nil:
			raw[src] = r
		case errors.Is(err, domain.ErrNotFound):
			r = nil
		case errors.Is(err, domain.ErrCacheUnavailable):
			return nil, nil, fmt.Errorf("read %s result: %w", src, err)
		default:
			// an unreadable entry renders like a missing one
			uc.log.Warn().Err(err).Str("job_id", job.ID).Str("source", string(src)).Msg("skip unreadable result")
			r, readErr = nil, err
		}

		inFlight := processing && job.WasDispatched(src)
		if src == model.SourcePersona {
			inFlight = processing
		}
		st := sourceStatus(src, r, inFlight)
		if readErr != nil {
			st.Error = "unreadable cached result: " + readErr.Error()
		}
		view.Sources = append(view.Sources, st)
	}
	return view, raw, nil
}

func sourceStatus(src model.SourceKey, r *model.CollectorResult, inFlight bool) model.SourceStatus {
	st := model.SourceStatus{
		Source: src,
		Status: classify.ClassifyInFlight(r, inFlight),
	}
	if r == nil {
		return st
	}
	st.ItemCount = r.ItemCount()
	st.ExtractionMethod = r.ExtractionMethod
	st.Error = r.Error
	st.Keywords = append([]model.KeywordMetric(nil), r.Metadata.Keywords...)
	return st
}
