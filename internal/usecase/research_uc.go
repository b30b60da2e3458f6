package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"persona-research/internal/domain"
	"persona-research/internal/domain/classify"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/domain/ports/repository"
	portuc "persona-research/internal/domain/ports/usecase"
	"persona-research/internal/infra/logging"
	"persona-research/internal/infra/metrics"
)

// Compile-time check
var _ portuc.ResearchManager = (*ResearchUseCase)(nil)

const (
	defaultJobTimeout = 10 * time.Minute
	finalizeLockTTL   = 5 * time.Minute
	cacheWriteTimeout = 10 * time.Second
	defaultListLimit  = 20
	maxListLimit      = 100
)

// Scheduler accepts background work. *worker.Pool satisfies it.
type Scheduler interface {
	Submit(task func(ctx context.Context) error) error
}

// Collectors maps a source to the collector that fills it. Competitor slots
// fall back to the website collector.
type Collectors map[model.SourceKey]adapter.Collector

func (c Collectors) For(src model.SourceKey) adapter.Collector {
	if col := c[src]; col != nil {
		return col
	}
	if _, ok := src.CompetitorIndex(); ok {
		return c[model.SourceWebsite]
	}
	return nil
}

type ResearchOptions struct {
	JobTimeout time.Duration
}

// ResearchUseCase owns the job lifecycle: it persists jobs, fans out to the
// collectors, and finalizes each job exactly once through the synthesizer.
type ResearchUseCase struct {
	jobs       repository.JobRepository
	cache      repository.ResultCache
	collectors Collectors
	synth      adapter.Synthesizer
	sched      Scheduler
	locker     repository.Locker // optional, guards Finalize across processes
	jobTimeout time.Duration
	log        *zerolog.Logger
	now        func() time.Time

	finalizing sync.Map // jobID -> struct{}
}

func NewResearchUseCase(
	jobs repository.JobRepository,
	cache repository.ResultCache,
	collectors Collectors,
	synth adapter.Synthesizer,
	sched Scheduler,
	locker repository.Locker,
	opts ResearchOptions,
	logger *zerolog.Logger,
) *ResearchUseCase {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = defaultJobTimeout
	}
	l := logger.With().Str("component", "research-uc").Logger()
	return &ResearchUseCase{
		jobs:       jobs,
		cache:      cache,
		collectors: collectors,
		synth:      synth,
		sched:      sched,
		locker:     locker,
		jobTimeout: opts.JobTimeout,
		log:        &l,
		now:        time.Now,
	}
}

// StartJob validates and persists a queued job, then schedules it.
func (uc *ResearchUseCase) StartJob(ctx context.Context, in model.UserInputs) (string, error) {
	job, err := model.NewJob(in)
	if err != nil {
		return "", err
	}
	if err := uc.jobs.Save(ctx, repository.NoTX, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}
	metrics.IncResearchJob(string(model.JobStatusQueued))

	id := job.ID
	if err := uc.sched.Submit(func(ctx context.Context) error { return uc.Run(ctx, id) }); err != nil {
		uc.markFailed(ctx, job, err)
		return "", fmt.Errorf("schedule job %s: %w", id, err)
	}
	uc.log.Info().Str("job_id", id).Strs("keywords", job.Inputs.Keywords).Msg("job queued")
	return id, nil
}

// markFailed moves a non-terminal job to failed with cause recorded. It is
// best effort: a lost race or a store error is only logged.
func (uc *ResearchUseCase) markFailed(ctx context.Context, job *model.Job, cause error) bool {
	from := job.Status
	job.LastError = cause.Error()
	if err := job.Transition(model.JobStatusFailed, uc.now().UTC()); err != nil {
		return false
	}
	if err := uc.jobs.CompareAndSwap(ctx, job, from); err != nil {
		uc.log.Error().Err(err).Str("job_id", job.ID).Str("from", string(from)).Msg("mark job failed")
		return false
	}
	metrics.IncResearchJob(string(model.JobStatusFailed))
	return true
}

// failStranded fails a job whose run aborted on an infrastructure error so
// it does not stay queued or processing.
func (uc *ResearchUseCase) failStranded(ctx context.Context, jobID string, cause error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	log := logging.With(logging.WithJobID(ctx, jobID), uc.log)

	job, err := uc.jobs.FindByID(wctx, repository.NoTX, jobID)
	if err != nil {
		log.Error().Err(err).AnErr("cause", cause).Msg("load stranded job")
		return
	}
	if job.Status.IsTerminal() {
		return
	}
	wasProcessing := job.Status == model.JobStatusProcessing
	if !uc.markFailed(wctx, job, cause) {
		return
	}
	if wasProcessing {
		uc.store(wctx, model.NewFailedResult(jobID, model.SourcePersona, "synthesis", cause, uc.now()))
	}
	log.Warn().Err(cause).Msg("job failed after run error")
}

// Run drives one job from queued to a terminal status.
func (uc *ResearchUseCase) Run(ctx context.Context, jobID string) error {
	metrics.JobStarted()
	defer metrics.JobFinished()

	if err := uc.Dispatch(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// another runner owns the job
			uc.log.Debug().Str("job_id", jobID).Err(err).Msg("dispatch skipped")
			return nil
		}
		uc.failStranded(ctx, jobID, err)
		return err
	}
	err := uc.Finalize(ctx, jobID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrAlreadyFinalizing), errors.Is(err, domain.ErrJobNotProcessing):
		uc.log.Debug().Str("job_id", jobID).Err(err).Msg("finalize skipped")
		return nil
	}
	uc.failStranded(ctx, jobID, err)
	return err
}

// Dispatch moves the job to processing and runs every applicable collector,
// returning once all of them resolved or the job timeout elapsed.
func (uc *ResearchUseCase) Dispatch(ctx context.Context, jobID string) error {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, uc.log)

	job, err := uc.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if err := job.Transition(model.JobStatusProcessing, uc.now().UTC()); err != nil {
		return err
	}
	job.Dispatched = job.ApplicableSources()
	if err := uc.jobs.CompareAndSwap(ctx, job, model.JobStatusQueued); err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	log.Info().Int("sources", len(job.Dispatched)).Msg("dispatching collectors")

	jctx, cancel := context.WithTimeout(ctx, uc.jobTimeout)
	defer cancel()

	// Core sources hit unrelated hosts and run in parallel. Competitor pages
	// share the website collector and run one after another.
	var g errgroup.Group
	var competitors []model.SourceKey
	for _, src := range job.Dispatched {
		if _, ok := src.CompetitorIndex(); ok {
			competitors = append(competitors, src)
			continue
		}
		src := src
		g.Go(func() error {
			uc.collect(jctx, job, src)
			return nil
		})
	}
	if len(competitors) > 0 {
		g.Go(func() error {
			for _, src := range competitors {
				if jctx.Err() != nil {
					return nil
				}
				uc.collect(jctx, job, src)
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-jctx.Done():
		log.Warn().Dur("timeout", uc.jobTimeout).Msg("job timed out, finalizing with available results")
		uc.markUnresolved(ctx, job)
	}
	return nil
}

// collect runs one collector and records its outcome. It never returns an
// error: every failure becomes a failed result in the cache.
func (uc *ResearchUseCase) collect(ctx context.Context, job *model.Job, src model.SourceKey) {
	ctx = logging.WithSource(ctx, string(src))
	log := logging.With(ctx, uc.log)
	started := uc.now()

	var res *model.CollectorResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				res = model.NewFailedResult(job.ID, src, "panic", fmt.Errorf("collector panic: %v", r), started)
			}
		}()
		res = uc.runCollector(ctx, job, src, started)
	}()

	if err := res.Validate(); err != nil {
		log.Warn().Err(err).Msg("collector returned inconsistent result")
	}
	uc.store(ctx, res)
	log.Info().
		Str("status", string(classify.Classify(res))).
		Int("items", res.ItemCount()).
		Str("method", res.ExtractionMethod).
		Dur("took", time.Since(started)).
		Msg("source resolved")
}

func (uc *ResearchUseCase) runCollector(ctx context.Context, job *model.Job, src model.SourceKey, started time.Time) *model.CollectorResult {
	c := uc.collectors.For(src)
	if c == nil {
		return model.NewFailedResult(job.ID, src, "none", errors.New("no collector configured"), started)
	}
	res, err := c.Collect(ctx, adapter.CollectRequest{
		JobID:    job.ID,
		Source:   src,
		URL:      sourceURL(job.Inputs, src),
		Keywords: job.Inputs.Keywords,
	})
	if err != nil {
		return model.NewFailedResult(job.ID, src, c.Name(), err, started)
	}
	if res == nil {
		return model.NewFailedResult(job.ID, src, c.Name(), errors.New("collector returned no result"), started)
	}
	res.JobID, res.Source = job.ID, src
	return res
}

func sourceURL(in model.UserInputs, src model.SourceKey) string {
	switch src {
	case model.SourceWebsite:
		return in.WebsiteURL
	case model.SourceMarketplace:
		return in.MarketplaceURL
	}
	if n, ok := src.CompetitorIndex(); ok && n <= len(in.CompetitorURLs) {
		return in.CompetitorURLs[n-1]
	}
	return ""
}

// store writes a result even after the job context was cancelled so late
// collectors still leave a record for the debug view.
func (uc *ResearchUseCase) store(ctx context.Context, res *model.CollectorResult) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := uc.cache.Put(wctx, res); err != nil {
		logging.With(ctx, uc.log).Error().Err(err).Msg("cache result")
	}
}

// markUnresolved records a timeout failure for dispatched sources that have
// not written anything yet.
func (uc *ResearchUseCase) markUnresolved(ctx context.Context, job *model.Job) {
	for _, src := range job.Dispatched {
		_, err := uc.cache.Get(ctx, job.ID, src)
		if err == nil || !errors.Is(err, domain.ErrNotFound) {
			continue
		}
		name := "none"
		if c := uc.collectors.For(src); c != nil {
			name = c.Name()
		}
		res := model.NewFailedResult(job.ID, src, name, fmt.Errorf("timed out after %s", uc.jobTimeout), job.UpdatedAt)
		uc.store(logging.WithSource(ctx, string(src)), res)
	}
}

// Finalize synthesizes the persona from cached results and moves the job to
// completed or failed. Only one Finalize per job runs to completion; others
// get domain.ErrAlreadyFinalizing or domain.ErrJobNotProcessing.
func (uc *ResearchUseCase) Finalize(ctx context.Context, jobID string) error {
	ctx = logging.WithJobID(ctx, jobID)
	log := logging.With(ctx, uc.log)

	if _, busy := uc.finalizing.LoadOrStore(jobID, struct{}{}); busy {
		return domain.ErrAlreadyFinalizing
	}
	defer uc.finalizing.Delete(jobID)

	if uc.locker != nil {
		token, err := uc.locker.TryLock(ctx, "finalize:"+jobID, finalizeLockTTL)
		if err != nil {
			return err
		}
		defer func() {
			if err := uc.locker.Unlock(context.WithoutCancel(ctx), "finalize:"+jobID, token); err != nil {
				log.Warn().Err(err).Msg("release finalize lock")
			}
		}()
	}

	job, err := uc.jobs.FindByID(ctx, repository.NoTX, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != model.JobStatusProcessing {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, domain.ErrJobNotProcessing)
	}

	in := model.SynthesisInput{
		JobID:    job.ID,
		Keywords: job.Inputs.Keywords,
		Website:  job.Inputs.WebsiteURL,
		Results:  uc.snapshot(ctx, job),
	}

	started := uc.now()
	doc, synthErr := uc.synth.Synthesize(ctx, in)
	now := uc.now().UTC()
	if synthErr != nil {
		log.Error().Err(synthErr).Msg("synthesis failed")
		uc.store(ctx, model.NewFailedResult(job.ID, model.SourcePersona, "synthesis", synthErr, started))
		job.LastError = synthErr.Error()
		_ = job.Transition(model.JobStatusFailed, now)
	} else {
		uc.store(ctx, personaResult(job.ID, doc, started))
		job.Persona = doc
		_ = job.Transition(model.JobStatusCompleted, now)
	}

	if err := uc.jobs.CompareAndSwap(ctx, job, model.JobStatusProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return fmt.Errorf("job %s: %w", jobID, domain.ErrAlreadyFinalizing)
		}
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}

	metrics.IncResearchJob(string(job.Status))
	metrics.ObserveResearchJob(string(job.Status), now.Sub(job.CreatedAt))
	log.Info().Str("status", string(job.Status)).Msg("job finalized")
	return nil
}

// snapshot reads every collector result for the job once. Missing and
// unreadable entries are left out.
func (uc *ResearchUseCase) snapshot(ctx context.Context, job *model.Job) map[model.SourceKey]*model.CollectorResult {
	out := make(map[model.SourceKey]*model.CollectorResult, len(job.Dispatched))
	for _, src := range job.KnownSources() {
		if src == model.SourcePersona {
			continue
		}
		r, err := uc.cache.Get(ctx, job.ID, src)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logging.With(ctx, uc.log).Warn().Err(err).Str("source", string(src)).Msg("read cached result")
			}
			continue
		}
		out[src] = r
	}
	return out
}

func personaResult(jobID string, doc *model.PersonaDocument, started time.Time) *model.CollectorResult {
	res := model.NewSucceededResult(jobID, model.SourcePersona, "synthesis", []model.Item{{
		Text: doc.Content,
		Kind: "persona",
	}}, started)
	res.Metadata.Extra = map[string]string{
		"confidence": string(doc.Confidence),
		"quality":    fmt.Sprintf("%.2f", doc.Quality),
		"model":      doc.Model,
	}
	return res
}

func (uc *ResearchUseCase) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, domain.ErrMissingJobID
	}
	return uc.jobs.FindByID(ctx, repository.NoTX, jobID)
}

func (uc *ResearchUseCase) ListJobs(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return uc.jobs.ListRecent(ctx, repository.NoTX, limit)
}
