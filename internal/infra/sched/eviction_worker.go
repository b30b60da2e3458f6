package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"persona-research/internal/domain/ports/repository"
	"persona-research/internal/infra/metrics"
)

// EvictionWorker periodically drops cached results of jobs older than the
// retention horizon.
type EvictionWorker struct {
	interval  time.Duration
	horizon   time.Duration
	cache     repository.ResultCache
	cacheName string
	log       *zerolog.Logger
	now       func() time.Time
}

func NewEvictionWorker(interval, horizon time.Duration, cache repository.ResultCache, cacheName string, logger *zerolog.Logger) *EvictionWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if horizon <= 0 {
		horizon = 24 * time.Hour
	}
	l := logger.With().Str("component", "EvictionWorker").Logger()
	return &EvictionWorker{
		interval:  interval,
		horizon:   horizon,
		cache:     cache,
		cacheName: cacheName,
		log:       &l,
		now:       time.Now,
	}
}

func (w *EvictionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("horizon", w.horizon).Msg("Starting eviction worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping eviction worker")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one eviction pass and returns the number of jobs dropped.
func (w *EvictionWorker) Sweep(ctx context.Context) int {
	n, err := w.cache.EvictOlderThan(ctx, w.now().Add(-w.horizon))
	if err != nil {
		w.log.Error().Err(err).Msg("eviction sweep failed")
		return 0
	}
	if n > 0 {
		metrics.AddCacheEvictions(w.cacheName, n)
		w.log.Info().Int("count", n).Msg("evicted cached job results")
	}
	return n
}
