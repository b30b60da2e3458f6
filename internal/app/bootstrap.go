// Package app assembles the research engine from configuration. Both the
// HTTP service and the CLI build on it.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"persona-research/internal/config"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/adapter"
	"persona-research/internal/domain/ports/repository"
	aiAdapters "persona-research/internal/infra/adapters/ai"
	"persona-research/internal/infra/adapters/synthesis"
	"persona-research/internal/infra/api"
	"persona-research/internal/infra/cache"
	"persona-research/internal/infra/collector"
	pg "persona-research/internal/infra/db/postgres"
	"persona-research/internal/infra/db/sqlite"
	red "persona-research/internal/infra/redis"
	"persona-research/internal/infra/sched"
	"persona-research/internal/infra/worker"
	"persona-research/internal/usecase"
)

// Engine is a fully wired research engine plus the resources it owns.
type Engine struct {
	Research *usecase.ResearchUseCase
	Status   *usecase.StatusUseCase
	Pool     *worker.Pool
	Eviction *sched.EvictionWorker
	Checks   map[string]api.Check

	closers []func()
	log     *zerolog.Logger
}

// Build connects storage, cache, collectors and the AI provider described by
// cfg. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (_ *Engine, err error) {
	e := &Engine{Checks: map[string]api.Check{}, log: logger}
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	// ---- Redis (optional) ----
	var redisClient *red.Client
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		e.onClose(func() { _ = redisClient.Close() })
		e.Checks["redis"] = redisClient.Ping
	}

	// ---- Job store ----
	jobs, err := e.jobStore(ctx, cfg, redisClient)
	if err != nil {
		return nil, err
	}

	// ---- Result cache ----
	var results repository.ResultCache
	var locker repository.Locker
	cacheName := "memory"
	if redisClient != nil {
		results = red.NewResultCache(redisClient, cfg.Redis.TTL, logger)
		locker = red.NewLocker(redisClient)
		cacheName = "redis"
	} else {
		results = cache.NewMemoryCache(cfg.Cache.Shards)
	}
	e.Checks["cache"] = results.Ping
	e.Eviction = sched.NewEvictionWorker(cfg.Cache.EvictionInterval, cfg.Cache.Horizon, results, cacheName, logger)

	// ---- Collectors ----
	collectors := e.collectors(cfg.Collectors, logger)

	// ---- AI + synthesizer ----
	tokens := aiAdapters.NewTokenCounter()
	ai, err := newAI(ctx, cfg.AI, tokens, logger)
	if err != nil {
		return nil, err
	}
	synth := synthesis.NewPersonaSynthesizer(
		aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit),
		tokens,
		synthesis.Options{
			Model:          cfg.AI.DefaultModel,
			MaxInputTokens: cfg.AI.MaxInputTokens,
			Timeout:        cfg.AI.SynthesisTimeout,
		},
		logger,
	)

	// ---- Use cases ----
	e.Pool = worker.NewPool(cfg.Orchestrator.Workers, cfg.Orchestrator.QueueSize, logger)
	e.Research = usecase.NewResearchUseCase(jobs, results, collectors, synth, e.Pool, locker,
		usecase.ResearchOptions{JobTimeout: cfg.Orchestrator.JobTimeout}, logger)
	e.Status = usecase.NewStatusUseCase(jobs, results, logger)

	logger.Info().
		Str("db", cfg.Database.Driver).
		Str("cache", cacheName).
		Str("ai", cfg.AI.Provider).
		Str("model", cfg.AI.DefaultModel).
		Int("workers", cfg.Orchestrator.Workers).
		Msg("engine ready")
	return e, nil
}

// Start launches the worker pool and the eviction loop. Both stop when ctx
// is canceled or Close is called.
func (e *Engine) Start(ctx context.Context) {
	e.Pool.Start(ctx)
	go func() { _ = e.Eviction.Run(ctx) }()
}

// Close stops the pool and releases connections in reverse order of creation.
func (e *Engine) Close() {
	if e.Pool != nil {
		e.Pool.Stop()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

func (e *Engine) onClose(fn func()) { e.closers = append(e.closers, fn) }

func (e *Engine) jobStore(ctx context.Context, cfg *config.Config, redisClient *red.Client) (repository.JobRepository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := pg.Connect(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		e.onClose(pool.Close)
		e.Checks["db"] = pool.Ping
		var jobs repository.JobRepository = pg.NewJobRepo(pool, pg.NewTxManager(pool))
		if redisClient != nil {
			jobs = pg.NewJobRepoCacheDecorator(jobs, redisClient, cfg.Redis.TTL)
		}
		return jobs, nil
	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		e.onClose(func() { _ = db.Close() })
		e.Checks["db"] = db.PingContext
		return sqlite.NewJobRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}

func (e *Engine) collectors(cfg config.CollectorsConfig, logger *zerolog.Logger) usecase.Collectors {
	fetcher := collector.NewFetcher(collector.HTTPOptionsFrom(cfg), logger)
	tagger := collector.NewLanguageTagger(cfg.Languages)

	var renderer collector.Renderer
	if cfg.Website.RenderFallback {
		br := collector.NewBrowserRenderer(cfg.UserAgent, cfg.Website.RenderTimeout, logger)
		e.onClose(br.Close)
		renderer = br
	}

	return usecase.Collectors{
		model.SourceWebsite: collector.NewWebsiteCollector(fetcher, renderer, tagger, cfg.Website.MaxItems, logger),
		model.SourceMarketplace: collector.NewMarketplaceCollector(fetcher, tagger,
			cfg.Marketplace.MaxReviews, cfg.Marketplace.MaxPages, logger),
		model.SourceDiscussion: collector.NewDiscussionCollector(fetcher, tagger, cfg.Discussion.BaseURL,
			cfg.Discussion.MaxPostsPerKeyword, cfg.Discussion.MaxCommentsPerPost, logger),
		model.SourceVideo: collector.NewVideoCollector(fetcher, tagger, cfg.Video.BaseURL, cfg.Video.APIKey,
			cfg.Video.MaxVideosPerKeyword, cfg.Video.MaxCommentsPerVideo, logger),
	}
}

func newAI(ctx context.Context, cfg config.AIConfig, tokens *aiAdapters.TokenCounter, logger *zerolog.Logger) (adapter.AIServiceAdapter, error) {
	openai := func() (adapter.AIServiceAdapter, error) {
		a, err := aiAdapters.NewOpenAIAdapter(cfg.OpenAIKey, cfg.OpenAIBaseURL, cfg.DefaultModel, cfg.MaxOutputTokens, tokens)
		if err != nil {
			return nil, fmt.Errorf("openai adapter: %w", err)
		}
		return a, nil
	}
	gemini := func() (adapter.AIServiceAdapter, error) {
		a, err := aiAdapters.NewGeminiAdapter(ctx, cfg.GeminiKey, cfg.GeminiURL, cfg.DefaultModel, cfg.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini adapter: %w", err)
		}
		return a, nil
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return openai()
	case "gemini":
		return gemini()
	case "multi":
		providers := map[string]adapter.AIServiceAdapter{}
		def := ""
		if cfg.GeminiKey != "" {
			a, err := gemini()
			if err != nil {
				return nil, err
			}
			providers["gemini"], def = a, "gemini"
		}
		if cfg.OpenAIKey != "" {
			a, err := openai()
			if err != nil {
				return nil, err
			}
			providers["openai"], def = a, "openai"
		}
		return aiAdapters.NewMultiAIAdapter(def, providers, cfg.ModelProviders), nil
	case "noop":
		logger.Warn().Msg("no AI provider configured; personas will be offline outlines")
		return aiAdapters.NewNoopAIAdapter(logger), nil
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
