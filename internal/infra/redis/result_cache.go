package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"persona-research/internal/domain"
	"persona-research/internal/domain/classify"
	"persona-research/internal/domain/model"
	"persona-research/internal/domain/ports/repository"
	"persona-research/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ repository.ResultCache = (*ResultCache)(nil)

const (
	resultsKeyPrefix = "research:results:"
	jobsIndexKey     = "research:jobs"
)

// ResultCache keeps one hash per job (field = source key, value = JSON
// result) and a sorted index of job ids scored by first write time.
type ResultCache struct {
	cli    RedisClient
	ttl    time.Duration
	log    zerolog.Logger
	nowFun func() time.Time
}

func NewResultCache(cli RedisClient, ttl time.Duration, logger *zerolog.Logger) *ResultCache {
	return &ResultCache{
		cli:    cli,
		ttl:    ttl,
		log:    logger.With().Str("component", "RedisResultCache").Logger(),
		nowFun: time.Now,
	}
}

func resultsKey(jobID string) string { return resultsKeyPrefix + jobID }

func (c *ResultCache) Put(ctx context.Context, r *model.CollectorResult) error {
	if r == nil || r.JobID == "" || r.Source == "" {
		return fmt.Errorf("%w: result needs job id and source", domain.ErrInvalidArgument)
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := resultsKey(r.JobID)
	if err := c.cli.HSet(ctx, key, string(r.Source), b); err != nil {
		return fmt.Errorf("%w: hset %s: %v", domain.ErrCacheUnavailable, key, err)
	}
	if err := c.cli.ZAddNX(ctx, jobsIndexKey, float64(c.nowFun().Unix()), r.JobID); err != nil {
		return fmt.Errorf("%w: index job: %v", domain.ErrCacheUnavailable, err)
	}
	if c.ttl > 0 {
		if err := c.cli.Expire(ctx, key, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("job_id", r.JobID).Msg("failed to set result ttl")
		}
	}
	return nil
}

// Get decodes the stored record through the legacy-shape adapter so results
// written without an explicit data flag still classify correctly.
func (c *ResultCache) Get(ctx context.Context, jobID string, src model.SourceKey) (*model.CollectorResult, error) {
	val, err := c.cli.HGet(ctx, resultsKey(jobID), string(src))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncCacheRequest("redis", "miss")
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: hget: %v", domain.ErrCacheUnavailable, err)
	}
	metrics.IncCacheRequest("redis", "hit")
	res, err := classify.DecodeResult(jobID, src, []byte(val))
	if err != nil {
		c.log.Warn().Err(err).Str("job_id", jobID).Str("source", string(src)).Msg("unreadable cached result")
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return res, nil
}

func (c *ResultCache) ListSources(ctx context.Context, jobID string) ([]model.SourceKey, error) {
	fields, err := c.cli.HKeys(ctx, resultsKey(jobID))
	if err != nil {
		return nil, fmt.Errorf("%w: hkeys: %v", domain.ErrCacheUnavailable, err)
	}
	out := make([]model.SourceKey, 0, len(fields))
	for _, f := range fields {
		out = append(out, model.SourceKey(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (c *ResultCache) ListJobs(ctx context.Context) ([]string, error) {
	ids, err := c.cli.ZRangeByScore(ctx, jobsIndexKey, "-inf", "+inf")
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", domain.ErrCacheUnavailable, err)
	}
	return ids, nil
}

func (c *ResultCache) EvictOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	// exclusive upper bound
	upper := "(" + strconv.FormatInt(cutoff.Unix(), 10)
	ids, err := c.cli.ZRangeByScore(ctx, jobsIndexKey, "-inf", upper)
	if err != nil {
		return 0, fmt.Errorf("%w: scan index: %v", domain.ErrCacheUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultsKey(id)
	}
	if err := c.cli.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("%w: del: %v", domain.ErrCacheUnavailable, err)
	}
	if err := c.cli.ZRem(ctx, jobsIndexKey, ids...); err != nil {
		return 0, fmt.Errorf("%w: zrem: %v", domain.ErrCacheUnavailable, err)
	}
	metrics.AddCacheEvictions("redis", len(ids))
	return len(ids), nil
}

func (c *ResultCache) Ping(ctx context.Context) error { return c.cli.Ping(ctx) }
