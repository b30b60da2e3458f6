// Package collector implements the external-source collectors of a research
// job and the plumbing they share: polite HTTP sessions, pagination rules,
// per-keyword bookkeeping and item language tagging.
package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"persona-research/internal/config"
	"persona-research/internal/infra/metrics"
)

const maxBodyBytes = 8 << 20

// StatusError is an upstream non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s responded with status %d", e.URL, e.Code)
}

// IsStatus reports whether err is an upstream response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// HTTPOptions tunes outbound pacing.
type HTTPOptions struct {
	UserAgent      string
	Timeout        time.Duration
	CourtesyDelay  time.Duration
	RateLimitDelay time.Duration
	MaxRetries     int
}

func HTTPOptionsFrom(cfg config.CollectorsConfig) HTTPOptions {
	return HTTPOptions{
		UserAgent:      cfg.UserAgent,
		Timeout:        cfg.HTTPTimeout,
		CourtesyDelay:  cfg.CourtesyDelay,
		RateLimitDelay: cfg.RateLimitDelay,
		MaxRetries:     cfg.MaxRetries,
	}
}

// Fetcher issues GET requests on behalf of collectors. It is shared; pacing
// state lives in the Sessions it hands out.
type Fetcher struct {
	client *http.Client
	opts   HTTPOptions
	log    zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewFetcher(opts HTTPOptions, logger *zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		log:    logger.With().Str("component", "CollectorFetcher").Logger(),
		sleep:  sleepCtx,
	}
}

// Session returns a paced view of the fetcher for one collector run: every
// call after the first waits the courtesy delay.
func (f *Fetcher) Session(collector string) *Session {
	return &Session{f: f, collector: collector}
}

type Session struct {
	f         *Fetcher
	collector string

	mu    sync.Mutex
	calls int
}

// Calls is the number of outbound requests issued, retries included.
func (s *Session) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Get fetches url, honouring the courtesy delay and retrying 429 responses
// after a backoff. A non-2xx final response is returned as *StatusError.
func (s *Session) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	attempt := 0
	for {
		if err := s.pace(ctx); err != nil {
			return nil, err
		}
		body, retryAfter, err := s.do(ctx, url, header)
		if err == nil {
			metrics.IncUpstreamRequest(s.collector, "ok")
			return body, nil
		}
		if !IsStatus(err, http.StatusTooManyRequests) {
			return nil, err
		}
		metrics.IncUpstreamRequest(s.collector, "rate_limited")
		if attempt >= s.f.opts.MaxRetries {
			return nil, err
		}
		attempt++
		wait := s.f.opts.RateLimitDelay
		if retryAfter > 0 {
			wait = retryAfter
		}
		s.f.log.Warn().Str("collector", s.collector).Str("url", url).Dur("backoff", wait).Int("attempt", attempt).Msg("rate limited, backing off")
		if err := s.f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// GetJSON is Get followed by a JSON decode into v.
func (s *Session) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	body, err := s.Get(ctx, url, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (s *Session) pace(ctx context.Context) error {
	s.mu.Lock()
	first := s.calls == 0
	s.calls++
	s.mu.Unlock()
	if first || s.f.opts.CourtesyDelay <= 0 {
		return ctx.Err()
	}
	return s.f.sleep(ctx, s.f.opts.CourtesyDelay)
}

func (s *Session) do(ctx context.Context, url string, header http.Header) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" && s.f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.f.opts.UserAgent)
	}

	resp, err := s.f.client.Do(req)
	if err != nil {
		metrics.IncUpstreamRequest(s.collector, "network_error")
		return nil, 0, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		if resp.StatusCode != http.StatusTooManyRequests {
			metrics.IncUpstreamRequest(s.collector, "http_error")
		}
		return nil, retryAfter(resp.Header.Get("Retry-After")), &StatusError{URL: url, Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", url, err)
	}
	return body, 0, nil
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
