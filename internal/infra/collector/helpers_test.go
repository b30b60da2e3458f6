//go:build !integration

package collector

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.waits {
		if w == d {
			n++
		}
	}
	return n
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// newTestFetcher returns a fetcher whose pauses are recorded instead of slept.
func newTestFetcher() (*Fetcher, *sleepRecorder) {
	rec := &sleepRecorder{}
	f := NewFetcher(HTTPOptions{
		UserAgent:      "test-agent",
		Timeout:        5 * time.Second,
		CourtesyDelay:  2 * time.Second,
		RateLimitDelay: time.Minute,
		MaxRetries:     2,
	}, nopLogger())
	f.sleep = rec.sleep
	return f, rec
}
