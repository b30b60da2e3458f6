//go:build !integration

package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"persona-research/internal/domain"
)

func TestPool(t *testing.T) {
	nop := zerolog.Nop()

	t.Run("runs submitted tasks", func(t *testing.T) {
		p := NewPool(2, 8, &nop)
		p.Start(context.Background())
		defer p.Stop()

		var n int32
		done := make(chan struct{}, 3)
		for i := 0; i < 3; i++ {
			if err := p.Submit(func(ctx context.Context) error {
				atomic.AddInt32(&n, 1)
				done <- struct{}{}
				return nil
			}); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
		for i := 0; i < 3; i++ {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("task did not run")
			}
		}
		if atomic.LoadInt32(&n) != 3 {
			t.Fatalf("want 3 runs, got %d", n)
		}
	})

	t.Run("full queue is reported", func(t *testing.T) {
		// not started: nothing drains the queue
		p := NewPool(1, 1, &nop)
		noop := func(ctx context.Context) error { return nil }

		if err := p.Submit(noop); err != nil {
			t.Fatalf("first submit: %v", err)
		}
		if err := p.Submit(noop); !errors.Is(err, domain.ErrQueueFull) {
			t.Fatalf("want ErrQueueFull, got %v", err)
		}
	})

	t.Run("panicking task does not kill the worker", func(t *testing.T) {
		p := NewPool(1, 4, &nop)
		p.Start(context.Background())
		defer p.Stop()

		_ = p.Submit(func(ctx context.Context) error { panic("boom") })
		ran := make(chan struct{})
		_ = p.Submit(func(ctx context.Context) error { close(ran); return nil })

		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("worker died after panic")
		}
	})

	t.Run("submit after stop fails", func(t *testing.T) {
		p := NewPool(1, 1, &nop)
		p.Start(context.Background())
		p.Stop()
		p.Stop()

		if err := p.Submit(func(ctx context.Context) error { return nil }); err == nil {
			t.Fatal("expected error after stop")
		}
	})
}
