package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Renderer returns the post-JavaScript HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserRenderer drives a shared headless Chrome through chromedp. The
// allocator starts lazily on the first render.
type BrowserRenderer struct {
	userAgent string
	timeout   time.Duration
	log       zerolog.Logger

	once        sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewBrowserRenderer(userAgent string, timeout time.Duration, logger *zerolog.Logger) *BrowserRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserRenderer{
		userAgent: userAgent,
		timeout:   timeout,
		log:       logger.With().Str("component", "BrowserRenderer").Logger(),
	}
}

func (r *BrowserRenderer) start() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.userAgent))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

func (r *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	r.once.Do(r.start)

	taskCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, r.timeout)
	defer cancelTimeout()

	// tie the browser tab to the caller's cancellation as well
	stop := context.AfterFunc(ctx, cancelTimeout)
	defer stop()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	r.log.Debug().Str("url", url).Int("bytes", len(html)).Msg("page rendered")
	return html, nil
}

// Close shuts the browser down.
func (r *BrowserRenderer) Close() {
	if r.allocCancel != nil {
		r.allocCancel()
	}
}
