package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/internal/logger"

	"github.com/chromedp/chromedp"
)

// DefaultRenderWait is how long the renderer waits for the wait selector.
const DefaultRenderWait = 15 * time.Second

// Renderer loads pages in headless Chrome so client-side program listings
// are present in the returned HTML.
type Renderer struct {
	wait      time.Duration
	userAgent string
	headless  bool

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// RendererOptions configures a Renderer.
type RendererOptions struct {
	Wait      time.Duration
	UserAgent string
	Headless  bool
}

// NewRenderer starts a browser allocator. Call Close to release it.
func NewRenderer(ctx context.Context, opts RendererOptions) *Renderer {
	if opts.Wait <= 0 {
		opts.Wait = DefaultRenderWait
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, allocOpts...)

	return &Renderer{
		wait:        opts.Wait,
		userAgent:   opts.UserAgent,
		headless:    opts.Headless,
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
	}
}

// Fetch navigates to url in a fresh tab, waits for waitSelector to be present
// in the DOM and returns the document's outer HTML.
func (r *Renderer) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.allocCtx)
	defer cancelTab()

	// Tie the tab to the caller's context as well as the allocator.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	runCtx, cancel := context.WithTimeout(tabCtx, r.wait)
	defer cancel()

	actions := []chromedp.Action{chromedp.Navigate(url)}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
	}

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	start := time.Now()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s did not appear on %s within %s", ErrRenderTimeout, waitSelector, url, r.wait)
		}
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}

	logger.Debug("Rendered page", "url", url, "selector", waitSelector, "duration", time.Since(start))
	return html, nil
}

// Close shuts down the browser.
func (r *Renderer) Close() {
	if r.cancelAlloc != nil {
		r.cancelAlloc()
	}
}
