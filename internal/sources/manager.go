package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/fetch"
	"newsdesk/internal/logger"
	"newsdesk/internal/newsday"
	"newsdesk/internal/resilience"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"
)

// DetailFetcher downloads a detail page.
type DetailFetcher interface {
	Get(ctx context.Context, url string) (string, error)
}

// CollectOptions configures detail page collection.
type CollectOptions struct {
	MaxConcurrency int           // Detail pages fetched at once
	RateLimit      time.Duration // Minimum gap between requests to one host
	Timeout        time.Duration // Bound for one detail fetch
	Retry          resilience.RetryConfig
}

// DefaultCollectOptions returns sensible defaults
func DefaultCollectOptions() CollectOptions {
	return CollectOptions{
		MaxConcurrency: 4,
		RateLimit:      250 * time.Millisecond,
		Timeout:        fetch.DefaultTimeout,
		Retry:          resilience.DefaultRetryConfig(),
	}
}

// Manager renders program pages and turns their items into articles.
type Manager struct {
	registry *Registry
	pages    fetch.PageFetcher
	details  DetailFetcher
	opts     CollectOptions
	log      *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewManager creates a new source manager
func NewManager(registry *Registry, pages fetch.PageFetcher, details DetailFetcher, opts CollectOptions) *Manager {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = fetch.DefaultTimeout
	}
	return &Manager{
		registry: registry,
		pages:    pages,
		details:  details,
		opts:     opts,
		log:      logger.Get(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Registry returns the adapters this manager collects from.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Collect fetches one broadcaster's program for day and returns its articles
// numbered 1..n in broadcast order. Items whose transcript cannot be
// extracted are logged and left out before numbering.
func (m *Manager) Collect(ctx context.Context, a Adapter, day time.Time) ([]core.Article, error) {
	source := a.Source()
	programURL := a.ProgramURL(day)

	html, err := m.pages.Fetch(ctx, programURL, a.WaitSelector())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s program: %w", source, err)
	}

	items, err := a.ParseProgram(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s program: %w", source, err)
	}
	m.log.Info("Parsed program", "source", source, "items", len(items), "url", programURL)

	collected := make([]*core.Article, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxConcurrency)

	for i, item := range items {
		g.Go(func() error {
			script, err := m.fetchScript(gctx, a, item.DetailURL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				m.log.Warn("Skipping item", "source", source, "url", item.DetailURL, "error", err)
				return nil
			}
			collected[i] = &core.Article{
				Source:     source,
				Title:      normalize(item.Title),
				SourceURL:  item.DetailURL,
				ScriptText: normalize(script),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return number(collected, newsday.Format(day)), nil
}

func (m *Manager) fetchScript(ctx context.Context, a Adapter, detailURL string) (string, error) {
	if err := m.limiter(detailURL).Wait(ctx); err != nil {
		return "", err
	}

	html, err := resilience.DoVal(ctx, m.opts.Retry, func(ctx context.Context) (string, error) {
		fctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
		return m.details.Get(fctx, detailURL)
	})
	if err != nil {
		return "", err
	}

	script, err := a.ExtractScript(html)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("%w: empty transcript", core.ErrExtractionFailure)
	}
	return script, nil
}

// limiter returns the per-host limiter for rawURL.
func (m *Manager) limiter(rawURL string) *rate.Limiter {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[host]
	if !ok {
		limit := rate.Inf
		if m.opts.RateLimit > 0 {
			limit = rate.Every(m.opts.RateLimit)
		}
		l = rate.NewLimiter(limit, 1)
		m.limiters[host] = l
	}
	return l
}

// number drops failed slots and assigns contiguous sequence orders.
func number(collected []*core.Article, collectionDate string) []core.Article {
	articles := make([]core.Article, 0, len(collected))
	for _, a := range collected {
		if a == nil {
			continue
		}
		a.CollectionDate = collectionDate
		a.SequenceOrder = len(articles) + 1
		articles = append(articles, *a)
	}
	return articles
}

func normalize(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// AggregateResult contains collection statistics
type AggregateResult struct {
	Articles []core.Article
	Counts   map[core.Source]int
	Failed   map[core.Source]error
}

// Err joins the per-source failures, if any.
func (r *AggregateResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for source, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", source, err))
	}
	return errors.Join(errs...)
}

// Aggregate collects from each adapter in turn. A failing source is logged
// and recorded; the others still contribute.
func (m *Manager) Aggregate(ctx context.Context, adapters []Adapter, day time.Time) (*AggregateResult, error) {
	result := &AggregateResult{
		Counts: make(map[core.Source]int),
		Failed: make(map[core.Source]error),
	}

	m.log.Info("Starting collection", "sources", len(adapters), "date", newsday.Format(day))

	for _, a := range adapters {
		select {
		case <-ctx.Done():
			m.log.Warn("Collection cancelled", "reason", ctx.Err())
			return result, ctx.Err()
		default:
		}

		articles, err := m.Collect(ctx, a, day)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			logger.Error("Failed to collect source", err, "source", a.Source())
			result.Failed[a.Source()] = err
			continue
		}
		result.Counts[a.Source()] = len(articles)
		result.Articles = append(result.Articles, articles...)
	}

	m.log.Info("Collection completed",
		"articles", len(result.Articles),
		"failed_sources", len(result.Failed),
	)
	return result, nil
}
