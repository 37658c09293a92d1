// Package fetch retrieves broadcaster pages, either as plain HTTP responses
// or rendered by a headless browser.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsdesk/internal/resilience"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultTimeout bounds a single HTTP fetch.
	DefaultTimeout = 20 * time.Second
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "Mozilla/5.0 (compatible; newsdesk/1.0)"

	maxBodyBytes = 10 << 20
)

var (
	// ErrRenderTimeout is returned when the wait selector does not appear in time.
	ErrRenderTimeout = errors.New("page render timed out")
	// ErrSelectorNotFound is returned when a static page lacks the wait selector.
	ErrSelectorNotFound = errors.New("wait selector not found")
)

// PageFetcher returns the HTML of a page once waitSelector is present.
// An empty waitSelector returns the page as soon as it loads.
type PageFetcher interface {
	Fetch(ctx context.Context, url, waitSelector string) (string, error)
}

// HTTPFetcher fetches pages without executing JavaScript.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher with the given per-request timeout.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Get fetches url and returns the body as a string.
func (f *HTTPFetcher) Get(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch URL %s: status code %d", url, resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	return string(body), nil
}

// Fetch implements PageFetcher. The selector is checked against the static
// document since nothing renders client side.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	html, err := f.Get(ctx, url)
	if err != nil {
		return "", err
	}
	if waitSelector == "" {
		return html, nil
	}

	ok, err := HasSelector(html, waitSelector)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrSelectorNotFound, waitSelector, url)
	}
	return html, nil
}

// HasSelector reports whether html contains at least one element matching selector.
func HasSelector(html, selector string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc.Find(selector).Length() > 0, nil
}
