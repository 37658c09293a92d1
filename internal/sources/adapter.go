// Package sources turns broadcaster program pages into ordered articles.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

// Adapter knows one broadcaster's page layout.
type Adapter interface {
	// Source identifies the broadcaster.
	Source() core.Source
	// ProgramURL returns the evening program listing for a news-day.
	ProgramURL(day time.Time) string
	// WaitSelector must be present before the program page is parsed.
	WaitSelector() string
	// ParseProgram returns the news items in broadcast order with
	// non-news segments removed.
	ParseProgram(html string) ([]core.RawItem, error)
	// ExtractScript returns the transcript from a detail page.
	ExtractScript(html string) (string, error)
}

// Registry holds the adapters known to the process.
type Registry struct {
	mu       sync.RWMutex
	adapters map[core.Source]Adapter
}

// NewRegistry creates a registry with the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[core.Source]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// DefaultRegistry returns a registry with the KBS, MBC and SBS adapters.
func DefaultRegistry() *Registry {
	return NewRegistry(NewKBS(), NewMBC(), NewSBS())
}

// Register adds or replaces the adapter for its source.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Source()] = a
}

// Get returns the adapter for source.
func (r *Registry) Get(source core.Source) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[source]
	return a, ok
}

// Sources lists registered sources in ascending order.
func (r *Registry) Sources() []core.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Source, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve maps source names to adapters, keeping the requested order.
// An empty list resolves to every registered adapter.
func (r *Registry) Resolve(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		names = make([]string, 0)
		for _, s := range r.Sources() {
			names = append(names, string(s))
		}
	}

	out := make([]Adapter, 0, len(names))
	seen := make(map[core.Source]bool)
	for _, name := range names {
		source := core.Source(strings.ToLower(strings.TrimSpace(name)))
		if seen[source] {
			continue
		}
		a, ok := r.Get(source)
		if !ok {
			return nil, fmt.Errorf("unknown source %q (registered: %v)", name, r.Sources())
		}
		seen[source] = true
		out = append(out, a)
	}
	return out, nil
}

// itemLink resolves a program item's link. A missing or malformed href only
// drops that item (ok is false); err is reserved for a bad base URL, which
// would fail every item.
func itemLink(source core.Source, base, href, title string) (link string, ok bool, err error) {
	link, err = resolveURL(base, href)
	switch {
	case err == nil:
		return link, true, nil
	case errors.Is(err, core.ErrExtractionFailure):
		logger.Warn("Skipping program item", "source", source, "title", title, "error", err)
		return "", false, nil
	default:
		return "", false, err
	}
}

// resolveURL resolves href against base. Absolute hrefs are returned as is.
func resolveURL(base, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: empty link", core.ErrExtractionFailure)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %s: %w", base, err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w: invalid link %s: %v", core.ErrExtractionFailure, href, err)
	}
	return b.ResolveReference(ref).String(), nil
}

// joinText mirrors the text of a node tree with one line per text node,
// each trimmed, empty lines dropped.
func joinText(s *goquery.Selection) string {
	var parts []string
	collectText(s, &parts)
	return strings.Join(parts, "\n")
}

func collectText(s *goquery.Selection, parts *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			if t := strings.TrimSpace(c.Text()); t != "" {
				*parts = append(*parts, t)
			}
		case "script", "style", "#comment":
		default:
			collectText(c, parts)
		}
	})
}

// stripSignOff removes a reporter sign-off and everything after it.
func stripSignOff(text string, patterns ...*regexp.Regexp) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

func parseDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}
