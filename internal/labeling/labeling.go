// Package labeling names each cluster with a short topic label and counts
// which broadcasters contributed to it.
package labeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
	// MaxLabelWords caps the label length kept from a response.
	MaxLabelWords = 7
)

// ErrEmptyLabel means the model answered without a usable label.
var ErrEmptyLabel = errors.New("empty label in response")

// LabelFailure records a cluster that could not be labeled.
type LabelFailure struct {
	Index int    `json:"index"` // Position of the cluster in the input
	Size  int    `json:"size"`
	Err   string `json:"error"`
}

// Options tunes a Labeler.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	Temperature float32
}

// Labeler generates topic labels concurrently.
type Labeler struct {
	generator llm.TextGenerator
	opts      Options
	log       *slog.Logger
}

// NewLabeler creates a labeler.
func NewLabeler(generator llm.TextGenerator, opts Options) *Labeler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.3
	}
	return &Labeler{generator: generator, opts: opts, log: logger.Get()}
}

// Label returns one topic per successfully labeled cluster, in input order,
// plus the clusters that failed. A failed cluster is skipped, never given a
// placeholder. The returned error is only set when ctx is done.
func (l *Labeler) Label(ctx context.Context, clusters []core.Cluster) ([]core.LabeledTopic, []LabelFailure, error) {
	results := make([]*core.LabeledTopic, len(clusters))
	var (
		mu       sync.Mutex
		failures []LabelFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)

	for i, cluster := range clusters {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			label, err := l.labelCluster(gctx, cluster)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				l.log.Warn("Failed to label cluster", "cluster", i+1, "size", cluster.Size(), "error", err)
				mu.Lock()
				failures = append(failures, LabelFailure{Index: i, Size: cluster.Size(), Err: err.Error()})
				mu.Unlock()
				return nil
			}

			topic := NewTopic(label, cluster)
			results[i] = &topic
			l.log.Debug("Labeled cluster", "cluster", i+1, "label", label, "sources", topic.SourceContribution)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	topics := make([]core.LabeledTopic, 0, len(clusters))
	for _, t := range results {
		if t != nil {
			topics = append(topics, *t)
		}
	}
	sort.Slice(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })

	l.log.Info("Labeled clusters", "clusters", len(clusters), "topics", len(topics), "failures", len(failures))
	return topics, failures, nil
}

func (l *Labeler) labelCluster(ctx context.Context, cluster core.Cluster) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	response, err := l.generator.GenerateText(callCtx, BuildLabelPrompt(cluster), llm.TextGenerationOptions{
		Temperature: l.opts.Temperature,
		MaxTokens:   64,
	})
	if err != nil {
		return "", fmt.Errorf("label generation failed: %w", err)
	}

	label := CleanLabel(response)
	if label == "" {
		return "", ErrEmptyLabel
	}
	return label, nil
}

// BuildLabelPrompt lists the cluster's documents for a short label request.
func BuildLabelPrompt(cluster core.Cluster) string {
	var prompt strings.Builder
	prompt.WriteString("Analyze the following news items, which have been clustered by topic.\n")
	prompt.WriteString("Provide a concise, descriptive topic label (5-7 words maximum) for this group.\n\n")
	prompt.WriteString("NEWS ITEMS:\n")
	for _, item := range cluster.Items {
		prompt.WriteString("- ")
		prompt.WriteString(item.Document)
		prompt.WriteString("\n")
	}
	prompt.WriteString("\nCONCISE TOPIC LABEL:\n")
	return prompt.String()
}

// CleanLabel trims a model response, removes markdown emphasis and quotes,
// keeps the first non-empty line and clips it to MaxLabelWords words.
func CleanLabel(response string) string {
	text := strings.ReplaceAll(response, "*", "")
	for _, line := range strings.Split(text, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "\"'`")
		if line == "" {
			continue
		}
		words := strings.Fields(line)
		if len(words) > MaxLabelWords {
			words = words[:MaxLabelWords]
		}
		return strings.Join(words, " ")
	}
	return ""
}

// NewTopic builds a labeled topic from a cluster. The per-source counts
// always sum to the number of items.
func NewTopic(label string, cluster core.Cluster) core.LabeledTopic {
	topic := core.LabeledTopic{
		Label:              label,
		TotalItems:         cluster.Size(),
		SourceContribution: make(map[core.Source]int),
		Items:              make([]core.TopicItem, 0, cluster.Size()),
	}
	for _, r := range cluster.Items {
		topic.SourceContribution[r.Metadata.Source]++
		topic.Items = append(topic.Items, core.TopicItem{
			ID:     r.ID,
			Source: r.Metadata.Source,
			Order:  r.Metadata.Order,
			Title:  r.Metadata.Title,
			Text:   r.Document,
		})
	}
	return topic
}
