// Package comparison asks the model for a structured day-level comparison of
// how broadcasters covered the labeled topics.
package comparison

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"

	"google.golang.org/genai"
)

// Analyzer produces comparisons with a response schema.
type Analyzer struct {
	generator   llm.TextGenerator
	temperature float32
	maxTokens   int32
	log         *slog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(generator llm.TextGenerator) *Analyzer {
	return &Analyzer{
		generator:   generator,
		temperature: 0.4,
		maxTokens:   4096,
		log:         logger.Get(),
	}
}

// Compare analyzes the topics of one news-day. An unparseable response or a
// response without a primary narrative is core.ErrSchemaMismatch.
func (a *Analyzer) Compare(ctx context.Context, topics []core.LabeledTopic, analysisDate string) (core.Comparison, error) {
	if len(topics) == 0 {
		return core.Comparison{}, core.ErrNoTopics
	}

	response, err := a.generator.GenerateText(ctx, BuildComparisonPrompt(topics, analysisDate), llm.TextGenerationOptions{
		ResponseSchema: ComparisonSchema(),
		Temperature:    a.temperature,
		MaxTokens:      a.maxTokens,
	})
	if err != nil {
		return core.Comparison{}, fmt.Errorf("comparative analysis failed: %w", err)
	}

	cmp, err := ParseComparison(response)
	if err != nil {
		return core.Comparison{}, err
	}

	a.log.Info("Generated comparative analysis",
		"date", analysisDate,
		"topics", len(topics),
		"unique_topics", len(cmp.UniqueTopics),
		"omissions", len(cmp.PotentialOmissions))
	return cmp, nil
}

// ParseComparison decodes a model response into a Comparison.
func ParseComparison(response string) (core.Comparison, error) {
	var cmp core.Comparison
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &cmp); err != nil {
		return core.Comparison{}, fmt.Errorf("%w: %v", core.ErrSchemaMismatch, err)
	}
	if strings.TrimSpace(cmp.PrimaryNarrative) == "" {
		return core.Comparison{}, fmt.Errorf("%w: missing primary_narrative", core.ErrSchemaMismatch)
	}
	return cmp, nil
}

// BuildComparisonPrompt summarizes each topic on one line with its sources.
func BuildComparisonPrompt(topics []core.LabeledTopic, analysisDate string) string {
	var summary strings.Builder
	for _, topic := range topics {
		sources := make([]string, 0, len(topic.SourceContribution))
		for _, s := range topic.Sources() {
			sources = append(sources, fmt.Sprintf("%s (%d)", s, topic.SourceContribution[s]))
		}
		summary.WriteString(fmt.Sprintf("- Topic: %q (Total Items: %d) | Covered by: %s\n",
			topic.Label, topic.TotalItems, strings.Join(sources, ", ")))
	}

	return fmt.Sprintf(`You are a senior media critic. Analyze the news coverage from multiple broadcasters for %s.
Based on the following summary of topics, provide a comparative analysis of their editorial choices.

TOPIC SUMMARY:
%s
Your analysis must identify the primary narrative of the day, compare the focus of each broadcaster,
point out any topics covered uniquely by a single broadcaster, and note any significant potential omissions.
List any stories a broadcaster presented as exclusive.`, analysisDate, summary.String())
}

// ComparisonSchema returns the Gemini response_schema for the comparison.
func ComparisonSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"primary_narrative": {
				Type:        genai.TypeString,
				Description: "The dominant story or theme of the day across all broadcasters",
			},
			"source_focus": {
				Type:        genai.TypeArray,
				Description: "What each broadcaster emphasized",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"source": str,
						"focus":  str,
					},
					Required: []string{"source", "focus"},
				},
			},
			"unique_topics": {
				Type:        genai.TypeArray,
				Description: "Topics covered by only one broadcaster",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"source": str,
						"topic":  str,
					},
					Required: []string{"source", "topic"},
				},
			},
			"potential_omissions": {
				Type:        genai.TypeArray,
				Description: "Topics some broadcasters covered and others left out",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"topic":        str,
						"covered_by":   {Type: genai.TypeArray, Items: str},
						"missing_from": {Type: genai.TypeArray, Items: str},
					},
					Required: []string{"topic", "covered_by", "missing_from"},
				},
			},
			"editorial_critique": {
				Type:        genai.TypeString,
				Description: "A short paragraph assessing the overall editorial choices",
			},
			"exclusives_claimed": {
				Type:        genai.TypeArray,
				Description: "Stories presented as exclusives",
				Items:       str,
			},
		},
		Required: []string{"primary_narrative", "source_focus", "unique_topics", "potential_omissions", "editorial_critique"},
	}
}
