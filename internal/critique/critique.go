// Package critique produces a per-article editorial critique of one broadcast
// transcript, written in Korean and stored once per article.
package critique

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/persistence"

	"google.golang.org/genai"
)

// maxScriptRunes bounds the transcript sent to the model.
const maxScriptRunes = 20000

// Critic generates and stores article critiques.
type Critic struct {
	generator llm.TextGenerator
	critiques persistence.CritiqueRepository
	model     string
	log       *slog.Logger
}

// NewCritic creates a critic. model is recorded on stored critiques.
func NewCritic(generator llm.TextGenerator, critiques persistence.CritiqueRepository, model string) *Critic {
	return &Critic{
		generator: generator,
		critiques: critiques,
		model:     model,
		log:       logger.Get(),
	}
}

// Critique returns the critique for an article, generating and storing it
// when none exists yet. skipped reports that a stored critique was returned.
func (c *Critic) Critique(ctx context.Context, article *core.Article) (result *core.ArticleCritique, skipped bool, err error) {
	existing, err := c.critiques.Get(ctx, article.ID)
	if err == nil {
		c.log.Info("Critique already exists, skipping", "article_id", article.ID)
		return existing, true, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check existing critique: %w", err)
	}

	if strings.TrimSpace(article.ScriptText) == "" {
		return nil, false, fmt.Errorf("%w: article %s has no script", core.ErrExtractionFailure, article.ID)
	}

	response, err := c.generator.GenerateText(ctx, BuildCritiquePrompt(article), llm.TextGenerationOptions{
		ResponseSchema: CritiqueSchema(),
		Temperature:    0.5,
		MaxTokens:      4096,
	})
	if err != nil {
		return nil, false, fmt.Errorf("critique generation failed: %w", err)
	}

	critique, err := ParseCritique(response)
	if err != nil {
		return nil, false, err
	}
	critique.ArticleID = article.ID
	critique.Model = c.model

	if err := c.critiques.Create(ctx, critique); err != nil {
		if errors.Is(err, core.ErrAlreadyAnalyzed) {
			stored, getErr := c.critiques.Get(ctx, article.ID)
			if getErr == nil {
				return stored, true, nil
			}
		}
		return nil, false, fmt.Errorf("failed to store critique: %w", err)
	}

	c.log.Info("Stored critique",
		"article_id", article.ID,
		"source", article.Source,
		"agenda_items", len(critique.KeyAgendaItems))
	return critique, false, nil
}

// ParseCritique decodes a model response.
func ParseCritique(response string) (*core.ArticleCritique, error) {
	var critique core.ArticleCritique
	if err := json.Unmarshal([]byte(llm.ExtractJSON(response)), &critique); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchemaMismatch, err)
	}
	if strings.TrimSpace(critique.HeadlineAnalysis) == "" {
		return nil, fmt.Errorf("%w: missing headline_analysis", core.ErrSchemaMismatch)
	}
	return &critique, nil
}

// BuildCritiquePrompt creates the per-article analysis prompt
func BuildCritiquePrompt(article *core.Article) string {
	script := article.ScriptText
	if runes := []rune(script); len(runes) > maxScriptRunes {
		script = string(runes[:maxScriptRunes])
	}

	return fmt.Sprintf(`You are a senior media analyst and broadcast news critic.
Perform a sophisticated analysis of the following news script, focusing on its editorial choices, framing, and potential biases. Write every field in Korean.

Broadcaster: %s
Broadcast date: %s
Item: #%d %s

Your analysis must include the following components:
- headline_analysis: Analyze the main headline. What is the topic? How is it framed? What other major stories might have been downplayed?
- key_agenda_items: Identify 2-4 major news blocks. For each, describe the topic, its placement in the broadcast, and a brief analytic comment on the coverage angle.
- editorial_critique: Provide a 2-4 sentence paragraph assessing the overall editorial stance.
- notable_elements: List any stories claimed as "exclusives" and identify any potential major events that are conspicuously omitted.

Here is the news script:
---
%s
---`, strings.ToUpper(string(article.Source)), article.CollectionDate, article.SequenceOrder, article.Title, script)
}

// CritiqueSchema returns the Gemini response_schema for article critiques.
func CritiqueSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"headline_analysis": {
				Type:        genai.TypeString,
				Description: "헤드라인의 주제와 프레이밍 분석",
			},
			"key_agenda_items": {
				Type:        genai.TypeArray,
				Description: "주요 뉴스 블록 2-4개",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"topic":     str,
						"placement": str,
						"comment":   str,
					},
					Required: []string{"topic", "placement", "comment"},
				},
			},
			"editorial_critique": {
				Type:        genai.TypeString,
				Description: "전체 편집 방향에 대한 2-4문장 평가",
			},
			"notable_elements": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"exclusives_claimed": {Type: genai.TypeArray, Items: str},
					"potential_omissions": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"topic":        str,
								"covered_by":   {Type: genai.TypeArray, Items: str},
								"missing_from": {Type: genai.TypeArray, Items: str},
							},
							Required: []string{"topic"},
						},
					},
				},
			},
		},
		Required: []string{"headline_analysis", "key_agenda_items", "editorial_critique", "notable_elements"},
	}
}
