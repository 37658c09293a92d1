// Package render formats analyses, articles and run reports for files and the
// terminal.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"newsdesk/internal/core"
)

// Markdown renders an analysis result as a markdown report.
func Markdown(result *core.AnalysisResult) string {
	var md strings.Builder

	md.WriteString(fmt.Sprintf("# Broadcast News Analysis - %s\n\n", result.CollectionDate))

	md.WriteString("## Primary Narrative\n\n")
	md.WriteString(result.HeadlineAnalysis.PrimaryNarrative)
	md.WriteString("\n\n")

	if len(result.HeadlineAnalysis.SourceFocus) > 0 {
		md.WriteString("## Source Focus\n\n")
		for _, f := range result.HeadlineAnalysis.SourceFocus {
			md.WriteString(fmt.Sprintf("- **%s**: %s\n", strings.ToUpper(f.Source), f.Focus))
		}
		md.WriteString("\n")
	}

	if len(result.Topics) > 0 {
		md.WriteString("## Topics\n\n")
		md.WriteString("| # | Topic | Items | Coverage |\n")
		md.WriteString("|---|-------|-------|----------|\n")
		for i, t := range result.Topics {
			md.WriteString(fmt.Sprintf("| %d | %s | %d | %s |\n", i+1, escapeCell(t.Label), t.TotalItems, Coverage(t)))
		}
		md.WriteString("\n")
	}

	if len(result.UniqueTopics) > 0 {
		md.WriteString("## Unique Topics\n\n")
		for _, u := range result.UniqueTopics {
			md.WriteString(fmt.Sprintf("- **%s**: %s\n", strings.ToUpper(u.Source), u.Topic))
		}
		md.WriteString("\n")
	}

	if omissions := result.NotableElements.PotentialOmissions; len(omissions) > 0 {
		md.WriteString("## Potential Omissions\n\n")
		for _, o := range omissions {
			md.WriteString(fmt.Sprintf("- %s (covered by %s; missing from %s)\n",
				o.Topic, upperJoin(o.CoveredBy), upperJoin(o.MissingFrom)))
		}
		md.WriteString("\n")
	}

	if exclusives := result.NotableElements.ExclusivesClaimed; len(exclusives) > 0 {
		md.WriteString("## Exclusives Claimed\n\n")
		for _, e := range exclusives {
			md.WriteString(fmt.Sprintf("- %s\n", e))
		}
		md.WriteString("\n")
	}

	if result.EditorialCritique != "" {
		md.WriteString("## Editorial Critique\n\n")
		md.WriteString(result.EditorialCritique)
		md.WriteString("\n\n")
	}

	md.WriteString("---\n")
	if result.Model != "" {
		md.WriteString(fmt.Sprintf("*Model: %s*\n", result.Model))
	}

	return md.String()
}

// CritiqueMarkdown renders a per-article critique.
func CritiqueMarkdown(article *core.Article, c *core.ArticleCritique) string {
	var md strings.Builder

	md.WriteString(fmt.Sprintf("# %s #%d: %s\n\n", strings.ToUpper(string(article.Source)), article.SequenceOrder, article.Title))
	md.WriteString(fmt.Sprintf("*%s* · %s\n\n", article.CollectionDate, article.SourceURL))

	md.WriteString("## 헤드라인 분석\n\n")
	md.WriteString(c.HeadlineAnalysis)
	md.WriteString("\n\n")

	if len(c.KeyAgendaItems) > 0 {
		md.WriteString("## 주요 의제\n\n")
		for _, item := range c.KeyAgendaItems {
			md.WriteString(fmt.Sprintf("- **%s** (%s): %s\n", item.Topic, item.Placement, item.Comment))
		}
		md.WriteString("\n")
	}

	if c.EditorialCritique != "" {
		md.WriteString("## 편집 비평\n\n")
		md.WriteString(c.EditorialCritique)
		md.WriteString("\n\n")
	}

	if len(c.NotableElements.ExclusivesClaimed) > 0 {
		md.WriteString("## 단독 보도\n\n")
		for _, e := range c.NotableElements.ExclusivesClaimed {
			md.WriteString(fmt.Sprintf("- %s\n", e))
		}
		md.WriteString("\n")
	}

	if len(c.NotableElements.PotentialOmissions) > 0 {
		md.WriteString("## 누락 가능성\n\n")
		for _, o := range c.NotableElements.PotentialOmissions {
			md.WriteString(fmt.Sprintf("- %s\n", o.Topic))
		}
		md.WriteString("\n")
	}

	return md.String()
}

// WriteMarkdown writes the analysis report to analysis_<date>.md in outputDir.
func WriteMarkdown(result *core.AnalysisResult, outputDir string) (string, error) {
	return WriteToFile(Markdown(result), outputDir, fmt.Sprintf("analysis_%s.md", result.CollectionDate))
}

// WriteToFile writes content to a file in the specified directory
func WriteToFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "reports"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	return filePath, nil
}

// Coverage formats per-source counts, e.g. "KBS (2), SBS (1)".
func Coverage(t core.LabeledTopic) string {
	parts := make([]string, 0, len(t.SourceContribution))
	for _, s := range t.Sources() {
		parts = append(parts, fmt.Sprintf("%s (%d)", strings.ToUpper(string(s)), t.SourceContribution[s]))
	}
	return strings.Join(parts, ", ")
}

func upperJoin(sources []string) string {
	if len(sources) == 0 {
		return "none"
	}
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = strings.ToUpper(s)
	}
	return strings.Join(out, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
