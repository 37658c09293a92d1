package render

import (
	"fmt"
	"strconv"
	"strings"

	"newsdesk/internal/core"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginTop(1)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	tableBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
)

// Terminal renders an analysis result for an interactive terminal.
func Terminal(result *core.AnalysisResult) string {
	sections := []string{
		titleStyle.Render("Broadcast News Analysis · " + result.CollectionDate),
		boxStyle.Render(result.HeadlineAnalysis.PrimaryNarrative),
	}

	if len(result.Topics) > 0 {
		rows := make([][]string, len(result.Topics))
		for i, t := range result.Topics {
			rows[i] = []string{strconv.Itoa(i + 1), t.Label, strconv.Itoa(t.TotalItems), Coverage(t)}
		}
		topics := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(tableBorder).
			Headers("#", "TOPIC", "ITEMS", "COVERAGE").
			Rows(rows...)
		sections = append(sections, headingStyle.Render("Topics"), topics.Render())
	}

	if len(result.HeadlineAnalysis.SourceFocus) > 0 {
		var focus strings.Builder
		for _, f := range result.HeadlineAnalysis.SourceFocus {
			focus.WriteString(fmt.Sprintf("%s  %s\n", lipgloss.NewStyle().Bold(true).Render(strings.ToUpper(f.Source)), f.Focus))
		}
		sections = append(sections, headingStyle.Render("Source Focus"), strings.TrimRight(focus.String(), "\n"))
	}

	if len(result.UniqueTopics) > 0 {
		var unique strings.Builder
		for _, u := range result.UniqueTopics {
			unique.WriteString(fmt.Sprintf("%s  %s\n", strings.ToUpper(u.Source), u.Topic))
		}
		sections = append(sections, headingStyle.Render("Unique Topics"), strings.TrimRight(unique.String(), "\n"))
	}

	if omissions := result.NotableElements.PotentialOmissions; len(omissions) > 0 {
		var lines strings.Builder
		for _, o := range omissions {
			lines.WriteString(fmt.Sprintf("%s %s\n", o.Topic, mutedStyle.Render("missing from "+upperJoin(o.MissingFrom))))
		}
		sections = append(sections, headingStyle.Render("Potential Omissions"), strings.TrimRight(lines.String(), "\n"))
	}

	if result.EditorialCritique != "" {
		sections = append(sections, headingStyle.Render("Editorial Critique"), result.EditorialCritique)
	}

	if result.Model != "" {
		sections = append(sections, mutedStyle.Render("model: "+result.Model))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

// ArticlesTable renders a listing of articles.
func ArticlesTable(articles []core.Article) string {
	if len(articles) == 0 {
		return mutedStyle.Render("No articles found.") + "\n"
	}

	rows := make([][]string, len(articles))
	for i, a := range articles {
		rows[i] = []string{
			a.CollectionDate,
			strings.ToUpper(string(a.Source)),
			strconv.Itoa(a.SequenceOrder),
			truncate(a.Title, 48),
			strconv.Itoa(len([]rune(a.ScriptText))),
			a.ID,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(tableBorder).
		Headers("DATE", "SOURCE", "#", "TITLE", "CHARS", "ID").
		Rows(rows...)
	return t.Render() + "\n"
}

// Counts renders per-source article counts from a scrape.
func Counts(date string, counts map[core.Source]int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Collected " + date))
	b.WriteString("\n")
	total := 0
	for _, s := range sortedSources(counts) {
		b.WriteString(fmt.Sprintf("  %-4s %d\n", strings.ToUpper(string(s)), counts[s]))
		total += counts[s]
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  total %d", total)))
	b.WriteString("\n")
	return b.String()
}

func sortedSources(counts map[core.Source]int) []core.Source {
	t := core.LabeledTopic{SourceContribution: counts}
	return t.Sources()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
