package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"newsdesk/internal/core"
	"newsdesk/internal/newsday"
	"newsdesk/internal/persistence"
	"newsdesk/internal/render"

	"github.com/spf13/cobra"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	var (
		date   string
		format string
		latest bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a stored analysis",
		Long: `Show the stored analysis of a news-day.

Formats:
  text      Styled terminal view (default)
  markdown  Markdown report
  json      The stored result as JSON
  yaml      The stored result as YAML

Examples:
  newsdesk show
  newsdesk show --date 2025-03-07 --format markdown > report.md
  newsdesk show --latest --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), date, latest, format)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "News-day to show, YYYY-MM-DD (default: current news-day)")
	cmd.Flags().BoolVar(&latest, "latest", false, "Show the most recent analysis")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, markdown, json or yaml")

	return cmd
}

func runShow(ctx context.Context, date string, latest bool, format string) error {
	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	var result *core.AnalysisResult
	if latest {
		results, err := b.db.Analyses().List(ctx, persistence.ListOptions{Limit: 1})
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no analyses stored yet")
		}
		result = &results[0]
	} else {
		day, err := resolveDate(date)
		if err != nil {
			return err
		}
		collectionDate := newsday.Format(day)
		result, err = b.db.Analyses().Get(ctx, collectionDate)
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%s has not been analyzed yet; run 'newsdesk analyze --date %s'", collectionDate, collectionDate)
		}
		if err != nil {
			return err
		}
	}

	switch format {
	case "text", "":
		fmt.Print(render.Terminal(result))
		return nil
	case "markdown", "md":
		fmt.Print(render.Markdown(result))
		return nil
	default:
		return render.Encode(os.Stdout, format, result)
	}
}
