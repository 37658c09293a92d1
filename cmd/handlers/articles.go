package handlers

import (
	"context"
	"fmt"
	"os"

	"newsdesk/internal/core"
	"newsdesk/internal/newsday"
	"newsdesk/internal/persistence"
	"newsdesk/internal/render"

	"github.com/spf13/cobra"
)

// NewArticlesCmd creates the articles command
func NewArticlesCmd() *cobra.Command {
	var (
		date   string
		source string
		limit  int
		offset int
		format string
	)

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List stored articles",
		Long: `List stored articles, newest news-day first, then by broadcaster and
broadcast order.

Examples:
  newsdesk articles --date 2025-03-07
  newsdesk articles --source sbs --limit 20
  newsdesk articles --date 2025-03-07 --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := persistence.ArticleFilter{
				Source: core.Source(source),
				Limit:  limit,
				Offset: offset,
			}
			if date != "" {
				day, err := resolveDate(date)
				if err != nil {
					return err
				}
				filter.CollectionDate = newsday.Format(day)
			}
			return runArticles(cmd.Context(), filter, format)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Only this news-day, YYYY-MM-DD")
	cmd.Flags().StringVar(&source, "source", "", "Only this broadcaster")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of articles (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of articles to skip")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")

	return cmd
}

func runArticles(ctx context.Context, filter persistence.ArticleFilter, format string) error {
	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	articles, err := b.db.Articles().List(ctx, filter)
	if err != nil {
		return err
	}

	switch format {
	case "text", "":
		fmt.Print(render.ArticlesTable(articles))
		return nil
	default:
		if articles == nil {
			articles = []core.Article{}
		}
		return render.Encode(os.Stdout, format, articles)
	}
}
